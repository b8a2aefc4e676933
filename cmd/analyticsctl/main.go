package main

import "bizops-analytics/internal/cli"

func main() {
	cli.Execute()
}
