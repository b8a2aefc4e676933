package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"bizops-analytics/internal/analytics"
	"bizops-analytics/internal/app"
	"bizops-analytics/internal/config"
	"bizops-analytics/internal/logger"
	"bizops-analytics/internal/queue"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	businessID string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "analyticsctl",
	Short: "Inspect and maintain business analytics",
	Long:  `analyticsctl runs analytics queries against the configured datastores and publishes cache invalidation events. Configuration is read from the environment and an optional .env file.`,
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&businessID, "business", "", "Business ID (required)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall command timeout")

	rootCmd.AddCommand(newProbeCmd(), newRevenueCmd(), newDashboardCmd(), newInvalidateCmd())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withRuntime loads configuration, opens the datastores and runs fn.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *app.Runtime) error) error {
	if businessID == "" {
		return analytics.ErrBusinessRequired
	}
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	rt, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	return fn(ctx, rt)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report which datastores and optional columns serve a business",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				status, err := rt.Analytics.Status(ctx, businessID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), status)
			})
		},
	}
}

type rangeFlags struct {
	from   string
	to     string
	period string
}

func (f *rangeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "End date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&f.period, "period", "day", "Bucket size: hour, day, week or month")
}

func (f *rangeFlags) filter(loc *time.Location) (analytics.Filter, analytics.Period, error) {
	period, err := analytics.ParsePeriod(f.period)
	if err != nil {
		return analytics.Filter{}, "", err
	}
	out := analytics.Filter{BusinessID: businessID}
	if f.from != "" {
		start, err := time.ParseInLocation("2006-01-02", f.from, loc)
		if err != nil {
			return analytics.Filter{}, "", fmt.Errorf("invalid --from: %w", err)
		}
		out.StartDate = &start
	}
	if f.to != "" {
		end, err := time.ParseInLocation("2006-01-02", f.to, loc)
		if err != nil {
			return analytics.Filter{}, "", fmt.Errorf("invalid --to: %w", err)
		}
		out.EndDate = &end
	}
	if err := out.Validate(); err != nil {
		return analytics.Filter{}, "", err
	}
	return out, period, nil
}

func newRevenueCmd() *cobra.Command {
	var flags rangeFlags
	cmd := &cobra.Command{
		Use:   "revenue",
		Short: "Print revenue per period bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				f, period, err := flags.filter(rt.Location)
				if err != nil {
					return err
				}
				res, err := rt.Analytics.Sales.RevenueByPeriod(ctx, businessID, f, period)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newDashboardCmd() *cobra.Command {
	var flags rangeFlags
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the combined dashboard snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *app.Runtime) error {
				f, period, err := flags.filter(rt.Location)
				if err != nil {
					return err
				}
				d, err := rt.Analytics.Dashboard(ctx, businessID, f, period)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), d)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newInvalidateCmd() *cobra.Command {
	var eventType string
	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Publish a cache invalidation event for a business",
		RunE: func(cmd *cobra.Command, args []string) error {
			if businessID == "" {
				return analytics.ErrBusinessRequired
			}
			_ = godotenv.Load()
			cfg := config.Load()
			if cfg.RabbitMQURL == "" {
				return fmt.Errorf("RABBITMQ_URL is empty")
			}
			qc, err := queue.New(cfg.RabbitMQURL)
			if err != nil {
				return err
			}
			defer qc.Close()
			if err := queue.EnsureInvalidationTopology(qc); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := queue.PublishInvalidation(ctx, qc, businessID, eventType); err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err == nil {
				log.Info("invalidation published", zap.String("businessId", businessID), zap.String("type", eventType))
				_ = log.Sync()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "", "Event type recorded on the message")
	return cmd
}
