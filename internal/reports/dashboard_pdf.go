package reports

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"bizops-analytics/internal/analytics"

	"github.com/google/uuid"
	"github.com/phpdave11/gofpdf"
)

const ContentType = "application/pdf"

// Prefix is the object key prefix holding a business's exports.
func Prefix(businessID string) string {
	return "reports/" + businessID + "/"
}

// Key builds the object key for an exported report.
func Key(businessID string, generatedAt time.Time) string {
	return fmt.Sprintf("%s%s/%s.pdf", Prefix(businessID), generatedAt.UTC().Format("2006/01"), uuid.NewString())
}

// RenderDashboard lays out a dashboard snapshot as a single A4 document.
func RenderDashboard(d analytics.Dashboard, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "Business analytics report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("Business %s", d.BusinessID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s", d.GeneratedAt.In(loc).Format("2006-01-02 15:04 MST")), "", 1, "C", false, 0, "")

	section(pdf, "Summary")
	line(pdf, "Orders", fmt.Sprintf("%d", d.Summary.Orders))
	line(pdf, "Revenue", money(d.Summary.TotalRevenue))
	line(pdf, "Average order value", money(d.Summary.AverageOrderValue))
	line(pdf, "Cancellation rate", fmt.Sprintf("%.2f%% (%d of %d)", d.CancellationRate.Rate, d.CancellationRate.Count, d.CancellationRate.Total))

	section(pdf, fmt.Sprintf("Revenue by %s", d.Period))
	if len(d.Revenue) == 0 {
		line(pdf, "No completed orders", "")
	}
	for _, b := range d.Revenue {
		line(pdf, b.Period, fmt.Sprintf("%s  (%d orders)", money(b.Revenue), b.Orders))
	}

	section(pdf, "Top spenders")
	for i, c := range d.TopSpenders {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = c.Phone
		}
		line(pdf, fmt.Sprintf("%d. %s", i+1, name), fmt.Sprintf("%s  (%d orders)", money(c.TotalSpent), c.Orders))
	}

	section(pdf, "Popular items")
	for i, it := range d.PopularItems {
		line(pdf, fmt.Sprintf("%d. %s", i+1, it.Name), fmt.Sprintf("%d", it.Count))
	}

	section(pdf, "Reservations")
	line(pdf, "Total", fmt.Sprintf("%d", d.Reservations.Total))
	line(pdf, "Completion rate", fmt.Sprintf("%.2f%%", d.Reservations.CompletionRate))
	line(pdf, "No-show rate", fmt.Sprintf("%.2f%%", d.Reservations.NoShowRate))

	section(pdf, "Chat")
	line(pdf, "Requests handled", fmt.Sprintf("%d", d.Chat.RequestsHandled))
	line(pdf, "Conversations", fmt.Sprintf("%d", d.Chat.Conversations))
	line(pdf, "Fallback rate", fmt.Sprintf("%.2f%%", d.Chat.FallbackRate))

	if len(d.Degraded) > 0 {
		section(pdf, "Incomplete sections")
		pdf.SetFont("Arial", "I", 8)
		for _, s := range d.Degraded {
			pdf.MultiCell(0, 4, fmt.Sprintf("%s: %s", s.Section, s.Reason), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render dashboard pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, title, "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
}

func line(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(110, 5, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, value, "", 1, "R", false, 0, "")
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
