package telegramtmpl

import (
	"fmt"
	"strings"

	"github.com/patterniq/patterniq-client/internal/backend"
)

// AlertDigestData describes the data required to render an anomaly alert digest.
type AlertDigestData struct {
	ScanLabel string
	Alerts    []backend.Alert
}

// ArenaSummaryData describes the data required to render a daily arena summary.
type ArenaSummaryData struct {
	DisplayName string
	Score       int
	Gained      int
	Level       int
	Tier        string
	Correct     int
	Total       int
}

// BuildAlertDigestData normalizes digest inputs into a renderable payload.
// At most the first five alerts are kept.
func BuildAlertDigestData(scanLabel string, alerts []backend.Alert) AlertDigestData {
	if len(alerts) > 5 {
		alerts = alerts[:5]
	}
	return AlertDigestData{
		ScanLabel: strings.TrimSpace(scanLabel),
		Alerts:    alerts,
	}
}

// RenderAlertDigestHTML renders an anomaly alert digest in HTML parse mode.
func RenderAlertDigestHTML(d AlertDigestData) string {
	var b strings.Builder
	b.WriteString("<b>Anomaly Scan Digest</b>\n")
	if d.ScanLabel != "" {
		b.WriteString("Scan: " + d.ScanLabel + "\n")
	}
	if len(d.Alerts) == 0 {
		b.WriteString("No anomalies detected.\n")
	}
	for _, a := range d.Alerts {
		b.WriteString(fmt.Sprintf("- <code>%s</code> %s\n", a.Symbol, a.Message))
	}
	return strings.TrimSpace(b.String())
}

// RenderArenaSummaryHTML renders a daily arena summary in HTML parse mode.
func RenderArenaSummaryHTML(d ArenaSummaryData) string {
	var b strings.Builder
	b.WriteString("<b>Arena Daily Summary</b>\n")
	if strings.TrimSpace(d.DisplayName) != "" {
		b.WriteString("Player: " + strings.TrimSpace(d.DisplayName) + "\n")
	}
	b.WriteString(fmt.Sprintf("Score: %d\nLevel: %d (%s)\n", d.Score, d.Level, d.Tier))
	if d.Total > 0 {
		b.WriteString(fmt.Sprintf("Quiz: %d/%d correct\n", d.Correct, d.Total))
	}
	if d.Gained > 0 {
		b.WriteString(fmt.Sprintf("Points Gained: %d\n", d.Gained))
	}
	return strings.TrimSpace(b.String())
}
