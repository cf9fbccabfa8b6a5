package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/service"
)

// GroupDigits splits a card number into space separated groups of four.
func GroupDigits(number string) string {
	runes := []rune(number)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatScan renders a one-line outcome for rec. The full number is shown
// only when reveal is set and number is non-empty.
func FormatScan(rec model.ScanRecord, number string, reveal bool) string {
	switch {
	case rec.Unrecoverable:
		return FormatError(fmt.Sprintf("%s: recognition failed: %s", rec.Source, rec.Error))
	case rec.Error != "":
		return FormatWarning(fmt.Sprintf("%s: %s", rec.Source, rec.Error))
	case !rec.Found:
		return SubtleStyle.Render(fmt.Sprintf("%s %s: no card number found", ErrorIcon, rec.Source))
	}

	shown := rec.MaskedNumber
	if reveal && number != "" {
		shown = number
	}
	detail := fmt.Sprintf("%d boxes, %s", len(rec.Boxes), rec.Duration.Round(time.Millisecond))
	if rec.HasExpiry {
		detail += ", expiry detected"
	}
	return SuccessStyle.Render(SuccessIcon+" "+rec.Source+": ") +
		NumberStyle.Render(GroupDigits(shown)) +
		SubtleStyle.Render("  ("+detail+")")
}

// Summarize aggregates the outcome of records.
func Summarize(records []model.ScanRecord, elapsed time.Duration) service.ScanSummary {
	summary := service.ScanSummary{Total: len(records), Duration: elapsed}
	for _, rec := range records {
		switch {
		case rec.Unrecoverable:
			summary.Unrecoverable++
			summary.Failed++
		case rec.Error != "":
			summary.Failed++
		case rec.Found:
			summary.Found++
		}
	}
	return summary
}

// RenderSummary renders summary in a box.
func RenderSummary(summary service.ScanSummary) string {
	content := fmt.Sprintf("  • Images scanned: %d\n", summary.Total) +
		fmt.Sprintf("  • Numbers found: %d\n", summary.Found) +
		fmt.Sprintf("  • Failed: %d\n", summary.Failed) +
		fmt.Sprintf("  • Time taken: %s", summary.Duration.Round(time.Millisecond))
	if summary.Unrecoverable > 0 {
		content += "\n" + FormatError(fmt.Sprintf("%d scans hit an unrecoverable fault", summary.Unrecoverable))
	}
	return RenderBox(ChartIcon+" Scan Complete", content)
}

// WriteHistory writes records as a table.
func WriteHistory(out io.Writer, records []model.ScanRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, InfoStyle.Render("No scans recorded yet. Use 'cardscan scan' to add some."))
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		TableHeaderStyle.Render("ID"),
		TableHeaderStyle.Render("Scanned"),
		TableHeaderStyle.Render("Source"),
		TableHeaderStyle.Render("Number"),
		TableHeaderStyle.Render("Boxes"),
		TableHeaderStyle.Render("Status")); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		strings.Repeat("─", 4),
		strings.Repeat("─", 16),
		strings.Repeat("─", 20),
		strings.Repeat("─", 19),
		strings.Repeat("─", 5),
		strings.Repeat("─", 13)); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}

	for _, rec := range records {
		number := "-"
		if rec.Found {
			number = GroupDigits(rec.MaskedNumber)
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			rec.ID,
			rec.ScannedAt.Local().Format("2006-01-02 15:04"),
			rec.Source,
			number,
			len(rec.Boxes),
			status(rec)); err != nil {
			return fmt.Errorf("failed to write scan row: %w", err)
		}
	}

	return w.Flush()
}

func status(rec model.ScanRecord) string {
	switch {
	case rec.Unrecoverable:
		return "unrecoverable"
	case rec.Error != "":
		return "error"
	case rec.Found:
		return "found"
	default:
		return "not found"
	}
}
