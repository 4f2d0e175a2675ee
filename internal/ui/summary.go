package ui

import (
	"fmt"
	"time"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/BioHazard786/landrop/internal/history"
)

// TransferSummary holds the figures shown after a batch.
type TransferSummary struct {
	Peer      string
	Status    string
	Files     int
	TotalSize int64
	Duration  time.Duration
	Saved     string
}

// TransferSummaryView renders s as a two column table.
func TransferSummaryView(title string, s TransferSummary) string {
	t := prettytable.NewWriter()
	t.SetTitle(title)
	t.SetStyle(prettytable.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.AppendHeader(prettytable.Row{"Metric", "Value"})
	t.AppendRows([]prettytable.Row{
		{"Peer", s.Peer},
		{"Status", s.Status},
		{"Files", s.Files},
		{"Total Size", FormatSize(s.TotalSize)},
		{"Duration", FormatDuration(s.Duration)},
		{"Avg Speed", FormatSpeed(speed(s.TotalSize, s.Duration))},
	})
	if s.Saved != "" {
		t.AppendRow(prettytable.Row{"Saved To", s.Saved})
	}
	return t.Render()
}

func RenderTransferSummary(title string, s TransferSummary) {
	fmt.Println(TransferSummaryView(title, s))
}

// HistoryView renders journal records, newest first.
func HistoryView(records []history.Record) string {
	if len(records) == 0 {
		return MutedStyle.Render("No transfers recorded yet")
	}

	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"When", "Direction", "Peer", "File", "Size", "Status"})
	for _, r := range records {
		status := r.Status
		if r.Detail != "" {
			status += ": " + Truncate(r.Detail, 40)
		}
		t.AppendRow(prettytable.Row{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Direction,
			r.PeerName,
			Truncate(r.FileName, 40),
			FormatSize(r.Size),
			status,
		})
	}
	t.SetColumnConfigs([]prettytable.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
	})
	return t.Render()
}
