package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// FileTableItem is one row of a file table.
type FileTableItem struct {
	Index int
	Name  string
	Size  int64
	Type  string
}

// FileTableView renders the files of a batch.
func FileTableView(items []FileTableItem) string {
	if len(items) == 0 {
		return MutedStyle.Render("No files")
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		fileType := item.Type
		if fileType == "" {
			fileType = "-"
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Index),
			Truncate(item.Name, 50),
			FormatSize(item.Size),
			Truncate(fileType, 24),
		})
	}
	return styledTable([]string{"#", "Name", "Size", "Type"}, rows)
}

func RenderFileTable(items []FileTableItem) {
	fmt.Println(FileTableView(items))
}

// PeerTableItem is one row of the peer table.
type PeerTableItem struct {
	Name string
	ID   string
}

// PeerTableView renders the peers visible on the relay.
func PeerTableView(items []PeerTableItem) string {
	if len(items) == 0 {
		return MutedStyle.Render("No other peers connected")
	}

	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{strconv.Itoa(i + 1), item.Name, item.ID})
	}
	return styledTable([]string{"#", "Name", "ID"}, rows)
}

func styledTable(headers []string, rows [][]string) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}
