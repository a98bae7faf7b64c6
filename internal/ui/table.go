package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// PhotoRow is one received photo in the session table.
type PhotoRow struct {
	Index    int
	Name     string
	Size     int64
	Mime     string
	Received time.Time
}

// PhotoTable renders the photos received in a session.
type PhotoTable struct {
	rows []PhotoRow
}

func NewPhotoTable(rows []PhotoRow) *PhotoTable {
	return &PhotoTable{rows: rows}
}

// View renders the table as a string.
func (t *PhotoTable) View() string {
	if len(t.rows) == 0 {
		return MutedStyle.Render("No photos received")
	}

	headers := []string{"#", "Name", "Size", "Type", "Received"}
	var rows [][]string
	for _, r := range t.rows {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.Index),
			TruncateName(r.Name, 40),
			FormatSize(r.Size),
			TruncateName(r.Mime, 20),
			r.Received.Format("15:04:05"),
		})
	}

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

// Render outputs the table directly to stdout.
func (t *PhotoTable) Render() {
	fmt.Println(t.View())
}

// SessionInfo is the share box printed by the camera after creating a
// session.
type SessionInfo struct {
	RoomID   string
	RoomLink string
}

func (s *SessionInfo) View() string {
	content := fmt.Sprintf("%s Session Created!\n\n%s Room ID:    %s\n%s Share Link: %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(s.RoomID),
		IconLink, MutedStyle.Render(s.RoomLink),
	)
	return LinkBoxStyle.Render(content)
}

func (s *SessionInfo) Render() {
	fmt.Println(s.View())
}
