package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/openhydro/sewerflow/pkg/network"
)

// List styles.
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// SegmentListModel is the bubbletea model for the interactive segment
// inspector: a scrollable segment list with a detail panel for the
// selected segment.
type SegmentListModel struct {
	Topo     *network.Topology
	IDs      []int64
	Cursor   int
	Height   int
	Offset   int
	ShowHelp bool
}

// NewSegmentListModel builds an inspector over the topology.
func NewSegmentListModel(topo *network.Topology) SegmentListModel {
	return SegmentListModel{
		Topo:   topo,
		IDs:    topo.SegmentIDs(),
		Height: 15,
	}
}

func (m SegmentListModel) Init() tea.Cmd {
	return nil
}

func (m SegmentListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.IDs)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "g":
			m.Cursor, m.Offset = 0, 0
		case "G":
			m.Cursor = len(m.IDs) - 1
			if m.Cursor >= m.Height {
				m.Offset = m.Cursor - m.Height + 1
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 12
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m SegmentListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Network Segments"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  g/G first/last  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.IDs) {
		end = len(m.IDs)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		id := m.IDs[i]
		seg, _ := m.Topo.Segment(id)

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		rows = append(rows, []string{
			cursor + fmt.Sprintf("#%d", id),
			fmt.Sprintf("%.1f,%.1f %s %.1f,%.1f", seg.Up.X, seg.Up.Y, iconArrow, seg.Down.X, seg.Down.Y),
			fmt.Sprintf("%.1f", seg.Length),
			fmtDepth(seg.UpDepth),
			fmtDepth(seg.DownDepth),
			m.nodeFlags(seg),
		})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "GEOMETRY", "LENGTH", "DEPTH UP", "DEPTH DOWN", "FLAGS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return listDimStyle
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			return listNormalStyle
		})
	b.WriteString(t.Render())
	b.WriteString("\n")

	if len(m.IDs) > 0 {
		b.WriteString(m.detailView())
	}
	return b.String()
}

// detailView renders the selected segment's node context.
func (m SegmentListModel) detailView() string {
	seg, ok := m.Topo.Segment(m.IDs[m.Cursor])
	if !ok {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(StyleDim.Render(fmt.Sprintf("segment #%d", seg.ID)))
	b.WriteString("\n")

	up, _ := m.Topo.Node(seg.UpKey)
	down, _ := m.Topo.Node(seg.DownKey)
	b.WriteString(fmt.Sprintf("  up    %s  elev %s  feeds %d\n", seg.UpKey, fmtDepth(nodeElev(up)), nodeFeeders(up)))
	b.WriteString(fmt.Sprintf("  down  %s  elev %s  feeds %d\n", seg.DownKey, fmtDepth(nodeElev(down)), nodeFeeders(down)))
	return b.String()
}

func (m SegmentListModel) nodeFlags(seg *network.Segment) string {
	var flags []string
	if up, ok := m.Topo.Node(seg.UpKey); ok && up.IsRoot() {
		flags = append(flags, "root")
	}
	if down, ok := m.Topo.Node(seg.DownKey); ok && down.IsConvergent() {
		flags = append(flags, "convergent")
	}
	return strings.Join(flags, " ")
}

func fmtDepth(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func nodeElev(n *network.Node) *float64 {
	if n == nil {
		return nil
	}
	return n.Elev
}

func nodeFeeders(n *network.Node) int {
	if n == nil {
		return 0
	}
	return len(n.Upstream)
}
