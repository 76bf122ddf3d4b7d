// Package tui implements the operator console: a live view of the
// discovery table (MAC, type, firmware, RSSI, state), a permit-join
// on/off toggle, and per-row approve/reject actions. The console shows
// whether permit-join is on but not the time remaining in the window,
// and it has no last-seen column. This is the concrete realization of the
// "operator approval transport" the pairing core treats as opaque; the
// core still only ever sees Controller.Approve/Reject calls.
package tui

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"

	"github.com/batchlors/hydropair/pairing"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#A7F3D0")).
			Padding(0, 2).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4B5563")).
			Padding(0, 2)

	copyNoticeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#10B981")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	permitOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	permitOffStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Backend is the subset of Controller the console drives. Defined as an
// interface so tests can swap in a fake without building a real radio
// transport.
type Backend interface {
	State() pairing.ControllerState
	Nodes() []pairing.DiscoveredNode
	Stats() *pairing.BindingStats
	EnablePermitJoin(durationMS uint64)
	DisablePermitJoin()
	Approve(mac pairing.MAC, correlationID string) error
	Reject(mac pairing.MAC, reason pairing.ReasonCode)
}

type tickMsg time.Time
type resourceMsg string
type copyDoneMsg struct{}

// Model is the bubbletea model for the operator console.
type Model struct {
	backend Backend
	table   table.Model

	resourceLine string
	copyNotice   string
	width        int
}

// New builds a console Model wired to backend.
func New(backend Backend) Model {
	columns := []table.Column{
		{Title: "MAC", Width: 17},
		{Title: "Type", Width: 11},
		{Title: "FW", Width: 9},
		{Title: "RSSI", Width: 5},
		{Title: "State", Width: 12},
	}
	t := table.New(table.WithColumns(columns), table.WithFocused(true), table.WithHeight(12))
	return Model{backend: backend, table: t}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), resourceCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func resourceCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		cpuPercent, _ := psutil.Percent(0, false)
		memInfo, _ := psmem.VirtualMemory()
		var cpu float64
		if len(cpuPercent) > 0 {
			cpu = cpuPercent[0]
		}
		var mem float64
		if memInfo != nil {
			mem = memInfo.UsedPercent
		}
		return resourceMsg(fmt.Sprintf("CPU: %.1f%% | RAM: %.1f%% | Go: %s", cpu, mem, runtime.Version()))
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		m.refreshRows()
		return m, tickCmd()

	case resourceMsg:
		m.resourceLine = string(msg)
		return m, resourceCmd()

	case copyDoneMsg:
		m.copyNotice = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "j", "p":
			if m.backend.State() == pairing.Binding {
				break
			}
			if m.backend.State() == pairing.DiscoveryActive {
				m.backend.DisablePermitJoin()
			} else {
				m.backend.EnablePermitJoin(0)
			}
		case "a":
			if mac, ok := m.selectedMAC(); ok {
				m.backend.Approve(mac, mac.String())
			}
		case "r":
			if mac, ok := m.selectedMAC(); ok {
				m.backend.Reject(mac, pairing.ReasonUserRejected)
			}
		case "c":
			if mac, ok := m.selectedMAC(); ok {
				if err := clipboard.WriteAll(mac.String()); err == nil {
					m.copyNotice = "copied " + mac.String()
					return m, tea.Tick(2*time.Second, func(time.Time) tea.Msg { return copyDoneMsg{} })
				}
			}
		}

	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) selectedMAC() (pairing.MAC, bool) {
	if m.table.SelectedRow() == nil {
		return pairing.MAC{}, false
	}
	nodes := m.backend.Nodes()
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(nodes) {
		return pairing.MAC{}, false
	}
	return nodes[cursor].MAC, true
}

func (m *Model) refreshRows() {
	nodes := m.backend.Nodes()
	rows := make([]table.Row, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, table.Row{
			n.MAC.String(),
			n.DeviceType.String(),
			n.FirmwareVersion.String(),
			fmt.Sprintf("%d", n.RSSI),
			n.State.String(),
		})
	}
	m.table.SetRows(rows)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	permit := permitOffStyle.Render("permit-join: off")
	if m.backend.State() == pairing.DiscoveryActive {
		permit = permitOnStyle.Render("permit-join: ON")
	} else if m.backend.State() == pairing.Binding {
		permit = permitOnStyle.Render("binding in progress")
	}
	b.WriteString(headerStyle.Render("hydropair — pairing console") + "  " + permit + "\n\n")
	b.WriteString(m.table.View() + "\n\n")

	if m.copyNotice != "" {
		b.WriteString(copyNoticeStyle.Render(m.copyNotice) + "\n")
	}

	help := "↑/↓ select · p toggle permit-join · a approve · r reject · c copy MAC · q quit"
	footer := help + "  |  " + m.resourceLine
	if m.width > 0 {
		footer = ansi.Wordwrap(footer, m.width, " \t")
	}
	b.WriteString(footerStyle.Render(footer))
	return b.String()
}
