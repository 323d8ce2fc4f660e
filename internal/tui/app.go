package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crystal-ball/internal/domain"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type DecisionReader interface {
	LatestDecision(ctx context.Context) (*domain.Decision, error)
	ListDecisions(ctx context.Context, limit int) ([]domain.Decision, error)
}

type FeatureReader interface {
	LatestRows(ctx context.Context, n int) ([]domain.FeatureDay, error)
}

type Services struct {
	Decisions DecisionReader
	Features  FeatureReader
	Username  string
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	upStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	downStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

type dataMsg struct {
	latest  *domain.Decision
	history []domain.Decision
}

type errMsg struct {
	err error
}

// AppModel is the SSH dashboard: the current next-day call on top, the
// recent track record below.
type AppModel struct {
	svc     Services
	width   int
	height  int
	loading bool
	err     error
	latest  *domain.Decision
	history []domain.Decision
	table   table.Model
}

func NewAppModel(svc Services) *AppModel {
	columns := []table.Column{
		{Title: "For", Width: 10},
		{Title: "Call", Width: 6},
		{Title: "Prob", Width: 7},
		{Title: "Outcome", Width: 9},
		{Title: "Return", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(12),
		table.WithFocused(true),
	)
	return &AppModel{svc: svc, loading: true, table: t}
}

func (m *AppModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *AppModel) Init() tea.Cmd {
	return m.refreshCmd()
}

func (m *AppModel) refreshCmd() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if svc.Decisions == nil {
			return errMsg{err: fmt.Errorf("decision store unavailable")}
		}
		latest, err := svc.Decisions.LatestDecision(ctx)
		if err != nil && err != domain.ErrNotFound {
			return errMsg{err: err}
		}
		history, err := svc.Decisions.ListDecisions(ctx, 30)
		if err != nil {
			return errMsg{err: err}
		}
		return dataMsg{latest: latest, history: history}
	}
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.loading = true
			m.err = nil
			return m, m.refreshCmd()
		}
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil
	case dataMsg:
		m.loading = false
		m.latest = msg.latest
		m.history = msg.history
		m.table.SetRows(historyRows(msg.history))
		return m, nil
	case errMsg:
		m.loading = false
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *AppModel) View() string {
	var b strings.Builder

	header := "crystal-ball"
	if m.svc.Username != "" {
		header += " · " + m.svc.Username
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(dimStyle.Render("loading..."))
		b.WriteString("\n")
	case m.err != nil:
		b.WriteString(warnStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	default:
		b.WriteString(panelStyle.Render(renderDecision(m.latest)))
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(m.table.View()))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(renderHitRate(m.history)))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("r refresh · q quit"))
	return b.String()
}

func renderDecision(d *domain.Decision) string {
	if d == nil {
		return "No prediction on record yet."
	}
	call := downStyle.Render("DOWN")
	if d.Direction == domain.DirectionUp {
		call = upStyle.Render("UP")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "BTC %s → %s\n", d.PredictionDate.Format("2006-01-02"), call)
	fmt.Fprintf(&b, "prob up %.1f%% · confidence %.1f%% · threshold %.2f", d.ProbUp*100, d.Confidence*100, d.Threshold)
	if d.Anomalous {
		b.WriteString("\n" + warnStyle.Render("anomalous feature row"))
	}
	for _, comp := range d.Components {
		fmt.Fprintf(&b, "\n%s v%d  %.1f%%  w=%.2f", comp.Key, comp.Version, comp.ProbUp*100, comp.Weight)
	}
	return b.String()
}

func historyRows(history []domain.Decision) []table.Row {
	rows := make([]table.Row, 0, len(history))
	for _, d := range history {
		call := "down"
		if d.Direction == domain.DirectionUp {
			call = "up"
		}
		outcome := "pending"
		if d.IsCorrect != nil {
			if *d.IsCorrect {
				outcome = "hit"
			} else {
				outcome = "miss"
			}
		}
		ret := ""
		if d.RealizedReturn != nil {
			ret = fmt.Sprintf("%+.2f%%", *d.RealizedReturn*100)
		}
		rows = append(rows, table.Row{
			d.PredictionDate.Format("2006-01-02"),
			call,
			fmt.Sprintf("%.1f%%", d.ProbUp*100),
			outcome,
			ret,
		})
	}
	return rows
}

func renderHitRate(history []domain.Decision) string {
	correct, resolved := 0, 0
	for _, d := range history {
		if d.IsCorrect == nil {
			continue
		}
		resolved++
		if *d.IsCorrect {
			correct++
		}
	}
	if resolved == 0 {
		return "no resolved calls yet"
	}
	return fmt.Sprintf("hit rate %d/%d (%.0f%%)", correct, resolved, float64(correct)/float64(resolved)*100)
}
