// Package dashboard 终端看板：定时读取引擎状态快照并渲染，只读不下单。
package dashboard

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quotekit/autotrader/internal/engine"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	bidStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")) // 绿色

	askStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	haltStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("1")).
			Padding(0, 1)
)

// tickMsg 定时器消息
type tickMsg time.Time

type model struct {
	eng    *engine.Engine
	status engine.Status
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	case tickMsg:
		m.status = m.eng.Status()
		return m, tickCmd()
	}
	return m, nil
}

func (m model) View() string {
	header := headerStyle.Render(" autotrader ")
	if m.status.At.IsZero() {
		return header + "\n\n  等待引擎状态...\n\n  q 退出\n"
	}
	st := m.status

	centsToStr := func(c int64) string {
		return fmt.Sprintf("%.2f", float64(c)/100)
	}
	priceToStr := func(p int) string {
		if p <= 0 {
			return "-"
		}
		return fmt.Sprintf("%.2f", float64(p)/100)
	}

	quotes := borderStyle.Render(fmt.Sprintf(
		"%s\n%s %s x %d\n%s %s x %d",
		labelStyle.Render("报价"),
		bidStyle.Render("买"), priceToStr(st.BidPrice), st.BidSize,
		askStyle.Render("卖"), priceToStr(st.AskPrice), st.AskSize,
	))

	position := borderStyle.Render(fmt.Sprintf(
		"%s\nETF  %+d\n期货 %+d",
		labelStyle.Render("持仓"),
		st.Position, st.FuturePosition,
	))

	pnl := borderStyle.Render(fmt.Sprintf(
		"%s\n盈亏 %s\n费用 %s",
		labelStyle.Render("损益"),
		centsToStr(st.PnLCents), centsToStr(st.FeesCents),
	))

	limits := borderStyle.Render(fmt.Sprintf(
		"%s\n挂单 %d  挂量 %d\n频率 %d/%d  对冲挂起 %d",
		labelStyle.Render("限额"),
		st.LiveOrders, st.ActiveVolume,
		st.GovernorUsed, st.GovernorUsed+st.GovernorBudget, st.HedgePending,
	))

	row := lipgloss.JoinHorizontal(lipgloss.Top, quotes, position, pnl, limits)

	out := header + "\n" + row + "\n"
	if st.Halted {
		out += haltStyle.Render(" 已停机: "+st.HaltReason) + "\n"
	}
	out += labelStyle.Render(fmt.Sprintf("  更新于 %s  ·  q 退出", st.At.Format("15:04:05.000"))) + "\n"
	return out
}

// Run 启动看板，阻塞直到用户退出。
func Run(eng *engine.Engine) error {
	p := tea.NewProgram(model{eng: eng})
	_, err := p.Run()
	return err
}
