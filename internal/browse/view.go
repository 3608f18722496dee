package browse

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mabhi256/jinterop/utils"
)

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := utils.HeaderStyle.Width(m.width).Render(m.title)

	left := m.classList.View()
	right := lipgloss.JoinVertical(lipgloss.Left, m.renderTabBar(), m.detail.View())
	separator := utils.MutedStyle.Render(strings.Repeat("│\n", max(m.height-3, 1)-1) + "│")
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, separator, right)

	footer := m.help.View(m.keys)
	if m.status != "" {
		footer = utils.StatusBarStyle.Render(m.status) + " " + footer
	}

	view := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	if m.err != "" {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			utils.ErrorStyle.Render(m.err))
	}
	return view
}

func (m *Model) renderTabBar() string {
	var tabs []string
	for _, t := range []TabType{MethodsTab, FieldsTab} {
		label := fmt.Sprintf("%d %s", int(t)+1, t)
		if t == m.currentTab {
			tabs = append(tabs, utils.TabActiveStyle.Render(label))
		} else {
			tabs = append(tabs, utils.TabInactiveStyle.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.focus == detailPane {
		bar += utils.MutedStyle.Render("  (esc to go back)")
	}
	return bar
}

func (m *Model) renderDetail() string {
	e := m.Selected()
	if e == nil {
		return utils.MutedStyle.Render("No classes")
	}

	var sb strings.Builder
	sb.WriteString(utils.TitleStyle.Render(e.Name))
	sb.WriteString("\n")
	if e.Original != "" {
		sb.WriteString(utils.FormatKeyValue("mapped from", e.Original, 12))
		sb.WriteString("\n")
	}
	if e.Err != nil {
		sb.WriteString(utils.WarningStyle.Render("partial: " + e.Err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	members, method := e.Methods, true
	if m.currentTab == FieldsTab {
		members, method = e.Fields, false
	}
	if len(members) == 0 {
		sb.WriteString(utils.MutedStyle.Render(fmt.Sprintf("No %s", strings.ToLower(m.currentTab.String()))))
		return sb.String()
	}
	for _, member := range members {
		line := utils.TruncateString(member.Declaration(method), max(m.detail.Width, 20))
		if member.Static {
			sb.WriteString(utils.InfoStyle.Render(line))
		} else {
			sb.WriteString(utils.TextStyle.Render(line))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Run shows the browser until the user quits.
func Run(title string, entries []Entry) error {
	p := tea.NewProgram(New(title, entries), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
