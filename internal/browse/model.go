package browse

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mabhi256/jinterop/utils"
)

type TabType int

const (
	MethodsTab TabType = iota
	FieldsTab
)

func (t TabType) String() string {
	if t == FieldsTab {
		return "Fields"
	}
	return "Methods"
}

type pane int

const (
	listPane pane = iota
	detailPane
)

// classItem represents a class in the selection list
type classItem struct {
	entry *Entry
}

func (i classItem) FilterValue() string {
	if i.entry.Original != "" {
		return i.entry.Name + " " + i.entry.Original
	}
	return i.entry.Name
}

func (i classItem) Title() string {
	return i.entry.Name
}

func (i classItem) Description() string {
	desc := fmt.Sprintf("%d methods, %d fields", len(i.entry.Methods), len(i.entry.Fields))
	if i.entry.Original != "" {
		desc = i.entry.Original + " · " + desc
	}
	return desc
}

type Model struct {
	title   string
	entries []Entry

	classList list.Model
	detail    viewport.Model
	help      help.Model
	keys      KeyMap

	currentTab TabType
	focus      pane
	width      int
	height     int

	status string
	err    string

	copy func(string) error
}

// New builds the browser over entries.
func New(title string, entries []Entry) *Model {
	items := make([]list.Item, len(entries))
	for i := range entries {
		items[i] = classItem{entry: &entries[i]}
	}

	classList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	classList.Title = "Classes"
	classList.SetShowHelp(false)

	return &Model{
		title:     title,
		entries:   entries,
		classList: classList,
		detail:    viewport.New(0, 0),
		help:      help.New(),
		keys:      DefaultKeyMap(),
		copy:      clipboard.WriteAll,
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Selected is the entry under the cursor, or nil for an empty list.
func (m *Model) Selected() *Entry {
	item, ok := m.classList.SelectedItem().(classItem)
	if !ok {
		return nil
	}
	return item.entry
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		// The list owns every key while its filter prompt is open.
		if m.focus == listPane && m.classList.SettingFilter() {
			break
		}
		m.err = ""

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Methods):
			m.setTab(MethodsTab)
			return m, nil
		case key.Matches(msg, m.keys.Fields):
			m.setTab(FieldsTab)
			return m, nil
		case key.Matches(msg, m.keys.Left):
			m.setTab(utils.GetPrevEnum(m.currentTab, FieldsTab))
			return m, nil
		case key.Matches(msg, m.keys.Right):
			m.setTab(utils.GetNextEnum(m.currentTab, FieldsTab))
			return m, nil
		case key.Matches(msg, m.keys.Copy):
			m.copySelected()
			return m, nil
		case key.Matches(msg, m.keys.Enter) && m.focus == listPane:
			if m.Selected() != nil {
				m.focus = detailPane
				m.refreshDetail()
			}
			return m, nil
		case key.Matches(msg, m.keys.Back) && m.focus == detailPane:
			m.focus = listPane
			return m, nil
		}

		if m.focus == detailPane {
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
	}

	before := m.Selected()
	var cmd tea.Cmd
	m.classList, cmd = m.classList.Update(msg)
	if m.Selected() != before {
		m.refreshDetail()
	}
	return m, cmd
}

func (m *Model) setTab(t TabType) {
	if m.currentTab == t {
		return
	}
	m.currentTab = t
	m.refreshDetail()
}

func (m *Model) copySelected() {
	e := m.Selected()
	if e == nil {
		return
	}
	if err := m.copy(e.Name); err != nil {
		m.err = fmt.Sprintf("copy failed: %v", err)
		return
	}
	m.status = "copied " + e.Name
}

func (m *Model) resize() {
	// header, tab bar and help line
	body := max(m.height-3, 1)
	listWidth := max(m.width*2/5, 20)

	m.classList.SetSize(listWidth, body)
	m.detail.Width = max(m.width-listWidth-1, 10)
	m.detail.Height = max(body-1, 1)
	m.help.Width = m.width
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	m.detail.SetContent(m.renderDetail())
	m.detail.GotoTop()
}
