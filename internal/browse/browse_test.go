package browse

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jinterop/internal/host"
	"github.com/mabhi256/jinterop/internal/host/memvm"
	"github.com/mabhi256/jinterop/internal/interop"
	"github.com/mabhi256/jinterop/internal/mapping"
)

func findMember(members []Member, name string) (Member, bool) {
	for _, m := range members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

func TestEntries(t *testing.T) {
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)

	vm := memvm.New()
	player := vm.DefineClass("a", "java/lang/Object")
	player.AddField("b", "F", host.AccPrivate)
	player.AddField("count", "I", host.AccPublic|host.AccStatic|host.AccFinal)
	player.AddMethod("c", "(FLjava/lang/String;)V", host.AccPublic, nil)
	vm.DefineClass("net/example/Plain", "java/lang/Object")

	s, err := interop.Initialize(vm.Locator())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Destroy() })

	ctx := context.Background()
	a, err := s.Directory().ForName(ctx, "a")
	require.NoError(t, err)
	plain, err := s.Directory().ForName(ctx, "net/example/Plain")
	require.NoError(t, err)
	a.Method("c", "").SetMappedName("damage")

	table := mapping.New()
	table.AddClass("net.example.Player", "a")
	table.AddField("net.example.Player", "health", "b")

	entries := Entries([]*interop.Class{plain, nil, a}, table)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "net.example.Player", entries[0].Original)
	assert.Equal(t, "net.example.Plain", entries[1].Name)
	assert.Empty(t, entries[1].Original)

	damage, ok := findMember(entries[0].Methods, "c")
	require.True(t, ok)
	assert.Equal(t, "damage", damage.Mapped)
	assert.Equal(t, "public void damage(float, java.lang.String) [c]", damage.Declaration(true))

	count, ok := findMember(entries[0].Fields, "count")
	require.True(t, ok)
	assert.True(t, count.Static)
	assert.Empty(t, count.Mapped)
	assert.Equal(t, "public static final int count", count.Declaration(false))

	health, ok := findMember(entries[0].Fields, "b")
	require.True(t, ok)
	assert.Equal(t, "health", health.Mapped)
	assert.Equal(t, "private float health [b]", health.Declaration(false))

	bare := Entries([]*interop.Class{a}, nil)
	require.Len(t, bare, 1)
	assert.Empty(t, bare[0].Original)
	damage, ok = findMember(bare[0].Methods, "c")
	require.True(t, ok)
	assert.Equal(t, "damage", damage.Mapped)
}

func TestDeclarationBadSignature(t *testing.T) {
	assert.Equal(t, "broken(Q", Member{Name: "broken", Signature: "(Q"}.Declaration(true))
	assert.Equal(t, "? broken", Member{Name: "broken", Signature: "Q"}.Declaration(false))
	assert.Equal(t, "Ljava/lang/String broken", Member{Name: "broken", Signature: "Ljava/lang/String"}.Declaration(false))
	assert.Equal(t, "broken(Ljava/lang/String)V", Member{Name: "broken", Signature: "(Ljava/lang/String)V"}.Declaration(true))
}

var fixture = []Entry{
	{
		Name:     "a",
		Original: "net.example.Player",
		Methods: []Member{
			{Name: "c", Mapped: "damage", Signature: "(F)V", Modifiers: host.AccPublic},
		},
		Fields: []Member{
			{Name: "b", Mapped: "health", Signature: "F", Modifiers: host.AccPrivate},
			{Name: "count", Signature: "I", Static: true, Modifiers: host.AccPublic | host.AccStatic},
		},
	},
	{
		Name: "net.example.World",
		Err:  errors.New("field enumeration failed"),
	},
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newModel(t *testing.T) *Model {
	t.Helper()
	entries := append([]Entry(nil), fixture...)
	m := New("jinterop browse", entries)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return m
}

func TestModelLoading(t *testing.T) {
	m := New("title", nil)
	assert.Equal(t, "Loading...", m.View())
	assert.Nil(t, m.Selected())
}

func TestModelTabs(t *testing.T) {
	m := newModel(t)
	require.NotNil(t, m.Selected())
	assert.Equal(t, "a", m.Selected().Name)

	view := m.View()
	assert.Contains(t, view, "jinterop browse")
	assert.Contains(t, view, "public void damage(float) [c]")
	assert.Contains(t, view, "mapped from")

	m.Update(keyMsg("2"))
	assert.Equal(t, FieldsTab, m.currentTab)
	view = m.View()
	assert.Contains(t, view, "private float health [b]")
	assert.Contains(t, view, "public static int count")
	assert.NotContains(t, view, "damage(float)")

	m.Update(keyMsg("h"))
	assert.Equal(t, MethodsTab, m.currentTab)
	m.Update(keyMsg("l"))
	assert.Equal(t, FieldsTab, m.currentTab)
	m.Update(keyMsg("1"))
	assert.Equal(t, MethodsTab, m.currentTab)
}

func TestModelFocus(t *testing.T) {
	m := newModel(t)

	m.Update(keyMsg("enter"))
	assert.Equal(t, detailPane, m.focus)
	assert.Contains(t, m.View(), "esc to go back")

	// list navigation is ignored while the detail pane has focus
	m.Update(keyMsg("down"))
	assert.Equal(t, "a", m.Selected().Name)

	m.Update(keyMsg("esc"))
	assert.Equal(t, listPane, m.focus)

	m.Update(keyMsg("down"))
	require.NotNil(t, m.Selected())
	assert.Equal(t, "net.example.World", m.Selected().Name)
	view := m.View()
	assert.Contains(t, view, "partial: field enumeration failed")
	assert.Contains(t, view, "No methods")
}

func TestModelCopy(t *testing.T) {
	m := newModel(t)
	var copied string
	m.copy = func(s string) error {
		copied = s
		return nil
	}

	m.Update(keyMsg("c"))
	assert.Equal(t, "a", copied)
	assert.Contains(t, m.View(), "copied a")

	m.copy = func(string) error { return errors.New("no clipboard") }
	m.Update(keyMsg("c"))
	assert.True(t, strings.Contains(m.View(), "copy failed: no clipboard"))

	// the error clears on the next key
	m.Update(keyMsg("1"))
	assert.NotContains(t, m.View(), "copy failed")
}

func TestModelQuit(t *testing.T) {
	m := newModel(t)
	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
