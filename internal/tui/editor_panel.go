package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pagecal/internal/editor"
	"pagecal/internal/model"
	"pagecal/internal/perm"
)

// editorPanel is the side panel the editor controller drives. It owns widget
// state only; every decision about what may be edited arrives through
// SetFieldAccess.
type editorPanel struct {
	open    bool
	heading string

	title   textinput.Model
	content textarea.Model

	category   model.Category
	priority   model.Priority
	status     model.Status
	assigneeID *int64

	policy    perm.FieldPolicy
	assignees []model.User

	canSave    bool
	canDelete  bool
	busy       bool
	confirming bool
	saved      bool
	errMsg     string

	focus int

	label func(*int64) string
}

var _ editor.View = (*editorPanel)(nil)

func newEditorPanel(label func(*int64) string) *editorPanel {
	ti := textinput.New()
	ti.Placeholder = "Title"
	// No limits: loaded values must come back from Values unchanged.
	ti.CharLimit = 0
	ti.Prompt = ""

	ta := textarea.New()
	ta.Placeholder = "Content"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetHeight(8)

	if label == nil {
		label = func(id *int64) string {
			if id == nil {
				return "unassigned"
			}
			return fmt.Sprintf("#%d", *id)
		}
	}
	return &editorPanel{title: ti, content: ta, focus: -1, label: label}
}

func (p *editorPanel) Open(heading string) {
	p.open = true
	p.heading = heading
	p.errMsg = ""
	p.saved = false
	p.confirming = false
}

func (p *editorPanel) Close() {
	p.open = false
	p.title.Blur()
	p.content.Blur()
	p.focus = -1
}

func (p *editorPanel) SetValues(v editor.Values) {
	p.title.SetValue(v.Title)
	p.content.SetValue(v.Content)
	p.category = v.Category
	p.priority = v.Priority
	p.status = v.Status
	p.assigneeID = v.AssigneeID
}

func (p *editorPanel) Values() editor.Values {
	return editor.Values{
		Title:      p.title.Value(),
		Content:    p.content.Value(),
		Category:   p.category,
		Priority:   p.priority,
		Status:     p.status,
		AssigneeID: p.assigneeID,
	}
}

func (p *editorPanel) SetFieldAccess(fp perm.FieldPolicy) {
	p.policy = fp
	p.focus = -1
	p.focusStep(1)
}

func (p *editorPanel) SetAssigneeOptions(users []model.User) { p.assignees = users }

func (p *editorPanel) SetActions(canSave, canDelete bool) {
	p.canSave, p.canDelete = canSave, canDelete
}

func (p *editorPanel) SetBusy(b bool) {
	p.busy = b
	if b {
		p.errMsg = ""
		p.saved = false
	}
}

func (p *editorPanel) ShowDeleteConfirm(b bool) { p.confirming = b }

func (p *editorPanel) ShowError(msg string) {
	p.errMsg = msg
	p.saved = false
}

func (p *editorPanel) ShowSaved() {
	p.saved = true
	p.errMsg = ""
}

func (p *editorPanel) editable(f perm.Field) bool {
	return p.policy.Access(f).Editable && !p.busy
}

func (p *editorPanel) focused() (perm.Field, bool) {
	if p.focus < 0 || p.focus >= len(perm.Fields) {
		return "", false
	}
	return perm.Fields[p.focus], true
}

// focusStep moves focus to the next editable field in direction dir.
func (p *editorPanel) focusStep(dir int) {
	n := len(perm.Fields)
	start := p.focus
	for i := 1; i <= n; i++ {
		idx := ((start+dir*i)%n + n) % n
		if start < 0 && dir > 0 {
			idx = i - 1
		}
		if p.policy.Access(perm.Fields[idx]).Editable {
			p.focus = idx
			p.syncFocus()
			return
		}
	}
	p.focus = -1
	p.syncFocus()
}

func (p *editorPanel) syncFocus() {
	p.title.Blur()
	p.content.Blur()
	f, ok := p.focused()
	if !ok {
		return
	}
	switch f {
	case perm.FieldTitle:
		p.title.Focus()
	case perm.FieldContent:
		p.content.Focus()
	}
}

// assigneeChoices lists nil (unassigned) followed by the directory entries.
func (p *editorPanel) assigneeChoices() []*int64 {
	out := []*int64{nil}
	for _, u := range p.assignees {
		id := u.ID
		out = append(out, &id)
	}
	return out
}

func cycle[T comparable](opts []T, cur T, step int) T {
	if len(opts) == 0 {
		return cur
	}
	idx := -1
	for i, o := range opts {
		if o == cur {
			idx = i
			break
		}
	}
	if idx < 0 {
		return opts[0]
	}
	return opts[((idx+step)%len(opts)+len(opts))%len(opts)]
}

func cycleAssignee(choices []*int64, cur *int64, step int) *int64 {
	idx := 0
	for i, c := range choices {
		if (c == nil && cur == nil) || (c != nil && cur != nil && *c == *cur) {
			idx = i
			break
		}
	}
	return choices[((idx+step)%len(choices)+len(choices))%len(choices)]
}

// update handles keys aimed at the focused widget.
func (p *editorPanel) update(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		p.focusStep(1)
		return nil
	case "shift+tab":
		p.focusStep(-1)
		return nil
	}

	f, ok := p.focused()
	if !ok || !p.editable(f) {
		return nil
	}

	step := 0
	switch msg.String() {
	case "left":
		step = -1
	case "right", " ":
		step = 1
	}

	var cmd tea.Cmd
	switch f {
	case perm.FieldTitle:
		p.title, cmd = p.title.Update(msg)
	case perm.FieldContent:
		p.content, cmd = p.content.Update(msg)
	case perm.FieldCategory:
		if step != 0 {
			p.category = cycle(model.Categories, p.category, step)
		}
	case perm.FieldPriority:
		if step != 0 {
			p.priority = cycle(model.Priorities, p.priority, step)
		}
	case perm.FieldStatus:
		if step != 0 {
			p.status = cycle(model.Statuses, p.status, step)
		}
	case perm.FieldAssignee:
		if step != 0 {
			p.assigneeID = cycleAssignee(p.assigneeChoices(), p.assigneeID, step)
		}
	}
	return cmd
}

func (p *editorPanel) setWidth(w int) {
	inner := w - 4
	if inner < 10 {
		inner = 10
	}
	p.title.Width = inner
	p.content.SetWidth(inner)
}

func (p *editorPanel) view(width, height int) string {
	if !p.open {
		return ""
	}
	p.setWidth(width)

	var b strings.Builder
	b.WriteString(styleHeading().Render(p.heading))
	b.WriteString("\n")
	b.WriteString(styleMuted().Render(strings.Repeat(glyphHRule(), max(0, width-2))))
	b.WriteString("\n")

	for i, f := range perm.Fields {
		acc := p.policy.Access(f)
		if !acc.Visible {
			continue
		}
		marker := "  "
		if i == p.focus {
			marker = lipgloss.NewStyle().Foreground(colorAccent).Render("> ")
		}
		label := fmt.Sprintf("%-9s", string(f))
		lock := ""
		if !acc.Editable {
			lock = " " + styleMuted().Render(glyphLock())
		}
		b.WriteString(marker + styleMuted().Render(label) + lock)
		b.WriteString("\n")
		b.WriteString(p.fieldView(f, acc.Editable))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	var actions []string
	if p.canSave {
		actions = append(actions, "ctrl+s save")
	}
	if p.canDelete {
		actions = append(actions, "ctrl+d delete")
	}
	if p.policy.Content.Editable {
		actions = append(actions, "ctrl+u image")
	}
	actions = append(actions, "ctrl+p preview", "esc close")
	b.WriteString(styleMuted().Render(strings.Join(actions, "   ")))

	switch {
	case p.busy:
		b.WriteString("\n" + styleMuted().Render("saving…"))
	case p.errMsg != "":
		b.WriteString("\n" + styleError().Render(p.errMsg))
	case p.saved:
		b.WriteString("\n" + styleSuccess().Render("Saved"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorPanelBorder).
		Padding(0, 1)
	return normalizePane(box.Render(b.String()), width, height)
}

func (p *editorPanel) fieldView(f perm.Field, editable bool) string {
	indent := "  "
	enum := func(s string) string {
		if editable {
			return indent + "‹ " + s + " ›"
		}
		return indent + s
	}
	switch f {
	case perm.FieldTitle:
		if editable {
			return indent + p.title.View()
		}
		return indent + p.title.Value()
	case perm.FieldContent:
		if editable {
			return p.content.View()
		}
		body := strings.TrimSpace(p.content.Value())
		if body == "" {
			return indent + styleMuted().Render("(empty)")
		}
		lines := strings.Split(body, "\n")
		if len(lines) > 4 {
			lines = append(lines[:4], "…")
		}
		return indent + strings.Join(lines, "\n"+indent)
	case perm.FieldCategory:
		return enum(string(p.category))
	case perm.FieldPriority:
		return enum(string(p.priority))
	case perm.FieldStatus:
		return enum(statusStyle(p.status).Render(string(p.status)))
	case perm.FieldAssignee:
		return enum(p.label(p.assigneeID))
	}
	return ""
}
