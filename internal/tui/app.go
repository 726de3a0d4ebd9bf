package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pagecal/internal/app"
	"pagecal/internal/calendar"
	"pagecal/internal/dashboard"
	"pagecal/internal/directory"
	"pagecal/internal/editor"
	"pagecal/internal/gateway"
	"pagecal/internal/model"
	"pagecal/internal/perm"
	"pagecal/internal/statusutil"
	"pagecal/internal/store"
)

type screen int

const (
	screenCalendar screen = iota
	screenDashboard
)

const (
	moveStep   = 30 * time.Minute
	panelWidth = 48
	// defaultSlotHour is where a new page lands on a day with no selection.
	defaultSlotHour = 9
)

type (
	fetchDoneMsg   struct{ res calendar.FetchResult }
	updateDoneMsg  struct{ res calendar.UpdateResult }
	saveDoneMsg    struct{ res editor.SaveResult }
	deleteDoneMsg  struct{ res editor.DeleteResult }
	refreshDoneMsg struct{ res dashboard.RefreshResult }
	closePanelMsg  struct{ token uint64 }
	directoryMsg   struct {
		dir *directory.Directory
		err error
	}
	uploadDoneMsg struct {
		url string
		err error
	}
	statusDoneMsg struct {
		page model.Page
		err  error
	}
	reloadMsg struct {
		page model.Page
		err  error
	}
)

type appModel struct {
	app *app.App
	ctx context.Context

	width  int
	height int

	screen    screen
	weekStart time.Time
	curDay    int
	curIdx    int
	// pendingSelect restores the cursor onto a page after the next fetch.
	pendingSelect int64

	panel *editorPanel
	ed    *editor.Controller

	confirm   confirmDialog
	uploading bool
	upload    textinput.Model

	showPreview bool
	flash       string
	flashErr    bool

	now   func() time.Time
	after func(d time.Duration, msg tea.Msg) tea.Cmd
}

func newAppModel(ctx context.Context, a *app.App) *appModel {
	m := &appModel{
		app: a,
		ctx: a.Context(ctx),
		now: time.Now,
		after: func(d time.Duration, msg tea.Msg) tea.Cmd {
			return tea.Tick(d, func(time.Time) tea.Msg { return msg })
		},
	}
	m.panel = newEditorPanel(a.AssigneeLabel)
	m.ed = a.NewEditor(m.panel)

	ti := textinput.New()
	ti.Placeholder = "path to image"
	ti.Prompt = "upload: "
	m.upload = ti

	anchor := m.now()
	if a.State != nil {
		if st, err := a.State.LoadTUIState(m.ctx); err == nil {
			if t, ok := st.Anchor(time.Local); ok {
				anchor = t
			}
			if st.View == "dashboard" {
				m.screen = screenDashboard
			}
			m.showPreview = st.ShowPreview
			m.pendingSelect = st.SelectedPageID
		} else {
			a.Logger.Warn("load tui state", "err", err)
		}
	}
	m.showWeek(anchor)
	m.curDay = m.dayIndex(m.now())
	return m
}

func (m *appModel) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.directoryCmd(), m.refreshCmd())
}

func (m *appModel) showWeek(t time.Time) {
	m.weekStart = m.app.ShowWeek(t)
}

func (m *appModel) dayIndex(t time.Time) int {
	t = t.In(m.weekStart.Location())
	for d := 0; d < 7; d++ {
		if sameDay(m.weekStart.AddDate(0, 0, d), t) {
			return d
		}
	}
	return 0
}

func (m *appModel) grid() weekGrid {
	g := weekGrid{start: m.weekStart, now: m.now(), curDay: m.curDay, curIdx: m.curIdx, label: m.app.AssigneeLabel}
	for d := 0; d < 7; d++ {
		g.days[d] = m.app.Calendar.Day(m.weekStart.AddDate(0, 0, d))
	}
	return g
}

func (m *appModel) selected() (calendar.Event, bool) { return m.grid().selected() }

func (m *appModel) clampCursor() {
	if m.curDay < 0 {
		m.curDay = 0
	}
	if m.curDay > 6 {
		m.curDay = 6
	}
	n := len(m.app.Calendar.Day(m.weekStart.AddDate(0, 0, m.curDay)))
	if m.curIdx >= n {
		m.curIdx = n - 1
	}
	if m.curIdx < 0 {
		m.curIdx = 0
	}
}

// follow keeps the cursor on id after its times changed.
func (m *appModel) follow(id int64) {
	ev, ok := m.app.Calendar.Event(id)
	if !ok {
		m.clampCursor()
		return
	}
	m.curDay = m.dayIndex(ev.Start)
	for i, e := range m.app.Calendar.Day(m.weekStart.AddDate(0, 0, m.curDay)) {
		if e.ID == id {
			m.curIdx = i
			return
		}
	}
	m.clampCursor()
}

func (m *appModel) setFlash(msg string, isErr bool) {
	m.flash, m.flashErr = msg, isErr
}

func (m *appModel) fail(err error) {
	m.setFlash(gateway.UserMessage(err), true)
}

// Commands. Each captures an op prepared on the UI goroutine; none touches
// model state.

func (m *appModel) fetchCmd() tea.Cmd {
	op := m.app.Calendar.PrepareFetch()
	ctx, gw := m.ctx, m.app.Gateway
	return func() tea.Msg { return fetchDoneMsg{res: op.Run(ctx, gw)} }
}

func (m *appModel) refreshCmd() tea.Cmd {
	op := m.app.Dashboard.PrepareRefresh()
	ctx, gw := m.ctx, m.app.Gateway
	return func() tea.Msg { return refreshDoneMsg{res: op.Run(ctx, gw)} }
}

func (m *appModel) directoryCmd() tea.Cmd {
	ctx, a := m.ctx, m.app
	return func() tea.Msg {
		d, err := directory.Load(ctx, a.Gateway, a.Session)
		return directoryMsg{dir: d, err: err}
	}
}

func (m *appModel) updateCmd(op *calendar.UpdateOp) tea.Cmd {
	ctx, gw := m.ctx, m.app.Gateway
	return func() tea.Msg { return updateDoneMsg{res: op.Run(ctx, gw)} }
}

func (m *appModel) saveCmd(op *editor.SaveOp) tea.Cmd {
	ctx, gw := m.ctx, m.app.Gateway
	return func() tea.Msg { return saveDoneMsg{res: op.Run(ctx, gw)} }
}

func (m *appModel) deleteCmd(op *editor.DeleteOp) tea.Cmd {
	ctx, gw := m.ctx, m.app.Gateway
	return func() tea.Msg { return deleteDoneMsg{res: op.Run(ctx, gw)} }
}

func (m *appModel) reloadCmd(id int64) tea.Cmd {
	ctx, gw := m.ctx, m.app.Gateway
	return func() tea.Msg {
		p, err := gw.GetPage(ctx, id)
		return reloadMsg{page: p, err: err}
	}
}

func (m *appModel) statusCmd(id int64, s model.Status) tea.Cmd {
	ctx, gw := m.ctx, m.app.Gateway
	return func() tea.Msg {
		p, err := gw.SetStatus(ctx, id, s)
		return statusDoneMsg{page: p, err: err}
	}
}

func (m *appModel) uploadCmd(path string) tea.Cmd {
	ctx, gw := m.ctx, m.app.Gateway
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return uploadDoneMsg{err: err}
		}
		defer f.Close()
		up, err := gw.Upload(ctx, filepath.Base(path), f)
		if err != nil {
			return uploadDoneMsg{err: err}
		}
		return uploadDoneMsg{url: up.URL}
	}
}

func (m *appModel) touchRecent(p model.Page) {
	if m.app.State == nil || p.ID == 0 {
		return
	}
	if err := m.app.State.TouchRecent(m.ctx, p.ID, p.Title, m.now()); err != nil {
		m.app.Logger.Warn("touch recent", "page_id", p.ID, "err", err)
	}
}

func (m *appModel) saveState() {
	if m.app.State == nil {
		return
	}
	st := &store.TUIState{
		Version:     1,
		View:        "calendar",
		WeekAnchor:  m.weekStart.Format(time.DateOnly),
		ShowPreview: m.showPreview,
	}
	if m.screen == screenDashboard {
		st.View = "dashboard"
	}
	if ev, ok := m.selected(); ok {
		st.SelectedPageID = ev.ID
	}
	if err := m.app.State.SaveTUIState(m.ctx, st); err != nil {
		m.app.Logger.Warn("save tui state", "err", err)
	}
}

func (m *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case fetchDoneMsg:
		applied, err := m.app.Calendar.FinishFetch(msg.res)
		if !applied {
			return m, nil
		}
		if err != nil {
			m.fail(err)
			return m, nil
		}
		m.app.Dashboard.SetRecent(m.app.Calendar.Pages())
		if m.pendingSelect != 0 {
			m.follow(m.pendingSelect)
			m.pendingSelect = 0
		} else {
			m.clampCursor()
		}
		return m, nil

	case updateDoneMsg:
		applied, err := m.app.Calendar.FinishUpdate(msg.res)
		if applied {
			m.follow(msg.res.ID)
			if err != nil {
				m.fail(err)
			} else {
				m.setFlash("Rescheduled", false)
			}
		}
		return m, nil

	case saveDoneMsg:
		out := m.ed.FinishSave(msg.res)
		var cmds []tea.Cmd
		if out.Persisted {
			m.touchRecent(out.Page)
			m.pendingSelect = out.Page.ID
			cmds = append(cmds, m.fetchCmd())
			if out.StatusChanged {
				cmds = append(cmds, m.refreshCmd())
			}
		}
		if out.Applied && out.Err == nil {
			cmds = append(cmds, m.after(editor.SavedIndicatorDelay, closePanelMsg{token: out.CloseToken}))
		}
		if !out.Applied && out.Err != nil {
			m.fail(out.Err)
		}
		return m, tea.Batch(cmds...)

	case closePanelMsg:
		m.ed.CloseIfSaved(msg.token)
		return m, nil

	case deleteDoneMsg:
		applied, err := m.ed.FinishDelete(msg.res)
		if msg.res.Err == nil {
			if m.app.State != nil {
				if ferr := m.app.State.ForgetRecent(m.ctx, msg.res.ID); ferr != nil {
					m.app.Logger.Warn("forget recent", "page_id", msg.res.ID, "err", ferr)
				}
			}
			m.app.Dashboard.SetRecent(m.app.Calendar.Pages())
			m.clampCursor()
			m.setFlash("Deleted", false)
			return m, m.refreshCmd()
		}
		if !applied {
			m.fail(err)
		}
		return m, nil

	case refreshDoneMsg:
		if _, err := m.app.Dashboard.FinishRefresh(msg.res); err != nil {
			m.app.Logger.Warn("dashboard refresh", "err", err)
		}
		return m, nil

	case directoryMsg:
		if msg.err != nil {
			m.app.Logger.Warn("load users", "err", msg.err)
			return m, nil
		}
		m.app.SetDirectory(msg.dir)
		if m.ed.State() != editor.StateClosed {
			m.panel.SetAssigneeOptions(m.app.Assignable())
		}
		return m, nil

	case reloadMsg:
		if msg.err != nil {
			m.app.Logger.Debug("reload page", "err", msg.err)
			return m, nil
		}
		m.ed.Reload(msg.page)
		return m, nil

	case statusDoneMsg:
		if msg.err != nil {
			m.fail(msg.err)
			return m, nil
		}
		m.app.Calendar.Upsert(msg.page)
		m.touchRecent(msg.page)
		m.follow(msg.page.ID)
		m.setFlash("Status: "+string(msg.page.Status), false)
		return m, m.refreshCmd()

	case uploadDoneMsg:
		if msg.err != nil {
			m.panel.ShowError(gateway.UserMessage(msg.err))
			return m, nil
		}
		if err := m.ed.InsertImage(msg.url); err != nil {
			m.panel.ShowError(err.Error())
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.saveState()
			return m, tea.Quit
		}
		if m.ed.State() != editor.StateClosed {
			return m, m.updatePanel(msg)
		}
		return m.updateCalendar(msg)
	}
	return m, nil
}

func (m *appModel) updatePanel(msg tea.KeyMsg) tea.Cmd {
	if m.uploading {
		switch msg.String() {
		case "esc":
			m.uploading = false
			m.upload.Blur()
			return nil
		case "enter":
			path := strings.TrimSpace(m.upload.Value())
			m.uploading = false
			m.upload.Blur()
			m.upload.SetValue("")
			if path == "" {
				return nil
			}
			return m.uploadCmd(path)
		}
		var cmd tea.Cmd
		m.upload, cmd = m.upload.Update(msg)
		return cmd
	}

	if m.ed.ConfirmingDelete() {
		switch msg.String() {
		case "tab", "shift+tab", "left", "right":
			m.confirm.toggle()
		case "y":
			return m.confirmDelete()
		case "enter":
			if m.confirm.onConfirm {
				return m.confirmDelete()
			}
			m.ed.CancelDelete()
		case "n", "esc":
			m.ed.CancelDelete()
		}
		return nil
	}

	switch msg.String() {
	case "esc":
		m.ed.Close()
		return nil
	case "ctrl+s":
		op, err := m.ed.PrepareSave()
		if err != nil {
			if !errors.Is(err, editor.ErrTitleRequired) {
				m.panel.ShowError(err.Error())
			}
			return nil
		}
		return m.saveCmd(op)
	case "ctrl+d":
		if err := m.ed.RequestDelete(); err != nil {
			m.panel.ShowError(err.Error())
			return nil
		}
		m.confirm = newDeleteDialog(m.ed.Snapshot().Title)
		return nil
	case "ctrl+u":
		if !m.ed.Policy().Content.Editable || m.ed.Busy() {
			return nil
		}
		m.uploading = true
		return m.upload.Focus()
	case "ctrl+p":
		m.showPreview = !m.showPreview
		return nil
	}
	return m.panel.update(msg)
}

func (m *appModel) confirmDelete() tea.Cmd {
	op, err := m.ed.ConfirmDelete()
	if err != nil {
		m.panel.ShowError(err.Error())
		return nil
	}
	if op == nil {
		m.setFlash("Draft discarded", false)
		return nil
	}
	return m.deleteCmd(op)
}

func (m *appModel) gesture(mk func(id int64) (*calendar.UpdateOp, error)) tea.Cmd {
	ev, ok := m.selected()
	if !ok {
		return nil
	}
	p, _ := m.app.Calendar.Page(ev.ID)
	if !perm.ForPage(m.app.Session, p).CanSave {
		m.setFlash("You cannot reschedule this page", true)
		return nil
	}
	op, err := mk(ev.ID)
	if err != nil {
		m.fail(err)
		return nil
	}
	m.follow(ev.ID)
	return m.updateCmd(op)
}

func (m *appModel) updateCalendar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.flash = ""
	switch msg.String() {
	case "q":
		m.saveState()
		return m, tea.Quit
	case "d":
		if m.screen == screenDashboard {
			m.screen = screenCalendar
		} else {
			m.screen = screenDashboard
		}
		return m, nil
	case "r":
		m.app.Gateway.InvalidateUsers()
		return m, tea.Batch(m.fetchCmd(), m.refreshCmd(), m.directoryCmd())
	}
	if m.screen != screenCalendar {
		if msg.String() == "esc" {
			m.screen = screenCalendar
		}
		return m, nil
	}

	cal := m.app.Calendar
	switch msg.String() {
	case "[":
		m.showWeek(m.weekStart.AddDate(0, 0, -7))
		m.curIdx = 0
		return m, m.fetchCmd()
	case "]":
		m.showWeek(m.weekStart.AddDate(0, 0, 7))
		m.curIdx = 0
		return m, m.fetchCmd()
	case "t":
		m.showWeek(m.now())
		m.curDay, m.curIdx = m.dayIndex(m.now()), 0
		return m, m.fetchCmd()
	case "h", "left":
		m.curDay--
		m.clampCursor()
	case "l", "right":
		m.curDay++
		m.clampCursor()
	case "j", "down":
		m.curIdx++
		m.clampCursor()
	case "k", "up":
		m.curIdx--
		m.clampCursor()
	case "p":
		m.showPreview = !m.showPreview
	case "n":
		start, end := m.newSlot()
		m.ed.OpenNew(start, end)
	case "enter":
		ev, ok := m.selected()
		if !ok {
			return m, nil
		}
		p, _ := cal.Page(ev.ID)
		m.ed.OpenExisting(p)
		m.touchRecent(p)
		return m, m.reloadCmd(p.ID)
	case "H":
		return m, m.gesture(func(id int64) (*calendar.UpdateOp, error) { return cal.Move(id, -24*time.Hour) })
	case "L":
		return m, m.gesture(func(id int64) (*calendar.UpdateOp, error) { return cal.Move(id, 24*time.Hour) })
	case "K":
		return m, m.gesture(func(id int64) (*calendar.UpdateOp, error) { return cal.Move(id, -moveStep) })
	case "J":
		return m, m.gesture(func(id int64) (*calendar.UpdateOp, error) { return cal.Move(id, moveStep) })
	case "+", "=":
		return m, m.gesture(func(id int64) (*calendar.UpdateOp, error) { return cal.Resize(id, moveStep) })
	case "-":
		return m, m.gesture(func(id int64) (*calendar.UpdateOp, error) { return cal.Resize(id, -moveStep) })
	case "s":
		ev, ok := m.selected()
		if !ok {
			return m, nil
		}
		p, _ := cal.Page(ev.ID)
		if !perm.ForPage(m.app.Session, p).Status.Editable {
			m.setFlash("You cannot change the status of this page", true)
			return m, nil
		}
		return m, m.statusCmd(p.ID, statusutil.NextStatus(p.Status))
	}
	return m, nil
}

// newSlot is the hour after the selected event, or the default slot on the
// cursor day.
func (m *appModel) newSlot() (time.Time, time.Time) {
	if ev, ok := m.selected(); ok {
		return ev.End, ev.End.Add(time.Hour)
	}
	day := m.weekStart.AddDate(0, 0, m.curDay)
	start := time.Date(day.Year(), day.Month(), day.Day(), defaultSlotHour, 0, 0, 0, day.Location())
	return start, start.Add(time.Hour)
}

func (m *appModel) View() string {
	w, h := m.width, m.height
	if w <= 0 {
		w = 120
	}
	if h <= 0 {
		h = 40
	}

	s := m.app.Session
	team := "no team"
	if s.TeamID != nil {
		team = fmt.Sprintf("team %d", *s.TeamID)
	}
	header := styleHeading().Render("pagecal") + "  " +
		styleMuted().Render(fmt.Sprintf("%s  %s  %s  week of %s",
			m.app.AssigneeLabel(&s.UserID), s.Role, team, m.weekStart.Format("Jan 2 2006")))

	bodyH := h - 4
	var body string
	switch m.screen {
	case screenDashboard:
		d := m.app.Dashboard
		body = normalizePane(renderDashboard(d.Visible(), d.Notice(), d.Loaded(), w-2), w, bodyH)
	default:
		body = m.calendarBody(w, bodyH)
	}

	footer := m.footer()
	out := strings.Join([]string{fitLine(header, w), body, fitLine(footer, w)}, "\n")
	if m.ed.ConfirmingDelete() {
		out = lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, m.confirm.view(w))
	}
	return out
}

func (m *appModel) calendarBody(w, h int) string {
	gridH := h
	var preview string
	if m.showPreview {
		var content string
		switch {
		case m.ed.State() != editor.StateClosed:
			content = m.panel.Values().Content
		default:
			if ev, ok := m.selected(); ok {
				p, _ := m.app.Calendar.Page(ev.ID)
				content = p.Content
			}
		}
		preview = renderContent(content, w-4)
		if preview == "" {
			preview = styleMuted().Render("(no content)")
		}
		gridH = h / 2
	}

	gridW := w
	open := m.ed.State() != editor.StateClosed
	if open {
		gridW = w - panelWidth
	}
	g := m.grid()
	grid := g.view(gridW, gridH-1)
	detail := ""
	if ev, ok := g.selected(); ok {
		detail = eventDetail(ev, m.weekStart.Location(), m.app.AssigneeLabel)
	}
	left := normalizePane(grid+"\n"+fitLine(detail, gridW), gridW, gridH)
	if open {
		panel := m.panel.view(panelWidth, gridH)
		if m.uploading {
			panel = normalizePane(panel+"\n"+m.upload.View(), panelWidth, gridH)
		}
		left = lipgloss.JoinHorizontal(lipgloss.Top, left, panel)
	}
	if preview == "" {
		return normalizePane(left, w, h)
	}
	return normalizePane(left+"\n"+styleMuted().Render(strings.Repeat(glyphHRule(), w))+"\n"+preview, w, h)
}

func (m *appModel) footer() string {
	if m.flash != "" {
		if m.flashErr {
			return styleError().Render(m.flash)
		}
		return styleSuccess().Render(m.flash)
	}
	if m.ed.State() != editor.StateClosed {
		return styleMuted().Render("tab: next field  ←/→: change  ctrl+s: save  esc: close")
	}
	if m.screen == screenDashboard {
		return styleMuted().Render("d/esc: calendar  r: refresh  q: quit")
	}
	return styleMuted().Render("[/]: week  t: today  hjkl: move  enter: open  n: new  H/L/J/K: reschedule  +/-: resize  s: status  p: preview  d: dashboard  q: quit")
}
