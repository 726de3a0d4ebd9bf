// Package fakeapi is an in-memory implementation of the pages API contract.
// It backs the gateway and CLI tests and `pagecal devserver`. It mirrors the
// server-side role enforcement the real API performs.
package fakeapi

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"pagecal/internal/model"
	"pagecal/internal/statusutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type failure struct {
	method string
	prefix string
	status int
	detail string
}

type Server struct {
	mu sync.Mutex

	users  map[int64]model.User
	tokens map[string]int64
	pages  map[int64]model.Page
	nextID int64

	uploads map[string][]byte
	fails   []failure
	// Requests counts handled API requests by "METHOD /path".
	requests map[string]int

	now func() time.Time
}

func New() *Server {
	return &Server{
		users:    map[int64]model.User{},
		tokens:   map[string]int64{},
		pages:    map[int64]model.Page{},
		nextID:   1,
		uploads:  map[string][]byte{},
		requests: map[string]int{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the server clock (created_at/updated_at and metrics).
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddUser registers u and the bearer token that authenticates as u.
func (s *Server) AddUser(u model.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	if token != "" {
		s.tokens[token] = u.ID
	}
}

// AddPage stores p as-is, assigning an id when p has none.
func (s *Server) AddPage(p model.Page) model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID
	}
	if p.ID >= s.nextID {
		s.nextID = p.ID + 1
	}
	if p.CreatedAt == nil {
		p.CreatedAt = model.TimestampPtr(s.now())
	}
	if p.UpdatedAt == nil {
		p.UpdatedAt = p.CreatedAt
	}
	s.pages[p.ID] = p
	return p
}

func (s *Server) Page(id int64) (model.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	return p, ok
}

// Requests returns how many times "METHOD pattern" was served.
func (s *Server) Requests(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

// FailNext makes the next request matching method and path prefix fail with
// status and detail.
func (s *Server) FailNext(method, pathPrefix string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = append(s.fails, failure{method: method, prefix: pathPrefix, status: status, detail: detail})
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.injectFailures)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/pages", s.listPages)
		r.Post("/pages", s.createPage)
		r.Get("/pages/{id}", s.getPage)
		r.Put("/pages/{id}", s.updatePage)
		r.Delete("/pages/{id}", s.deletePage)
		r.Get("/users", s.listUsers)
		r.Get("/metrics", s.metrics)
		r.Post("/upload", s.upload)
	})
	r.Get("/static/uploads/{name}", s.serveUpload)
	return r
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		for i, f := range s.fails {
			if f.method == r.Method && strings.HasPrefix(r.URL.Path, f.prefix) {
				s.fails = append(s.fails[:i], s.fails[i+1:]...)
				s.mu.Unlock()
				writeDetail(w, f.status, f.detail)
				return
			}
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type ctxUserKey struct{}

type authedRequest struct {
	user model.User
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		} else if c, err := r.Cookie("access_token"); err == nil {
			token = c.Value
		}
		s.mu.Lock()
		id, ok := s.tokens[token]
		u := s.users[id]
		s.mu.Unlock()
		if token == "" || !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		s.count(r)
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), authedRequest{user: u})))
	})
}

func (s *Server) count(r *http.Request) {
	path := r.URL.Path
	if strings.HasPrefix(path, "/api/pages/") {
		path = "/api/pages/{id}"
	}
	s.mu.Lock()
	s.requests[r.Method+" "+path]++
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func pageID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// visible applies the server's feed scoping.
func (s *Server) visible(u model.User, p model.Page) bool {
	switch u.Role {
	case model.RoleAdmin:
		return true
	case model.RoleManager:
		if u.TeamID == nil {
			return p.AssignedTo(u.ID)
		}
		if p.AssigneeID == nil || (p.AuthorID != nil && *p.AuthorID == u.ID) {
			return true
		}
		assignee, ok := s.users[*p.AssigneeID]
		return ok && assignee.InTeam(u.TeamID)
	default:
		return p.AssignedTo(u.ID)
	}
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context()).user
	var start, end *time.Time
	if v := r.URL.Query().Get("start"); v != "" {
		ts, err := model.ParseTimestamp(v)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "invalid start")
			return
		}
		start = &ts.Time
	}
	if v := r.URL.Query().Get("end"); v != "" {
		ts, err := model.ParseTimestamp(v)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "invalid end")
			return
		}
		end = &ts.Time
	}

	s.mu.Lock()
	out := make([]model.Page, 0, len(s.pages))
	for _, p := range s.pages {
		if start != nil && p.StartTime.Before(*start) {
			continue
		}
		if end != nil && p.StartTime.After(*end) {
			continue
		}
		if s.visible(u, p) {
			out = append(out, p)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context()).user
	id, ok := pageID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Page not found")
		return
	}
	s.mu.Lock()
	p, ok := s.pages[id]
	ok = ok && s.visible(u, p)
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Page not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func decodePayload(w http.ResponseWriter, r *http.Request) (model.PagePayload, bool) {
	var in model.PagePayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body: "+err.Error())
		return in, false
	}
	if strings.TrimSpace(in.Title) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []any{"body", "title"}, "msg": "field required", "type": "value_error.missing"}},
		})
		return in, false
	}
	if in.StartTime.IsZero() {
		in.StartTime = model.NewTimestamp(time.Now())
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}
	if in.Category == "" {
		in.Category = model.CategoryOther
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	return in, true
}

func applyPayload(p *model.Page, in model.PagePayload) {
	p.Title = in.Title
	p.Content = in.Content
	p.Category = in.Category
	p.Priority = in.Priority
	p.Status = in.Status
	p.AssigneeID = in.AssigneeID
	p.StartTime = in.StartTime
	p.EndTime = in.EndTime
	statusutil.NormalizePage(p)
}

func (s *Server) createPage(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context()).user
	in, ok := decodePayload(w, r)
	if !ok {
		return
	}
	if u.Role != model.RoleAdmin && u.Role != model.RoleManager && in.AssigneeID != nil && *in.AssigneeID != u.ID {
		writeDetail(w, http.StatusForbidden, "You can only assign tasks to yourself")
		return
	}

	s.mu.Lock()
	now := model.TimestampPtr(s.now())
	p := model.Page{ID: s.nextID, CreatedAt: now, UpdatedAt: now}
	s.nextID++
	author := u.ID
	p.AuthorID = &author
	applyPayload(&p, in)
	s.pages[p.ID] = p
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updatePage(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context()).user
	id, ok := pageID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Page not found")
		return
	}
	in, ok := decodePayload(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Page not found")
		return
	}
	switch u.Role {
	case model.RoleAdmin, model.RoleManager:
		applyPayload(&p, in)
	default:
		if !p.AssignedTo(u.ID) {
			writeDetail(w, http.StatusForbidden, "Permission denied")
			return
		}
		// Members can only move a task through its statuses.
		st, err := statusutil.NormalizeStatus(string(in.Status))
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		p.Status = st
	}
	p.UpdatedAt = model.TimestampPtr(s.now())
	s.pages[id] = p
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePage(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context()).user
	id, ok := pageID(r)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Page not found")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Page not found")
		return
	}
	if u.Role != model.RoleAdmin && u.Role != model.RoleManager {
		writeDetail(w, http.StatusForbidden, "Permission denied")
		return
	}
	delete(s.pages, id)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func countStatus(c *model.StatusCounts, st model.Status) {
	switch st {
	case model.StatusTodo:
		c.Todo++
	case model.StatusInProgress:
		c.InProgress++
	case model.StatusDone:
		c.Done++
	}
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context()).user

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := model.MetricsContext{}
	switch u.Role {
	case model.RoleAdmin:
		now := s.now()
		weekday := (int(now.Weekday()) + 6) % 7
		startOfWeek := time.Date(now.Year(), now.Month(), now.Day()-weekday, 0, 0, 0, 0, time.UTC)
		n := 0
		cats := map[string]int{}
		for _, p := range s.pages {
			if p.CreatedAt != nil && !p.CreatedAt.Before(startOfWeek) {
				n++
			}
			cats[string(p.Category)]++
		}
		ctx.NewPagesWeek = &n
		ctx.Categories = cats
	case model.RoleManager:
		mine := model.StatusCounts{}
		for _, p := range s.pages {
			if p.AssignedTo(u.ID) {
				countStatus(&mine, p.Status)
			}
		}
		ctx.MyTasks = &mine
		if u.TeamID == nil {
			ctx.Error = "Manager has no team assigned"
			break
		}
		team := model.StatusCounts{}
		active := map[int64]int{}
		for _, p := range s.pages {
			if p.AssigneeID == nil {
				continue
			}
			assignee, ok := s.users[*p.AssigneeID]
			if !ok || !assignee.InTeam(u.TeamID) {
				continue
			}
			countStatus(&team, p.Status)
			if p.Status != model.StatusDone {
				active[assignee.ID]++
			}
		}
		ctx.TeamTasks = &team
		for _, member := range s.users {
			if !member.InTeam(u.TeamID) {
				continue
			}
			ctx.Workload = append(ctx.Workload, model.WorkloadEntry{UserID: member.ID, Username: member.Username, Active: active[member.ID]})
		}
		sort.Slice(ctx.Workload, func(i, j int) bool { return ctx.Workload[i].UserID < ctx.Workload[j].UserID })
	default:
		mine := model.StatusCounts{}
		for _, p := range s.pages {
			if p.AssignedTo(u.ID) {
				countStatus(&mine, p.Status)
			}
		}
		ctx.MyTasks = &mine
	}
	writeJSON(w, http.StatusOK, model.Metrics{Role: u.Role, Context: ctx})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "missing file")
		return
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "unreadable file")
		return
	}
	ext := strings.TrimPrefix(filepath.Ext(hdr.Filename), ".")
	if ext == "" {
		ext = "bin"
	}
	name := uuid.NewString() + "." + ext
	s.mu.Lock()
	s.uploads[name] = b
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, model.Upload{URL: "/static/uploads/" + name})
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	b, ok := s.uploads[chi.URLParam(r, "name")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(b))
	_, _ = w.Write(b)
}
