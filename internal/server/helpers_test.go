package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/folio/config"
	"github.com/mohammad-safakhou/folio/internal/content"
	"github.com/mohammad-safakhou/folio/internal/github/githubtest"
	"github.com/mohammad-safakhou/folio/internal/imaging"
	"github.com/mohammad-safakhou/folio/internal/logging"
	"github.com/mohammad-safakhou/folio/internal/runtime"
	"github.com/mohammad-safakhou/folio/internal/store"
	"github.com/mohammad-safakhou/folio/internal/tasks"
)

type fakeStore struct {
	mu       sync.Mutex
	seq      int
	comms    map[string]store.Communication
	activity []store.Activity
	counters map[string]any
	weekly   []map[string]any

	lastQuery store.ActivityQuery
	lastSince string
}

func newFakeStore() *fakeStore {
	return &fakeStore{comms: map[string]store.Communication{}, counters: map[string]any{}}
}

func (f *fakeStore) GetCounters(_ context.Context, docID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if docID != "counters" {
		return map[string]any{}, nil
	}
	return f.counters, nil
}

func (f *fakeStore) ListActivity(_ context.Context, q store.ActivityQuery) ([]store.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	out := []store.Activity{}
	for i := len(f.activity) - 1; i >= 0 && (q.Limit <= 0 || len(out) < q.Limit); i-- {
		if q.Type == "" || f.activity[i].Type == q.Type {
			out = append(out, f.activity[i])
		}
	}
	return out, nil
}

func (f *fakeStore) ListWeeklyMetrics(_ context.Context, since string) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSince = since
	out := []map[string]any{}
	for _, d := range f.weekly {
		if d["date"].(string) >= since {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) AddActivity(_ context.Context, a store.Activity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	a.ID = fmt.Sprintf("act-%d", f.seq)
	f.activity = append(f.activity, a)
	return a.ID, nil
}

func (f *fakeStore) CreateCommunication(_ context.Context, name, email, message string) (store.Communication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	c := store.Communication{ID: fmt.Sprintf("rec-%d", f.seq), Name: name, Email: email, Message: message, Status: store.StatusNew, CreatedAt: now, UpdatedAt: now}
	f.comms[c.ID] = c
	return c, nil
}

func (f *fakeStore) ListCommunications(_ context.Context, q store.CommunicationQuery) ([]store.Communication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Communication{}
	for _, c := range f.comms {
		if q.Status == "" || c.Status == q.Status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateCommunicationStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comms[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = c.UpdatedAt.Add(time.Minute)
	f.comms[id] = c
	return nil
}

func (f *fakeStore) DeleteCommunication(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comms[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.comms, id)
	return nil
}

func (f *fakeStore) activityTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.activity))
	for _, a := range f.activity {
		out = append(out, a.Type)
	}
	return out
}

const testRepo = "me/site"

type harness struct {
	e      *echo.Echo
	store  *fakeStore
	files  *githubtest.Memory
	issuer *runtime.TokenIssuer
	svc    *content.Service
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.GitHub.ImageMaxBytes = imaging.DefaultMaxBytes
	cfg.GitHub.ImageMaxEdge = imaging.DefaultMaxEdge
	cfg.Collections.CountersDocument = "counters"
	cfg.Collections.WeeklyWindowDays = 7
	cfg.Limits = config.LimitsConfig{LogDefaultLimit: 20, LogMaxLimit: 200, KnowledgeMaxContent: 1000, SysInsMaxContent: 1000, SysInsMaxMessage: 100, CommunicationListLimit: 100}
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithIssuer(t, &runtime.TokenIssuer{Secret: []byte("test-secret"), TTL: time.Hour, RefreshThreshold: 15 * time.Minute})
}

func newHarnessWithIssuer(t *testing.T, issuer *runtime.TokenIssuer) *harness {
	t.Helper()
	creds, err := runtime.NewCredentials(config.AuthConfig{AdminUsername: "admin", AdminPassword: "correct horse"})
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}
	st := newFakeStore()
	files := githubtest.NewMemory()
	log := logging.Discard()
	svc := &content.Service{
		Files:    files,
		Tasks:    tasks.Inline{},
		Images:   imaging.New(0, 0, 0),
		Activity: st,
		Paths: content.Paths{
			Projects:     config.RepoPath{Repo: testRepo, Path: "src/data/projects.json"},
			Contacts:     config.RepoPath{Repo: testRepo, Path: "src/data/contacts.json"},
			Images:       config.RepoPath{Repo: testRepo, Path: "public/projects"},
			Knowledge:    config.RepoPath{Repo: "me/bot", Path: "knowledge"},
			Instructions: config.RepoPath{Repo: "me/bot", Path: "system.txt"},
			PublicPrefix: "/projects/",
		},
		Limits: content.Limits{KnowledgeMaxContent: 1000, SysInsMaxContent: 1000, SysInsMaxMessage: 100},
		Log:    log,
	}
	e := New(Deps{
		Config:  testConfig(),
		Log:     log,
		Store:   st,
		Content: svc,
		Tasks:   tasks.Inline{},
		Issuer:  issuer,
		Creds:   creds,
	})
	return &harness{e: e, store: st, files: files, issuer: issuer, svc: svc}
}

func (h *harness) token(t *testing.T) string {
	t.Helper()
	tok, _, err := h.issuer.Issue("admin", runtime.RoleAdmin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func (h *harness) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, code int) HTTPError {
	t.Helper()
	if rec.Code != code {
		t.Fatalf("expected %d, got %d: %s", code, rec.Code, rec.Body.String())
	}
	var he HTTPError
	decode(t, rec, &he)
	if he.Status != "error" || he.Message == "" {
		t.Fatalf("unexpected error envelope %+v", he)
	}
	return he
}
