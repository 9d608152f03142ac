package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/mohammad-safakhou/folio/config"
	"github.com/mohammad-safakhou/folio/internal/github"
	"github.com/mohammad-safakhou/folio/internal/github/githubtest"
	"github.com/mohammad-safakhou/folio/internal/imaging"
	"github.com/mohammad-safakhou/folio/internal/store"
	"github.com/mohammad-safakhou/folio/internal/tasks"
)

type recorder struct {
	mu        sync.Mutex
	entries   []store.Activity
	revisions []store.InstructionsRevision
}

func (r *recorder) AddActivity(_ context.Context, a store.Activity) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, a)
	return "id", nil
}

func (r *recorder) AddInstructionsHistory(_ context.Context, rev store.InstructionsRevision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revisions = append(r.revisions, rev)
	return nil
}

func (r *recorder) ListInstructionsHistory(_ context.Context, limit int) ([]store.InstructionsRevision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.InstructionsRevision(nil), r.revisions...), nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Type)
	}
	return out
}

const repo = "me/site"

func newService(t *testing.T) (*Service, *githubtest.Memory, *recorder) {
	t.Helper()
	files := githubtest.NewMemory()
	rec := &recorder{}
	svc := &Service{
		Files:    files,
		Tasks:    tasks.Inline{},
		Images:   imaging.New(0, 0, 0),
		Activity: rec,
		History:  rec,
		Paths: Paths{
			Projects:     config.RepoPath{Repo: repo, Path: "src/data/projects.json"},
			Contacts:     config.RepoPath{Repo: repo, Path: "src/data/contacts.json"},
			Images:       config.RepoPath{Repo: repo, Path: "public/projects"},
			Knowledge:    config.RepoPath{Repo: "me/bot", Path: "knowledge"},
			Instructions: config.RepoPath{Repo: "me/bot", Path: "prompts/system.txt"},
			PublicPrefix: "/projects/",
		},
		Limits: Limits{KnowledgeMaxContent: 50, SysInsMaxContent: 50, SysInsMaxMessage: 10},
	}
	return svc, files, rec
}

func raws(t *testing.T, objs ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(objs))
	for _, o := range objs {
		out = append(out, json.RawMessage(o))
	}
	return out
}

func compact(t *testing.T, items []json.RawMessage) string {
	t.Helper()
	var parts []string
	for _, it := range items {
		var buf bytes.Buffer
		if err := json.Compact(&buf, it); err != nil {
			t.Fatalf("compact: %v", err)
		}
		parts = append(parts, buf.String())
	}
	return strings.Join(parts, ",")
}

func TestProjectsRoundTrip(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	empty, err := svc.GetProjects(ctx)
	if err != nil {
		t.Fatalf("GetProjects: %v", err)
	}
	if len(empty.Items) != 0 || empty.Commit != nil {
		t.Fatalf("missing file should read as empty list, got %+v", empty)
	}

	items := raws(t,
		`{"title":"Site","imageUrl":"/projects/a.webp","tags":["go"]}`,
		`{"zeta":1,"alpha":{"nested":true}}`,
	)
	commit, err := svc.SaveProjects(ctx, "admin", items, nil, "")
	if err != nil {
		t.Fatalf("SaveProjects: %v", err)
	}
	if len(commit) != 7 {
		t.Fatalf("expected short commit, got %q", commit)
	}

	got, err := svc.GetProjects(ctx)
	if err != nil {
		t.Fatalf("GetProjects: %v", err)
	}
	if compact(t, got.Items) != compact(t, items) {
		t.Fatalf("round trip mismatch:\n got %s\nwant %s", compact(t, got.Items), compact(t, items))
	}
	if got.Commit == nil || len(*got.Commit) != 7 {
		t.Fatalf("expected short revision, got %v", got.Commit)
	}
	if types := rec.types(); len(types) != 1 || types[0] != "projects_updated" {
		t.Fatalf("unexpected activity %v", types)
	}
	if rec.entries[0].Details["count"] != 2 {
		t.Fatalf("unexpected details %v", rec.entries[0].Details)
	}
}

func TestSaveProjectsRejectsNonObjects(t *testing.T) {
	svc, files, _ := newService(t)
	_, err := svc.SaveProjects(context.Background(), "admin", raws(t, `"nope"`), nil, "")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if files.Has(github.Ref{Repo: repo, Path: "src/data/projects.json"}) {
		t.Fatalf("nothing should be written on validation failure")
	}
}

func TestSaveProjectsDeletesOrphanedImage(t *testing.T) {
	svc, files, _ := newService(t)
	ctx := context.Background()
	a := github.Ref{Repo: repo, Path: "public/projects/a.webp"}
	b := github.Ref{Repo: repo, Path: "public/projects/b.webp"}
	files.Seed(a, []byte("A"))
	files.Seed(b, []byte("B"))

	old := raws(t, `{"title":"one","imageUrl":"/projects/a.webp"}`, `{"title":"two","image":"public/projects/b.webp"}`)
	cur := raws(t, `{"title":"two","image":"public/projects/b.webp"}`)
	if _, err := svc.SaveProjects(ctx, "admin", cur, old, "drop one"); err != nil {
		t.Fatalf("SaveProjects: %v", err)
	}
	if files.Has(a) {
		t.Fatalf("a.webp should be deleted")
	}
	if !files.Has(b) {
		t.Fatalf("b.webp is still referenced")
	}
}

func TestSaveSucceedsWhenCleanupFails(t *testing.T) {
	svc, files, _ := newService(t)
	files.Seed(github.Ref{Repo: repo, Path: "public/projects/a.webp"}, []byte("A"))
	files.Hook = func(op string, r github.Ref) error {
		if op == "delete" {
			return &github.Error{Kind: github.KindUpstream, Message: "boom"}
		}
		return nil
	}
	old := raws(t, `{"imageUrl":"/projects/a.webp"}`)
	if _, err := svc.SaveProjects(context.Background(), "admin", raws(t), old, ""); err != nil {
		t.Fatalf("cleanup failure must not fail the save: %v", err)
	}
}

func TestSaveConflictOnStaleRevision(t *testing.T) {
	svc, files, rec := newService(t)
	r := github.Ref{Repo: repo, Path: "src/data/projects.json"}
	img := github.Ref{Repo: repo, Path: "public/projects/a.webp"}
	files.Seed(r, []byte(`[]`))
	files.Seed(img, []byte("A"))
	// A concurrent writer lands between our read and our write.
	files.Hook = func(op string, got github.Ref) error {
		if op == "put" {
			files.Hook = nil
			files.Seed(r, []byte(`[{"other":true}]`))
		}
		return nil
	}
	old := raws(t, `{"imageUrl":"/projects/a.webp"}`)
	_, err := svc.SaveProjects(context.Background(), "admin", raws(t, `{}`), old, "")
	if !errors.Is(err, github.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	// images are only cleaned up after the list itself was written
	if len(files.Deleted) != 0 || !files.Has(img) {
		t.Fatalf("orphaned image must survive a failed save, deleted %v", files.Deleted)
	}
	if len(rec.types()) != 0 {
		t.Fatalf("failed save must not be recorded, got %v", rec.types())
	}
}

func TestOrphanedImages(t *testing.T) {
	old := raws(t,
		`{"imageUrl":"/projects/a.webp"}`,
		`{"imageUrl":"https://cdn.example.com/x.webp"}`,
		`{"image":"public/projects/c.webp"}`,
		`{"imageUrl":"/projects/d.webp"}`,
		`{"title":"no image"}`,
	)
	cur := raws(t, `{"imageUrl":"/projects/d.webp"}`, `{"image":"//cdn/z.webp"}`)
	got := OrphanedImages(old, cur)
	if strings.Join(got, ",") != "a.webp,c.webp" {
		t.Fatalf("unexpected orphans %v", got)
	}
	if len(OrphanedImages(nil, cur)) != 0 {
		t.Fatalf("no old list means no orphans")
	}
}

func TestDeleteImagesAbsentIsSuccess(t *testing.T) {
	svc, files, _ := newService(t)
	if err := svc.DeleteImages(context.Background(), []string{"ghost.webp"}); err != nil {
		t.Fatalf("deleting an absent image should succeed: %v", err)
	}
	if len(files.Deleted) != 0 {
		t.Fatalf("nothing should be deleted, got %v", files.Deleted)
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func TestUploadImage(t *testing.T) {
	svc, files, rec := newService(t)
	ctx := context.Background()

	up, err := svc.UploadImage(ctx, "admin", "My Site!", "shot.png", "image/png", pngBytes(t, 1600, 800))
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(up.Filename, "my-site-") || !strings.HasSuffix(up.Filename, ".webp") {
		t.Fatalf("unexpected filename %q", up.Filename)
	}
	if up.URL != "/projects/"+up.Filename {
		t.Fatalf("unexpected url %q", up.URL)
	}
	f, found, err := files.Get(ctx, github.Ref{Repo: repo, Path: "public/projects/" + up.Filename})
	if err != nil || !found {
		t.Fatalf("uploaded file missing: %v", err)
	}
	if !bytes.HasPrefix(f.Content, []byte("RIFF")) || !bytes.Equal(f.Content[8:12], []byte("WEBP")) {
		t.Fatalf("stored content is not webp")
	}
	if types := rec.types(); len(types) != 1 || types[0] != "image_uploaded" {
		t.Fatalf("unexpected activity %v", types)
	}
}

func TestUploadImageValidation(t *testing.T) {
	svc, files, _ := newService(t)
	ctx := context.Background()
	files.Hook = func(op string, r github.Ref) error {
		t.Fatalf("no remote call expected, got %s", op)
		return nil
	}
	var ve *imaging.ValidationError
	if _, err := svc.UploadImage(ctx, "admin", "x", "doc.pdf", "application/pdf", []byte("%PDF")); !errors.As(err, &ve) {
		t.Fatalf("expected imaging.ValidationError, got %v", err)
	}

	svc.Paths.Images = config.RepoPath{}
	var cve *ValidationError
	if _, err := svc.UploadImage(ctx, "admin", "x", "a.png", "image/png", pngBytes(t, 2, 2)); !errors.As(err, &cve) {
		t.Fatalf("expected not-configured error, got %v", err)
	}
}

func TestContactsWrapper(t *testing.T) {
	svc, files, rec := newService(t)
	ctx := context.Background()
	r := github.Ref{Repo: repo, Path: "src/data/contacts.json"}

	c, err := svc.GetContacts(ctx)
	if err != nil || string(c.Data) != `{}` || c.Commit != nil {
		t.Fatalf("missing contacts should be empty, got %+v %v", c, err)
	}

	if _, err := svc.SaveContacts(ctx, "admin", json.RawMessage(`{"email":"me@x.com","github":"me"}`), ""); err != nil {
		t.Fatalf("SaveContacts: %v", err)
	}
	f, _, _ := files.Get(ctx, r)
	var stored map[string]map[string]string
	if err := json.Unmarshal(f.Content, &stored); err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if stored["contact"]["email"] != "me@x.com" {
		t.Fatalf("file should wrap contact, got %s", f.Content)
	}

	c, err = svc.GetContacts(ctx)
	if err != nil {
		t.Fatalf("GetContacts: %v", err)
	}
	var got map[string]string
	_ = json.Unmarshal(c.Data, &got)
	if got["github"] != "me" {
		t.Fatalf("unexpected contact %s", c.Data)
	}

	// Legacy unwrapped files are returned as-is.
	files.Seed(r, []byte(`{"email":"old@x.com"}`))
	c, _ = svc.GetContacts(ctx)
	if !strings.Contains(string(c.Data), "old@x.com") {
		t.Fatalf("unexpected legacy contact %s", c.Data)
	}
	if _, err := svc.SaveContacts(ctx, "admin", json.RawMessage(`[1]`), ""); err == nil {
		t.Fatalf("array contact should be rejected")
	}
	if types := rec.types(); len(types) != 1 || types[0] != "contacts_updated" {
		t.Fatalf("unexpected activity %v", types)
	}
}

func TestKnowledge(t *testing.T) {
	svc, files, rec := newService(t)
	ctx := context.Background()
	files.Seed(github.Ref{Repo: "me/bot", Path: "knowledge/about_me.txt"}, []byte("I build things."))

	all, err := svc.GetAllKnowledge(ctx)
	if err != nil {
		t.Fatalf("GetAllKnowledge: %v", err)
	}
	if len(all) != len(Categories) || !all["about_me"].Exists || all["misc"].Exists {
		t.Fatalf("unexpected categories %+v", all)
	}

	if _, err := svc.SaveKnowledge(ctx, "admin", "misc", "hello", ""); err != nil {
		t.Fatalf("SaveKnowledge: %v", err)
	}
	e, err := svc.GetKnowledge(ctx, "misc")
	if err != nil || e.Content != "hello" || e.SHA == nil {
		t.Fatalf("unexpected entry %+v %v", e, err)
	}

	var ve *ValidationError
	if _, err := svc.GetKnowledge(ctx, "secrets"); !errors.As(err, &ve) {
		t.Fatalf("expected invalid category, got %v", err)
	}
	if _, err := svc.SaveKnowledge(ctx, "admin", "misc", strings.Repeat("x", 51), ""); !errors.As(err, &ve) {
		t.Fatalf("expected size limit, got %v", err)
	}
	if rec.entries[0].ResourceID == nil || *rec.entries[0].ResourceID != "misc" {
		t.Fatalf("activity should name the category: %+v", rec.entries[0])
	}

	svc.Paths.Knowledge = config.RepoPath{}
	if _, err := svc.GetAllKnowledge(ctx); !errors.As(err, &ve) || !strings.Contains(ve.Message, "not configured") {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestInstructions(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	got, err := svc.GetInstructions(ctx)
	if err != nil || got.Content != "" || got.SHA != nil {
		t.Fatalf("missing instructions should be empty, got %+v %v", got, err)
	}
	commit, err := svc.SaveInstructions(ctx, "admin", "Be concise.", "tone")
	if err != nil {
		t.Fatalf("SaveInstructions: %v", err)
	}
	hist, err := svc.InstructionsHistory(ctx, 10)
	if err != nil || len(hist) != 1 || hist[0].Commit != commit || hist[0].Message != "tone" || hist[0].Size != len("Be concise.") {
		t.Fatalf("unexpected history %+v %v", hist, err)
	}

	var ve *ValidationError
	if _, err := svc.SaveInstructions(ctx, "admin", "ok", "this message is too long"); !errors.As(err, &ve) {
		t.Fatalf("expected message limit error, got %v", err)
	}
	if types := rec.types(); len(types) != 1 || types[0] != "system_instructions_updated" {
		t.Fatalf("unexpected activity %v", types)
	}
}
