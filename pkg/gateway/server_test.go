package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/paraflow/paraflow/pkg/config"
	"github.com/paraflow/paraflow/pkg/notion"
	"github.com/paraflow/paraflow/pkg/para"
	"github.com/paraflow/paraflow/pkg/pusher"
	"github.com/paraflow/paraflow/pkg/settings"
)

type stubExtractor struct {
	batch para.Batch
	tasks []para.Task
}

func (s *stubExtractor) ExtractPara(ctx context.Context, messages []para.Message) para.Batch {
	return s.batch
}

func (s *stubExtractor) ExtractTasks(ctx context.Context, messages []para.Message) []para.Task {
	return s.tasks
}

// stubRemote is a minimal pusher.Store for handler tests.
type stubRemote struct {
	schema  map[string]notion.PropertySpec
	created []map[string]interface{}
	pages   []notion.SearchResult
	nextID  int
}

func (s *stubRemote) Search(ctx context.Context, query, objectType string) ([]notion.SearchResult, error) {
	if objectType == "page" {
		return s.pages, nil
	}
	return nil, nil
}

func (s *stubRemote) RetrieveDatabase(ctx context.Context, databaseID string) (*notion.Database, error) {
	return &notion.Database{ID: databaseID, Properties: s.schema}, nil
}

func (s *stubRemote) CreateDatabase(ctx context.Context, parentPageID, title string, properties map[string]interface{}) (*notion.Database, error) {
	s.nextID++
	return &notion.Database{ID: fmt.Sprintf("db-%d", s.nextID)}, nil
}

func (s *stubRemote) CreatePage(ctx context.Context, databaseID string, properties map[string]interface{}) (*notion.Page, error) {
	s.created = append(s.created, properties)
	return &notion.Page{ID: fmt.Sprintf("page-%d", len(s.created))}, nil
}

func (s *stubRemote) QueryDatabase(ctx context.Context, databaseID string, pageSize int) (*notion.QueryResult, error) {
	return &notion.QueryResult{}, nil
}

func newTestServer(t *testing.T, extractor Extractor, remote pusher.Store) *Server {
	t.Helper()
	store, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	srv := NewServer(config.DefaultConfig(), extractor, store, nil, nil)
	srv.newRemote = func(token string) (pusher.Store, error) { return remote, nil }
	return srv
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func saveSettings(t *testing.T, srv *Server, userID string) {
	t.Helper()
	err := srv.store.PutSettings(context.Background(), settings.UserSettings{
		UserID:      userID,
		NotionToken: "secret",
		ProjectsDB:  "db-p",
		AreasDB:     "db-a",
		ResourcesDB: "db-r",
		ArchiveDB:   "db-x",
	})
	if err != nil {
		t.Fatalf("PutSettings: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, &stubRemote{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeResponse(t, rec)["status"]; got != "ok" {
		t.Fatalf("status field = %v", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, &stubRemote{})
	req := httptest.NewRequest(http.MethodGet, "/api/extract-para", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if got := decodeResponse(t, rec)["error"]; got != "Method not allowed" {
		t.Fatalf("error = %v", got)
	}
}

func TestExtractParaHandler(t *testing.T) {
	extractor := &stubExtractor{batch: para.Batch{
		Projects: []para.Element{{ID: "el-1", Title: "Finish Q3 report", Type: para.CategoryProject}},
	}}
	srv := newTestServer(t, extractor, &stubRemote{})

	rec := postJSON(t, srv.Handler(), "/api/extract-para", map[string]interface{}{
		"user_id":  "user-1",
		"messages": []para.Message{{Role: "user", Content: "I need to finish the Q3 report"}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp["applied"] != true {
		t.Fatalf("applied = %v", resp["applied"])
	}
	paraData, _ := resp["para"].(map[string]interface{})
	projects, _ := paraData["projects"].([]interface{})
	if len(projects) != 1 {
		t.Fatalf("projects = %v", paraData)
	}
}

func TestExtractParaRequiresMessages(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, &stubRemote{})
	rec := postJSON(t, srv.Handler(), "/api/extract-para", map[string]interface{}{
		"user_id": "user-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExtractTasksHandler(t *testing.T) {
	extractor := &stubExtractor{tasks: []para.Task{{Title: "Send invoice"}}}
	srv := newTestServer(t, extractor, &stubRemote{})

	rec := postJSON(t, srv.Handler(), "/api/extract-tasks", map[string]interface{}{
		"user_id":  "user-1",
		"messages": []para.Message{{Role: "user", Content: "remind me to send the invoice"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	tasks, _ := decodeResponse(t, rec)["tasks"].([]interface{})
	if len(tasks) != 1 {
		t.Fatalf("tasks = %v", tasks)
	}
}

func TestConfirmPushesThenConfirms(t *testing.T) {
	extractor := &stubExtractor{batch: para.Batch{
		Projects: []para.Element{{ID: "el-1", Title: "Finish Q3 report", Type: para.CategoryProject}},
	}}
	remote := &stubRemote{schema: map[string]notion.PropertySpec{"Name": {Type: "title"}}}
	srv := newTestServer(t, extractor, remote)
	saveSettings(t, srv, "user-1")
	handler := srv.Handler()

	postJSON(t, handler, "/api/extract-para", map[string]interface{}{
		"user_id":  "user-1",
		"messages": []para.Message{{Role: "user", Content: "Q3 report"}},
	})

	rec := postJSON(t, handler, "/api/confirm", map[string]string{
		"user_id":    "user-1",
		"element_id": "el-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(remote.created) != 1 {
		t.Fatalf("remote pages = %d, want 1", len(remote.created))
	}

	// Confirmed element is gone from suggestions; re-confirm is a 404.
	rec = postJSON(t, handler, "/api/confirm", map[string]string{
		"user_id":    "user-1",
		"element_id": "el-1",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second confirm status = %d, want 404", rec.Code)
	}
	if len(remote.created) != 1 {
		t.Fatal("second confirm must not write again")
	}
}

func TestConfirmWithoutSettings(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, &stubRemote{})
	rec := postJSON(t, srv.Handler(), "/api/confirm", map[string]string{
		"user_id":    "user-1",
		"element_id": "el-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unconfigured user", rec.Code)
	}
}

func TestRejectHandler(t *testing.T) {
	extractor := &stubExtractor{batch: para.Batch{
		Areas: []para.Element{{ID: "el-2", Title: "Hiring", Type: para.CategoryArea}},
	}}
	srv := newTestServer(t, extractor, &stubRemote{})
	handler := srv.Handler()

	postJSON(t, handler, "/api/extract-para", map[string]interface{}{
		"user_id":  "user-1",
		"messages": []para.Message{{Role: "user", Content: "hiring"}},
	})

	rec := postJSON(t, handler, "/api/reject", map[string]string{
		"user_id":    "user-1",
		"element_id": "el-2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = postJSON(t, handler, "/api/reject", map[string]string{
		"user_id":    "user-1",
		"element_id": "el-2",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second reject status = %d, want 404", rec.Code)
	}
}

func TestPushTasksHandler(t *testing.T) {
	remote := &stubRemote{schema: map[string]notion.PropertySpec{"Name": {Type: "title"}}}
	srv := newTestServer(t, &stubExtractor{}, remote)
	saveSettings(t, srv, "user-1")

	rec := postJSON(t, srv.Handler(), "/api/push-tasks", map[string]interface{}{
		"user_id": "user-1",
		"tasks":   []para.Task{{Title: "Send invoice"}, {Title: "Book flights"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeResponse(t, rec)["pushed"]; got != float64(2) {
		t.Fatalf("pushed = %v", got)
	}
}

func TestEnsureFrameworkHandlerPersistsIDs(t *testing.T) {
	remote := &stubRemote{pages: []notion.SearchResult{{Object: "page", ID: "parent-1"}}}
	srv := newTestServer(t, &stubExtractor{}, remote)
	ctx := context.Background()

	if err := srv.store.PutSettings(ctx, settings.UserSettings{UserID: "user-1", NotionToken: "secret"}); err != nil {
		t.Fatalf("PutSettings: %v", err)
	}

	rec := postJSON(t, srv.Handler(), "/api/ensure-framework", map[string]string{"user_id": "user-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	saved, err := srv.store.GetSettings(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if saved.ProjectsDB == "" || saved.AreasDB == "" || saved.ResourcesDB == "" || saved.ArchiveDB == "" {
		t.Fatalf("database IDs not persisted: %+v", saved)
	}
}

func TestEnsureFrameworkRequiresToken(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, &stubRemote{})
	rec := postJSON(t, srv.Handler(), "/api/ensure-framework", map[string]string{"user_id": "user-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPersonaAndSettingsHandlers(t *testing.T) {
	srv := newTestServer(t, &stubExtractor{}, &stubRemote{})
	handler := srv.Handler()
	ctx := context.Background()

	rec := postJSON(t, handler, "/api/settings", map[string]string{
		"user_id":      "user-1",
		"notion_token": "secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings status = %d", rec.Code)
	}

	rec = postJSON(t, handler, "/api/persona", map[string]interface{}{
		"user_id": "user-1",
		"persona": settings.Persona{Name: "Dana", Occupation: "Designer"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("persona status = %d", rec.Code)
	}

	persona, ok, err := srv.store.GetPersona(ctx, "user-1")
	if err != nil || !ok {
		t.Fatalf("GetPersona: ok=%v err=%v", ok, err)
	}
	if persona.Occupation != "Designer" {
		t.Fatalf("persona = %+v", persona)
	}
}

func TestStaleExtractionDiscarded(t *testing.T) {
	extractor := &stubExtractor{batch: para.Batch{
		Projects: []para.Element{{ID: "el-1", Title: "Newest pass", Type: para.CategoryProject}},
	}}
	srv := newTestServer(t, extractor, &stubRemote{})

	sess := srv.session("user-1")
	oldSeq := sess.ws.NextSeq()
	newSeq := sess.ws.NextSeq()

	if !sess.ws.Apply(newSeq, para.Batch{Projects: []para.Element{{ID: "el-2", Title: "Winner", Type: para.CategoryProject}}}) {
		t.Fatal("newest batch should apply")
	}
	if sess.ws.Apply(oldSeq, para.Batch{Projects: []para.Element{{ID: "el-3", Title: "Loser", Type: para.CategoryProject}}}) {
		t.Fatal("stale batch must be discarded")
	}

	suggestions := sess.ws.Suggestions()
	if len(suggestions.Projects) != 1 || suggestions.Projects[0].Title != "Winner" {
		t.Fatalf("suggestions = %+v", suggestions.Projects)
	}
}
