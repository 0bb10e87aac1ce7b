package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("secret-token", Options{APIBase: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient("  ", Options{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestSearchWireShape(t *testing.T) {
	var gotBody map[string]interface{}
	var gotVersion, gotAuth string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		gotVersion = r.Header.Get("Notion-Version")
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"results":[
			{"object":"database","id":"db-1","title":[{"plain_text":"Projects"}]},
			{"object":"database","id":"db-2","title":[{"plain_text":"Areas"}]}
		]}`))
	})

	results, err := client.Search(context.Background(), "", "database")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].PlainTitle() != "Projects" || results[0].ID != "db-1" {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if gotVersion != DefaultVersion {
		t.Fatalf("Notion-Version = %q", gotVersion)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	filter, _ := gotBody["filter"].(map[string]interface{})
	if filter["value"] != "database" {
		t.Fatalf("filter = %v", gotBody["filter"])
	}
	if _, hasQuery := gotBody["query"]; hasQuery {
		t.Fatal("empty query must be omitted from the request body")
	}
}

func TestRetrieveDatabaseSchema(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/databases/db-1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{
			"id": "db-1",
			"title": [{"plain_text":"Projects"}],
			"properties": {
				"Name": {"id":"aaa","type":"title"},
				"Priority": {"id":"bbb","type":"select"},
				"Due Date": {"id":"ccc","type":"date"},
				"Notes": {"id":"ddd","type":"rich_text"}
			}
		}`))
	})

	db, err := client.RetrieveDatabase(context.Background(), "db-1")
	if err != nil {
		t.Fatalf("RetrieveDatabase: %v", err)
	}
	if db.PlainTitle() != "Projects" {
		t.Fatalf("title = %q", db.PlainTitle())
	}
	if db.Properties["Priority"].Type != "select" {
		t.Fatalf("Priority type = %q", db.Properties["Priority"].Type)
	}
	if db.Properties["Due Date"].Type != "date" {
		t.Fatalf("Due Date type = %q", db.Properties["Due Date"].Type)
	}
}

func TestCreatePageAndPlainTitleRoundTrip(t *testing.T) {
	const title = "Finish Q3 report"

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Parent     map[string]string                   `json:"parent"`
			Properties map[string]map[string]interface{}   `json:"properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Parent["database_id"] != "db-1" {
			t.Errorf("parent = %v", body.Parent)
		}
		// Echo the submitted title back in retrieval shape.
		w.Write([]byte(`{"id":"page-1","properties":{"Name":{"type":"title","title":[{"plain_text":"` + title + `"}]}}}`))
	})

	page, err := client.CreatePage(context.Background(), "db-1", map[string]interface{}{
		"Name": TitleValue(title),
	})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if page.PlainTitle() != title {
		t.Fatalf("round-trip title = %q, want %q", page.PlainTitle(), title)
	}
}

func TestCreateDatabase(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		parent, _ := body["parent"].(map[string]interface{})
		if parent["page_id"] != "parent-1" || parent["type"] != "page_id" {
			t.Errorf("parent = %v", parent)
		}
		w.Write([]byte(`{"id":"db-new","title":[{"plain_text":"Projects"}],"properties":{"Name":{"type":"title"}}}`))
	})

	db, err := client.CreateDatabase(context.Background(), "parent-1", "Projects", map[string]interface{}{
		"Name":   TitleSpec(),
		"Status": SelectSpec(SelectOption{Name: "Not Started", Color: "gray"}),
	})
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	if db.ID != "db-new" {
		t.Fatalf("id = %q", db.ID)
	}
}

func TestQueryDatabase(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/databases/db-1/query" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"results":[{"id":"page-1","properties":{
			"Name":{"type":"title","title":[{"plain_text":"Ship v2"}]},
			"UserId":{"type":"rich_text","rich_text":[{"plain_text":"user-42"}]}
		}}],"has_more":false}`))
	})

	result, err := client.QueryDatabase(context.Background(), "db-1", 1)
	if err != nil {
		t.Fatalf("QueryDatabase: %v", err)
	}
	if len(result.Results) != 1 {
		t.Fatalf("results = %d", len(result.Results))
	}
	if got := result.Results[0].Properties["UserId"].PlainText(); got != "user-42" {
		t.Fatalf("UserId = %q", got)
	}
}

func TestErrorBodyExtraction(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"body failed validation"}`))
	})

	_, err := client.RetrieveDatabase(context.Background(), "db-1")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "validation_error: body failed validation") {
		t.Fatalf("error %q should carry code and message", err)
	}
	if !strings.Contains(err.Error(), "status=400") {
		t.Fatalf("error %q should carry status", err)
	}
}
