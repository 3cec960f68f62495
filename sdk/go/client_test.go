package recruitlinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListCandidatesEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/candidates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("search") != "go dev" || r.URL.Query().Get("page_size") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-Actor-Id") != "alice" {
			t.Errorf("missing actor header")
		}
		_ = json.NewEncoder(w).Encode(CandidatePage{Items: []Candidate{{ID: "c1"}}, Total: 1, Page: 1, Pages: 1, Size: 5})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.ActorID = "alice"
	page, err := c.ListCandidates(context.Background(), CandidateQuery{Search: "go dev", PageSize: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != "c1" {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestAPIErrorCarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"confirmation_required","message":"operation requires confirm=true"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	_, err := c.Decide(context.Background(), "c1", "reject", Feedback{Subject: "s", Content: "c"}, false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "confirmation_required" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}
