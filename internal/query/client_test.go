package query

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClientStreamQuery(t *testing.T) {
	var gotPath, gotKey string
	var gotBody streamRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		flusher := w.(http.Flusher)
		_, _ = io.WriteString(w, "primera ")
		flusher.Flush()
		_, _ = io.WriteString(w, "parte")
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "nxk_test", nil)
	body, err := client.StreamQuery(context.Background(), "¿ingresos?", "team-a", "s1")
	if err != nil {
		t.Fatalf("stream query: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(data) != "primera parte" {
		t.Fatalf("stream = %q", data)
	}
	if gotPath != "/query/stream" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "nxk_test" {
		t.Fatalf("api key header = %q", gotKey)
	}
	if gotBody.Question != "¿ingresos?" || gotBody.TeamID != "team-a" || gotBody.SessionID != "s1" {
		t.Fatalf("request body = %+v", gotBody)
	}
}

func TestHTTPClientStreamQueryRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", nil)
	if _, err := client.StreamQuery(context.Background(), "q", "team-a", "s1"); err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestHTTPClientClearSession(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "", nil)
	if err := client.ClearSession(context.Background(), "s9"); err != nil {
		t.Fatalf("clear session: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/sessions/s9" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
}

func TestHTTPClientHeartbeat(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "nxk_test", nil)
	if err := client.Heartbeat(context.Background(), "team-a"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if gotBody["team_id"] != "team-a" {
		t.Fatalf("body = %v", gotBody)
	}
}
