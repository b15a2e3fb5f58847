package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPush(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]int{"delivered": 1})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Push(context.Background(), map[string]string{
		"conversation_id": "c1",
		"message":         "Added task \"Buy milk\"",
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotBody["conversation_id"] != "c1" {
		t.Errorf("reply should arrive intact, got %v", gotBody)
	}
}

func TestPush_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.Push(context.Background(), map[string]string{"conversation_id": "c1"})

	if err == nil {
		t.Fatal("expected error for a 500 response")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("error should carry the status, got %v", err)
	}
}
