package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeleteEventSendsActionAndID(t *testing.T) {
	var gotAction, gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.URL.Query().Get("action_type")
		gotID = r.URL.Query().Get("event_id")
		w.Write([]byte(`{"code": 200}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithEndpoint(srv.URL))
	if err := c.DeleteEvent(context.Background(), "evt-42"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if gotAction != ActionDelete || gotID != "evt-42" {
		t.Errorf("got action=%q id=%q", gotAction, gotID)
	}
}

func TestCallRejectsErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code": 500, "message": "internal"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(WithEndpoint(srv.URL))
	if err := c.DeleteEvent(context.Background(), "evt-1"); err == nil {
		t.Fatal("expected error for code 500 envelope")
	}
}

func TestUnconfiguredClientErrors(t *testing.T) {
	c := NewClient()
	if c.Configured() {
		t.Fatal("empty endpoint must not be configured")
	}
	if _, _, err := c.Consult(context.Background(), "2026-03-10"); err == nil {
		t.Fatal("expected error from unconfigured client")
	}
}
