package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/landscapehq/landscape/internal/model"
)

// newTestClient starts an httptest server with the given handler and returns
// a client pointed at it.
func newTestClient(t *testing.T, token string, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewHTTPClient(ts.URL, token)
}

func TestCreateCard(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/cards" {
			t.Errorf("got %s %s, want POST /v1/cards", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req CreateCardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Name != "Billing" || req.Type != "application" {
			t.Errorf("request = %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.Card{ID: "fs-1", Type: "application", Name: "Billing", Status: model.StatusActive})
	})

	card, err := c.CreateCard(context.Background(), &CreateCardRequest{Type: "application", Name: "Billing"})
	if err != nil {
		t.Fatalf("CreateCard error: %v", err)
	}
	if card.ID != "fs-1" {
		t.Errorf("card.ID = %q, want fs-1", card.ID)
	}
}

func TestListCards_QueryParams(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "active" || q.Get("tags") != "finance,core" || q.Get("limit") != "10" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(ListCardsResponse{Cards: []*model.Card{{ID: "fs-1"}}, Total: 1})
	})

	resp, err := c.ListCards(context.Background(), &ListCardsRequest{
		Status: []string{"active"},
		Tags:   []string{"finance", "core"},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("ListCards error: %v", err)
	}
	if resp.Total != 1 || len(resp.Cards) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestUpdateCard_PathEscaping(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/v1/cards/fs-1" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(model.Card{ID: "fs-1"})
	})

	name := "Renamed"
	if _, err := c.UpdateCard(context.Background(), "fs-1", &UpdateCardRequest{Name: &name}); err != nil {
		t.Fatalf("UpdateCard error: %v", err)
	}
}

func TestDeleteCard_NoContent(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.DeleteCard(context.Background(), "fs-1"); err != nil {
		t.Fatalf("DeleteCard error: %v", err)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	c := newTestClient(t, "sekrit", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health error: %v", err)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "card not found"})
	})

	_, err := c.GetCard(context.Background(), "fs-nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "card not found" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestAssignTag(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/cards/fs-1/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["tag"] != "finance" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(AssignTagResponse{CardID: "fs-1", Tag: "finance", Assigned: true})
	})

	resp, err := c.AssignTag(context.Background(), "fs-1", "finance")
	if err != nil {
		t.Fatalf("AssignTag error: %v", err)
	}
	if !resp.Assigned {
		t.Error("Assigned = false, want true")
	}
}

func TestListEvents(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "card.created" {
			t.Errorf("query = %v", r.URL.Query())
		}
		json.NewEncoder(w).Encode(ListEventsResponse{
			Events: []*model.Event{{ID: "evt-1", Type: model.EventCardCreated}},
			Total:  1,
		})
	})

	resp, err := c.ListEvents(context.Background(), &ListEventsRequest{Type: "card.created"})
	if err != nil {
		t.Fatalf("ListEvents error: %v", err)
	}
	if resp.Total != 1 || resp.Events[0].ID != "evt-1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRecomputeAll(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/recompute" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(RecomputeAllResponse{Recomputed: 12, Changed: 3})
	})

	resp, err := c.RecomputeAll(context.Background())
	if err != nil {
		t.Fatalf("RecomputeAll error: %v", err)
	}
	if resp.Recomputed != 12 || resp.Changed != 3 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestStreamEvents(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("types"); got != "card.created,card.deleted" {
			t.Errorf("types = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 1; i <= 2; i++ {
			data, _ := json.Marshal(model.Event{ID: fmt.Sprintf("evt-%d", i), Type: model.EventCardCreated})
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		fmt.Fprint(w, ":keepalive\n\n")
		flusher.Flush()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []string
	err := c.StreamEvents(ctx, []string{"card.created", "card.deleted"}, func(evt *model.Event) {
		got = append(got, evt.ID)
	})
	// The handler returns, so the stream ends server-side.
	if err == nil {
		t.Fatal("expected stream-closed error, got nil")
	}
	if len(got) != 2 || got[0] != "evt-1" || got[1] != "evt-2" {
		t.Errorf("received ids = %v, want [evt-1 evt-2]", got)
	}
}

func TestStreamEvents_ErrorStatus(t *testing.T) {
	c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown event type bogus"})
	})

	err := c.StreamEvents(context.Background(), []string{"bogus"}, func(*model.Event) {
		t.Error("callback invoked on error response")
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("error = %v, want 400 APIError", err)
	}
}
