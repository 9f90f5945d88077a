package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/landscapehq/landscape/internal/model"
)

type fakeSource struct {
	cards     map[string]*model.Card
	tags      map[string][]string
	comments  map[string][]*model.Comment
	relations []*model.Relation
	listErr   error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		cards:    make(map[string]*model.Card),
		tags:     make(map[string][]string),
		comments: make(map[string][]*model.Comment),
	}
}

func (f *fakeSource) ListCards(context.Context, model.CardFilter) ([]*model.Card, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var cards []*model.Card
	for _, c := range f.cards {
		cp := *c
		cards = append(cards, &cp)
	}
	return cards, len(cards), nil
}

func (f *fakeSource) GetTags(_ context.Context, cardID string) ([]string, error) {
	return f.tags[cardID], nil
}

func (f *fakeSource) GetComments(_ context.Context, cardID string) ([]*model.Comment, error) {
	return f.comments[cardID], nil
}

func (f *fakeSource) GetRelations(_ context.Context, cardID string) ([]*model.Relation, error) {
	var rels []*model.Relation
	for _, r := range f.relations {
		if r.SourceID == cardID || r.TargetID == cardID {
			rels = append(rels, r)
		}
	}
	return rels, nil
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func TestWriteJSONL_Empty(t *testing.T) {
	src := newFakeSource()
	var buf bytes.Buffer
	if err := WriteJSONL(context.Background(), src, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.CardCount != 0 || h.RelationCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestWriteJSONL_FullCatalog(t *testing.T) {
	src := newFakeSource()
	now := time.Now().UTC()

	// Out of ID order to verify sorting.
	src.cards["fs-zzz"] = &model.Card{ID: "fs-zzz", Type: model.TypeApplication, Name: "Second", Status: model.StatusActive, CreatedAt: now, UpdatedAt: now}
	src.cards["fs-aaa"] = &model.Card{ID: "fs-aaa", Type: model.TypeITComponent, Name: "First", Status: model.StatusActive, CreatedAt: now, UpdatedAt: now}

	src.tags["fs-aaa"] = []string{"finance", "core"}
	src.comments["fs-aaa"] = []*model.Comment{{ID: "cmt-1", CardID: "fs-aaa", Author: "alice", Body: "Sunset planned", CreatedAt: now}}

	// One relation between the two cards: visible from both sides, exported once.
	src.relations = []*model.Relation{{ID: "rel-1", Type: model.RelationDependsOn, SourceID: "fs-zzz", TargetID: "fs-aaa", CreatedAt: now}}

	var buf bytes.Buffer
	if err := WriteJSONL(context.Background(), src, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// 1 header + 2 cards + 1 relation
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.CardCount != 2 || h.RelationCount != 1 {
		t.Fatalf("unexpected header counts: %+v", h)
	}

	// Cards come sorted by ID with embedded tags and comments.
	var first struct {
		Type string     `json:"type"`
		Data model.Card `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &first); err != nil {
		t.Fatalf("unmarshal first record: %v", err)
	}
	if first.Type != "card" || first.Data.ID != "fs-aaa" {
		t.Fatalf("first record = %+v, want card fs-aaa", first)
	}
	if len(first.Data.Tags) != 2 || len(first.Data.Comments) != 1 {
		t.Errorf("card fs-aaa tags=%v comments=%d, want embedded relational data", first.Data.Tags, len(first.Data.Comments))
	}

	var last struct {
		Type string         `json:"type"`
		Data model.Relation `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[3]), &last); err != nil {
		t.Fatalf("unmarshal last record: %v", err)
	}
	if last.Type != "relation" || last.Data.ID != "rel-1" {
		t.Fatalf("last record = %+v, want relation rel-1", last)
	}
}

func TestWriteJSONL_SourceError(t *testing.T) {
	src := newFakeSource()
	src.listErr = errors.New("connection reset")

	var buf bytes.Buffer
	if err := WriteJSONL(context.Background(), src, &buf); err == nil {
		t.Fatal("expected error, got nil")
	}
	if buf.Len() != 0 {
		t.Errorf("partial output written on error: %q", buf.String())
	}
}

func TestDirDestination(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	dest := NewDirDestination(dir, "catalog.jsonl")

	if err := dest.Write(context.Background(), []byte("one\n")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := dest.Write(context.Background(), []byte("two\n")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "catalog.jsonl"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(data) != "two\n" {
		t.Errorf("snapshot = %q, want latest write", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("leftover temp files in %s: %d entries", dir, len(entries))
	}
}

// captureDestination records every payload it receives.
type captureDestination struct {
	mu     sync.Mutex
	writes [][]byte
}

func (d *captureDestination) Write(_ context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	d.writes = append(d.writes, cp)
	return nil
}

func (d *captureDestination) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func TestScheduler_RunsImmediately(t *testing.T) {
	src := newFakeSource()
	dest := &captureDestination{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sched := NewScheduler(src, []Destination{dest}, time.Hour, logger)
	sched.Start()
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for dest.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no export within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	dest.mu.Lock()
	payload := string(dest.writes[0])
	dest.mu.Unlock()
	if !strings.Contains(payload, `"type":"header"`) {
		t.Errorf("payload missing header record: %q", payload)
	}
}

func TestScheduler_StopWaits(t *testing.T) {
	src := newFakeSource()
	dest := &captureDestination{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sched := NewScheduler(src, []Destination{dest}, 10*time.Millisecond, logger)
	sched.Start()
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	n := dest.count()
	if n < 2 {
		t.Fatalf("expected multiple exports, got %d", n)
	}
	time.Sleep(30 * time.Millisecond)
	if dest.count() != n {
		t.Error("exports continued after Stop")
	}
}
