package stream_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/timetable/internal/dynamotest"
	"github.com/jacentio/timetable/store"
	"github.com/jacentio/timetable/stream"
	"github.com/jacentio/timetable/timetable"
)

var now = time.Unix(1_700_000_000, 0)

func newStore(t *testing.T) (*store.Store, *dynamotest.Client, store.Config) {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.UniqueAttributes = []string{timetable.NameAttr}

	client := dynamotest.New()
	client.CreateTable(cfg.EntityTable, "tree", "path")
	client.CreateTable(cfg.RelationshipTable, "pk", "child_ref")
	client.CreateTable(cfg.UniqueTable, "pk", "sk")

	s := store.New(client, cfg, store.WithClock(func() time.Time { return now }))
	return s, client, cfg
}

// monday returns a timetable with one day, one period, two courses and
// three instructors.
func monday(t *testing.T) *timetable.Timetable {
	t.Helper()
	math, err := timetable.NewCourse("Math 7", timetable.NewInstructor("Bob"), timetable.NewInstructor("Alice"))
	if err != nil {
		t.Fatal(err)
	}
	science, err := timetable.NewCourse("Science 8", timetable.NewInstructor("Carol"))
	if err != nil {
		t.Fatal(err)
	}
	period, err := timetable.NewPeriod("9AM", math, science)
	if err != nil {
		t.Fatal(err)
	}
	day, err := timetable.NewDay("Monday", period)
	if err != nil {
		t.Fatal(err)
	}
	tt, err := timetable.NewTimetable("Fall term", day)
	if err != nil {
		t.Fatal(err)
	}
	return tt
}

// drive feeds recorded entity table changes to h until the cascade settles.
func drive(t *testing.T, h *stream.Handler, client *dynamotest.Client, table string) int {
	t.Helper()
	rounds := 0
	for {
		event := dynamotest.StreamEvent(table, client.Drain())
		if len(event.Records) == 0 {
			return rounds
		}
		if err := h.HandleCascadeDelete(context.Background(), event); err != nil {
			t.Fatalf("cascade round %d: %v", rounds, err)
		}
		rounds++
		if rounds > 10 {
			t.Fatal("cascade did not settle")
		}
	}
}

func hasTTL(item dynamotest.Item) bool {
	_, ok := item["ttl"].(*types.AttributeValueMemberN)
	return ok
}

func TestHandler_CascadesThroughTree(t *testing.T) {
	ctx := context.Background()
	s, client, cfg := newStore(t)
	h := stream.NewHandler(s, nil)

	tree, err := s.SaveTree(ctx, monday(t))
	if err != nil {
		t.Fatal(err)
	}
	client.Drain()

	if err := s.DeleteTree(ctx, tree, store.DeleteOptions{Cascade: true}); err != nil {
		t.Fatal(err)
	}

	// root, day, period, courses, instructors
	if rounds := drive(t, h, client, cfg.EntityTable); rounds != 5 {
		t.Errorf("expected 5 cascade rounds, got %d", rounds)
	}

	entities := client.Items(cfg.EntityTable)
	if len(entities) != 8 {
		t.Fatalf("expected 8 entity items, got %d", len(entities))
	}
	for _, item := range entities {
		if !hasTTL(item) {
			t.Errorf("entity %v was not marked for deletion", item["path"])
		}
	}
	for _, item := range client.Items(cfg.RelationshipTable) {
		if !hasTTL(item) {
			t.Errorf("relationship %v was not marked for deletion", item["child_ref"])
		}
	}
	for _, item := range client.Items(cfg.UniqueTable) {
		if !hasTTL(item) {
			t.Errorf("unique constraint %v was not released", item["value"])
		}
	}

	if _, err := s.LoadTree(ctx, tree); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after cascade, got %v", err)
	}
}

func TestHandler_CascadeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, client, cfg := newStore(t)
	h := stream.NewHandler(s, nil)

	tree, err := s.SaveTree(ctx, monday(t))
	if err != nil {
		t.Fatal(err)
	}
	client.Drain()
	if err := s.DeleteTree(ctx, tree, store.DeleteOptions{Cascade: true}); err != nil {
		t.Fatal(err)
	}

	// Redelivery of the first batch must not fail or write again
	first := dynamotest.StreamEvent(cfg.EntityTable, client.Drain())
	if err := h.HandleCascadeDelete(ctx, first); err != nil {
		t.Fatal(err)
	}
	client.Drain()
	if err := h.HandleCascadeDelete(ctx, first); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if changes := client.Drain(); len(changes) != 0 {
		t.Errorf("expected no writes on redelivery, got %d", len(changes))
	}
}

func TestHandler_SubtreeDeleteLeavesSiblings(t *testing.T) {
	ctx := context.Background()
	s, client, cfg := newStore(t)
	h := stream.NewHandler(s, nil)

	tree, err := s.SaveTree(ctx, monday(t))
	if err != nil {
		t.Fatal(err)
	}
	client.Drain()

	math := store.Record{Tree: tree, Path: "/DAY000000/PER000000/COU000000", ID: "COU000000", Kind: timetable.KindCourse}
	if err := s.Delete(ctx, math, store.DeleteOptions{Cascade: true}); err != nil {
		t.Fatal(err)
	}
	drive(t, h, client, cfg.EntityTable)

	loaded, err := s.LoadTree(ctx, tree)
	if err != nil {
		t.Fatal(err)
	}
	courses := loaded.Days()[0].Periods()[0].Courses()
	if len(courses) != 1 || courses[0].ID() != "COU000001" {
		t.Fatalf("expected only COU000001 to remain, got %d courses", len(courses))
	}
	if got := courses[0].Instructors()[0].Name(); got != "Carol" {
		t.Errorf("expected Carol to remain, got %q", got)
	}
}

func TestHandler_StoreErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	s, client, cfg := newStore(t)
	h := stream.NewHandler(s, nil)

	tree, err := s.SaveTree(ctx, monday(t))
	if err != nil {
		t.Fatal(err)
	}
	client.Drain()
	if err := s.DeleteTree(ctx, tree, store.DeleteOptions{Cascade: true}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("throttled")
	client.FailWith(boom)
	event := dynamotest.StreamEvent(cfg.EntityTable, client.Drain())
	if err := h.HandleCascadeDelete(ctx, event); !errors.Is(err, boom) {
		t.Errorf("expected store error to be returned for retry, got %v", err)
	}
}

func TestConvertStreamKey(t *testing.T) {
	pk := stream.ConvertStreamKey(map[string]events.DynamoDBAttributeValue{
		"tree":    events.NewStringAttribute("t1"),
		"path":    events.NewStringAttribute("/DAY000000"),
		"version": events.NewNumberAttribute("42"),
		"data":    events.NewBinaryAttribute([]byte{1, 2}),
		"flag":    events.NewBooleanAttribute(true),
	})

	if v, ok := pk["tree"].(*types.AttributeValueMemberS); !ok || v.Value != "t1" {
		t.Error("expected tree to be 't1'")
	}
	if v, ok := pk["path"].(*types.AttributeValueMemberS); !ok || v.Value != "/DAY000000" {
		t.Error("expected path to be '/DAY000000'")
	}
	if v, ok := pk["version"].(*types.AttributeValueMemberN); !ok || v.Value != "42" {
		t.Error("expected version to be '42'")
	}
	if v, ok := pk["data"].(*types.AttributeValueMemberB); !ok || len(v.Value) != 2 {
		t.Error("expected binary data")
	}
	if _, ok := pk["flag"]; ok {
		t.Error("expected non-key types to be dropped")
	}

	if empty := stream.ConvertStreamKey(nil); empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil PK, got %v", empty)
	}
}

func TestHandler_EmptyEvent(t *testing.T) {
	h := stream.NewHandler(nil, nil)
	if err := h.HandleCascadeDelete(context.Background(), events.DynamoDBEvent{}); err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
}
