package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jacentio/timetable/timetable"
)

// --- Path helpers ---

func TestPaths(t *testing.T) {
	tests := []struct {
		path   string
		parent string
		depth  int
	}{
		{RootPath, "", 0},
		{"/DAY000000", RootPath, 1},
		{"/DAY000000/PER000001", "/DAY000000", 2},
		{"/DAY000000/PER000001/COU000002/INS000003", "/DAY000000/PER000001/COU000002", 4},
	}

	for _, tt := range tests {
		if got := ParentPath(tt.path); got != tt.parent {
			t.Errorf("ParentPath(%q) = %q, want %q", tt.path, got, tt.parent)
		}
		if got := Depth(tt.path); got != tt.depth {
			t.Errorf("Depth(%q) = %d, want %d", tt.path, got, tt.depth)
		}
	}

	if got := ChildPath(RootPath, "DAY000000"); got != "/DAY000000" {
		t.Errorf("ChildPath(root) = %q", got)
	}
	if got := ChildPath("/DAY000000", "PER000001"); got != "/DAY000000/PER000001" {
		t.Errorf("ChildPath(day) = %q", got)
	}
}

func TestRecord_Refs(t *testing.T) {
	root := Record{Tree: "t1", Path: RootPath, Kind: timetable.KindTimetable}
	if root.EntityRef() != "t1#/" {
		t.Errorf("expected root ref 't1#/', got %q", root.EntityRef())
	}
	if root.ParentRef() != "" || root.parentKey() != nil {
		t.Error("expected root to have no parent")
	}

	period := Record{Tree: "t1", Path: "/DAY000000/PER000001", ID: "PER000001", Kind: timetable.KindPeriod}
	if period.ParentRef() != "t1#/DAY000000" {
		t.Errorf("expected parent ref 't1#/DAY000000', got %q", period.ParentRef())
	}
	if v, ok := period.parentKey()["path"].(*types.AttributeValueMemberS); !ok || v.Value != "/DAY000000" {
		t.Errorf("expected parent key path '/DAY000000', got %v", period.parentKey()["path"])
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		ok   bool
	}{
		{"root", Record{Tree: "t1", Path: RootPath, Kind: timetable.KindTimetable}, true},
		{"child", Record{Tree: "t1", Path: "/DAY000000", ID: "DAY000000", Kind: timetable.KindDay}, true},
		{"empty tree", Record{Path: RootPath, Kind: timetable.KindTimetable}, false},
		{"relative path", Record{Tree: "t1", Path: "DAY000000", ID: "DAY000000", Kind: timetable.KindDay}, false},
		{"child without id", Record{Tree: "t1", Path: "/DAY000000", Kind: timetable.KindDay}, false},
		{"id with slash", Record{Tree: "t1", Path: "/a/b", ID: "a/b", Kind: timetable.KindDay}, false},
		{"kind at wrong depth", Record{Tree: "t1", Path: "/DAY000000", ID: "DAY000000", Kind: timetable.KindCourse}, false},
		{"root of wrong kind", Record{Tree: "t1", Path: RootPath, Kind: timetable.KindDay}, false},
		{"unknown kind", Record{Tree: "t1", Path: RootPath}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.validate()
			if tt.ok && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestRecord_MarshalKeepsAttributeOrder(t *testing.T) {
	attrs := timetable.NewAttributes()
	attrs.Set("name", "Math 7")
	attrs.Set("room", "B12")
	attrs.Set("credits", 3)
	attrs.Set("elective", false)

	rec := Record{Tree: "t1", Path: "/DAY000000/PER000000/COU000000", ID: "COU000000", Kind: timetable.KindCourse, Position: 2, Attributes: attrs}
	item, err := rec.marshal()
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := item["kind"].(*types.AttributeValueMemberS); !ok || v.Value != "course" {
		t.Errorf("expected kind 'course', got %v", item["kind"])
	}

	back, err := unmarshalRecord(item)
	if err != nil {
		t.Fatal(err)
	}
	if back.ID != "COU000000" || back.Position != 2 || back.Kind != timetable.KindCourse {
		t.Errorf("unexpected record %+v", back)
	}
	if got := strings.Join(back.Attributes.Names(), ","); got != "name,room,credits,elective" {
		t.Errorf("expected original attribute order, got %s", got)
	}
	// numbers come back as float64
	if v, _ := back.Attributes.Get("credits"); v != float64(3) {
		t.Errorf("expected credits 3, got %v (%T)", v, v)
	}
}

func TestUnmarshalRecord_UnknownKind(t *testing.T) {
	_, err := unmarshalRecord(map[string]types.AttributeValue{
		"tree": &types.AttributeValueMemberS{Value: "t1"},
		"path": &types.AttributeValueMemberS{Value: "/ROO000000"},
		"kind": &types.AttributeValueMemberS{Value: "room"},
	})
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}

// --- unmarshalItem / unmarshalChildRef ---

func TestUnmarshalItem_Full(t *testing.T) {
	s := &Store{}
	raw := map[string]types.AttributeValue{
		"tree":       &types.AttributeValueMemberS{Value: "t1"},
		"path":       &types.AttributeValueMemberS{Value: "/DAY000000"},
		"id":         &types.AttributeValueMemberS{Value: "DAY000000"},
		"kind":       &types.AttributeValueMemberS{Value: "day"},
		"version":    &types.AttributeValueMemberN{Value: "5"},
		"created_at": &types.AttributeValueMemberS{Value: "2024-01-01T00:00:00Z"},
		"updated_at": &types.AttributeValueMemberS{Value: "2024-01-02T00:00:00Z"},
		"entity_ref": &types.AttributeValueMemberS{Value: "t1#/DAY000000"},
		"parent_ref": &types.AttributeValueMemberS{Value: "t1#/"},
	}

	item, err := s.unmarshalItem(raw)
	if err != nil {
		t.Fatal(err)
	}
	if item.Version != 5 {
		t.Errorf("expected Version 5, got %d", item.Version)
	}
	if item.CreatedAt != "2024-01-01T00:00:00Z" || item.UpdatedAt != "2024-01-02T00:00:00Z" {
		t.Errorf("unexpected timestamps %q %q", item.CreatedAt, item.UpdatedAt)
	}
	if item.EntityRef != "t1#/DAY000000" || item.ParentRef != "t1#/" {
		t.Errorf("unexpected refs %q %q", item.EntityRef, item.ParentRef)
	}
	if item.Kind != timetable.KindDay || item.Attributes.Len() != 0 {
		t.Errorf("unexpected record %+v", item.Record)
	}
	if item.Raw == nil {
		t.Error("expected Raw to be set")
	}
}

func TestUnmarshalItem_BadVersionIsZero(t *testing.T) {
	s := &Store{}
	for _, v := range []types.AttributeValue{
		&types.AttributeValueMemberS{Value: "5"},
		&types.AttributeValueMemberN{Value: "five"},
	} {
		item, err := s.unmarshalItem(map[string]types.AttributeValue{"version": v})
		if err != nil {
			t.Fatal(err)
		}
		if item.Version != 0 {
			t.Errorf("expected Version 0 for %v, got %d", v, item.Version)
		}
	}
}

func TestUnmarshalChildRef(t *testing.T) {
	s := &Store{}
	ref := s.unmarshalChildRef(map[string]types.AttributeValue{
		"child_ref": &types.AttributeValueMemberS{Value: "t1#/DAY000000"},
		"child_key": &types.AttributeValueMemberM{Value: keyOf("t1", "/DAY000000")},
	}, "t1#/#00")

	if ref.Ref != "t1#/DAY000000" || ref.ShardPK != "t1#/#00" {
		t.Errorf("unexpected ref %+v", ref)
	}
	if v, ok := ref.Key["path"].(*types.AttributeValueMemberS); !ok || v.Value != "/DAY000000" {
		t.Errorf("expected key path '/DAY000000', got %v", ref.Key["path"])
	}

	wrong := s.unmarshalChildRef(map[string]types.AttributeValue{
		"child_key": &types.AttributeValueMemberS{Value: "not-a-map"},
	}, "t1#/#00")
	if wrong.Key != nil {
		t.Error("expected nil Key for wrong type")
	}
}

// --- transaction error mapping ---

func cancelled(codes ...string) error {
	reasons := make([]types.CancellationReason, len(codes))
	for i, c := range codes {
		if c != "" {
			reasons[i].Code = aws.String(c)
		}
	}
	return &types.TransactionCanceledException{CancellationReasons: reasons}
}

func TestMapCreateTransactionError(t *testing.T) {
	other := errors.New("some other error")
	tests := []struct {
		name        string
		err         error
		parentCheck int
		entityPut   int
		want        error
	}{
		{"nil", nil, 0, 1, nil},
		{"not a transaction error", other, 0, 1, other},
		{"parent check", cancelled("ConditionalCheckFailed", "None"), 0, 1, ErrParentNotFound},
		{"entity put", cancelled("None", "ConditionalCheckFailed"), 0, 1, ErrAlreadyExists},
		{"unique constraint", cancelled("None", "ConditionalCheckFailed", "None"), 0, 2, ErrDuplicateValue},
		{"root entity put", cancelled("ConditionalCheckFailed"), -1, 0, ErrAlreadyExists},
	}

	s := &Store{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.mapCreateTransactionError(tt.err, tt.parentCheck, tt.entityPut)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	// Conflicts and nil codes pass through unchanged
	for _, err := range []error{cancelled("TransactionConflict"), cancelled("")} {
		if got := s.mapCreateTransactionError(err, 0, 1); got != err {
			t.Errorf("expected original error, got %v", got)
		}
	}
}

func TestMapUpdateTransactionError(t *testing.T) {
	s := &Store{}
	if err := s.mapUpdateTransactionError(nil, 0); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := s.mapUpdateTransactionError(cancelled("ConditionalCheckFailed", "None", "None"), 2); err != ErrDuplicateValue {
		t.Errorf("expected ErrDuplicateValue, got %v", err)
	}
	if err := s.mapUpdateTransactionError(cancelled("", "None", "ConditionalCheckFailed"), 2); err != ErrConcurrentModification {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
	conflict := cancelled("TransactionConflict")
	if err := s.mapUpdateTransactionError(conflict, 0); err != conflict {
		t.Errorf("expected original error, got %v", err)
	}
}

// --- Config ---

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		in     Config
		shards int
	}{
		{"defaults", Config{}, 1},
		{"negative shards", Config{NumShards: -5}, 1},
		{"over max", Config{NumShards: 500}, maxShards},
		{"at max", Config{NumShards: maxShards}, maxShards},
		{"custom", Config{NumShards: 16}, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.in
			cfg.validate()
			if cfg.NumShards != tt.shards {
				t.Errorf("expected NumShards %d, got %d", tt.shards, cfg.NumShards)
			}
			if cfg.EntityTable != defaultEntityTable || cfg.RelationshipTable != defaultRelationshipTable || cfg.UniqueTable != defaultUniqueTable {
				t.Errorf("expected default table names, got %+v", cfg)
			}
		})
	}

	cfg := Config{EntityTable: "e", RelationshipTable: "r", UniqueTable: "u"}
	cfg.validate()
	if cfg.EntityTable != "e" || cfg.RelationshipTable != "r" || cfg.UniqueTable != "u" {
		t.Errorf("expected custom table names to be kept, got %+v", cfg)
	}
}

func TestStore_RelationshipPK(t *testing.T) {
	single := New(nil, DefaultConfig())
	if pk := single.relationshipPK("t1#/", "t1#/DAY000000"); pk != "t1#/#00" {
		t.Errorf("expected single shard key 't1#/#00', got %q", pk)
	}

	cfg := DefaultConfig()
	cfg.NumShards = 16
	sharded := New(nil, cfg)
	pk := sharded.relationshipPK("t1#/", "t1#/DAY000003")
	if !strings.HasPrefix(pk, "t1#/#") || len(pk) != len("t1#/#00") {
		t.Errorf("unexpected sharded key %q", pk)
	}
}

// --- TTL ---

func TestIsDeletedAt(t *testing.T) {
	const now = 1_700_000_000
	tests := []struct {
		name string
		ttl  types.AttributeValue
		want bool
	}{
		{"no ttl", nil, false},
		{"past", &types.AttributeValueMemberN{Value: "1000000000"}, true},
		{"now", &types.AttributeValueMemberN{Value: "1700000000"}, true},
		{"future", &types.AttributeValueMemberN{Value: "1700003600"}, false},
		{"wrong type", &types.AttributeValueMemberS{Value: "1000"}, false},
		{"unparseable", &types.AttributeValueMemberN{Value: "soon"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := map[string]types.AttributeValue{}
			if tt.ttl != nil {
				item["ttl"] = tt.ttl
			}
			if got := isDeletedAt(item, now); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if isDeletedAt(nil, now) {
		t.Error("expected false for nil item")
	}
}

// --- Metrics ---

func TestMetrics_Conflict(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.conflict(ErrDuplicateValue)
	m.conflict(ErrDuplicateValue)
	m.conflict(ErrParentNotFound)
	m.conflict(errors.New("network"))
	m.conflict(nil)

	if got := testutil.ToFloat64(m.Conflicts.WithLabelValues("duplicate_value")); got != 2 {
		t.Errorf("expected 2 duplicate_value conflicts, got %v", got)
	}
	if got := testutil.ToFloat64(m.Conflicts.WithLabelValues("parent_not_found")); got != 1 {
		t.Errorf("expected 1 parent_not_found conflict, got %v", got)
	}
	if got := testutil.CollectAndCount(m.Conflicts); got != 2 {
		t.Errorf("expected 2 conflict series, got %d", got)
	}

	// nil metrics record nothing
	var none *Metrics
	none.created()
	none.deleted()
	none.conflict(ErrHasChildren)
}
