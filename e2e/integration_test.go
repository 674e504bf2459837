//go:build e2e

// Package e2e contains end-to-end integration tests using real DynamoDB tables.
// Run with: go test -tags=e2e -v ./e2e/...
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/timetable/store"
	"github.com/jacentio/timetable/timetable"
)

// Table names are unique per test run to avoid conflicts
const tablePrefix = "timetable-e2e-test"

var (
	storeConfig store.Config
	ddbClient   *dynamodb.Client
	testStore   *store.Store
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	testID := uuid.New().String()[:8]
	storeConfig = store.Config{
		EntityTable:       fmt.Sprintf("%s-%s-entities", tablePrefix, testID),
		RelationshipTable: fmt.Sprintf("%s-%s-relationships", tablePrefix, testID),
		UniqueTable:       fmt.Sprintf("%s-%s-unique", tablePrefix, testID),
		NumShards:         4,
		UniqueAttributes:  []string{timetable.NameAttr},
	}

	fmt.Printf("Test ID: %s\n", testID)

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if profile := os.Getenv("TIMETABLE_AWS_PROFILE"); profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}
	ddbClient = dynamodb.NewFromConfig(cfg)

	if err := store.CreateTables(ctx, ddbClient, storeConfig, 2*time.Minute); err != nil {
		fmt.Printf("Failed to create tables: %v\n", err)
		deleteTables(ctx)
		os.Exit(1)
	}

	testStore = store.New(ddbClient, storeConfig)

	code := m.Run()
	deleteTables(ctx)
	os.Exit(code)
}

func deleteTables(ctx context.Context) {
	for _, name := range []string{storeConfig.EntityTable, storeConfig.RelationshipTable, storeConfig.UniqueTable} {
		if _, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
			fmt.Printf("Warning: failed to delete table %s: %v\n", name, err)
		}
	}
}

func named(name string) *timetable.Attributes {
	attrs := timetable.NewAttributes()
	attrs.Set(timetable.NameAttr, name)
	return attrs
}

func newTree(t *testing.T, ctx context.Context) string {
	t.Helper()
	tree := uuid.NewString()
	root := store.Record{Tree: tree, Path: store.RootPath, Kind: timetable.KindTimetable, Attributes: named("e2e")}
	if err := testStore.Create(ctx, root); err != nil {
		t.Fatalf("Create root failed: %v", err)
	}
	return tree
}

func dayRecord(tree, id, name string) store.Record {
	return store.Record{Tree: tree, Path: store.ChildPath(store.RootPath, id), ID: id, Kind: timetable.KindDay, Attributes: named(name)}
}

// --- CRUD Tests ---

func TestCreate_RootEntity(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, ctx)

	result, err := testStore.Get(ctx, tree, store.RootPath)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if result.Version != 1 {
		t.Errorf("expected version 1, got %d", result.Version)
	}
	if result.EntityRef != tree+"#/" {
		t.Errorf("expected entity_ref %q, got %q", tree+"#/", result.EntityRef)
	}
	if result.CreatedAt == "" || result.UpdatedAt == "" {
		t.Error("expected created_at and updated_at to be set")
	}
}

func TestCreate_ParentNotFound(t *testing.T) {
	ctx := context.Background()

	err := testStore.Create(ctx, dayRecord(uuid.NewString(), "DAY000000", "Monday"))
	if !errors.Is(err, store.ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound, got %v", err)
	}
}

func TestCreate_DuplicateIdentifier(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, ctx)

	if err := testStore.Create(ctx, dayRecord(tree, "DAY000000", "Monday")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := testStore.Create(ctx, dayRecord(tree, "DAY000000", "Tuesday"))
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUniqueName_Enforced(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, ctx)

	if err := testStore.Create(ctx, dayRecord(tree, "DAY000000", "Monday")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := testStore.Create(ctx, dayRecord(tree, "DAY000001", "Monday"))
	if !errors.Is(err, store.ErrDuplicateValue) {
		t.Errorf("expected ErrDuplicateValue, got %v", err)
	}
}

func TestUpdate_OptimisticLock(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, ctx)
	if err := testStore.Create(ctx, dayRecord(tree, "DAY000000", "Monday")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := testStore.UpdateAttributes(ctx, dayRecord(tree, "DAY000000", "Mon"), 1); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	err := testStore.UpdateAttributes(ctx, dayRecord(tree, "DAY000000", "Monday"), 1)
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}

	// the rename released "Monday"
	if err := testStore.Create(ctx, dayRecord(tree, "DAY000001", "Monday")); err != nil {
		t.Errorf("Create with old name failed: %v", err)
	}
}

// --- Delete Tests ---

func TestDelete_SetsTTL(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, ctx)
	rec := dayRecord(tree, "DAY000000", "Monday")
	if err := testStore.Create(ctx, rec); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := testStore.Delete(ctx, rec, store.DeleteOptions{}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := testStore.Get(ctx, tree, rec.Path); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	result, err := ddbClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(storeConfig.EntityTable),
		Key:       rec.Key(),
	})
	if err != nil {
		t.Fatalf("Direct get failed: %v", err)
	}
	if _, ok := result.Item["ttl"].(*types.AttributeValueMemberN); !ok {
		t.Error("expected ttl to be set on deleted item")
	}

	// Delete twice - should not error
	if err := testStore.Delete(ctx, rec, store.DeleteOptions{}); err != nil {
		t.Errorf("second delete should be idempotent, got: %v", err)
	}
}

func TestDelete_MissingDoesNotCreateItem(t *testing.T) {
	ctx := context.Background()
	rec := dayRecord(uuid.NewString(), "DAY000000", "")

	if err := testStore.Delete(ctx, rec, store.DeleteOptions{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	result, err := ddbClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(storeConfig.EntityTable),
		Key:       rec.Key(),
	})
	if err != nil {
		t.Fatalf("Direct get failed: %v", err)
	}
	if result.Item != nil {
		t.Errorf("expected no item, got %v", result.Item)
	}
}

func TestDelete_OrphanProtect(t *testing.T) {
	ctx := context.Background()
	tree := newTree(t, ctx)
	rec := dayRecord(tree, "DAY000000", "Monday")
	if err := testStore.Create(ctx, rec); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	root := store.Record{Tree: tree, Path: store.RootPath, Kind: timetable.KindTimetable}
	if err := testStore.Delete(ctx, root, store.DeleteOptions{OrphanProtect: true}); !errors.Is(err, store.ErrHasChildren) {
		t.Errorf("expected ErrHasChildren, got %v", err)
	}

	if err := testStore.Delete(ctx, rec, store.DeleteOptions{}); err != nil {
		t.Fatalf("Delete day failed: %v", err)
	}
	// Simulate the cascade handler marking the relationship record
	if err := testStore.SetRelationshipTTL(ctx, rec.EntityRef(), rec.ParentRef(), time.Now().Unix()); err != nil {
		t.Fatalf("SetRelationshipTTL failed: %v", err)
	}
	if err := testStore.Delete(ctx, root, store.DeleteOptions{OrphanProtect: true}); err != nil {
		t.Errorf("expected delete to succeed once children are gone, got %v", err)
	}
}

// --- Tree Tests ---

func TestSaveAndLoadTree(t *testing.T) {
	ctx := context.Background()

	math, _ := timetable.NewCourse("Math 7", timetable.NewInstructor("Bob"), timetable.NewInstructor("Alice"))
	science, _ := timetable.NewCourse("Science 8", timetable.NewInstructor("Carol"))
	nine, _ := timetable.NewPeriod("9AM", math, science)
	monday, _ := timetable.NewDay("Monday", nine)
	week, err := timetable.NewTimetable("Fall term", monday)
	if err != nil {
		t.Fatal(err)
	}

	tree, err := testStore.SaveTree(ctx, week)
	if err != nil {
		t.Fatalf("SaveTree failed: %v", err)
	}

	loaded, err := testStore.LoadTree(ctx, tree)
	if err != nil {
		t.Fatalf("LoadTree failed: %v", err)
	}
	if got, want := loaded.Metadata().Count(), week.Metadata().Count(); got != want {
		t.Errorf("expected %d entities, got %d", want, got)
	}

	children, err := testStore.QueryAllChildren(ctx, tree+"#/DAY000000/PER000000")
	if err != nil {
		t.Fatalf("QueryAllChildren failed: %v", err)
	}
	if len(children) != 2 {
		t.Errorf("expected 2 courses across shards, got %d", len(children))
	}
}
