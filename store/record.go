package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/timetable/timetable"
)

// RootPath is the path of a tree's timetable item.
const RootPath = "/"

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Record is the stored form of one timetable entity.
type Record struct {
	// Tree is the id shared by every item of one saved timetable.
	Tree string

	// Path is RootPath for the timetable and the slash-joined identifiers
	// below it otherwise (e.g. "/DAY000000/PER000001").
	Path string

	// ID is the identifier issued by the owning container ("" for the root).
	ID string

	Kind timetable.Kind

	// Position is the registration order within the parent.
	Position int

	Attributes *timetable.Attributes
}

// ChildPath returns the path of the child id under parent.
func ChildPath(parent, id string) string {
	if parent == RootPath {
		return RootPath + id
	}
	return parent + "/" + id
}

// ParentPath returns the path of the parent of path, or "" for the root.
func ParentPath(path string) string {
	if path == RootPath {
		return ""
	}
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return RootPath
	}
	return path[:i]
}

// Depth returns 0 for the root, 1 for days, and so on.
func Depth(path string) int {
	if path == RootPath {
		return 0
	}
	return strings.Count(path, "/")
}

// EntityRef returns the type-qualified reference "tree#path".
func (r Record) EntityRef() string { return r.Tree + "#" + r.Path }

// ParentRef returns the parent's reference, or "" for the root.
func (r Record) ParentRef() string {
	parent := ParentPath(r.Path)
	if parent == "" {
		return ""
	}
	return r.Tree + "#" + parent
}

// Key returns the entity table primary key.
func (r Record) Key() PK { return keyOf(r.Tree, r.Path) }

// parentKey returns the primary key of the parent item, or nil for the root.
func (r Record) parentKey() PK {
	parent := ParentPath(r.Path)
	if parent == "" {
		return nil
	}
	return keyOf(r.Tree, parent)
}

func keyOf(tree, path string) PK {
	return PK{
		"tree": &types.AttributeValueMemberS{Value: tree},
		"path": &types.AttributeValueMemberS{Value: path},
	}
}

// validate checks the fields DynamoDB and path encoding depend on.
func (r Record) validate() error {
	if r.Tree == "" {
		return fmt.Errorf("%w: empty tree", ErrInvalidRecord)
	}
	if r.Path == "" || !strings.HasPrefix(r.Path, RootPath) {
		return fmt.Errorf("%w: path %q must start with %q", ErrInvalidRecord, r.Path, RootPath)
	}
	if r.Path != RootPath && (r.ID == "" || strings.Contains(r.ID, "/")) {
		return fmt.Errorf("%w: id %q", ErrInvalidRecord, r.ID)
	}
	if _, err := r.Kind.MarshalText(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if d := Depth(r.Path); d != kindDepth(r.Kind) {
		return fmt.Errorf("%w: %s at depth %d", ErrInvalidRecord, r.Kind, d)
	}
	return nil
}

// kindDepth is the path depth entities of kind k live at.
func kindDepth(k timetable.Kind) int {
	for d, kind := range timetable.Kinds() {
		if kind == k {
			return d
		}
	}
	return -1
}

// marshal converts the user-visible fields to a DynamoDB item. Attribute
// order is kept in a separate list since DynamoDB maps are unordered.
func (r Record) marshal() (map[string]types.AttributeValue, error) {
	attrs, err := attributevalue.MarshalMap(r.Attributes.Map())
	if err != nil {
		return nil, fmt.Errorf("marshal attributes: %w", err)
	}
	order, err := attributevalue.MarshalList(r.Attributes.Names())
	if err != nil {
		return nil, fmt.Errorf("marshal attribute order: %w", err)
	}
	item := map[string]types.AttributeValue{
		"tree":            &types.AttributeValueMemberS{Value: r.Tree},
		"path":            &types.AttributeValueMemberS{Value: r.Path},
		"kind":            &types.AttributeValueMemberS{Value: r.Kind.String()},
		"position":        &types.AttributeValueMemberN{Value: strconv.Itoa(r.Position)},
		"attributes":      &types.AttributeValueMemberM{Value: attrs},
		"attribute_order": &types.AttributeValueMemberL{Value: order},
	}
	if r.ID != "" {
		item["id"] = &types.AttributeValueMemberS{Value: r.ID}
	}
	return item, nil
}

// unmarshalRecord is the inverse of marshal. Numbers come back as float64.
func unmarshalRecord(raw map[string]types.AttributeValue) (Record, error) {
	var rec Record
	if v, ok := raw["tree"].(*types.AttributeValueMemberS); ok {
		rec.Tree = v.Value
	}
	if v, ok := raw["path"].(*types.AttributeValueMemberS); ok {
		rec.Path = v.Value
	}
	if v, ok := raw["id"].(*types.AttributeValueMemberS); ok {
		rec.ID = v.Value
	}
	if v, ok := raw["position"].(*types.AttributeValueMemberN); ok {
		rec.Position, _ = strconv.Atoi(v.Value)
	}
	if v, ok := raw["kind"].(*types.AttributeValueMemberS); ok {
		kind, err := timetable.ParseKind(v.Value)
		if err != nil {
			return rec, fmt.Errorf("item %s#%s: %w", rec.Tree, rec.Path, err)
		}
		rec.Kind = kind
	}

	values := map[string]any{}
	if v, ok := raw["attributes"].(*types.AttributeValueMemberM); ok {
		if err := attributevalue.UnmarshalMap(v.Value, &values); err != nil {
			return rec, fmt.Errorf("item %s#%s: unmarshal attributes: %w", rec.Tree, rec.Path, err)
		}
	}
	var order []string
	if v, ok := raw["attribute_order"].(*types.AttributeValueMemberL); ok {
		if err := attributevalue.UnmarshalList(v.Value, &order); err != nil {
			return rec, fmt.Errorf("item %s#%s: unmarshal attribute order: %w", rec.Tree, rec.Path, err)
		}
	}

	rec.Attributes = timetable.NewAttributes()
	for _, name := range order {
		if value, ok := values[name]; ok {
			rec.Attributes.Set(name, value)
			delete(values, name)
		}
	}
	rec.Attributes.Merge(values)
	return rec, nil
}

// Item represents a retrieved entity item with common fields.
type Item struct {
	Record

	// Raw is the raw DynamoDB item.
	Raw map[string]types.AttributeValue

	// Version is the optimistic lock version.
	Version int64

	// CreatedAt is the ISO 8601 creation timestamp.
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp.
	UpdatedAt string

	// EntityRef is the type-qualified entity reference.
	EntityRef string

	// ParentRef is the parent's entity reference (empty for the root).
	ParentRef string
}

// ChildRef represents a reference to a child entity in the relationship table.
type ChildRef struct {
	// Ref is the child's entity reference.
	Ref string

	// Key is the primary key to locate the child in the entity table.
	Key PK

	// ShardPK is the relationship table partition key (for TTL updates).
	ShardPK string
}

// QueryInput defines parameters for querying entities.
type QueryInput struct {
	// IndexName is the optional GSI/LSI to query.
	IndexName string

	// KeyConditionExpression is the DynamoDB key condition.
	KeyConditionExpression string

	// FilterExpression is an optional filter (TTL filter is automatically merged).
	FilterExpression string

	// ExpressionAttributeNames maps expression attribute name placeholders.
	ExpressionAttributeNames map[string]string

	// ExpressionAttributeValues maps expression attribute value placeholders.
	ExpressionAttributeValues map[string]types.AttributeValue

	// Limit is the maximum number of items to return (0 = no limit).
	Limit int32

	// ScanIndexForward determines sort order (true = ascending, false = descending).
	ScanIndexForward *bool
}
