// Package stream provides DynamoDB Streams handlers for cascade operations.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/timetable/store"
)

// Cascader is the part of *store.Store the handler drives.
type Cascader interface {
	QueryAllChildren(ctx context.Context, parentRef string) ([]store.ChildRef, error)
	SetTTLByKey(ctx context.Context, key store.PK, ttl int64) error
	SetRelationshipTTL(ctx context.Context, childRef, parentRef string, ttl int64) error
	SetUniqueConstraintTTL(ctx context.Context, pk string, ttl int64) error
}

var _ Cascader = (*store.Store)(nil)

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	store  Cascader
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(s Cascader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  s,
		logger: logger,
	}
}

// HandleCascadeDelete processes DynamoDB stream events to propagate TTL from
// a deleted timetable entity to its descendants. It is used as an AWS Lambda
// handler on the entity table stream.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Only MODIFY events can add a TTL
	if record.EventName != "MODIFY" {
		return nil
	}

	oldTTL := getNumberAttr(record.Change.OldImage, "ttl")
	newTTL := getNumberAttr(record.Change.NewImage, "ttl")

	// Only process when TTL is newly set (was absent/0, now present)
	if oldTTL != 0 || newTTL == 0 {
		return nil
	}

	entityRef := getStringAttr(record.Change.NewImage, "entity_ref")
	parentRef := getStringAttr(record.Change.NewImage, "parent_ref")
	kind := getStringAttr(record.Change.NewImage, "kind")
	uniquePKs := getStringListAttr(record.Change.NewImage, "_unique_pks")

	if entityRef == "" {
		return fmt.Errorf("record %s: missing entity_ref", record.EventID)
	}

	h.logger.Info("processing cascade delete",
		"entityRef", entityRef,
		"kind", kind,
		"ttl", newTTL,
	)

	// 1. Query all children (including already-deleted ones - idempotent).
	// Instructors are leaves and have no relationship partition.
	var children []store.ChildRef
	if kind != "instructor" {
		var err error
		children, err = h.store.QueryAllChildren(ctx, entityRef)
		if err != nil {
			return fmt.Errorf("query children: %w", err)
		}
	}

	if len(children) > 0 {
		h.logger.Debug("found children to cascade",
			"entityRef", entityRef,
			"childCount", len(children),
		)
	}

	// 2. Set same TTL on all children (triggers their cascade via stream)
	for _, child := range children {
		key := child.Key
		if len(key) == 0 {
			key = keyFromRef(child.Ref)
		}
		if key == nil {
			h.logger.Warn("skipping child with unusable reference", "child", child.Ref)
			continue
		}
		if err := h.store.SetTTLByKey(ctx, key, newTTL); err != nil {
			h.logger.Warn("failed to set TTL on child",
				"child", child.Ref,
				"error", err,
			)
			// Continue - idempotent, will retry
		}
	}

	// 3. Set TTL on this entity's relationship record (as a child).
	// parent_ref comes from the stream image, so no lookup is needed.
	if parentRef != "" {
		if err := h.store.SetRelationshipTTL(ctx, entityRef, parentRef, newTTL); err != nil {
			h.logger.Warn("failed to set relationship TTL",
				"entity", entityRef,
				"parent", parentRef,
				"error", err,
			)
		}
	}

	// 4. Release sibling-unique attribute values
	for _, constraintPK := range uniquePKs {
		if err := h.store.SetUniqueConstraintTTL(ctx, constraintPK, newTTL); err != nil {
			h.logger.Warn("failed to set unique constraint TTL",
				"pk", constraintPK,
				"error", err,
			)
		}
	}

	h.logger.Info("cascade delete completed",
		"entityRef", entityRef,
		"childrenProcessed", len(children),
		"uniqueConstraints", len(uniquePKs),
	)

	return nil
}

// keyFromRef rebuilds an entity table key from a "tree#path" reference.
func keyFromRef(ref string) store.PK {
	tree, path, ok := strings.Cut(ref, "#")
	if !ok || tree == "" || !strings.HasPrefix(path, store.RootPath) {
		return nil
	}
	return store.PK{
		"tree": &types.AttributeValueMemberS{Value: tree},
		"path": &types.AttributeValueMemberS{Value: path},
	}
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// getStringListAttr extracts a string list attribute from a DynamoDB stream image.
func getStringListAttr(image map[string]events.DynamoDBAttributeValue, key string) []string {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeList {
			var result []string
			for _, item := range v.List() {
				if item.DataType() == events.DataTypeString {
					result = append(result, item.String())
				}
			}
			return result
		}
	}
	return nil
}

// ConvertStreamKey converts a DynamoDB stream key to a store.PK.
func ConvertStreamKey(streamKey map[string]events.DynamoDBAttributeValue) store.PK {
	result := make(store.PK)
	for k, v := range streamKey {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		}
	}
	return result
}
