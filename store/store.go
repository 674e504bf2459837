package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/timetable/internal/shard"
	"github.com/jacentio/timetable/timetable"
)

// Client is the subset of *dynamodb.Client the Store uses.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

// Store persists timetable entities in DynamoDB with parent validation,
// sibling-unique attributes and cascading deletes.
type Store struct {
	client  Client
	config  Config
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMetrics sets the counters the store reports to.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides time.Now, for TTL checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new Store instance.
func New(client Client, config Config, opts ...Option) *Store {
	config.validate()
	s := &Store{
		client: client,
		config: config,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Config returns the validated configuration.
func (s *Store) Config() Config { return s.config }

// relationshipPK computes the sharded partition key for a relationship record.
func (s *Store) relationshipPK(parentRef, childRef string) string {
	return shard.RelationshipPK(parentRef, childRef, s.config.NumShards)
}

// Create writes one entity in a single transaction: parent existence check,
// sibling-unique attribute constraints, the entity item and its relationship
// record.
func (s *Store) Create(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	items := []types.TransactWriteItem{}
	now := s.now()
	nowUnix := now.Unix()
	nowISO := now.UTC().Format(time.RFC3339)

	// Track item indices for error mapping
	parentCheckIndex := -1
	entityPutIndex := -1

	// 1. Parent must exist and not be deleted
	if parentKey := rec.parentKey(); parentKey != nil {
		parentCheckIndex = len(items)
		items = append(items, types.TransactWriteItem{
			ConditionCheck: &types.ConditionCheck{
				TableName:                 aws.String(s.config.EntityTable),
				Key:                       parentKey,
				ConditionExpression:       aws.String(ParentExistsCondition()),
				ExpressionAttributeNames:  TTLFilterNames(),
				ExpressionAttributeValues: TTLFilterValues(nowUnix),
			},
		})
	}

	// 2. Entity item with managed fields
	item, err := rec.marshal()
	if err != nil {
		return err
	}
	item["entity_ref"] = &types.AttributeValueMemberS{Value: rec.EntityRef()}
	item["version"] = &types.AttributeValueMemberN{Value: "1"}
	item["created_at"] = &types.AttributeValueMemberS{Value: nowISO}
	item["updated_at"] = &types.AttributeValueMemberS{Value: nowISO}

	parentRef := rec.ParentRef()
	if parentRef != "" {
		item["parent_ref"] = &types.AttributeValueMemberS{Value: parentRef}
	}

	// 3. Sibling-unique attributes
	var uniquePKs []string
	if parentRef != "" {
		kind := rec.Kind.String()
		for attr, value := range s.uniqueValues(rec.Attributes) {
			constraintPK := shard.UniqueConstraintPK(parentRef, kind, attr, value)
			uniquePKs = append(uniquePKs, constraintPK)
			items = append(items, s.uniqueConstraintPut(constraintPK, parentRef, kind, attr, value, rec.EntityRef()))
		}
	}

	// Store unique PKs on entity for cascade delete cleanup
	if len(uniquePKs) > 0 {
		uniquePKsAttr, _ := attributevalue.MarshalList(uniquePKs)
		item["_unique_pks"] = &types.AttributeValueMemberL{Value: uniquePKsAttr}
	}

	// 4. The entity put; the path encodes the identifier, so an existing
	// item means the identifier is taken within the parent
	entityPutIndex = len(items)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(s.config.EntityTable),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(tree)"),
		},
	})

	// 5. Relationship record for child lookup
	if parentRef != "" {
		childRef := rec.EntityRef()
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(s.config.RelationshipTable),
				Item: map[string]types.AttributeValue{
					"pk":         &types.AttributeValueMemberS{Value: s.relationshipPK(parentRef, childRef)},
					"child_ref":  &types.AttributeValueMemberS{Value: childRef},
					"parent_ref": &types.AttributeValueMemberS{Value: parentRef},
					"child_kind": &types.AttributeValueMemberS{Value: rec.Kind.String()},
					"child_key":  &types.AttributeValueMemberM{Value: rec.Key()},
				},
			},
		})
	}

	// 6. Execute transaction
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})

	err = s.mapCreateTransactionError(err, parentCheckIndex, entityPutIndex)
	if err != nil {
		s.metrics.conflict(err)
		return err
	}
	s.metrics.created()
	return nil
}

func (s *Store) uniqueConstraintPut(constraintPK, parentRef, kind, attr, value, entityRef string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.UniqueTable),
			Item: map[string]types.AttributeValue{
				"pk":          &types.AttributeValueMemberS{Value: constraintPK},
				"sk":          &types.AttributeValueMemberS{Value: "CONSTRAINT"},
				"parent_ref":  &types.AttributeValueMemberS{Value: parentRef},
				"entity_kind": &types.AttributeValueMemberS{Value: kind},
				"attribute":   &types.AttributeValueMemberS{Value: attr},
				"value":       &types.AttributeValueMemberS{Value: value},
				"entity_ref":  &types.AttributeValueMemberS{Value: entityRef},
			},
			// Fails if a sibling already has this value
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}
}

// uniqueValues returns the configured unique attributes present in attrs,
// formatted as strings.
func (s *Store) uniqueValues(attrs *timetable.Attributes) map[string]string {
	out := make(map[string]string)
	for _, attr := range s.config.UniqueAttributes {
		v, ok := attrs.Get(attr)
		if !ok || v == nil {
			continue
		}
		out[attr] = fmt.Sprint(v)
	}
	return out
}

// Get retrieves an entity by tree and path, returning ErrNotFound if deleted or missing.
func (s *Store) Get(ctx context.Context, tree, path string) (*Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.EntityTable),
		Key:            keyOf(tree, path),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	// Check if entity is deleted (has expired TTL)
	if isDeletedAt(result.Item, s.now().Unix()) {
		return nil, ErrNotFound
	}

	return s.unmarshalItem(result.Item)
}

// Query queries the entity table with automatic TTL filtering.
func (s *Store) Query(ctx context.Context, input QueryInput) ([]*Item, error) {
	// Merge TTL filter with any existing filter
	filterExpr := TTLFilterExpr()
	if input.FilterExpression != "" {
		filterExpr = fmt.Sprintf("(%s) AND (%s)", input.FilterExpression, filterExpr)
	}

	queryInput := &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.EntityTable),
		KeyConditionExpression:    aws.String(input.KeyConditionExpression),
		FilterExpression:          aws.String(filterExpr),
		ExpressionAttributeNames:  mergeExprNames(TTLFilterNames(), input.ExpressionAttributeNames),
		ExpressionAttributeValues: mergeExprValues(TTLFilterValues(s.now().Unix()), input.ExpressionAttributeValues),
	}

	if input.IndexName != "" {
		queryInput.IndexName = aws.String(input.IndexName)
	}
	if input.Limit > 0 {
		queryInput.Limit = aws.Int32(input.Limit)
	}
	if input.ScanIndexForward != nil {
		queryInput.ScanIndexForward = input.ScanIndexForward
	}

	// Paginate through all results
	var items []*Item
	paginator := dynamodb.NewQueryPaginator(s.client, queryInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			item, err := s.unmarshalItem(raw)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}

	return items, nil
}

// ListTree returns every active item of a tree, ordered by path.
func (s *Store) ListTree(ctx context.Context, tree string) ([]*Item, error) {
	return s.Query(ctx, QueryInput{
		KeyConditionExpression:   "#tree = :tree",
		ExpressionAttributeNames: map[string]string{"#tree": "tree"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tree": &types.AttributeValueMemberS{Value: tree},
		},
	})
}

// UpdateAttributes replaces an entity's attributes with optimistic locking.
// When unique attributes are configured and their values change, old
// constraints are deleted and new ones created transactionally.
func (s *Store) UpdateAttributes(ctx context.Context, rec Record, expectedVersion int64) error {
	if err := rec.validate(); err != nil {
		return err
	}

	var err error
	if len(s.config.UniqueAttributes) > 0 && rec.ParentRef() != "" {
		err = s.updateWithUniqueConstraints(ctx, rec, expectedVersion)
	} else {
		// Fast path: simple update without unique constraint handling
		err = s.updateSimple(ctx, rec, expectedVersion)
	}
	s.metrics.conflict(err)
	return err
}

// attributeUpdate builds the SET clauses, names and values shared by both update paths.
func (s *Store) attributeUpdate(rec Record, expectedVersion int64) ([]string, map[string]string, map[string]types.AttributeValue, error) {
	item, err := rec.marshal()
	if err != nil {
		return nil, nil, nil, err
	}
	setClauses := []string{
		"#attributes = :attributes",
		"#attribute_order = :attribute_order",
		"#updated_at = :updated_at",
		"#version = #version + :one",
	}
	exprNames := map[string]string{
		"#attributes":      "attributes",
		"#attribute_order": "attribute_order",
		"#updated_at":      "updated_at",
		"#version":         "version",
		"#ttl":             "ttl",
	}
	exprValues := map[string]types.AttributeValue{
		":attributes":       item["attributes"],
		":attribute_order":  item["attribute_order"],
		":updated_at":       &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339)},
		":one":              &types.AttributeValueMemberN{Value: "1"},
		":expected_version": numberAttr(expectedVersion),
	}
	return setClauses, exprNames, exprValues, nil
}

const versionCondition = "#version = :expected_version AND attribute_not_exists(#ttl)"

// updateSimple performs a basic update without unique constraint handling.
func (s *Store) updateSimple(ctx context.Context, rec Record, expectedVersion int64) error {
	setClauses, exprNames, exprValues, err := s.attributeUpdate(rec, expectedVersion)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.config.EntityTable),
		Key:                       rec.Key(),
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ConditionExpression:       aws.String(versionCondition),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})

	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return err
	}
	return nil
}

// updateWithUniqueConstraints handles updates where unique attributes may have changed.
func (s *Store) updateWithUniqueConstraints(ctx context.Context, rec Record, expectedVersion int64) error {
	// Fetch current entity to get old unique values
	current, err := s.Get(ctx, rec.Tree, rec.Path)
	if err != nil {
		return err
	}

	parentRef := rec.ParentRef()
	kind := rec.Kind.String()
	oldUniques := s.uniqueValues(current.Attributes)
	newUniques := s.uniqueValues(rec.Attributes)

	// Check if any unique attribute changed (including added or dropped)
	var changed []string
	for _, attr := range s.config.UniqueAttributes {
		oldValue, hadOld := oldUniques[attr]
		newValue, hasNew := newUniques[attr]
		if hadOld != hasNew || oldValue != newValue {
			changed = append(changed, attr)
		}
	}

	// If no unique attributes changed, use simple update
	if len(changed) == 0 {
		return s.updateSimple(ctx, rec, expectedVersion)
	}

	items := []types.TransactWriteItem{}

	// For each changed attribute: delete old constraint, create new constraint
	for _, attr := range changed {
		if oldValue, ok := oldUniques[attr]; ok {
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(s.config.UniqueTable),
					Key: map[string]types.AttributeValue{
						"pk": &types.AttributeValueMemberS{Value: shard.UniqueConstraintPK(parentRef, kind, attr, oldValue)},
						"sk": &types.AttributeValueMemberS{Value: "CONSTRAINT"},
					},
				},
			})
		}
		if newValue, ok := newUniques[attr]; ok {
			newPK := shard.UniqueConstraintPK(parentRef, kind, attr, newValue)
			items = append(items, s.uniqueConstraintPut(newPK, parentRef, kind, attr, newValue, rec.EntityRef()))
		}
	}

	// All current unique PKs, unchanged ones included
	newUniquePKs := []string{}
	for attr, value := range newUniques {
		newUniquePKs = append(newUniquePKs, shard.UniqueConstraintPK(parentRef, kind, attr, value))
	}

	setClauses, exprNames, exprValues, err := s.attributeUpdate(rec, expectedVersion)
	if err != nil {
		return err
	}
	uniquePKsAttr, _ := attributevalue.MarshalList(newUniquePKs)
	exprNames["#unique_pks"] = "_unique_pks"
	exprValues[":unique_pks"] = &types.AttributeValueMemberL{Value: uniquePKsAttr}
	setClauses = append(setClauses, "#unique_pks = :unique_pks")

	entityUpdateIndex := len(items)
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(s.config.EntityTable),
			Key:                       rec.Key(),
			UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
			ConditionExpression:       aws.String(versionCondition),
			ExpressionAttributeNames:  exprNames,
			ExpressionAttributeValues: exprValues,
		},
	})

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})

	return s.mapUpdateTransactionError(err, entityUpdateIndex)
}

// DeleteOptions configures delete behavior.
type DeleteOptions struct {
	// Cascade enables cascading delete of children via TTL.
	Cascade bool

	// OrphanProtect fails the delete if active children exist.
	OrphanProtect bool
}

// Delete deletes an entity by setting its TTL. Children are removed by the
// stream cascade handler. Deleting an already deleted entity is a no-op.
func (s *Store) Delete(ctx context.Context, rec Record, opts DeleteOptions) error {
	if opts.OrphanProtect && !opts.Cascade {
		hasChildren, err := s.HasActiveChildren(ctx, rec.EntityRef())
		if err != nil {
			return err
		}
		if hasChildren {
			s.metrics.conflict(ErrHasChildren)
			return ErrHasChildren
		}
	}

	err := s.SetTTL(ctx, rec)
	if errors.Is(err, ErrAlreadyDeleted) {
		return nil
	}
	if err != nil {
		return err
	}
	s.metrics.deleted()
	return nil
}

// SetTTL marks an entity for deletion by setting its TTL to now.
// This also increments the version to fail concurrent updates.
// It returns ErrAlreadyDeleted if a TTL is already set and ErrNotFound if the
// item does not exist.
func (s *Store) SetTTL(ctx context.Context, rec Record) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.config.EntityTable),
		Key:                 rec.Key(),
		UpdateExpression:    aws.String("SET #ttl = :now, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(tree) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     "ttl",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": numberAttr(s.now().Unix()),
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		if condErr.Item == nil {
			return ErrNotFound
		}
		return ErrAlreadyDeleted
	}
	return err
}

// HasActiveChildren checks if an entity has any active (non-deleted) children.
func (s *Store) HasActiveChildren(ctx context.Context, entityRef string) (bool, error) {
	now := s.now().Unix()
	shardKeys := shard.All(entityRef, s.config.NumShards)

	// Fast path for single shard (default)
	if len(shardKeys) == 1 {
		return s.hasActiveChildrenInShard(ctx, shardKeys[0], now)
	}

	// Multi-shard fan-out with early cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan bool, 1)
	errs := make(chan error, len(shardKeys))
	var wg sync.WaitGroup

	for _, shardPK := range shardKeys {
		wg.Add(1)
		go func(shardPK string) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			default:
			}

			active, err := s.hasActiveChildrenInShard(ctx, shardPK, now)
			if err != nil {
				errs <- err
				return
			}
			if active {
				select {
				case found <- true:
					cancel()
				default:
				}
			}
		}(shardPK)
	}

	go func() {
		wg.Wait()
		close(found)
		close(errs)
	}()

	select {
	case ok := <-found:
		if ok {
			return true, nil
		}
	case err := <-errs:
		if err != nil && !errors.Is(err, context.Canceled) {
			return false, err
		}
	}

	for err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return false, err
		}
	}
	for ok := range found {
		if ok {
			return true, nil
		}
	}

	return false, nil
}

func (s *Store) hasActiveChildrenInShard(ctx context.Context, shardPK string, now int64) (bool, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.RelationshipTable),
		KeyConditionExpression:    aws.String("pk = :pk"),
		FilterExpression:          aws.String(TTLFilterExpr()),
		ExpressionAttributeNames:  TTLFilterNames(),
		ExpressionAttributeValues: mergeExprValues(TTLFilterValues(now), map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: shardPK}}),
	})
	if err != nil {
		return false, err
	}
	return len(result.Items) > 0, nil
}

// QueryAllChildren returns all children of an entity (including deleted ones).
// This is used by cascade delete to propagate TTL to all children.
func (s *Store) QueryAllChildren(ctx context.Context, parentRef string) ([]ChildRef, error) {
	shardKeys := shard.All(parentRef, s.config.NumShards)

	// Fast path for single shard (default)
	if len(shardKeys) == 1 {
		return s.queryChildrenInShard(ctx, shardKeys[0])
	}

	// Multi-shard fan-out
	var mu sync.Mutex
	var allChildren []ChildRef
	var wg sync.WaitGroup
	errs := make(chan error, len(shardKeys))

	for _, shardPK := range shardKeys {
		wg.Add(1)
		go func(shardPK string) {
			defer wg.Done()

			children, err := s.queryChildrenInShard(ctx, shardPK)
			if err != nil {
				errs <- fmt.Errorf("shard %s: %w", shardPK, err)
				return
			}

			mu.Lock()
			allChildren = append(allChildren, children...)
			mu.Unlock()
		}(shardPK)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return allChildren, nil
}

func (s *Store) queryChildrenInShard(ctx context.Context, shardPK string) ([]ChildRef, error) {
	var children []ChildRef

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.config.RelationshipTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: shardPK},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			children = append(children, s.unmarshalChildRef(item, shardPK))
		}
	}

	return children, nil
}

// SetTTLByKey sets TTL on an entity by key.
// Used by cascade delete to propagate TTL to children.
func (s *Store) SetTTLByKey(ctx context.Context, key PK, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.config.EntityTable),
		Key:                 key,
		UpdateExpression:    aws.String("SET #ttl = :ttl, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(tree) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     "ttl",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": numberAttr(ttl),
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})

	// Ignore condition failure - already has TTL or already gone
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// SetRelationshipTTL sets TTL on a relationship record.
func (s *Store) SetRelationshipTTL(ctx context.Context, childRef, parentRef string, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.config.RelationshipTable),
		Key: map[string]types.AttributeValue{
			"pk":        &types.AttributeValueMemberS{Value: s.relationshipPK(parentRef, childRef)},
			"child_ref": &types.AttributeValueMemberS{Value: childRef},
		},
		UpdateExpression:          aws.String("SET #ttl = :ttl"),
		ConditionExpression:       aws.String("attribute_exists(pk) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames:  TTLFilterNames(),
		ExpressionAttributeValues: map[string]types.AttributeValue{":ttl": numberAttr(ttl)},
	})

	// Ignore condition failure - already has TTL
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// SetUniqueConstraintTTL sets TTL on a unique constraint record.
func (s *Store) SetUniqueConstraintTTL(ctx context.Context, pk string, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.config.UniqueTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: "CONSTRAINT"},
		},
		UpdateExpression:          aws.String("SET #ttl = :ttl"),
		ConditionExpression:       aws.String("attribute_exists(pk) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames:  TTLFilterNames(),
		ExpressionAttributeValues: map[string]types.AttributeValue{":ttl": numberAttr(ttl)},
	})

	// Ignore condition failure - already has TTL
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

// mapCreateTransactionError maps DynamoDB transaction errors for Create operations.
// parentCheckIndex is the index of the parent check item (-1 if none).
// entityPutIndex is the index of the entity put item.
func (s *Store) mapCreateTransactionError(err error, parentCheckIndex, entityPutIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i == parentCheckIndex {
					return ErrParentNotFound
				}
				if i == entityPutIndex {
					return ErrAlreadyExists
				}
				// Must be a unique constraint
				return ErrDuplicateValue
			}
		}
	}

	return err
}

// mapUpdateTransactionError maps DynamoDB transaction errors for attribute updates.
// entityUpdateIndex is the index of the versioned entity update.
func (s *Store) mapUpdateTransactionError(err error, entityUpdateIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i == entityUpdateIndex {
					return ErrConcurrentModification
				}
				return ErrDuplicateValue
			}
		}
	}

	return err
}

// unmarshalItem converts a DynamoDB item to an Item.
func (s *Store) unmarshalItem(raw map[string]types.AttributeValue) (*Item, error) {
	rec, err := unmarshalRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	item := &Item{Record: rec, Raw: raw}

	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	if v, ok := raw["created_at"].(*types.AttributeValueMemberS); ok {
		item.CreatedAt = v.Value
	}
	if v, ok := raw["updated_at"].(*types.AttributeValueMemberS); ok {
		item.UpdatedAt = v.Value
	}
	if v, ok := raw["entity_ref"].(*types.AttributeValueMemberS); ok {
		item.EntityRef = v.Value
	}
	if v, ok := raw["parent_ref"].(*types.AttributeValueMemberS); ok {
		item.ParentRef = v.Value
	}

	return item, nil
}

// unmarshalChildRef converts a relationship item to a ChildRef.
func (s *Store) unmarshalChildRef(item map[string]types.AttributeValue, shardPK string) ChildRef {
	ref := ChildRef{ShardPK: shardPK}

	if v, ok := item["child_ref"].(*types.AttributeValueMemberS); ok {
		ref.Ref = v.Value
	}
	if v, ok := item["child_key"].(*types.AttributeValueMemberM); ok {
		ref.Key = v.Value
	}

	return ref
}
