// Package dynamotest provides an in-memory DynamoDB client for tests.
//
// It understands the subset of the expression language the store emits:
// attribute_exists, attribute_not_exists, comparisons, AND, OR, parentheses
// and SET clauses with "+". Writes to every table are recorded as stream
// changes so cascade handlers can be driven without DynamoDB Streams.
package dynamotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a stored DynamoDB item.
type Item = map[string]types.AttributeValue

// Change is one recorded write, shaped like a stream record.
type Change struct {
	Table     string
	EventName string // INSERT, MODIFY or REMOVE
	Keys      Item
	OldImage  Item
	NewImage  Item
}

type table struct {
	hash, rng string
	items     map[string]Item
}

// Client is an in-memory stand-in for *dynamodb.Client.
type Client struct {
	mu      sync.Mutex
	tables  map[string]*table
	changes []Change
	err     error
}

// New returns a client with no tables.
func New() *Client {
	return &Client{tables: make(map[string]*table)}
}

// CreateTable declares a table and its key schema. rangeKey may be empty.
func (c *Client) CreateTable(name, hashKey, rangeKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[name] = &table{hash: hashKey, rng: rangeKey, items: make(map[string]Item)}
}

// FailWith makes every following call return err. A nil err clears it.
func (c *Client) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Items returns a copy of every item of the named table, ordered by key.
func (c *Client) Items(name string) []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[name]
	if !ok {
		return nil
	}
	return t.sorted()
}

// Put stores item unconditionally, bypassing change recording.
func (c *Client) Put(name string, item Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.table(name)
	if err != nil {
		return err
	}
	k, err := t.key(item)
	if err != nil {
		return err
	}
	t.items[k] = clone(item)
	return nil
}

// Drain returns and forgets the changes recorded so far.
func (c *Client) Drain() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.changes
	c.changes = nil
	return out
}

func (c *Client) table(name string) (*table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + name)}
	}
	return t, nil
}

func (t *table) key(item Item) (string, error) {
	h, ok := item[t.hash]
	if !ok {
		return "", fmt.Errorf("dynamotest: missing hash key %q", t.hash)
	}
	k := scalar(h)
	if t.rng != "" {
		r, ok := item[t.rng]
		if !ok {
			return "", fmt.Errorf("dynamotest: missing range key %q", t.rng)
		}
		k += "\x00" + scalar(r)
	}
	return k, nil
}

func (t *table) keysOf(item Item) Item {
	keys := Item{t.hash: item[t.hash]}
	if t.rng != "" {
		keys[t.rng] = item[t.rng]
	}
	return keys
}

func (t *table) sorted() []Item {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Item, len(keys))
	for i, k := range keys {
		out[i] = clone(t.items[k])
	}
	return out
}

func (c *Client) record(name string, t *table, old, updated Item) {
	ch := Change{Table: name, OldImage: clone(old), NewImage: clone(updated)}
	switch {
	case old == nil:
		ch.EventName = "INSERT"
		ch.Keys = t.keysOf(updated)
	case updated == nil:
		ch.EventName = "REMOVE"
		ch.Keys = t.keysOf(old)
	default:
		ch.EventName = "MODIFY"
		ch.Keys = t.keysOf(updated)
	}
	c.changes = append(c.changes, ch)
}

// GetItem implements the store client.
func (c *Client) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	t, err := c.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: clone(t.items[k])}, nil
}

// Query evaluates the key condition and filter against every item of the
// table and returns a single page ordered by key.
func (c *Client) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	t, err := c.table(aws.ToString(in.TableName))
	if err != nil {
		return nil, err
	}
	keyCond, err := parseCondition(aws.ToString(in.KeyConditionExpression))
	if err != nil {
		return nil, err
	}
	var filter condition
	if f := aws.ToString(in.FilterExpression); f != "" {
		if filter, err = parseCondition(f); err != nil {
			return nil, err
		}
	}
	env := env{names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}

	var out []Item
	for _, item := range t.sorted() {
		if !keyCond.eval(item, env) {
			continue
		}
		if filter != nil && !filter.eval(item, env) {
			continue
		}
		out = append(out, item)
	}
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if in.Limit != nil && int(*in.Limit) < len(out) {
		out = out[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: out, Count: int32(len(out))}, nil
}

// UpdateItem implements the store client. Missing items are created, as in
// DynamoDB, unless the condition rejects them.
func (c *Client) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	name := aws.ToString(in.TableName)
	t, err := c.table(name)
	if err != nil {
		return nil, err
	}
	env := env{names: in.ExpressionAttributeNames, values: in.ExpressionAttributeValues}
	k, err := t.key(in.Key)
	if err != nil {
		return nil, err
	}
	old := t.items[k]

	if ok, err := check(aws.ToString(in.ConditionExpression), old, env); err != nil {
		return nil, err
	} else if !ok {
		failed := &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		if in.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld && old != nil {
			failed.Item = clone(old)
		}
		return nil, failed
	}

	updated, err := applyUpdate(aws.ToString(in.UpdateExpression), old, in.Key, env)
	if err != nil {
		return nil, err
	}
	t.items[k] = updated
	c.record(name, t, old, updated)
	return &dynamodb.UpdateItemOutput{}, nil
}

// TransactWriteItems checks every condition before applying any write.
func (c *Client) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}

	type write struct {
		name string
		t    *table
		key  string
		old  Item
		new  Item
		del  bool
	}
	writes := make([]write, 0, len(in.TransactItems))
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	seen := make(map[string]bool)

	for i, ti := range in.TransactItems {
		var (
			name, cond string
			key        Item
			e          env
			w          write
		)
		switch {
		case ti.ConditionCheck != nil:
			cc := ti.ConditionCheck
			name, cond, key = aws.ToString(cc.TableName), aws.ToString(cc.ConditionExpression), cc.Key
			e = env{names: cc.ExpressionAttributeNames, values: cc.ExpressionAttributeValues}
		case ti.Put != nil:
			p := ti.Put
			name, cond, key = aws.ToString(p.TableName), aws.ToString(p.ConditionExpression), p.Item
			e = env{names: p.ExpressionAttributeNames, values: p.ExpressionAttributeValues}
			w.new = clone(p.Item)
		case ti.Delete != nil:
			d := ti.Delete
			name, cond, key = aws.ToString(d.TableName), aws.ToString(d.ConditionExpression), d.Key
			e = env{names: d.ExpressionAttributeNames, values: d.ExpressionAttributeValues}
			w.del = true
		case ti.Update != nil:
			u := ti.Update
			name, cond, key = aws.ToString(u.TableName), aws.ToString(u.ConditionExpression), u.Key
			e = env{names: u.ExpressionAttributeNames, values: u.ExpressionAttributeValues}
		default:
			return nil, fmt.Errorf("dynamotest: empty transact item %d", i)
		}

		t, err := c.table(name)
		if err != nil {
			return nil, err
		}
		k, err := t.key(key)
		if err != nil {
			return nil, err
		}
		if seen[name+"\x00"+k] {
			return nil, fmt.Errorf("dynamotest: transaction touches %s %q twice", name, k)
		}
		seen[name+"\x00"+k] = true

		old := t.items[k]
		ok, err := check(cond, old, e)
		if err != nil {
			return nil, err
		}
		if !ok {
			failed = true
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			continue
		}
		reasons[i] = types.CancellationReason{Code: aws.String("None")}

		if ti.ConditionCheck != nil {
			continue
		}
		if ti.Update != nil {
			if w.new, err = applyUpdate(aws.ToString(ti.Update.UpdateExpression), old, key, e); err != nil {
				return nil, err
			}
		}
		w.name, w.t, w.key, w.old = name, t, k, old
		writes = append(writes, w)
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, w := range writes {
		if w.del {
			if w.old == nil {
				continue
			}
			delete(w.t.items, w.key)
			c.record(w.name, w.t, w.old, nil)
			continue
		}
		w.t.items[w.key] = w.new
		c.record(w.name, w.t, w.old, w.new)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func check(expr string, item Item, e env) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	cond, err := parseCondition(expr)
	if err != nil {
		return false, err
	}
	return cond.eval(item, e), nil
}

func clone(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
