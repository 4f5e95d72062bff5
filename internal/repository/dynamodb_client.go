package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"travel-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"

	// Fixed width so sort keys order lexically.
	skTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores conversation memory and transcript in a single DynamoDB table.
// The META# item carries the serialized memory and a version used as a
// conditional-write guard.
type Client struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// New creates a new repository Client. A zero ttl disables item expiry.
func New(api dynamodbAPI, tableName string, ttl time.Duration) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// msgSK returns the sort key for the seq-th message written at ts.
func msgSK(ts time.Time, seq int) string {
	return fmt.Sprintf("%s%s#%02d", skPrefixMsg, ts.UTC().Format(skTimeLayout), seq)
}

func (c *Client) ttlValue(now time.Time) int64 {
	if c.ttl <= 0 {
		return 0
	}
	return now.Add(c.ttl).Unix()
}

// GetMemory returns the stored memory, or a fresh one with version 0 for an
// unknown conversation.
func (c *Client) GetMemory(ctx context.Context, conversationID string) (domain.ConversationMemory, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationMemory{}, fmt.Errorf("repository: GetMemory get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.NewMemory(), nil
	}

	meta, err := itemToMeta(out.Item)
	if err != nil {
		return domain.ConversationMemory{}, fmt.Errorf("repository: GetMemory decode meta: %w", err)
	}
	mem, err := decodeMemory(meta.Memory)
	if err != nil {
		return domain.ConversationMemory{}, fmt.Errorf("repository: GetMemory: %w", err)
	}
	mem.Version = meta.Version
	return mem, nil
}

// SaveTurn writes the new memory and both transcript lines of a turn in one
// transaction. It fails with domain.ErrConflict when another turn saved since
// mem was read.
func (c *Client) SaveTurn(ctx context.Context, conversationID string, mem domain.ConversationMemory, rec domain.TurnRecord) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: SaveTurn: conversation id is required")
	}
	encoded, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("repository: SaveTurn encode memory: %w", err)
	}
	var trace []byte
	if len(rec.Trace) > 0 {
		if trace, err = json.Marshal(rec.Trace); err != nil {
			return fmt.Errorf("repository: SaveTurn encode trace: %w", err)
		}
	}

	now := c.now().UTC()
	user := NewMessage(conversationID, domain.RoleUser, rec.UserText, "", now, 0)
	assistant := NewMessage(conversationID, domain.RoleAssistant, rec.Reply, string(trace), now, 1)
	user.TTL = c.ttlValue(now)
	assistant.TTL = user.TTL

	meta := NewConversationMeta(conversationID, string(encoded), mem.Version+1, now)
	meta.TTL = user.TTL

	metaPut := &types.Put{
		TableName: aws.String(c.tableName),
		Item:      metaItem(meta),
	}
	if mem.Version == 0 {
		metaPut.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		metaPut.ConditionExpression = aws.String("version = :v")
		metaPut.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(mem.Version, 10)},
		}
	}

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: metaPut},
			{Put: newMessagePut(c.tableName, user)},
			{Put: newMessagePut(c.tableName, assistant)},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("repository: SaveTurn: %w", domain.ErrConflict)
		}
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// ListMessages returns up to limit of the most recent messages, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Newest first so Limit keeps the latest messages.
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: ListMessages query: %w", err)
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListMessages unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// NewMessage constructs a transcript Message keyed by conversation and time.
func NewMessage(conversationID, role, content, meta string, ts time.Time, seq int) domain.Message {
	return domain.Message{
		PK:             convPK(conversationID),
		SK:             msgSK(ts, seq),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Meta:           meta,
		CreatedAt:      ts.UTC().Format(time.RFC3339Nano),
	}
}

// NewConversationMeta constructs the META# record for a memory snapshot.
func NewConversationMeta(conversationID, memory string, version int64, ts time.Time) domain.ConversationMeta {
	return domain.ConversationMeta{
		PK:             convPK(conversationID),
		SK:             skMeta,
		ConversationID: conversationID,
		Memory:         memory,
		Version:        version,
		LastActivity:   ts.UTC().Format(time.RFC3339),
		Turns:          int(version),
	}
}

func decodeMemory(raw string) (domain.ConversationMemory, error) {
	mem := domain.NewMemory()
	if strings.TrimSpace(raw) == "" {
		return mem, nil
	}
	if err := json.Unmarshal([]byte(raw), &mem); err != nil {
		return domain.ConversationMemory{}, fmt.Errorf("decode memory: %w", err)
	}
	if mem.Slots == nil {
		mem.Slots = domain.Slots{}
	}
	return mem, nil
}

func isConditionFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, r := range canceled.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
		return false
	}
	var failed *types.ConditionalCheckFailedException
	return errors.As(err, &failed)
}

func newMessagePut(table string, msg domain.Message) *types.Put {
	return &types.Put{
		TableName:           aws.String(table),
		Item:                messageItem(msg),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	}
}

// itemToMessage converts a DynamoDB attribute map to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Message{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Message{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Message{}, err
	}
	convID, _ := strAttr(item, "conversationId")
	meta, _ := strAttr(item, "meta") // allow empty
	createdAt, _ := strAttr(item, "createdAt")

	return domain.Message{
		PK:             pk,
		SK:             sk,
		ConversationID: convID,
		Role:           role,
		Content:        content,
		Meta:           meta,
		CreatedAt:      createdAt,
	}, nil
}

func itemToMeta(item map[string]types.AttributeValue) (domain.ConversationMeta, error) {
	memory, err := strAttr(item, "memory")
	if err != nil {
		return domain.ConversationMeta{}, err
	}
	version, err := intAttr(item, "version")
	if err != nil {
		return domain.ConversationMeta{}, err
	}
	turns, _ := intAttr(item, "turns")
	convID, _ := strAttr(item, "conversationId")
	lastActivity, _ := strAttr(item, "lastActivity")
	return domain.ConversationMeta{
		PK:             convPK(convID),
		SK:             skMeta,
		ConversationID: convID,
		Memory:         memory,
		Version:        version,
		LastActivity:   lastActivity,
		Turns:          int(turns),
	}, nil
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: msg.PK},
		"SK":             &types.AttributeValueMemberS{Value: msg.SK},
		"conversationId": &types.AttributeValueMemberS{Value: msg.ConversationID},
		"role":           &types.AttributeValueMemberS{Value: msg.Role},
		"content":        &types.AttributeValueMemberS{Value: msg.Content},
		"createdAt":      &types.AttributeValueMemberS{Value: msg.CreatedAt},
	}
	if msg.Meta != "" {
		item["meta"] = &types.AttributeValueMemberS{Value: msg.Meta}
	}
	if msg.TTL > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(msg.TTL, 10)}
	}
	return item
}

func metaItem(meta domain.ConversationMeta) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: meta.PK},
		"SK":             &types.AttributeValueMemberS{Value: meta.SK},
		"conversationId": &types.AttributeValueMemberS{Value: meta.ConversationID},
		"memory":         &types.AttributeValueMemberS{Value: meta.Memory},
		"version":        &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.Version, 10)},
		"lastActivity":   &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":          &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
	}
	if meta.TTL > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)}
	}
	return item
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
