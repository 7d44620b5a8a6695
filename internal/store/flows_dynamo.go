package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// flowKey is the session table's partition key.
const flowKey = "sessionId"

// DynamoFlowStore implements FlowStore on a DynamoDB table keyed by the
// string attribute "sessionId", with TTL enabled on "expiresAt".
//
// Writes are conditional on the version read, so two Lambda instances
// serving the same session cannot silently overwrite each other.
type DynamoFlowStore struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

var _ FlowStore = (*DynamoFlowStore)(nil)

// NewDynamoFlowStore creates a DynamoFlowStore whose items expire ttl
// after their last write.
func NewDynamoFlowStore(client DynamoAPI, tableName string, ttl time.Duration) *DynamoFlowStore {
	return &DynamoFlowStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
	}
}

// TableName returns the backing table name.
func (s *DynamoFlowStore) TableName() string { return s.tableName }

// GetFlow reads the flow with a consistent read. TTL deletion lags, so an
// item past expiresAt is treated as absent.
func (s *DynamoFlowStore) GetFlow(ctx context.Context, sessionID string) (*FlowItem, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			flowKey: &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem table=%s session=%s: %w", s.tableName, sessionID, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item FlowItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal session=%s: %w", sessionID, err)
	}
	if item.ExpiresAt <= s.now().Unix() {
		return nil, nil
	}
	return &item, nil
}

// PutFlow writes item if the stored version is still item.Version-1, the
// item is missing, or the stored item has expired.
func (s *DynamoFlowStore) PutFlow(ctx context.Context, item *FlowItem) error {
	if item == nil || item.SessionID == "" {
		return ErrEmptySession
	}
	now := s.now()
	stored := *item
	stored.ExpiresAt = now.Add(s.ttl).Unix()

	av, err := attributevalue.MarshalMap(stored)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", item.SessionID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(sessionId) OR version = :prev OR expiresAt <= :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(item.Version-1, 10)},
			":now":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrFlowConflict
		}
		return fmt.Errorf("PutItem table=%s session=%s: %w", s.tableName, item.SessionID, err)
	}
	log.Debug().Str("table", s.tableName).Str("session", item.SessionID).Int64("version", item.Version).Msg("Session flow written")
	return nil
}
