package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// partitionKey is the table's only key attribute.
const partitionKey = "id"

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore implements QuestionStore on a DynamoDB table whose partition
// key is the string attribute "id".
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

var _ QuestionStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// TableName returns the backing table name.
func (s *DynamoStore) TableName() string { return s.tableName }

// PutRecord writes the record unconditionally, replacing any existing item.
func (s *DynamoStore) PutRecord(ctx context.Context, record *QuestionRecord) error {
	if record == nil || record.ID == "" {
		return ErrEmptyID
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.ID, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem table=%s id=%s: %w", s.tableName, record.ID, err)
	}
	log.Debug().Str("table", s.tableName).Str("id", record.ID).Msg("Question record written")
	return nil
}

// GetRecord reads one record. A missing item is not an error.
func (s *DynamoStore) GetRecord(ctx context.Context, id string) (*QuestionRecord, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			partitionKey: &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem table=%s id=%s: %w", s.tableName, id, err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var record QuestionRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshal id=%s: %w", id, err)
	}
	return &record, nil
}
