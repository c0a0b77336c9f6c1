package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wrenchline/wrenchline/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore persists pending confirmations to DynamoDB. The table's TTL
// attribute is expiresAt; expiry is also enforced on read because DynamoDB
// TTL deletion lags.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
	now       func() time.Time
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("confirm: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("confirm: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &DynamoStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *DynamoStore) Put(ctx context.Context, rec *PendingConfirmation) error {
	if rec == nil {
		return errors.New("confirm: record cannot be nil")
	}
	if rec.Key == "" {
		return errors.New("confirm: record key required")
	}
	now := s.now().UTC()
	rec.CreatedAt = now.Format(time.RFC3339Nano)
	if rec.ExpiresAt == 0 {
		rec.ExpiresAt = now.Add(TTL).Unix()
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("confirm: failed to marshal record: %w", err)
	}

	// Unconditional put: a second booking from the same caller replaces
	// the first.
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("confirm: failed to persist record: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, key string) (*PendingConfirmation, error) {
	if key == "" {
		return nil, errors.New("confirm: key required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"confirmationKey": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("confirm: failed to fetch record: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var rec PendingConfirmation
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("confirm: failed to decode record: %w", err)
	}
	if rec.ExpiresAt > 0 && rec.ExpiresAt <= s.now().Unix() {
		return nil, nil
	}
	return &rec, nil
}

func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("confirm: key required")
	}
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"confirmationKey": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("confirm: failed to delete record: %w", err)
	}
	return nil
}
