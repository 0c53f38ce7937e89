package tenant

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore reads tenant records from a DynamoDB table keyed by tenantId.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("tenant: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("tenant: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName}
}

// Name implements Store.
func (s *DynamoStore) Name() Provenance { return ProvenanceDynamo }

// Get returns ErrNotFound when the item is absent.
func (s *DynamoStore) Get(ctx context.Context, id string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"tenantId": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("tenant: dynamodb get: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("tenant: unmarshal dynamodb item: %w", err)
	}
	return &rec, nil
}
