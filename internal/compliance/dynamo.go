package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"convexbot/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// recordItem mirrors the DynamoDB item.
// PK   = CUSTOMER#<id> | SHOP#<id>
// Data = the JSON blob returned to data requests
type recordItem struct {
	PK        string `dynamodbav:"PK"`
	Data      string `dynamodbav:"Data"`
	CreatedAt string `dynamodbav:"CreatedAt,omitempty"`
}

// DynamoStore keeps one kind of record (db.KindCustomer or db.KindShop) in a
// table shared by both kinds.
type DynamoStore struct {
	ddb   DynamoClient
	table string
	kind  string
}

func NewDynamoStore(ddb DynamoClient, table, kind string) (*DynamoStore, error) {
	if strings.TrimSpace(table) == "" {
		return nil, errors.New("COMPLIANCE_TABLE not set")
	}
	if kind != db.KindCustomer && kind != db.KindShop {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	return &DynamoStore{ddb: ddb, table: table, kind: kind}, nil
}

func (s *DynamoStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: db.RecordPK(s.kind, id)},
	}
}

func (s *DynamoStore) Get(ctx context.Context, id string) (json.RawMessage, error) {
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("compliance GetItem: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var item recordItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("compliance unmarshal %s: %w", db.RecordPK(s.kind, id), err)
	}
	if !json.Valid([]byte(item.Data)) {
		return nil, fmt.Errorf("compliance record %s: Data is not valid JSON", db.RecordPK(s.kind, id))
	}
	if isNull(json.RawMessage(item.Data)) {
		return nil, ErrNotFound
	}
	return json.RawMessage(item.Data), nil
}

// Put stores a record. Used by ingestion and tests; the webhooks never create records.
func (s *DynamoStore) Put(ctx context.Context, id string, data json.RawMessage) error {
	if !json.Valid(data) || isNull(data) {
		return errors.New("compliance record data must be valid non-null JSON")
	}
	av, err := attributevalue.MarshalMap(recordItem{
		PK:        db.RecordPK(s.kind, id),
		Data:      string(data),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("compliance marshal: %w", err)
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("compliance PutItem: %w", err)
	}
	return nil
}

// Delete removes the record; a missing record is reported as ErrNotFound.
func (s *DynamoStore) Delete(ctx context.Context, id string) error {
	_, err := s.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(id),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrNotFound
		}
		return fmt.Errorf("compliance DeleteItem: %w", err)
	}
	return nil
}
