package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "RUN#"
	skPrefix = "JOB#"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore implements RecordStore on a DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

var _ RecordStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

// --- Internal helpers ---

func runPK(runID string) string {
	return pkPrefix + runID
}

func jobSK(index int) string {
	return fmt.Sprintf("%s%05d", skPrefix, index)
}

func parseJobSK(sk string) (int, error) {
	return strconv.Atoi(strings.TrimPrefix(sk, skPrefix))
}

// expiresAt returns the Unix epoch timestamp for record expiration (now + RecordTTL).
func expiresAt() int64 {
	return time.Now().Add(RecordTTL).Unix()
}

func key(runID string, index int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: runPK(runID)},
		"SK": &types.AttributeValueMemberS{Value: jobSK(index)},
	}
}

// --- Record operations ---

func (s *DynamoStore) PutRecord(ctx context.Context, rec *Record) error {
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = time.Now().Unix()
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s/%d: %w", rec.RunID, rec.Index, err)
	}

	// Key and TTL attributes overwrite any conflicting keys from the record.
	for k, v := range key(rec.RunID, rec.Index) {
		item[k] = v
	}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", runPK(rec.RunID), jobSK(rec.Index), err)
	}

	log.Debug().Str("runId", rec.RunID).Int("index", rec.Index).Str("phase", rec.Phase).Msg("Run record persisted to DynamoDB")
	return nil
}

func (s *DynamoStore) GetRecords(ctx context.Context, runID string) ([]Record, error) {
	pk := runPK(runID)
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}

	records := []Record{}
	// DynamoDB returns up to 1MB per Query call.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s: %w", pk, err)
		}
		for _, item := range result.Items {
			rec, err := recordFromItem(runID, item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return records, nil
}

func recordFromItem(runID string, item map[string]types.AttributeValue) (Record, error) {
	var rec Record
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal record for run %s: %w", runID, err)
	}
	sk, ok := item["SK"].(*types.AttributeValueMemberS)
	if !ok {
		return rec, fmt.Errorf("record for run %s has no SK", runID)
	}
	idx, err := parseJobSK(sk.Value)
	if err != nil {
		return rec, fmt.Errorf("record for run %s: bad SK %q: %w", runID, sk.Value, err)
	}
	rec.RunID = runID
	rec.Index = idx
	return rec, nil
}

func (s *DynamoStore) SetRecordError(ctx context.Context, runID string, index int, msg string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              key(runID, index),
		UpdateExpression: aws.String("SET #p = :p, #e = :e, updatedAt = :u, expiresAt = :x"),
		ExpressionAttributeNames: map[string]string{
			"#p": "phase",
			"#e": "error",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: PhaseError},
			":e": &types.AttributeValueMemberS{Value: msg},
			":u": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().Unix(), 10)},
			":x": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("update record error %s/%d: %w", runID, index, err)
	}

	log.Debug().Str("runId", runID).Int("index", index).Msg("Run record marked failed")
	return nil
}
