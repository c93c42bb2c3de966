package store

import (
	"context"
	"errors"
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
	skMeta   = "META"
	skEval   = "EVAL#"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore implements RunStore using AWS DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// Compile-time interface check.
var _ RunStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

// --- Internal helpers ---

// runPK returns the partition key for a run.
func runPK(runID string) string {
	return pkPrefix + runID
}

// expiresAt returns the Unix epoch timestamp for record expiration (now + RunTTL).
func (s *DynamoStore) expiresAt() int64 {
	return s.now().Add(RunTTL).Unix()
}

func keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// putItem marshals a domain object and writes it to DynamoDB with PK, SK, and TTL.
// The domain object should use dynamodbav:"-" for fields derived from PK/SK.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	// Add key and TTL attributes (overwrite any conflicting keys from the data).
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.expiresAt(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads a single item from DynamoDB and unmarshals it into out.
// Returns false if the item does not exist (out is not modified).
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       keyOf(pk, sk),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// queryBySKPrefix queries all items for a run where SK begins with the given prefix.
func (s *DynamoStore) queryBySKPrefix(ctx context.Context, runID, skPrefix string) ([]map[string]types.AttributeValue, error) {
	pk := runPK(runID)

	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}

	var allItems []map[string]types.AttributeValue

	// DynamoDB returns up to 1MB per Query call.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s SK prefix=%s: %w", pk, skPrefix, err)
		}
		allItems = append(allItems, result.Items...)

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return allItems, nil
}

// --- Run operations ---

func (s *DynamoStore) PutRun(ctx context.Context, run *Run) error {
	now := s.now().Unix()
	if run.CreatedAt == 0 {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	if err := s.putItem(ctx, runPK(run.ID), skMeta, run); err != nil {
		return fmt.Errorf("put run %s: %w", run.ID, err)
	}

	log.Debug().Str("run_id", run.ID).Str("status", run.Status).Msg("Run persisted to DynamoDB")
	return nil
}

func (s *DynamoStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	found, err := s.getItem(ctx, runPK(runID), skMeta, &run)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if !found {
		return nil, nil
	}

	run.ID = runID
	return &run, nil
}

func (s *DynamoStore) SetDriveURL(ctx context.Context, runID, url string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 keyOf(runPK(runID), skMeta),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		UpdateExpression:    aws.String("SET googleDriveUrl = :u, updatedAt = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: url},
			":t": &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Unix(), 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("set drive url %s: %w", runID, ErrNotFound)
		}
		return fmt.Errorf("set drive url %s: %w", runID, err)
	}

	log.Debug().Str("run_id", runID).Msg("Drive URL recorded")
	return nil
}

// --- Evaluation operations ---

func (s *DynamoStore) PutEvaluation(ctx context.Context, runID string, eval *Evaluation) error {
	if eval.CreatedAt == 0 {
		eval.CreatedAt = s.now().Unix()
	}
	eval.RunID = runID
	if err := s.putItem(ctx, runPK(runID), skEval+eval.ID, eval); err != nil {
		return fmt.Errorf("put evaluation %s/%s: %w", runID, eval.ID, err)
	}

	log.Debug().
		Str("run_id", runID).
		Str("eval_id", eval.ID).
		Float64("score", eval.Score).
		Msg("Evaluation persisted")
	return nil
}

func (s *DynamoStore) ListEvaluations(ctx context.Context, runID string) ([]*Evaluation, error) {
	items, err := s.queryBySKPrefix(ctx, runID, skEval)
	if err != nil {
		return nil, fmt.Errorf("list evaluations %s: %w", runID, err)
	}

	evals := make([]*Evaluation, 0, len(items))
	for _, item := range items {
		var e Evaluation
		if err := attributevalue.UnmarshalMap(item, &e); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation: %w", err)
		}
		if sk, ok := item["SK"].(*types.AttributeValueMemberS); ok {
			e.ID = strings.TrimPrefix(sk.Value, skEval)
		}
		e.RunID = runID
		evals = append(evals, &e)
	}
	return evals, nil
}
