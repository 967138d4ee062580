// Package dynamodb provides a DynamoDB-backed session repository.
//
// A session is one partition: a META item holding the binding and turn count,
// and one TURN#<seq> item per turn. Appends write all turns and bump the count
// in a single conditional transaction.
package dynamodb

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

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

const (
	skMeta         = "META"
	skTurnPrefix   = "TURN#"
	maxAppendTries = 5
	batchLimit     = 25
)

// dynamodbAPI is the subset of the DynamoDB client used by the repository.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Ensure SessionRepository implements the interface.
var _ driven.SessionRepository = (*SessionRepository)(nil)

// SessionRepository stores sessions in a DynamoDB table keyed by PK/SK.
type SessionRepository struct {
	api       dynamodbAPI
	tableName string
}

// New creates a session repository over an existing table.
func New(api dynamodbAPI, tableName string) (*SessionRepository, error) {
	if api == nil {
		return nil, errors.New("dynamodb: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamodb: table name must not be empty")
	}
	return &SessionRepository{api: api, tableName: tableName}, nil
}

func sessionPK(id string) string {
	return "SESSION#" + id
}

func turnSK(seq int) string {
	return fmt.Sprintf("%s%08d", skTurnPrefix, seq)
}

func key(id, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(id)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// CreateSession writes the META item if the session does not exist.
func (r *SessionRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	item := key(session.ID, skMeta)
	item["document_id"] = &types.AttributeValueMemberS{Value: session.DocumentID}
	item["context_start"] = &types.AttributeValueMemberN{Value: strconv.Itoa(session.ContextStart)}
	item["turn_count"] = &types.AttributeValueMemberN{Value: "0"}
	item["created_at"] = &types.AttributeValueMemberS{Value: session.CreatedAt.UTC().Format(time.RFC3339Nano)}

	_, err := r.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if isConditionFailure(err) {
		return fmt.Errorf("%w: session %s already exists", domain.ErrInvalidInput, session.ID)
	}
	if err != nil {
		return fmt.Errorf("dynamodb: CreateSession: %w", err)
	}
	return nil
}

// GetSession reads the META item and every turn in sequence order.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	meta, err := r.getMeta(ctx, id)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{ID: id}
	session.DocumentID = stringAttr(meta, "document_id")
	if session.ContextStart, err = intAttr(meta, "context_start"); err != nil {
		return nil, fmt.Errorf("dynamodb: GetSession decode context_start: %w", err)
	}
	if ts := stringAttr(meta, "created_at"); ts != "" {
		if session.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("dynamodb: GetSession decode created_at: %w", err)
		}
	}

	var startKey map[string]types.AttributeValue
	for {
		out, err := r.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: sessionPK(id)},
				":prefix": &types.AttributeValueMemberS{Value: skTurnPrefix},
			},
			ScanIndexForward:  aws.Bool(true),
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb: GetSession query: %w", err)
		}
		for _, item := range out.Items {
			turn, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("dynamodb: GetSession decode turn: %w", err)
			}
			session.Turns = append(session.Turns, turn)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return session, nil
}

// AppendTurns writes the turns and advances turn_count in one transaction.
// A concurrent append makes the count condition fail and the write is retried
// against the new tail.
func (r *SessionRepository) AppendTurns(ctx context.Context, id string, turns []domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	for attempt := 0; attempt < maxAppendTries; attempt++ {
		meta, err := r.getMeta(ctx, id)
		if err != nil {
			return err
		}
		count, err := intAttr(meta, "turn_count")
		if err != nil {
			return fmt.Errorf("dynamodb: AppendTurns decode turn_count: %w", err)
		}

		items := make([]types.TransactWriteItem, 0, len(turns)+1)
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(r.tableName),
				Key:                 key(id, skMeta),
				UpdateExpression:    aws.String("SET turn_count = :next"),
				ConditionExpression: aws.String("turn_count = :current"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":current": &types.AttributeValueMemberN{Value: strconv.Itoa(count)},
					":next":    &types.AttributeValueMemberN{Value: strconv.Itoa(count + len(turns))},
				},
			},
		})
		for i, turn := range turns {
			item, err := turnItem(id, count+i, turn)
			if err != nil {
				return err
			}
			items = append(items, types.TransactWriteItem{
				Put: &types.Put{
					TableName:           aws.String(r.tableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(SK)"),
				},
			})
		}

		_, err = r.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return nil
		}
		if !isConditionFailure(err) {
			return fmt.Errorf("dynamodb: AppendTurns: %w", err)
		}
	}
	return fmt.Errorf("dynamodb: AppendTurns: session %s kept changing after %d attempts", id, maxAppendTries)
}

// BindDocument updates the META item of an existing session.
func (r *SessionRepository) BindDocument(ctx context.Context, id, documentID string, contextStart int) error {
	_, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 key(id, skMeta),
		UpdateExpression:    aws.String("SET document_id = :doc, context_start = :start"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":doc":   &types.AttributeValueMemberS{Value: documentID},
			":start": &types.AttributeValueMemberN{Value: strconv.Itoa(contextStart)},
		},
	})
	if isConditionFailure(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("dynamodb: BindDocument: %w", err)
	}
	return nil
}

// DeleteSession removes the META item, then the turn items in batches.
func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 key(id, skMeta),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if isConditionFailure(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("dynamodb: DeleteSession: %w", err)
	}

	out, err := r.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(id)},
			":prefix": &types.AttributeValueMemberS{Value: skTurnPrefix},
		},
		ProjectionExpression: aws.String("PK, SK"),
	})
	if err != nil {
		return fmt.Errorf("dynamodb: DeleteSession query turns: %w", err)
	}

	for start := 0; start < len(out.Items); start += batchLimit {
		end := min(start+batchLimit, len(out.Items))
		requests := make([]types.WriteRequest, 0, end-start)
		for _, item := range out.Items[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
					"PK": item["PK"],
					"SK": item["SK"],
				}},
			})
		}
		if _, err := r.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: requests},
		}); err != nil {
			return fmt.Errorf("dynamodb: DeleteSession batch delete: %w", err)
		}
	}
	return nil
}

func (r *SessionRepository) getMeta(ctx context.Context, id string) (map[string]types.AttributeValue, error) {
	out, err := r.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key(id, skMeta),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: get session meta: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, domain.ErrNotFound
	}
	return out.Item, nil
}

func turnItem(id string, seq int, turn domain.Turn) (map[string]types.AttributeValue, error) {
	item := key(id, turnSK(seq))
	item["role"] = &types.AttributeValueMemberS{Value: string(turn.Role)}
	item["content"] = &types.AttributeValueMemberS{Value: turn.Content}
	item["created_at"] = &types.AttributeValueMemberS{Value: turn.CreatedAt.UTC().Format(time.RFC3339Nano)}
	if len(turn.Provenance) > 0 {
		enc, err := json.Marshal(turn.Provenance)
		if err != nil {
			return nil, fmt.Errorf("dynamodb: encode provenance: %w", err)
		}
		item["provenance"] = &types.AttributeValueMemberS{Value: string(enc)}
	}
	return item, nil
}

func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	turn := domain.Turn{
		Role:    domain.TurnRole(stringAttr(item, "role")),
		Content: stringAttr(item, "content"),
	}
	if ts := stringAttr(item, "created_at"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return turn, err
		}
		turn.CreatedAt = t
	}
	if p := stringAttr(item, "provenance"); p != "" {
		if err := json.Unmarshal([]byte(p), &turn.Provenance); err != nil {
			return turn, err
		}
	}
	return turn, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func intAttr(item map[string]types.AttributeValue, name string) (int, error) {
	v, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}
	return strconv.Atoi(v.Value)
}

// isConditionFailure reports a failed condition expression, either on a single
// write or as the cancellation reason of a transaction.
func isConditionFailure(err error) bool {
	if err == nil {
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
