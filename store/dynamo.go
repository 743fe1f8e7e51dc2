package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/weft/internal/keys"
)

// Index names on the records table. Each is a local secondary index sharing
// the partition key, with the named field as its sort key; that is what lets
// a single Query answer one equality or range predicate group, ordered.
const (
	indexParent      = "idx_parentid"
	indexPredecessor = "idx_predecessorid"
	indexSortIndex   = "idx_sortindex"
	indexModified    = "idx_modified"
)

// writeBatchMax is DynamoDB's BatchWriteItem request cap. DeleteRecordBatch
// accepts up to MaxBatchKeys and chunks down to this internally.
const writeBatchMax = 25

// Dynamo is the production substrate over DynamoDB.
//
// Records live in one table partitioned by account/collection with the
// record id as sort key, so every scan is ancestor-scoped by construction.
// Collection and account entities live in their own tables.
type Dynamo struct {
	client *dynamodb.Client
	config Config
}

// NewDynamo creates a DynamoDB-backed substrate.
func NewDynamo(client *dynamodb.Client, config Config) *Dynamo {
	config.validate()
	return &Dynamo{client: client, config: config}
}

func scanIndex(field string) (string, bool) {
	switch field {
	case FieldParent:
		return indexParent, true
	case FieldPredecessor:
		return indexPredecessor, true
	case FieldSortIndex:
		return indexSortIndex, true
	case FieldModified:
		return indexModified, true
	}
	return "", false
}

func recordKey(scope Scope, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: keys.RecordPK(scope.Account, scope.Collection)},
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (d *Dynamo) GetRecord(ctx context.Context, scope Scope, id string) (Doc, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.config.RecordsTable),
		Key:       recordKey(scope, id),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return unmarshalDoc(result.Item)
}

func (d *Dynamo) PutRecord(ctx context.Context, scope Scope, id string, doc Doc) error {
	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: keys.RecordPK(scope.Account, scope.Collection)}
	item["id"] = &types.AttributeValueMemberS{Value: id}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.config.RecordsTable),
		Item:      item,
	})
	return err
}

func (d *Dynamo) DeleteRecord(ctx context.Context, scope Scope, id string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(d.config.RecordsTable),
		Key:                 recordKey(scope, id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	return err
}

func (d *Dynamo) DeleteRecordBatch(ctx context.Context, scope Scope, ids []string) error {
	if len(ids) > MaxBatchKeys {
		return ErrBatchTooLarge
	}

	for start := 0; start < len(ids); start += writeBatchMax {
		end := start + writeBatchMax
		if end > len(ids) {
			end = len(ids)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, id := range ids[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: recordKey(scope, id)},
			})
		}

		// BatchWriteItem may return unprocessed keys under throttling;
		// resubmit until the chunk drains.
		pending := map[string][]types.WriteRequest{d.config.RecordsTable: requests}
		for len(pending) > 0 {
			out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return err
			}
			pending = out.UnprocessedItems
			if len(pending) > 0 && len(pending[d.config.RecordsTable]) == 0 {
				break
			}
		}
	}
	return nil
}

func (d *Dynamo) ScanCollection(ctx context.Context, scope Scope, limit int) ([]Doc, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.config.RecordsTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: keys.RecordPK(scope.Account, scope.Collection)},
		},
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	return d.queryDocs(ctx, input, limit)
}

func (d *Dynamo) ScanEqual(ctx context.Context, scope Scope, field, value string) ([]Doc, error) {
	index, ok := scanIndex(field)
	if !ok || (field != FieldParent && field != FieldPredecessor) {
		return nil, ErrBadScanField
	}

	input := &dynamodb.QueryInput{
		TableName:                aws.String(d.config.RecordsTable),
		IndexName:                aws.String(index),
		KeyConditionExpression:   aws.String("pk = :pk AND #f = :v"),
		ExpressionAttributeNames: map[string]string{"#f": field},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: keys.RecordPK(scope.Account, scope.Collection)},
			":v":  &types.AttributeValueMemberS{Value: value},
		},
	}
	return d.queryDocs(ctx, input, 0)
}

func (d *Dynamo) ScanRange(ctx context.Context, scope Scope, field string, lower, upper *float64, descending bool) ([]Doc, error) {
	index, ok := scanIndex(field)
	if !ok || (field != FieldSortIndex && field != FieldModified) {
		return nil, ErrBadScanField
	}

	keyCond := "pk = :pk"
	exprNames := map[string]string{"#f": field}
	exprValues := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: keys.RecordPK(scope.Account, scope.Collection)},
	}

	// A sort key supports one condition, so the second bound rides in a
	// filter expression. Both bounds are exclusive.
	var filter *string
	switch {
	case lower != nil && upper != nil:
		keyCond += " AND #f > :lo"
		exprValues[":lo"] = numberAttr(*lower)
		exprValues[":hi"] = numberAttr(*upper)
		filter = aws.String("#f < :hi")
	case lower != nil:
		keyCond += " AND #f > :lo"
		exprValues[":lo"] = numberAttr(*lower)
	case upper != nil:
		keyCond += " AND #f < :hi"
		exprValues[":hi"] = numberAttr(*upper)
	default:
		delete(exprNames, "#f")
		exprNames = nil
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.config.RecordsTable),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String(keyCond),
		FilterExpression:          filter,
		ExpressionAttributeValues: exprValues,
		ScanIndexForward:          aws.Bool(!descending),
	}
	if exprNames != nil {
		input.ExpressionAttributeNames = exprNames
	}
	return d.queryDocs(ctx, input, 0)
}

func (d *Dynamo) EnsureCollection(ctx context.Context, account, name string) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.config.CollectionsTable),
		Item: map[string]types.AttributeValue{
			"account": &types.AttributeValueMemberS{Value: account},
			"name":    &types.AttributeValueMemberS{Value: name},
			"ckey":    &types.AttributeValueMemberS{Value: keys.CollectionKey(account, name)},
		},
		ConditionExpression: aws.String("attribute_not_exists(account)"),
	})

	// Condition failure means another writer got there first; both
	// callers converge on the same entity.
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}

func (d *Dynamo) ListCollections(ctx context.Context, account string) ([]string, error) {
	var names []string
	paginator := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:              aws.String(d.config.CollectionsTable),
		KeyConditionExpression: aws.String("account = :a"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":a": &types.AttributeValueMemberS{Value: account},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if v, ok := item["name"].(*types.AttributeValueMemberS); ok {
				names = append(names, v.Value)
			}
		}
	}
	return names, nil
}

func (d *Dynamo) DeleteCollectionEntity(ctx context.Context, account, name string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.config.CollectionsTable),
		Key: map[string]types.AttributeValue{
			"account": &types.AttributeValueMemberS{Value: account},
			"name":    &types.AttributeValueMemberS{Value: name},
		},
	})
	return err
}

func (d *Dynamo) GetAccount(ctx context.Context, name string) (*Account, error) {
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.config.AccountsTable),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var account Account
	if err := attributevalue.UnmarshalMap(result.Item, &account); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &account, nil
}

func (d *Dynamo) CreateAccount(ctx context.Context, account *Account) error {
	item, err := attributevalue.MarshalMap(account)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.config.AccountsTable),
		Item:      item,
		// "name" is a reserved word in condition expressions.
		ConditionExpression:      aws.String("attribute_not_exists(#n)"),
		ExpressionAttributeNames: map[string]string{"#n": "name"},
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrExists
	}
	return err
}

func (d *Dynamo) PutAccount(ctx context.Context, account *Account) error {
	item, err := attributevalue.MarshalMap(account)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.config.AccountsTable),
		Item:      item,
	})
	return err
}

func (d *Dynamo) DeleteAccount(ctx context.Context, name string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.config.AccountsTable),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: name},
		},
	})
	return err
}

// queryDocs drains a Query through its paginator, stopping early once max
// items are collected (max 0 = no cap).
func (d *Dynamo) queryDocs(ctx context.Context, input *dynamodb.QueryInput, max int) ([]Doc, error) {
	var docs []Doc
	paginator := dynamodb.NewQueryPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			doc, err := unmarshalDoc(raw)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
			if max > 0 && len(docs) == max {
				return docs, nil
			}
		}
	}
	return docs, nil
}

// unmarshalDoc converts a raw item to a Doc, dropping the partition key.
func unmarshalDoc(raw map[string]types.AttributeValue) (Doc, error) {
	var doc map[string]any
	if err := attributevalue.UnmarshalMap(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	delete(doc, "pk")
	return Doc(doc), nil
}

func numberAttr(v float64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
}
