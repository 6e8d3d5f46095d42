/*
 * Rolegate
 * Copyright (C) 2025  Rolegate, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package dynamo implements the backend interface on top of an AWS
// DynamoDB table with an (EntityName, SubjectName) composite primary key.
package dynamo

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/rolegate/rolegate"
	"github.com/rolegate/rolegate/lib/backend"
)

const (
	// hashKeyName is the partition key attribute of the table.
	hashKeyName = "EntityName"
	// rangeKeyName is the sort key attribute of the table.
	rangeKeyName = "SubjectName"

	// maxBatchSize is the DynamoDB BatchWriteItem limit.
	maxBatchSize = 25

	// DefaultRetryBudget bounds how many times a batch retries its
	// unprocessed remainder before surfacing an error.
	DefaultRetryBudget = 8

	// defaultRetryBase is the initial backoff between batch retries.
	defaultRetryBase = 50 * time.Millisecond
	// defaultRetryMax caps the backoff between batch retries.
	defaultRetryMax = 2 * time.Second
)

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// TableName is the name of the composite-keyed table.
	TableName string
	// Region is the AWS region the table lives in.
	Region string
	// Endpoint optionally overrides the service endpoint, used to point
	// the backend at DynamoDB Local.
	Endpoint string

	// AccessKey and SecretKey optionally configure static credentials.
	// When empty the ambient credential chain is used.
	AccessKey string
	SecretKey string

	// BatchSize is the number of operations submitted per BatchWriteItem
	// call, at most 25.
	BatchSize int
	// RetryBudget bounds retries of unprocessed batch items.
	RetryBudget int

	// Clock is an optional clock override, used in tests.
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *Config) CheckAndSetDefaults() error {
	if c.TableName == "" {
		return trace.BadParameter("missing dynamo table name")
	}
	if c.BatchSize == 0 {
		c.BatchSize = maxBatchSize
	}
	if c.BatchSize < 0 || c.BatchSize > maxBatchSize {
		return trace.BadParameter("batch size %d is out of range (1..%d)", c.BatchSize, maxBatchSize)
	}
	if c.RetryBudget == 0 {
		c.RetryBudget = DefaultRetryBudget
	}
	if c.RetryBudget < 0 {
		return trace.BadParameter("retry budget must be positive")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Dynamo is a DynamoDB-backed implementation of backend.Backend.
type Dynamo struct {
	cfg    Config
	svc    *dynamodb.Client
	logger *slog.Logger
}

// New creates a DynamoDB backend for the configured table.
func New(ctx context.Context, cfg Config) (*Dynamo, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var svcOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		svcOpts = append(svcOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &Dynamo{
		cfg:    cfg,
		svc:    dynamodb.NewFromConfig(awsCfg, svcOpts...),
		logger: slog.With(rolegate.ComponentKey, rolegate.ComponentDynamoDB),
	}, nil
}

// record is the shape of one row as stored in DynamoDB.
type record struct {
	EntityName  string `dynamodbav:"EntityName"`
	SubjectName string `dynamodbav:"SubjectName"`
	Value       []byte `dynamodbav:"Value"`
	ETag        string `dynamodbav:"ETag"`
}

// Put writes an item subject to cond and returns the new ETag.
func (d *Dynamo) Put(ctx context.Context, item backend.Item, cond backend.Condition) (string, error) {
	if item.Key.IsZero() {
		return "", trace.BadParameter("missing item key")
	}

	r := record{
		EntityName:  item.Key.Entity,
		SubjectName: item.Key.Subject,
		Value:       item.Value,
		ETag:        uuid.NewString(),
	}
	av, err := attributevalue.MarshalMap(r)
	if err != nil {
		return "", trace.Wrap(err)
	}

	input := dynamodb.PutItemInput{
		TableName: aws.String(d.cfg.TableName),
		Item:      av,
	}
	switch {
	case cond.IsNotExists():
		input.ConditionExpression = aws.String("attribute_not_exists(EntityName)")
	default:
		if expected, ok := cond.IsETag(); ok {
			input.ConditionExpression = aws.String("ETag = :etag")
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":etag": &types.AttributeValueMemberS{Value: expected},
			}
		}
	}

	if _, err := d.svc.PutItem(ctx, &input); err != nil {
		return "", trace.Wrap(convertConditionalError(err, item.Key, cond))
	}
	return r.ETag, nil
}

// Get returns a single item with a strongly consistent read.
func (d *Dynamo) Get(ctx context.Context, key backend.Key) (*backend.Item, error) {
	out, err := d.svc.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.cfg.TableName),
		Key:            keyAttributes(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, trace.Wrap(convertError(err))
	}
	if len(out.Item) == 0 {
		return nil, trace.NotFound("key %q is not found", key.String())
	}

	var r record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, trace.Wrap(err)
	}
	return &backend.Item{
		Key:   backend.NewKey(r.EntityName, r.SubjectName),
		Value: r.Value,
		ETag:  r.ETag,
	}, nil
}

// Delete removes an item subject to cond.
func (d *Dynamo) Delete(ctx context.Context, key backend.Key, cond backend.Condition) error {
	input := dynamodb.DeleteItemInput{
		TableName: aws.String(d.cfg.TableName),
		Key:       keyAttributes(key),
	}
	switch {
	case cond.IsNotExists():
		return trace.BadParameter("a not-exists condition makes no sense on delete")
	case cond.IsWhatever():
		// unconditional deletes are idempotent, absent rows are fine
	default:
		if expected, ok := cond.IsETag(); ok {
			input.ConditionExpression = aws.String("ETag = :etag")
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":etag": &types.AttributeValueMemberS{Value: expected},
			}
		}
	}

	if _, err := d.svc.DeleteItem(ctx, &input); err != nil {
		return trace.Wrap(convertConditionalError(err, key, cond))
	}
	return nil
}

// Query returns all items in the partition params.Entity whose subject
// begins with params.SubjectPrefix, following LastEvaluatedKey until the
// range is drained.
func (d *Dynamo) Query(ctx context.Context, params backend.QueryParams) ([]backend.Item, error) {
	if params.Entity == "" {
		return nil, trace.BadParameter("missing query partition key")
	}

	keyCond := "EntityName = :entity"
	values := map[string]types.AttributeValue{
		":entity": &types.AttributeValueMemberS{Value: params.Entity},
	}
	if params.SubjectPrefix != "" {
		keyCond += " AND begins_with(SubjectName, :prefix)"
		values[":prefix"] = &types.AttributeValueMemberS{Value: params.SubjectPrefix}
	}

	var out []backend.Item
	var lastEvaluatedKey map[string]types.AttributeValue
	for {
		page, err := d.svc.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(d.cfg.TableName),
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeValues: values,
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         lastEvaluatedKey,
		})
		if err != nil {
			return nil, trace.Wrap(convertError(err))
		}
		items, err := unmarshalItems(page.Items)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		out = append(out, items...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		lastEvaluatedKey = page.LastEvaluatedKey
	}
}

// Scan walks the whole table with an entity/subject-prefix filter
// expression, paginating internally.
func (d *Dynamo) Scan(ctx context.Context, params backend.ScanParams) ([]backend.Item, error) {
	if params.Entity == "" {
		return nil, trace.BadParameter("missing scan filter partition key")
	}

	filter := "EntityName = :entity"
	values := map[string]types.AttributeValue{
		":entity": &types.AttributeValueMemberS{Value: params.Entity},
	}
	if params.SubjectPrefix != "" {
		filter += " AND begins_with(SubjectName, :prefix)"
		values[":prefix"] = &types.AttributeValueMemberS{Value: params.SubjectPrefix}
	}

	var out []backend.Item
	var lastEvaluatedKey map[string]types.AttributeValue
	for {
		page, err := d.svc.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(d.cfg.TableName),
			FilterExpression:          aws.String(filter),
			ExpressionAttributeValues: values,
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         lastEvaluatedKey,
		})
		if err != nil {
			return nil, trace.Wrap(convertError(err))
		}
		items, err := unmarshalItems(page.Items)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		out = append(out, items...)
		if len(page.LastEvaluatedKey) == 0 {
			backend.SortItems(out)
			return out, nil
		}
		lastEvaluatedKey = page.LastEvaluatedKey
	}
}

// Clock returns the clock used by this backend.
func (d *Dynamo) Clock() clockwork.Clock {
	return d.cfg.Clock
}

// Close releases the backend. The underlying HTTP client is shared and
// needs no teardown.
func (d *Dynamo) Close() error {
	return nil
}

// EnsureTable creates the composite-keyed table if it does not exist yet
// and waits for it to become active.
func (d *Dynamo) EnsureTable(ctx context.Context) error {
	_, err := d.svc.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.cfg.TableName),
	})
	if err == nil {
		return nil
	}
	if !isTableNotFound(err) {
		return trace.Wrap(convertError(err))
	}

	d.logger.InfoContext(ctx, "creating dynamo table", "table", d.cfg.TableName)
	_, err = d.svc.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(d.cfg.TableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(hashKeyName), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(rangeKeyName), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKeyName), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(rangeKeyName), KeyType: types.KeyTypeRange},
		},
	})
	if err != nil {
		return trace.Wrap(convertError(err))
	}

	waiter := dynamodb.NewTableExistsWaiter(d.svc)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.cfg.TableName),
	}, 5*time.Minute); err != nil {
		return trace.Wrap(convertError(err))
	}
	return nil
}

func keyAttributes(key backend.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		hashKeyName:  &types.AttributeValueMemberS{Value: key.Entity},
		rangeKeyName: &types.AttributeValueMemberS{Value: key.Subject},
	}
}

func unmarshalItems(avs []map[string]types.AttributeValue) ([]backend.Item, error) {
	out := make([]backend.Item, 0, len(avs))
	for _, av := range avs {
		var r record
		if err := attributevalue.UnmarshalMap(av, &r); err != nil {
			return nil, trace.Wrap(err)
		}
		out = append(out, backend.Item{
			Key:   backend.NewKey(r.EntityName, r.SubjectName),
			Value: r.Value,
			ETag:  r.ETag,
		})
	}
	return out, nil
}
