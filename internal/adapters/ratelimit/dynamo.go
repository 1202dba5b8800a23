package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/DanielPopoola/donation-gateway/internal/core/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type counterAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoCounter shares fixed-window counts between instances. Each window
// is one item; expires_at lets a table TTL remove old windows.
type DynamoCounter struct {
	client counterAPI
	table  string
	limit  int
	size   time.Duration
	now    func() time.Time
}

var _ ports.RateLimiter = (*DynamoCounter)(nil)

func NewDynamoCounter(client counterAPI, table string, limit int, size time.Duration) *DynamoCounter {
	return &DynamoCounter{
		client: client,
		table:  table,
		limit:  limit,
		size:   size,
		now:    time.Now,
	}
}

func (c *DynamoCounter) Allow(ctx context.Context, key string) (ports.RateDecision, error) {
	start := c.now().Truncate(c.size)
	reset := start.Add(c.size)

	out, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"window_key": &types.AttributeValueMemberS{Value: fmt.Sprintf("%s#%d", key, start.Unix())},
		},
		UpdateExpression: aws.String("ADD request_count :one SET expires_at = if_not_exists(expires_at, :ttl)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(reset.Add(c.size).Unix(), 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return ports.RateDecision{}, fmt.Errorf("increment rate counter: %w", err)
	}

	attr, ok := out.Attributes["request_count"].(*types.AttributeValueMemberN)
	if !ok {
		return ports.RateDecision{}, fmt.Errorf("rate counter returned no request_count")
	}
	count, err := strconv.Atoi(attr.Value)
	if err != nil {
		return ports.RateDecision{}, fmt.Errorf("parse rate counter: %w", err)
	}

	remaining := c.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return ports.RateDecision{
		Allowed:   count <= c.limit,
		Limit:     c.limit,
		Remaining: remaining,
		ResetAt:   reset,
	}, nil
}
