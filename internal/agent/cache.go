package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type CacheClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// AnswerCache stores recent answers keyed by model and question. Items carry
// an ExpiresAt attribute for DynamoDB TTL; expired items that TTL has not
// reclaimed yet are treated as misses.
type AnswerCache struct {
	ddb   CacheClient
	table string
	ttl   time.Duration
	now   func() time.Time
}

func NewAnswerCache(ddb CacheClient, table string, ttl time.Duration) *AnswerCache {
	return &AnswerCache{
		ddb:   ddb,
		table: table,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func NormalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func cachePK(modelID string) string {
	return "MODEL#" + modelID
}

func cacheSK(question string) string {
	sum := sha256.Sum256([]byte(NormalizeQuestion(question)))
	return "Q#" + hex.EncodeToString(sum[:])
}

func (c *AnswerCache) Get(ctx context.Context, modelID, question string) (string, bool, error) {
	out, err := c.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: cachePK(modelID)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: cacheSK(question)},
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("cache GetItem: %w", err)
	}
	if len(out.Item) == 0 {
		return "", false, nil
	}

	if exp, ok := out.Item["ExpiresAt"].(*ddbtypes.AttributeValueMemberN); ok {
		n, err := strconv.ParseInt(exp.Value, 10, 64)
		if err == nil && n <= c.now().Unix() {
			return "", false, nil
		}
	}
	answer, ok := out.Item["Answer"].(*ddbtypes.AttributeValueMemberS)
	if !ok || answer.Value == "" {
		return "", false, nil
	}
	return answer.Value, true, nil
}

func (c *AnswerCache) Put(ctx context.Context, modelID, question, answer string) error {
	now := c.now()
	_, err := c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item: map[string]ddbtypes.AttributeValue{
			"PK":        &ddbtypes.AttributeValueMemberS{Value: cachePK(modelID)},
			"SK":        &ddbtypes.AttributeValueMemberS{Value: cacheSK(question)},
			"Answer":    &ddbtypes.AttributeValueMemberS{Value: answer},
			"CreatedAt": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			"ExpiresAt": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(c.ttl).Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("cache PutItem: %w", err)
	}
	return nil
}
