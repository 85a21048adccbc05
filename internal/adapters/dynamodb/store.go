// Package dynamodb keeps playlist history and conversations in a single
// DynamoDB table keyed by user_id, the layout the Lambda deployment uses.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/charmbracelet/log"

	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/ports"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

const (
	keyAttr       = "user_id"
	sessionPrefix = "session#"

	// appendAttempts bounds the read-modify-write loop under contention.
	appendAttempts = 5
)

// API is the slice of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type historyItem struct {
	UserID      string                  `dynamodbav:"user_id"`
	Playlists   []domain.PlaylistRecord `dynamodbav:"playlists"`
	LastUpdated string                  `dynamodbav:"last_updated"`
	Version     int64                   `dynamodbav:"version"`
}

type sessionItem struct {
	UserID      string        `dynamodbav:"user_id"`
	History     []domain.Turn `dynamodbav:"history"`
	LastUpdated string        `dynamodbav:"last_updated"`
}

// Store implements the history and session ports on one table.
type Store struct {
	api    API
	table  string
	now    func() time.Time
	logger *log.Logger
}

var (
	_ ports.HistoryStore = (*Store)(nil)
	_ ports.SessionStore = (*Store)(nil)
)

// NewStore wraps an existing client.
func NewStore(api API, table string, logger *log.Logger) *Store {
	return &Store{api: api, table: table, now: time.Now, logger: logging.Component(logger, "dynamodb")}
}

// New builds a client from the default AWS configuration.
func New(ctx context.Context, region, table string, logger *log.Logger) (*Store, error) {
	if table == "" {
		return nil, fmt.Errorf("dynamodb: table name is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: load aws config: %w", err)
	}
	return NewStore(dynamodb.NewFromConfig(cfg), table, logger), nil
}

func key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{keyAttr: &types.AttributeValueMemberS{Value: id}}
}

// GetHistory returns the owner's playlists oldest first.
func (s *Store) GetHistory(ctx context.Context, ownerID string) ([]domain.PlaylistRecord, error) {
	item, _, err := s.loadHistory(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range item.Playlists {
		item.Playlists[i].OwnerID = ownerID
	}
	if item.Playlists == nil {
		return []domain.PlaylistRecord{}, nil
	}
	return item.Playlists, nil
}

// AppendHistory adds record to the owner's list. The write is conditional on
// the version read, so two concurrent appends cannot overwrite each other;
// the loser re-reads and tries again.
func (s *Store) AppendHistory(ctx context.Context, ownerID string, record domain.PlaylistRecord) error {
	for attempt := 1; attempt <= appendAttempts; attempt++ {
		item, exists, err := s.loadHistory(ctx, ownerID)
		if err != nil {
			return err
		}

		expected := item.Version
		item.UserID = ownerID
		item.Playlists = append(item.Playlists, record)
		item.LastUpdated = s.now().UTC().Format(time.RFC3339Nano)
		item.Version = expected + 1

		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("dynamodb: marshal history: %w", err)
		}

		input := &dynamodb.PutItemInput{
			TableName:                aws.String(s.table),
			Item:                     av,
			ExpressionAttributeNames: map[string]string{"#v": "version"},
		}
		if exists {
			input.ConditionExpression = aws.String("#v = :v OR attribute_not_exists(#v)")
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
			}
		} else {
			input.ConditionExpression = aws.String("attribute_not_exists(#v)")
		}

		_, err = s.api.PutItem(ctx, input)
		if err == nil {
			return nil
		}
		var conflict *types.ConditionalCheckFailedException
		if !errors.As(err, &conflict) {
			return fmt.Errorf("dynamodb: put history: %w", err)
		}
		s.logger.Warn("history write conflict, retrying", "owner", ownerID, "attempt", attempt)
	}
	return fmt.Errorf("dynamodb: put history: gave up after %d conflicting writes", appendAttempts)
}

func (s *Store) loadHistory(ctx context.Context, ownerID string) (historyItem, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key(ownerID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return historyItem{}, false, fmt.Errorf("dynamodb: get history: %w", err)
	}
	if len(out.Item) == 0 {
		return historyItem{}, false, nil
	}

	var item historyItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return historyItem{}, false, fmt.Errorf("dynamodb: unmarshal history: %w", err)
	}
	return item, true, nil
}

// GetTurns returns nil for an unknown session.
func (s *Store) GetTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(sessionPrefix + sessionID),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb: get session: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("dynamodb: unmarshal session: %w", err)
	}
	return item.History, nil
}

// SaveTurns overwrites the session with the capped conversation.
func (s *Store) SaveTurns(ctx context.Context, sessionID string, turns []domain.Turn) error {
	av, err := attributevalue.MarshalMap(sessionItem{
		UserID:      sessionPrefix + sessionID,
		History:     domain.CapTurns(turns),
		LastUpdated: s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("dynamodb: marshal session: %w", err)
	}

	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("dynamodb: put session: %w", err)
	}
	return nil
}
