package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// onlineWindow is how long a heartbeat keeps a user online. DynamoDB
// TTLs are too coarse for presence, so online is computed at read time
// from the last heartbeat instead.
const onlineWindow = 90 * time.Second

// presenceItem shares the connections table under a prefixed partition
// key. It deliberately has no "userId" attribute so it never surfaces
// in the user-connections index.
type presenceItem struct {
	ConnectionID string `dynamodbav:"connectionId"`
	Online       bool   `dynamodbav:"online"`
	UpdatedAt    int64  `dynamodbav:"updatedAt"`
	LastSeen     int64  `dynamodbav:"lastSeen,omitempty"`
}

type PresenceStore struct {
	client *dynamodb.Client
	table  string
	logger *zap.Logger
}

func NewPresenceStore(client *dynamodb.Client, table string, logger *zap.Logger) *PresenceStore {
	return &PresenceStore{client: client, table: table, logger: logger}
}

func presencePK(userID string) string { return "presence#" + userID }

func (s *PresenceStore) put(ctx context.Context, item presenceItem) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("put presence: %w", err)
	}
	return nil
}

func (s *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	return s.put(ctx, presenceItem{
		ConnectionID: presencePK(userID),
		Online:       true,
		UpdatedAt:    time.Now().UnixMilli(),
	})
}

func (s *PresenceStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	return s.put(ctx, presenceItem{
		ConnectionID: presencePK(userID),
		Online:       false,
		UpdatedAt:    time.Now().UnixMilli(),
		LastSeen:     lastSeen.UnixMilli(),
	})
}

func (s *PresenceStore) Get(ctx context.Context, userID string) (models.Presence, error) {
	presence := models.Presence{UserID: userID}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"connectionId": &types.AttributeValueMemberS{Value: presencePK(userID)},
		},
	})
	if err != nil {
		return presence, fmt.Errorf("get presence for %s: %w", userID, err)
	}
	if out.Item == nil {
		return presence, nil
	}

	var item presenceItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return presence, fmt.Errorf("unmarshal presence: %w", err)
	}

	// A heartbeat that stopped arriving means the user is gone even if
	// no offline write ever ran.
	stale := time.Since(time.UnixMilli(item.UpdatedAt)) > onlineWindow
	presence.Online = item.Online && !stale
	switch {
	case item.LastSeen > 0:
		presence.LastSeen = time.UnixMilli(item.LastSeen)
	case !presence.Online:
		presence.LastSeen = time.UnixMilli(item.UpdatedAt)
	}
	return presence, nil
}
