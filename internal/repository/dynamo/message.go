package dynamo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// chatMessagesIndex orders a chat's messages by timestamp.
const chatMessagesIndex = "ChatMessagesIndex"

type MessageStore struct {
	client *dynamodb.Client
	table  string
	logger *zap.Logger
}

func NewMessageStore(client *dynamodb.Client, table string, logger *zap.Logger) *MessageStore {
	return &MessageStore{client: client, table: table, logger: logger}
}

// pageKey is the JSON shape of the continuation token: the
// LastEvaluatedKey of a GSI query carries the index keys plus the table
// key.
type pageKey struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	Timestamp int64  `json:"timestamp"`
}

func encodeCursor(lek map[string]types.AttributeValue) (string, error) {
	if len(lek) == 0 {
		return "", nil
	}
	var pk pageKey
	if err := attributevalue.UnmarshalMap(lek, &pk); err != nil {
		return "", fmt.Errorf("unmarshal page key: %w", err)
	}
	raw, err := json.Marshal(pk)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(raw), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var pk pageKey
	if err := json.Unmarshal(raw, &pk); err != nil {
		return nil, fmt.Errorf("parse cursor: %w", err)
	}
	return map[string]types.AttributeValue{
		"messageId": &types.AttributeValueMemberS{Value: pk.MessageID},
		"chatId":    &types.AttributeValueMemberS{Value: pk.ChatID},
		"timestamp": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", pk.Timestamp)},
	}, nil
}

func (s *MessageStore) Put(ctx context.Context, msg models.Message) error {
	item, err := attributevalue.MarshalMap(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put message %s: %w", msg.MessageID, err)
	}
	return nil
}

func (s *MessageStore) Get(ctx context.Context, messageID string) (*models.Message, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"messageId": &types.AttributeValueMemberS{Value: messageID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", messageID, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var msg models.Message
	if err := attributevalue.UnmarshalMap(out.Item, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &msg, nil
}

func (s *MessageStore) ListByChat(ctx context.Context, chatID string, limit int, cursor string) ([]models.Message, string, error) {
	if limit <= 0 {
		limit = 50
	}
	startKey, err := decodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(chatMessagesIndex),
		KeyConditionExpression: aws.String("chatId = :chatId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":chatId": &types.AttributeValueMemberS{Value: chatID},
		},
		// Newest first; older pages continue from the returned cursor.
		ScanIndexForward:  aws.Bool(false),
		Limit:             aws.Int32(int32(limit)),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		return nil, "", fmt.Errorf("query messages for chat %s: %w", chatID, err)
	}

	messages := make([]models.Message, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &messages); err != nil {
		return nil, "", fmt.Errorf("unmarshal messages: %w", err)
	}

	next, err := encodeCursor(out.LastEvaluatedKey)
	if err != nil {
		return nil, "", err
	}
	return messages, next, nil
}

func (s *MessageStore) UpdateStatus(ctx context.Context, messageID, status string) error {
	// "status" is a DynamoDB reserved word, hence the name placeholder.
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"messageId": &types.AttributeValueMemberS{Value: messageID},
		},
		UpdateExpression:         aws.String("SET #status = :status"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
		},
	})
	if err != nil {
		return fmt.Errorf("update status of %s: %w", messageID, err)
	}
	return nil
}
