package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/models"
)

// userChatsIndex queries membership rows by userId.
const userChatsIndex = "UserChatsIndex"

type ChatStore struct {
	client *dynamodb.Client
	table  string
	logger *zap.Logger
}

func NewChatStore(client *dynamodb.Client, table string, logger *zap.Logger) *ChatStore {
	return &ChatStore{client: client, table: table, logger: logger}
}

func chatRowKey(chatID, userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"chatId": &types.AttributeValueMemberS{Value: chatID},
		"userId": &types.AttributeValueMemberS{Value: userID},
	}
}

func (s *ChatStore) Put(ctx context.Context, chat models.Chat) error {
	item, err := attributevalue.MarshalMap(chat)
	if err != nil {
		return fmt.Errorf("marshal chat row: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put chat row %s/%s: %w", chat.ChatID, chat.UserID, err)
	}
	return nil
}

func (s *ChatStore) Get(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       chatRowKey(chatID, userID),
	})
	if err != nil {
		return nil, fmt.Errorf("get chat row %s/%s: %w", chatID, userID, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var chat models.Chat
	if err := attributevalue.UnmarshalMap(out.Item, &chat); err != nil {
		return nil, fmt.Errorf("unmarshal chat row: %w", err)
	}
	return &chat, nil
}

func (s *ChatStore) ListByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(userChatsIndex),
		KeyConditionExpression: aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
		// Newest activity first, same as the chat list renders it.
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("query chats for user %s: %w", userID, err)
	}

	chats := make([]models.Chat, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &chats); err != nil {
		return nil, fmt.Errorf("unmarshal chat rows: %w", err)
	}
	return chats, nil
}

func (s *ChatStore) ListByChat(ctx context.Context, chatID string) ([]models.Chat, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("chatId = :chatId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":chatId": &types.AttributeValueMemberS{Value: chatID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query rows for chat %s: %w", chatID, err)
	}

	chats := make([]models.Chat, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &chats); err != nil {
		return nil, fmt.Errorf("unmarshal chat rows: %w", err)
	}
	return chats, nil
}

func (s *ChatStore) UpdateLastActivity(ctx context.Context, chatID, userID string, ts int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              chatRowKey(chatID, userID),
		UpdateExpression: aws.String("SET lastMessageTime = :ts"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ts": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ts)},
		},
	})
	if err != nil {
		return fmt.Errorf("update last activity %s/%s: %w", chatID, userID, err)
	}
	return nil
}

func (s *ChatStore) Delete(ctx context.Context, chatID, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       chatRowKey(chatID, userID),
	})
	if err != nil {
		return fmt.Errorf("delete chat row %s/%s: %w", chatID, userID, err)
	}
	return nil
}
