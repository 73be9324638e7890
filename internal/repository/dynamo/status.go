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

type StatusStore struct {
	client *dynamodb.Client
	table  string
	logger *zap.Logger
}

func NewStatusStore(client *dynamodb.Client, table string, logger *zap.Logger) *StatusStore {
	return &StatusStore{client: client, table: table, logger: logger}
}

func (s *StatusStore) Put(ctx context.Context, st models.MessageStatus) error {
	item, err := attributevalue.MarshalMap(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put status %s/%s: %w", st.MessageID, st.UserID, err)
	}
	return nil
}

func (s *StatusStore) ListByMessage(ctx context.Context, messageID string) ([]models.MessageStatus, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("messageId = :messageId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":messageId": &types.AttributeValueMemberS{Value: messageID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query statuses for %s: %w", messageID, err)
	}

	statuses := make([]models.MessageStatus, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &statuses); err != nil {
		return nil, fmt.Errorf("unmarshal statuses: %w", err)
	}
	return statuses, nil
}
