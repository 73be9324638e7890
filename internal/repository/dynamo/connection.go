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

// userConnectionsIndex resolves all live connections of one user.
const userConnectionsIndex = "UserConnectionsIndex"

// ConnectionStore keeps connection records keyed by connectionId with a
// DynamoDB TTL on the "ttl" attribute, so registrations that neither a
// disconnect nor delivery-failure pruning cleaned up age out on their
// own.
type ConnectionStore struct {
	client *dynamodb.Client
	table  string
	logger *zap.Logger
}

func NewConnectionStore(client *dynamodb.Client, table string, logger *zap.Logger) *ConnectionStore {
	return &ConnectionStore{client: client, table: table, logger: logger}
}

func (s *ConnectionStore) Register(ctx context.Context, conn models.Connection) error {
	item, err := attributevalue.MarshalMap(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("register connection %s: %w", conn.ConnectionID, err)
	}
	return nil
}

func (s *ConnectionStore) Unregister(ctx context.Context, connectionID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"connectionId": &types.AttributeValueMemberS{Value: connectionID},
		},
	})
	if err != nil {
		return fmt.Errorf("unregister connection %s: %w", connectionID, err)
	}
	return nil
}

func (s *ConnectionStore) ConnectionsFor(ctx context.Context, userID string) ([]string, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(userConnectionsIndex),
		KeyConditionExpression: aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query connections for %s: %w", userID, err)
	}

	conns := make([]models.Connection, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &conns); err != nil {
		return nil, fmt.Errorf("unmarshal connections: %w", err)
	}

	ids := make([]string, 0, len(conns))
	for _, c := range conns {
		ids = append(ids, c.ConnectionID)
	}
	return ids, nil
}
