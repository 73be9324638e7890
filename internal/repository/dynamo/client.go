// Package dynamo implements the repository interfaces on DynamoDB,
// keeping the original table design: Chats keyed (chatId, userId) with
// a UserChatsIndex GSI, Messages keyed messageId with a
// ChatMessagesIndex GSI, MessageStatus keyed (messageId, userId) and
// Connections keyed connectionId with a UserConnectionsIndex GSI and a
// TTL attribute.
package dynamo

import (
	"context"
	"fmt"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// NewClient builds a DynamoDB client from the default credential chain.
func NewClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}
