package main

import (
	"context"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jonathan1021/chat-whatsapp/internal/api"
	"github.com/Jonathan1021/chat-whatsapp/internal/chat"
	"github.com/Jonathan1021/chat-whatsapp/internal/config"
	"github.com/Jonathan1021/chat-whatsapp/internal/db"
	"github.com/Jonathan1021/chat-whatsapp/internal/middleware"
	"github.com/Jonathan1021/chat-whatsapp/internal/observ"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository/badgerstore"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository/dynamo"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository/postgres"
	"github.com/Jonathan1021/chat-whatsapp/internal/repository/redisstore"
	"github.com/Jonathan1021/chat-whatsapp/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// repos bundles every repository the service layer needs, regardless
// of which backends produced them.
type repos struct {
	chats       repository.ChatRepository
	messages    repository.MessageRepository
	statuses    repository.StatusRepository
	users       repository.UserRepository
	connections repository.ConnectionRepository
	presence    repository.PresenceRepository
}

func run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// The embedded backends share one Badger handle; open it lazily so
	// an all-remote deployment never touches the local disk.
	var badgerDB *badger.DB
	openBadger := func() (*badger.DB, error) {
		if badgerDB == nil {
			badgerDB, err = badgerstore.Open(cfg.BadgerPath, logger)
			if err != nil {
				return nil, fmt.Errorf("open badger at %s: %w", cfg.BadgerPath, err)
			}
		}
		return badgerDB, nil
	}
	defer func() {
		if badgerDB != nil {
			_ = badgerDB.Close()
		}
	}()

	var r repos
	switch cfg.StorageBackend {
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			return fmt.Errorf("create dynamodb client: %w", err)
		}
		r.chats = dynamo.NewChatStore(client, cfg.ChatsTable, logger)
		r.messages = dynamo.NewMessageStore(client, cfg.MessagesTable, logger)
		r.statuses = dynamo.NewStatusStore(client, cfg.MessageStatusTable, logger)

		database, err := db.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()
		r.users = postgres.NewUserStore(database.Pool())
	case "badger":
		bdb, err := openBadger()
		if err != nil {
			return err
		}
		r.chats = badgerstore.NewChatStore(bdb, logger)
		r.messages = badgerstore.NewMessageStore(bdb, logger)
		r.statuses = badgerstore.NewStatusStore(bdb, logger)
		r.users = badgerstore.NewUserStore(bdb, logger)
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	switch cfg.RegistryBackend {
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer client.Close()
		r.connections = redisstore.NewConnectionStore(client, logger)
		r.presence = redisstore.NewPresenceStore(client, logger)
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			return fmt.Errorf("create dynamodb client: %w", err)
		}
		r.connections = dynamo.NewConnectionStore(client, cfg.ConnectionsTable, logger)
		r.presence = dynamo.NewPresenceStore(client, cfg.ConnectionsTable, logger)
	case "badger":
		bdb, err := openBadger()
		if err != nil {
			return err
		}
		r.connections = badgerstore.NewConnectionStore(bdb, logger)
		r.presence = badgerstore.NewPresenceStore(bdb, logger)
	default:
		return fmt.Errorf("unknown REGISTRY_BACKEND %q", cfg.RegistryBackend)
	}

	logger.Info("repositories initialized",
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("registry_backend", cfg.RegistryBackend),
	)

	hub := ws.NewHub(logger)
	resolver := chat.NewResolver(r.chats, logger)
	store := chat.NewStore(r.messages, r.chats, r.statuses, logger)
	dispatcher := chat.NewDispatcher(r.connections, r.users, hub, logger)
	service := chat.NewService(resolver, store, dispatcher, r.chats, r.users, r.presence, logger)
	groups := chat.NewGroupEngine(r.chats, r.users, store, dispatcher, logger)

	authHandler := api.NewAuthHandler(r.users, cfg.JWTSecret, logger)
	chatHandler := api.NewChatHandler(service, logger)
	groupHandler := api.NewGroupHandler(groups, logger)
	userHandler := api.NewUserHandler(r.users, r.presence, logger)
	wsHandler := ws.NewHandler(hub, r.connections, r.presence, service, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery())

	srv.GET("/v1/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv.POST("/v1/auth/signup", authHandler.Signup)
	srv.POST("/v1/auth/login", authHandler.Login)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/ws", wsHandler.Connect)

	v1.GET("/users", userHandler.List)
	v1.GET("/users/me", userHandler.Me)
	v1.GET("/users/:userId/presence", userHandler.Presence)

	v1.GET("/chats", chatHandler.List)
	v1.POST("/chats", chatHandler.Open)
	v1.GET("/chats/:chatId/messages", chatHandler.Messages)
	v1.POST("/chats/:chatId/messages", chatHandler.Send)
	v1.PATCH("/messages/:messageId/status", chatHandler.UpdateStatus)

	v1.POST("/groups", groupHandler.Create)
	v1.PATCH("/groups/:groupId", groupHandler.UpdateInfo)
	v1.POST("/groups/:groupId/members", groupHandler.AddMembers)
	v1.DELETE("/groups/:groupId/members/:userId", groupHandler.RemoveMember)
	v1.POST("/groups/:groupId/admins/:userId", groupHandler.Promote)
	v1.DELETE("/groups/:groupId/admins/:userId", groupHandler.Demote)
	v1.POST("/groups/:groupId/leave", groupHandler.Leave)

	logger.Info("starting server",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)
	return srv.Run(":" + cfg.Port)
}
