package di

import (
	"github.com/redis/go-redis/v9"

	"github.com/fitgrid-app/backend-chat/internal/client"
	"github.com/fitgrid-app/backend-chat/internal/handler"
	"github.com/fitgrid-app/backend-chat/internal/provider"
	"github.com/fitgrid-app/backend-chat/internal/repository"
	"github.com/fitgrid-app/backend-chat/internal/service"
	"github.com/fitgrid-app/backend-chat/pkg/config"
	"github.com/fitgrid-app/backend-chat/pkg/database"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
)

// Container holds all dependencies for the chat service
type Container struct {
	// Infrastructure
	DB     *database.PostgresDB
	Redis  *redis.Client
	Logger *logger.Logger

	// External clients
	Channels provider.ChannelProvider
	Events   client.EventClient

	// Repositories
	RoomRepo       repository.RoomRepository
	MembershipRepo repository.MembershipRepository
	UserRepo       repository.UserRepository
	Cache          service.MembershipCacheStore

	// Services
	Resolver         service.ActorResolver
	RoomService      service.RoomService
	AuthorizeService service.AuthorizeService

	// Handlers
	HealthHandler  *handler.HealthHandler
	RoomHandler    *handler.RoomHandler
	WebhookHandler *handler.WebhookHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	Config *config.Config
	DB     *database.PostgresDB
	Redis  *redis.Client
	Logger *logger.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:     cfg.DB,
		Redis:  cfg.Redis,
		Logger: cfg.Logger,
	}

	// External clients
	c.Channels = provider.NewHTTPChannelProvider(&provider.HTTPProviderConfig{
		BaseURL: cfg.Config.Provider.BaseURL,
		APIKey:  cfg.Config.Provider.APIKey,
		Timeout: cfg.Config.Provider.Timeout,
	})
	if cfg.Config.Events.Enabled {
		c.Events = client.NewHTTPEventClient(cfg.Config.Events.BaseURL, cfg.Config.Events.Timeout)
	} else {
		c.Events = client.NewNoOpEventClient()
	}

	// Repositories
	pool := cfg.DB.Pool()
	c.RoomRepo = repository.NewPostgresRoomRepository(pool)
	c.MembershipRepo = repository.NewPostgresMembershipRepository(pool)
	c.UserRepo = repository.NewPostgresUserRepository(pool)
	c.Cache = repository.NewMembershipCache(cfg.Redis, nil)

	// Services
	c.Resolver = service.NewActorResolver(c.UserRepo, c.Cache, c.Logger)
	c.RoomService = service.NewRoomService(
		c.RoomRepo,
		c.MembershipRepo,
		c.UserRepo,
		c.Channels,
		c.Cache,
		c.Logger,
		&service.RoomServiceConfig{
			EmptyGroupTeardown: service.TeardownPolicy(cfg.Config.Rooms.EmptyGroupTeardown),
		},
	)
	c.AuthorizeService = service.NewAuthorizeService(
		c.Resolver,
		c.RoomRepo,
		c.MembershipRepo,
		c.Cache,
		c.Events,
		c.Logger,
	)

	// Handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.RoomHandler = handler.NewRoomHandler(c.RoomService, c.Resolver, c.Logger)
	c.WebhookHandler = handler.NewWebhookHandler(c.AuthorizeService, cfg.Config.Provider.WebhookSecret, c.Logger)

	return c
}
