// Package wire assembles the wall service and the media server from
// configuration.
package wire

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"memorywall/internal/common"
	"memorywall/internal/config"
	"memorywall/internal/dbmongo"
	"memorywall/internal/dbmysql"
	"memorywall/internal/logging"
	"memorywall/internal/media"
	"memorywall/internal/realtime"
	"memorywall/internal/wall"
)

type Application struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *gorm.DB
	Hub     *realtime.Hub
	Service *wall.Service
	Handler *wall.Handler
}

type MediaApplication struct {
	Config *config.Config
	Logger *zap.Logger
	Server *media.HTTPServer
}

func ProvideConfig() *config.Config {
	return config.LoadConfig()
}

func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.EnvFileLoaded {
		logger.Info("no .env file found, using system environment variables")
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideDatabaseConnection(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	logger.Info("connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DatabaseName))

	db, err := dbmysql.NewMySQL(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := dbmysql.Migrate(db); err != nil {
		_ = dbmysql.Close(db)
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return db, func() { _ = dbmysql.Close(db) }, nil
}

func ProvideMongo(cfg *config.Config) (*dbmongo.MongoClient, func(), error) {
	mc, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	return mc, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mc.Close(ctx)
	}, nil
}

func ProvideImageStorage(mc *dbmongo.MongoClient, cfg *config.Config) *dbmongo.ImageStorage {
	return dbmongo.NewImageStorage(mc, cfg.Server.MediaBaseURL)
}

// ProvideSnapshotCache falls back to no caching when Redis is disabled or
// unreachable.
func ProvideSnapshotCache(cfg *config.Config, logger *zap.Logger) (wall.SnapshotCache, func()) {
	if !cfg.Redis.Enabled {
		return wall.NoopCache{}, func() {}
	}
	client, err := wall.ConnectRedis(cfg, logger)
	if err != nil {
		logger.Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
		return wall.NoopCache{}, func() {}
	}
	ttl := time.Duration(cfg.Redis.SnapshotTTL) * time.Second
	return wall.NewRedisCache(client, ttl, logger), func() { _ = client.Close() }
}

func ProvideHub(logger *zap.Logger) (*realtime.Hub, func()) {
	hub := realtime.NewHub(logger)
	return hub, hub.Close
}

// ProvideBroker uses NATS when enabled so that every replica's hub sees
// every write; otherwise events go straight to the local hub.
func ProvideBroker(cfg *config.Config, hub *realtime.Hub, logger *zap.Logger) (realtime.Broker, func(), error) {
	if !cfg.NATS.Enabled {
		b := realtime.NewLocalBroker(hub)
		return b, func() { _ = b.Close() }, nil
	}
	nc, err := realtime.ConnectNATS(cfg.NATS.URL, logger)
	if err != nil {
		return nil, nil, err
	}
	b, err := realtime.NewNATSBroker(nc, cfg.NATS.Subject, hub, logger)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return b, func() {
		_ = b.Close()
		nc.Close()
	}, nil
}

func ProvidePublisher(b realtime.Broker) wall.Publisher {
	return b
}

func ProvideTokenIssuer(cfg *config.Config) (*common.TokenIssuer, error) {
	return common.NewTokenIssuer(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.AdminTokenTTL)*time.Hour,
		time.Duration(cfg.Auth.VisitorTokenTTL)*time.Hour)
}

func ProvideAdminAuth(cfg *config.Config, issuer *common.TokenIssuer, logger *zap.Logger) *wall.AdminAuth {
	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH is not set, admin login is disabled")
	}
	return wall.NewAdminAuth(cfg.Auth.AdminUsername, cfg.Auth.AdminPasswordHash, issuer, cfg.Auth.CookieSecure)
}

func ProvideService(repo wall.Repository, blobs common.BlobStore, publisher wall.Publisher, cache wall.SnapshotCache, logger *zap.Logger, cfg *config.Config) *wall.Service {
	return wall.NewService(repo, blobs, publisher, cache, logger, cfg.Upload.MaxImageBytes)
}

func ProvideHandler(svc wall.Usecase, auth *wall.AdminAuth, issuer *common.TokenIssuer, stream *realtime.StreamHandler, logger *zap.Logger, cfg *config.Config) *wall.Handler {
	return wall.NewHandler(svc, auth, issuer, stream, logger, cfg.Upload.MaxImageBytes)
}

func ProvideMediaServer(storage media.Downloader, logger *zap.Logger) *media.HTTPServer {
	return media.NewHTTPServer(storage, logger)
}
