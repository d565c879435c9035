//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"memorywall/internal/common"
	"memorywall/internal/dbmongo"
	"memorywall/internal/media"
	"memorywall/internal/realtime"
	"memorywall/internal/wall"
)

func InitializeApplication() (*Application, func(), error) {
	wire.Build(
		ProvideConfig,
		ProvideLogger,
		ProvideDatabaseConnection,
		ProvideMongo,
		ProvideImageStorage,
		wire.Bind(new(common.BlobStore), new(*dbmongo.ImageStorage)),
		ProvideSnapshotCache,
		ProvideHub,
		ProvideBroker,
		ProvidePublisher,
		ProvideTokenIssuer,
		ProvideAdminAuth,
		wall.NewRepository,
		ProvideService,
		wire.Bind(new(wall.Usecase), new(*wall.Service)),
		realtime.NewStreamHandler,
		ProvideHandler,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil, nil
}

func InitializeMediaServer() (*MediaApplication, func(), error) {
	wire.Build(
		ProvideConfig,
		ProvideLogger,
		ProvideMongo,
		ProvideImageStorage,
		wire.Bind(new(media.Downloader), new(*dbmongo.ImageStorage)),
		ProvideMediaServer,
		wire.Struct(new(MediaApplication), "*"),
	)
	return &MediaApplication{}, nil, nil
}
