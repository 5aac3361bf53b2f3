//go:build wireinject

package di

import (
	"context"
	"io"

	"github.com/google/wire"

	"github.com/sandeepkv93/qr-attendance-service/internal/app"
	"github.com/sandeepkv93/qr-attendance-service/internal/config"
)

func InitializeApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app.App, error) {
	wire.Build(infraSet, coreSet, httpSet)
	return nil, nil
}

func InitializeServices(ctx context.Context, cfg *config.Config, logOut io.Writer) (*Services, error) {
	wire.Build(
		provideLogProvider,
		provideLogger,
		provideRuntime,
		provideDB,
		provideRedisClient,
		coreSet,
		provideServices,
	)
	return nil, nil
}
