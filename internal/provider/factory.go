package provider

import (
	"context"
	"fmt"

	"github.com/foldergate/foldergate/internal/config"
	"github.com/foldergate/foldergate/internal/provider/local"
	"github.com/foldergate/foldergate/internal/provider/postgres"
	s3provider "github.com/foldergate/foldergate/internal/provider/s3"
)

// New creates the provider named by cfg.Provider.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case "local":
		return local.New(local.Config{RootPath: cfg.LocalRoot, CreateDirs: true})
	case "s3":
		return s3provider.New(ctx, s3provider.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
			Prefix:    cfg.S3Prefix,
		})
	case "postgres":
		p, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := p.Migrate(ctx, cfg.MigrationsDir); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Provider)
	}
}
