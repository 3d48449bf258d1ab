package glimpsy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hugr-lab/glimpsy/blob"
	minioblob "github.com/hugr-lab/glimpsy/blob/minio"
	s3blob "github.com/hugr-lab/glimpsy/blob/s3"
	"github.com/hugr-lab/glimpsy/dataset"
	"github.com/hugr-lab/glimpsy/dataset/sqlstore"
	"github.com/hugr-lab/glimpsy/internal/serialize"
)

// openStore opens the dataset store and its row codec.
// The caller closes both.
func openStore(ctx context.Context, cfg DatabaseConfig, logger *slog.Logger) (*sqlstore.Store, *dataset.Codec, error) {
	compression, err := serialize.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	codec, err := dataset.NewCodec(compression)
	if err != nil {
		return nil, nil, err
	}

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: cfg.Driver,
		DSN:    cfg.DSN,
		Codec:  codec,
		Logger: logger,
	})
	if err != nil {
		codec.Close()
		return nil, nil, err
	}
	return store, codec, nil
}

// openBlobs creates the upload file store for the configured backend.
func openBlobs(ctx context.Context, cfg StorageConfig, logger *slog.Logger) (blob.Store, error) {
	switch cfg.Backend {
	case StorageLocal:
		store, err := blob.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		logger.Info("Storing uploads on disk", "dir", store.Root())
		return store, nil
	case StorageMemory:
		return blob.NewMemoryStore(), nil
	case StorageMinIO:
		return openMinIO(ctx, cfg)
	case StorageS3:
		return openS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: storage backend %q is not supported", ErrInvalidConfig, cfg.Backend)
	}
}

func openMinIO(ctx context.Context, cfg StorageConfig) (blob.Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	store := minioblob.NewStore(client, cfg.Bucket, cfg.Prefix)
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func openS3(ctx context.Context, cfg StorageConfig) (blob.Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return s3blob.NewStore(client, cfg.Bucket, cfg.Prefix), nil
}
