package staging

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gkintu/hukasa-staging-sub001/internal/config"
	"github.com/gkintu/hukasa-staging-sub001/internal/models"
)

// Dispatcher hands source images to the external render workers: the bytes
// go into a shared S3-compatible intake bucket and a task lands on the render
// stream. Workers write finished variants back through the API.
type Dispatcher struct {
	client *minio.Client
	queue  *redis.Client
	cfg    config.RenderConfig
	log    zerolog.Logger
}

func NewDispatcher(cfg config.RenderConfig, queue *redis.Client, log zerolog.Logger) (*Dispatcher, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &Dispatcher{
		client: client,
		queue:  queue,
		cfg:    cfg,
		log:    log,
	}, nil
}

func (d *Dispatcher) EnsureBucket(ctx context.Context) error {
	exists, err := d.client.BucketExists(ctx, d.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", d.cfg.Bucket, err)
	}
	if !exists {
		if err := d.client.MakeBucket(ctx, d.cfg.Bucket, minio.MakeBucketOptions{Region: d.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", d.cfg.Bucket, err)
		}
	}
	return nil
}

// Dispatch stages the source bytes into the intake bucket and enqueues one
// render task covering the given pending variants.
func (d *Dispatcher) Dispatch(ctx context.Context, img models.SourceImage, variants []models.Variant, src io.Reader, size int64, contentType string) error {
	objectKey := fmt.Sprintf("%s/%s.%s", img.UserID, img.ID, img.Format)

	if _, err := d.client.PutObject(ctx, d.cfg.Bucket, objectKey, src, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("stage source bytes: %w", err)
	}

	variantIDs := make([]string, 0, len(variants))
	for _, v := range variants {
		variantIDs = append(variantIDs, v.ID)
	}

	payload := map[string]any{
		"type":          "render",
		"sourceImageId": img.ID,
		"userId":        img.UserID,
		"bucket":        d.cfg.Bucket,
		"object":        objectKey,
		"variantIds":    strings.Join(variantIDs, ","),
	}

	if _, err := d.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: d.cfg.Stream,
		Values: payload,
	}).Result(); err != nil {
		return fmt.Errorf("enqueue render task: %w", err)
	}

	d.log.Debug().
		Str("source_image_id", img.ID).
		Int("variants", len(variants)).
		Msg("render task dispatched")
	return nil
}
