package tenancyinfra

import (
	"context"
	"strings"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/multistore/pkg/config"
	"github.com/Abraxas-365/multistore/tenancy"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3API es el subconjunto del cliente S3 que usa el hook
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// NewS3Client crea el cliente S3 a partir de la configuración
func NewS3Client(cfg config.AssetsConfig) *s3.Client {
	opts := s3.Options{
		Region: cfg.Region,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		// MinIO y compatibles
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

// AssetsHook reserva el prefijo de archivos de la tienda al crearla y lo
// vacía al borrarla
type AssetsHook struct {
	client S3API
	bucket string
	logger *zap.Logger
}

// NewAssetsHook crea el hook de archivos
func NewAssetsHook(client S3API, bucket string, logger *zap.Logger) *AssetsHook {
	return &AssetsHook{client: client, bucket: bucket, logger: logger}
}

func (h *AssetsHook) Name() string       { return "assets" }
func (h *AssetsHook) NeedsContext() bool { return false }

// Prefix retorna el prefijo de la tienda dentro del bucket
func (h *AssetsHook) Prefix(t *tenancy.Tenant) string {
	return "tenants/" + t.ID.String() + "/"
}

// Provision crea el marcador del prefijo
func (h *AssetsHook) Provision(ctx context.Context, t *tenancy.Tenant) error {
	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(h.Prefix(t) + ".keep"),
		Body:        strings.NewReader(""),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return errx.Wrap(err, "failed to reserve tenant assets prefix", errx.TypeExternal).
			WithDetail("tenant_id", t.ID.String()).
			WithDetail("bucket", h.bucket)
	}
	return nil
}

// Deprovision borra todos los objetos del prefijo
func (h *AssetsHook) Deprovision(ctx context.Context, t *tenancy.Tenant) error {
	paginator := s3.NewListObjectsV2Paginator(h.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(h.bucket),
		Prefix: aws.String(h.Prefix(t)),
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return errx.Wrap(err, "failed to list tenant assets", errx.TypeExternal).
				WithDetail("tenant_id", t.ID.String())
		}
		if len(page.Contents) == 0 {
			continue
		}

		// Una página trae como máximo 1000 objetos, el límite de DeleteObjects
		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = h.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(h.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errx.Wrap(err, "failed to delete tenant assets", errx.TypeExternal).
				WithDetail("tenant_id", t.ID.String())
		}
		deleted += len(ids)
	}

	h.logger.Info("tenant assets removed",
		zap.String("tenant_id", t.ID.String()),
		zap.Int("objects", deleted))
	return nil
}
