// Пакет objectstore — клиент S3-совместимого хранилища (Cloudflare R2, MinIO, AWS S3)
// для изображений галереи: загрузка, удаление, листинг и публичные URL.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Точки подмены для тестов.
var (
	loadAWSConfig = awsconfig.LoadDefaultConfig
	newS3Client   = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Хост приватного API R2 и соответствующий публичный хост.
const (
	r2PrivateHostSuffix = ".r2.cloudflarestorage.com"
	r2PublicHostSuffix  = ".r2.dev"
)

// Config — параметры подключения к бакету.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// PublicURL — публичный базовый адрес бакета; если пуст, выводится из Endpoint
	PublicURL string
}

// Object — объект в бакете.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Client — клиент бакета. Создаётся один раз при старте
// и безопасен для конкурентного использования.
type Client struct {
	s3        *s3.Client
	bucket    string
	publicURL string
	logger    *slog.Logger
}

// New создаёт клиент S3 со статическими учётными данными и path-style адресацией.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("objectstore: endpoint и bucket обязательны")
	}

	awsCfg, err := loadAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации AWS SDK: %w", err)
	}

	client := newS3Client(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
		// R2 и MinIO не поддерживают контрольные суммы по умолчанию SDK
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &Client{
		s3:        client,
		bucket:    cfg.Bucket,
		publicURL: publicBaseURL(cfg),
		logger:    logger.With(slog.String("component", "objectstore")),
	}, nil
}

// publicBaseURL вычисляет базовый публичный адрес объектов.
// Явный PublicURL имеет приоритет; иначе приватный хост R2
// заменяется на публичный и добавляется имя бакета.
func publicBaseURL(cfg Config) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	endpoint = strings.Replace(endpoint, r2PrivateHostSuffix, r2PublicHostSuffix, 1)
	return endpoint + "/" + cfg.Bucket
}

// Bucket возвращает имя бакета.
func (c *Client) Bucket() string {
	return c.bucket
}

// PublicURL возвращает публичный адрес объекта.
func (c *Client) PublicURL(key string) string {
	return c.publicURL + "/" + key
}

// Put загружает объект. При size < 0 длина неизвестна.
// Для HTTP (без TLS) body должен поддерживать Seek.
func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	start := time.Now()
	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}

	c.logger.Debug("Объект загружен",
		slog.String("key", key),
		slog.Int64("size", size),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Delete удаляет объект. Удаление отсутствующего объекта не является ошибкой.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	c.logger.Debug("Объект удалён", slog.String("key", key))
	return nil
}

// List возвращает все объекты с заданным префиксом (постранично через ListObjectsV2).
func (c *Client) List(ctx context.Context, prefix string) ([]Object, error) {
	paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	})

	var objects []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка листинга бакета %s: %w", c.bucket, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}
