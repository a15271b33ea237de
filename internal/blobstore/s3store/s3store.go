// Пакет s3store — хранение содержимого в S3-совместимом объектном хранилище.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/afero"

	"github.com/bigkaa/goartstore/drive-module/internal/blobstore"
)

// API — подмножество методов *s3.Client, которое использует Store.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config — параметры подключения к S3.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	KeyPrefix string
	AccessKey string
	SecretKey string
	// MaxAttempts — число попыток запроса (0 = 3)
	MaxAttempts int
}

// Store — BlobStore поверх S3.
// Перед отправкой содержимое буферизуется во временный файл spool,
// чтобы посчитать SHA-256 и передать в PutObject точный ContentLength.
type Store struct {
	client API
	bucket string
	prefix string
	spool  afero.Fs
}

// New создаёт клиент S3 по конфигурации и проверяет доступность bucket.
// Без AccessKey используется стандартная цепочка учётных данных AWS.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsConfig.LoadOptions) error

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts = append(opts, awsConfig.WithRegion(region))

	if cfg.AccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	opts = append(opts, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxAttempts
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO и другие совместимые хранилища требуют path-style адресацию
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithClient(ctx, client, cfg.Bucket, cfg.KeyPrefix, afero.NewOsFs())
}

// NewWithClient создаёт Store с готовым клиентом. Проверяет доступность bucket.
func NewWithClient(ctx context.Context, client API, bucket, prefix string, spool afero.Fs) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("не задано имя bucket")
	}
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return nil, fmt.Errorf("bucket %s недоступен: %w", bucket, err)
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		spool:  spool,
	}, nil
}

func (s *Store) objectKey(key string) (string, error) {
	if err := blobstore.ValidateKey(key); err != nil {
		return "", err
	}
	if s.prefix == "" {
		return key, nil
	}
	return path.Join(s.prefix, key), nil
}

// Put буферизует содержимое во временный файл и отправляет его одним PutObject.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) (*blobstore.PutResult, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}

	tmp, err := afero.TempFile(s.spool, os.TempDir(), "drive-s3-*")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания буфера: %w", err)
	}
	defer func() {
		tmp.Close()
		s.spool.Remove(tmp.Name())
	}()

	hr := blobstore.NewHashingReader(r)
	if _, err := io.Copy(tmp, hr); err != nil {
		return nil, fmt.Errorf("ошибка буферизации данных: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("ошибка позиционирования буфера: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objKey),
		Body:          tmp,
		ContentLength: aws.Int64(hr.Size()),
		Metadata: map[string]string{
			"sha256": hr.Checksum(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка записи объекта %s: %w", key, err)
	}

	return &blobstore.PutResult{
		Key:      key,
		Size:     hr.Size(),
		Checksum: hr.Checksum(),
	}, nil
}

// Get открывает объект на чтение.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", blobstore.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("ошибка чтения объекта %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete удаляет объект. S3 не возвращает ошибку для отсутствующего ключа.
func (s *Store) Delete(ctx context.Context, key string) error {
	objKey, err := s.objectKey(key)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	return nil
}

// Exists проверяет наличие объекта через HeadObject.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	objKey, err := s.objectKey(key)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки объекта %s: %w", key, err)
	}
	return true, nil
}

// isNotFound распознаёт отсутствие объекта.
// GetObject возвращает NoSuchKey, HeadObject — NotFound без тела.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ blobstore.BlobStore = (*Store)(nil)
