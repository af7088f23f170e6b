package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = errors.New("report: object not found")

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store publishes rendered reports to S3-compatible storage. The
// bucket is created lazily on first use.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{client: client, bucketName: bucket, region: region}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Put stores one rendered report under the repository's key.
func (s *S3Store) Put(ctx context.Context, repoKey, name string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	repoKey = strings.TrimSpace(repoKey)
	name = strings.TrimSpace(name)
	if repoKey == "" {
		return fmt.Errorf("repo key is required")
	}
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if content == nil {
		content = []byte{}
	}
	key := objectKey(repoKey, name)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "text/markdown",
	})
	return err
}

func (s *S3Store) Get(ctx context.Context, repoKey, name string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	repoKey = strings.TrimSpace(repoKey)
	name = strings.TrimSpace(name)
	if repoKey == "" {
		return nil, fmt.Errorf("repo key is required")
	}
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, objectKey(repoKey, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// List returns the report names stored for a repository, sorted.
func (s *S3Store) List(ctx context.Context, repoKey string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	repoKey = strings.TrimSpace(repoKey)
	if repoKey == "" {
		return nil, fmt.Errorf("repo key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	prefix := strings.TrimSuffix(sanitizeKey(repoKey), "/") + "/"
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(names)
	return names, nil
}

func objectKey(repoKey, name string) string {
	return sanitizeKey(repoKey) + "/" + strings.TrimPrefix(name, "/")
}

// sanitizeKey flattens a filesystem path into an object key segment.
func sanitizeKey(repoKey string) string {
	k := strings.ReplaceAll(repoKey, "\\", "/")
	k = strings.Trim(k, "/")
	return strings.ReplaceAll(k, "/", "_")
}
