// Package objectstore provides blob storage for document content and chunk
// text. Two backends are supported: S3 (production) and a local filesystem
// tree (development, tests). Both are addressed by the same string key
// convention used throughout the ent schema's s3_key/storage_key columns.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/corpusforge/platform/pkg/config"
)

// Store persists and retrieves object content addressed by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// New builds a Store from cfg. Unknown providers return an error rather than
// silently falling back, since a misconfigured backend would otherwise lose
// every document it's handed.
func New(cfg config.ObjectStoreConfig) (Store, error) {
	switch cfg.Provider {
	case config.ObjectStoreProviderS3:
		return newS3Store(cfg)
	case config.ObjectStoreProviderFilesystem:
		return newFilesystemStore(cfg)
	default:
		return nil, fmt.Errorf("objectstore: unknown provider %q", cfg.Provider)
	}
}

type s3Store struct {
	client *s3.S3
	bucket string
}

func newS3Store(cfg config.ObjectStoreConfig) (*s3Store, error) {
	sessCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		sessCfg = sessCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(sessCfg)
	if err != nil {
		return nil, fmt.Errorf("objectstore: creating aws session: %w", err)
	}
	return &s3Store{client: s3.New(sess), bucket: cfg.Bucket}, nil
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *s3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   aws.ReadSeekCloser(bytes.NewReader(data)),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objectstore: delete %s: %w", key, err)
	}
	return nil
}

// filesystemStore stores objects as files under RootDir, used for local
// development and integration tests where a real S3/MinIO endpoint isn't
// available.
type filesystemStore struct {
	root string
}

func newFilesystemStore(cfg config.ObjectStoreConfig) (*filesystemStore, error) {
	root := cfg.RootDir
	if root == "" {
		root = "./data/objectstore"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: creating root dir %s: %w", root, err)
	}
	return &filesystemStore{root: root}, nil
}

func (f *filesystemStore) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

func (f *filesystemStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s: %w", key, err)
	}
	return data, nil
}

func (f *filesystemStore) Put(_ context.Context, key string, data []byte) error {
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("objectstore: creating parent dir for %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("objectstore: put %s: %w", key, err)
	}
	return nil
}

func (f *filesystemStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objectstore: delete %s: %w", key, err)
	}
	return nil
}
