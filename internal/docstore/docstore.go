// Package docstore persists generated guideline artifacts (rendered PDF,
// HTML, DOCX, JSON) in S3-compatible object storage, keyed by guideline
// and version so every published render stays retrievable.
package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Configured reports whether enough settings are present to connect.
func (c Config) Configured() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != "" && c.Bucket != ""
}

// Artifact describes a stored render of a guideline document.
type Artifact struct {
	Key         string
	OCGID       string
	Version     int
	Name        string
	ContentType string
	Size        int64
}

// Store wraps a MinIO client scoped to a single bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: connect %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("docstore: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("docstore: create bucket %s: %w", cfg.Bucket, err)
		}
		log.Printf("docstore: created bucket %s", cfg.Bucket)
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// artifactKey lays objects out as ocgs/<id>/v<version>/<filename>.
func artifactKey(ocgID string, version int, filename string) string {
	return path.Join("ocgs", ocgID, "v"+strconv.Itoa(version), filename)
}

// PutArtifact stores a rendered document and returns its descriptor.
func (s *Store) PutArtifact(ctx context.Context, ocgID string, version int, filename, contentType string, data []byte) (*Artifact, error) {
	key := artifactKey(ocgID, version, filename)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"ocg-id":      ocgID,
			"ocg-version": strconv.Itoa(version),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: put %s: %w", key, err)
	}
	return &Artifact{
		Key:         key,
		OCGID:       ocgID,
		Version:     version,
		Name:        filename,
		ContentType: contentType,
		Size:        info.Size,
	}, nil
}

// GetArtifact fetches a stored render by its descriptor key.
func (s *Store) GetArtifact(ctx context.Context, key string) ([]byte, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("docstore: get %s: %w", key, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("docstore: stat %s: %w", key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", fmt.Errorf("docstore: read %s: %w", key, err)
	}
	return data, stat.ContentType, nil
}

// ListArtifacts returns the artifacts stored for one version of a guideline.
func (s *Store) ListArtifacts(ctx context.Context, ocgID string, version int) ([]Artifact, error) {
	prefix := artifactKey(ocgID, version, "") + "/"
	var out []Artifact
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("docstore: list %s: %w", prefix, obj.Err)
		}
		out = append(out, Artifact{
			Key:     obj.Key,
			OCGID:   ocgID,
			Version: version,
			Name:    path.Base(obj.Key),
			Size:    obj.Size,
		})
	}
	return out, nil
}
