package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
)

const keyPrefix = "contracts/"

// ObjectStore saves each record as contracts/<id>/analysis.json in a bucket.
type ObjectStore struct {
	client     *minio.Client
	bucketName string
	region     string
}

// NewObjectStore buat koneksi MinIO / S3
func NewObjectStore(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*ObjectStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &ObjectStore{client: cli, bucketName: bucket, region: region}, nil
}

func objectKey(id domain.ID) string {
	return keyPrefix + string(id) + "/analysis.json"
}

// idFromPrefix turns "contracts/<id>/" into <id>.
func idFromPrefix(key string) (domain.ID, bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, "/") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), "/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return domain.ID(id), true
}

func validID(id domain.ID) bool {
	return id != "" && !strings.ContainsAny(string(id), `/\`) && string(id) != ".."
}

func (s *ObjectStore) Save(ctx context.Context, rec *domain.Record) (domain.ID, error) {
	if !validID(rec.ID) {
		return "", fmt.Errorf("invalid analysis id %q", rec.ID)
	}
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucketName, objectKey(rec.ID), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *ObjectStore) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	obj, err := s.client.GetObject(ctx, s.bucketName, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, mapNotFound(err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapNotFound(err)
	}
	var rec domain.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", objectKey(id), err)
	}
	return &rec, nil
}

// List returns IDs sorted descending. IDs are time-ordered so this is newest first.
func (s *ObjectStore) List(ctx context.Context) ([]domain.ID, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ids []domain.ID
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: keyPrefix}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if id, ok := idFromPrefix(obj.Key); ok {
			ids = append(ids, id)
		}
	}
	sortDesc(ids)
	return ids, nil
}

// Ping checks that the bucket is reachable.
func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

func sortDesc(ids []domain.ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
}

func mapNotFound(err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return domain.ErrNotFound
	}
	return err
}
