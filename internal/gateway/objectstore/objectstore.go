// Package objectstore implements the gateway backend for an S3-style
// object store (MinIO), with one bucket per tier.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lmoraga/lakeflow/internal/fault"
	"github.com/lmoraga/lakeflow/internal/gateway"
	"github.com/lmoraga/lakeflow/internal/tier"
)

// checksumMetaKey is the user-metadata key carrying the artifact's
// SHA-256. The store's own ETag is not usable: it is an MD5 only for
// single-part uploads.
const checksumMetaKey = "Lakeflow-Checksum"

// Config connects a Backend to one object-store deployment.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Buckets maps each tier served by this backend to its bucket.
	Buckets map[tier.Tier]string
}

// Backend is an object-store gateway backend.
type Backend struct {
	client  *minio.Client
	buckets map[tier.Tier]string
}

// New creates an object-store backend. Endpoint and credentials are
// required; their absence is a startup configuration error.
func New(cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: object store endpoint", fault.ErrMissingEndpoint)
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: object store access/secret key", fault.ErrMissingCredentials)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	return &Backend{client: client, buckets: cfg.Buckets}, nil
}

// Name identifies the backend in logs and errors.
func (b *Backend) Name() string { return "objectstore" }

func (b *Backend) bucket(t tier.Tier) (string, error) {
	name, ok := b.buckets[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", fault.ErrTierNotBacked, t)
	}
	return name, nil
}

// Ensure creates the tier's bucket if absent.
func (b *Backend) Ensure(ctx context.Context, t tier.Tier) error {
	bucket, err := b.bucket(t)
	if err != nil {
		return err
	}

	exists, err := b.client.BucketExists(ctx, bucket)
	if err != nil {
		return classify(err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return classify(err)
	}
	return nil
}

// Write uploads an object. A complete PutObject replaces any prior
// version atomically; readers never observe a partial overwrite.
func (b *Backend) Write(ctx context.Context, t tier.Tier, name string, data []byte, checksum string) error {
	bucket, err := b.bucket(t)
	if err != nil {
		return err
	}

	_, err = b.client.PutObject(ctx, bucket, name,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			UserMetadata: map[string]string{checksumMetaKey: checksum},
		})
	if err != nil {
		return classify(err)
	}
	return nil
}

// Read downloads an object's bytes.
func (b *Backend) Read(ctx context.Context, t tier.Tier, name string) ([]byte, error) {
	bucket, err := b.bucket(t)
	if err != nil {
		return nil, err
	}

	obj, err := b.client.GetObject(ctx, bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// Stat returns an object's size and recorded checksum.
func (b *Backend) Stat(ctx context.Context, t tier.Tier, name string) (gateway.ObjectInfo, error) {
	bucket, err := b.bucket(t)
	if err != nil {
		return gateway.ObjectInfo{}, err
	}

	info, err := b.client.StatObject(ctx, bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return gateway.ObjectInfo{}, classify(err)
	}
	return toObjectInfo(info), nil
}

// List returns metadata for every object in the tier's bucket. Listing
// alone does not return user metadata reliably, so each object is
// stat'ed for its checksum.
func (b *Backend) List(ctx context.Context, t tier.Tier) ([]gateway.ObjectInfo, error) {
	bucket, err := b.bucket(t)
	if err != nil {
		return nil, err
	}

	var infos []gateway.ObjectInfo
	for obj := range b.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, classify(obj.Err)
		}
		stat, err := b.client.StatObject(ctx, bucket, obj.Key, minio.StatObjectOptions{})
		if err != nil {
			return nil, classify(err)
		}
		infos = append(infos, toObjectInfo(stat))
	}
	return infos, nil
}

func toObjectInfo(info minio.ObjectInfo) gateway.ObjectInfo {
	return gateway.ObjectInfo{
		Name:     info.Key,
		Size:     info.Size,
		Checksum: metaChecksum(info),
		ModTime:  info.LastModified,
	}
}

// metaChecksum extracts the recorded checksum; the client canonicalizes
// user-metadata keys differently between stat and list responses.
func metaChecksum(info minio.ObjectInfo) string {
	for _, key := range []string{checksumMetaKey, "X-Amz-Meta-" + checksumMetaKey} {
		if v, ok := info.UserMetadata[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

// classify maps object-store errors onto the fault taxonomy: missing
// objects/buckets are permanent not-found; everything the SDK reports
// without an S3 error code is assumed to be a connection problem.
func classify(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", fault.ErrNotFound, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return err
	case "":
		if fault.IsTransient(err) {
			return err
		}
		return fault.Transient(err)
	default:
		return err
	}
}
