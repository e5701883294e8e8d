package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"vidpress/internal/config"
	"vidpress/internal/upload"
)

// ErrObjectNotFound indicates the requested object does not exist in the bucket.
var ErrObjectNotFound = errors.New("objectstore: object not found")

// Client talks to an S3-compatible object store. It implements upload.Backend.
type Client struct {
	core          *minio.Core
	bucket        string
	partSize      int64
	publicBaseURL string
}

// New creates a client from the storage configuration.
func New(cfg *config.Config) (*Client, error) {
	core, err := minio.NewCore(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
		Region: cfg.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &Client{
		core:          core,
		bucket:        cfg.Storage.Bucket,
		partSize:      cfg.PartSizeBytes(),
		publicBaseURL: strings.TrimRight(cfg.Storage.PublicBaseURL, "/"),
	}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.core.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.core.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", c.bucket, err)
	}
	return nil
}

// InitiateMultipart starts a multipart upload and reports the part plan.
func (c *Client) InitiateMultipart(ctx context.Context, key, contentType string, sizeBytes int64) (upload.Multipart, upload.Initiation, error) {
	uploadID, err := c.core.NewMultipartUpload(ctx, c.bucket, key, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, upload.Initiation{}, fmt.Errorf("initiate multipart upload: %w", err)
	}
	totalParts := int((sizeBytes + c.partSize - 1) / c.partSize)
	init := upload.Initiation{
		StorageKey:    key,
		UploadID:      uploadID,
		PartSizeBytes: c.partSize,
		TotalParts:    totalParts,
		PublicURL:     c.PublicURL(key),
	}
	return &multipartUpload{client: c, key: key, uploadID: uploadID}, init, nil
}

// ResumeMultipart reattaches to an in-flight multipart upload.
func (c *Client) ResumeMultipart(ctx context.Context, key, uploadID string) (upload.Multipart, error) {
	if _, err := c.core.ListObjectParts(ctx, c.bucket, key, uploadID, 0, 1); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchUpload" {
			return nil, fmt.Errorf("resume multipart upload %q: upload no longer exists", uploadID)
		}
		return nil, fmt.Errorf("resume multipart upload %q: %w", uploadID, err)
	}
	return &multipartUpload{client: c, key: key, uploadID: uploadID}, nil
}

// PutObject uploads a whole object in one request.
func (c *Client) PutObject(ctx context.Context, key, contentType string, r io.Reader, size int64) (upload.ObjectInfo, error) {
	info, err := c.core.Client.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return upload.ObjectInfo{}, fmt.Errorf("put object %q: %w", key, err)
	}
	return upload.ObjectInfo{Key: key, SizeBytes: info.Size, ETag: info.ETag}, nil
}

// StatObject fetches object metadata. Missing objects return ErrObjectNotFound.
func (c *Client) StatObject(ctx context.Context, key string) (upload.ObjectInfo, error) {
	info, err := c.core.Client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return upload.ObjectInfo{}, ErrObjectNotFound
		}
		return upload.ObjectInfo{}, fmt.Errorf("stat object %q: %w", key, err)
	}
	return upload.ObjectInfo{Key: key, SizeBytes: info.Size, ETag: info.ETag}, nil
}

// PublicURL builds the externally reachable URL for a stored object.
func (c *Client) PublicURL(key string) string {
	if c.publicBaseURL != "" {
		return c.publicBaseURL + "/" + strings.TrimLeft(key, "/")
	}
	endpoint := c.core.Client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", endpoint.Scheme, endpoint.Host, c.bucket, strings.TrimLeft(key, "/"))
}

// multipartUpload is one in-flight multipart session on the store.
type multipartUpload struct {
	client   *Client
	key      string
	uploadID string
}

func (m *multipartUpload) UploadPart(ctx context.Context, number int, r io.Reader, size int64) (string, error) {
	part, err := m.client.core.PutObjectPart(ctx, m.client.bucket, m.key, m.uploadID,
		number, r, size, minio.PutObjectPartOptions{})
	if err != nil {
		return "", fmt.Errorf("upload part %d: %w", number, err)
	}
	return part.ETag, nil
}

func (m *multipartUpload) Complete(ctx context.Context, parts []upload.CompletedPart) (upload.ObjectInfo, error) {
	completed := make([]minio.CompletePart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, minio.CompletePart{
			PartNumber: part.Number,
			ETag:       part.ETag,
		})
	}
	info, err := m.client.core.CompleteMultipartUpload(ctx, m.client.bucket, m.key,
		m.uploadID, completed, minio.PutObjectOptions{})
	if err != nil {
		return upload.ObjectInfo{}, fmt.Errorf("complete multipart upload: %w", err)
	}
	return upload.ObjectInfo{Key: m.key, SizeBytes: info.Size, ETag: info.ETag}, nil
}

func (m *multipartUpload) Abort(ctx context.Context) error {
	if err := m.client.core.AbortMultipartUpload(ctx, m.client.bucket, m.key, m.uploadID); err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}
