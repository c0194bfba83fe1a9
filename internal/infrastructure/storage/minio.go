package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/chronicae/chronicler/pkg/config"
)

// ErrNotFound is returned when an object exists under neither the
// session-scoped key nor the legacy key.
var ErrNotFound = errors.New("storage: object not found")

// BlobStore wraps MinIO operations for clip and master-track storage.
// Clips live under recordings/{session_id}/{filename}; clips uploaded before
// sessions were namespaced sit at recordings/{filename}, so reads fall back
// to the legacy key when the scoped one is missing.
type BlobStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewBlobStore creates a new MinIO-backed blob store
func NewBlobStore(cfg *config.StorageConfig) (*BlobStore, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &BlobStore{
		client:    minioClient,
		bucket:    cfg.BucketName,
		publicURL: cfg.PublicURL,
	}

	ctx := context.Background()
	if err := store.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return store, nil
}

func (s *BlobStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// ClipKey returns the session-scoped object key for a clip
func ClipKey(sessionID, filename string) string {
	if sessionID == "" {
		return "recordings/" + filename
	}
	return fmt.Sprintf("recordings/%s/%s", sessionID, filename)
}

// LegacyClipKey returns the pre-namespacing object key for a clip
func LegacyClipKey(filename string) string {
	return "recordings/" + filename
}

// MasterKey returns the object key for a session's mixed master track
func MasterKey(sessionID string) string {
	return fmt.Sprintf("mixed/%s/master.mp3", sessionID)
}

// FindClipKey resolves the key a clip is actually stored under, checking the
// session-scoped location first and the legacy root second.
func (s *BlobStore) FindClipKey(ctx context.Context, sessionID, filename string) (string, error) {
	if sessionID != "" {
		key := ClipKey(sessionID, filename)
		if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err == nil {
			return key, nil
		} else if !isNoSuchKey(err) {
			return "", fmt.Errorf("failed to stat %s: %w", key, err)
		}
	}

	legacy := LegacyClipKey(filename)
	if _, err := s.client.StatObject(ctx, s.bucket, legacy, minio.StatObjectOptions{}); err == nil {
		return legacy, nil
	} else if !isNoSuchKey(err) {
		return "", fmt.Errorf("failed to stat %s: %w", legacy, err)
	}

	return "", ErrNotFound
}

// Put uploads bytes under the given key
func (s *BlobStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// SignedURL generates a time-bounded retrieval URL for an object. When a
// public URL is configured (MinIO behind a reverse proxy) the internal
// endpoint is swapped for it so external engines can reach the object.
func (s *BlobStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	if s.publicURL != "" {
		urlStr := url.String()
		bucketPos := len(url.Scheme) + 3 + len(url.Host)
		if bucketPos < len(urlStr) {
			return s.publicURL + urlStr[bucketPos:], nil
		}
	}

	return url.String(), nil
}

// UploadFile uploads a local file, inferring the content type from its
// extension the way the capture side names clips
func (s *BlobStore) UploadFile(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return s.Put(ctx, key, f, info.Size(), ContentTypeFor(path))
}

// DownloadFile fetches an object to a local path, resolving the legacy key
// fallback for clips. Returns ErrNotFound when the clip is in neither place.
func (s *BlobStore) DownloadFile(ctx context.Context, sessionID, filename, destPath string) error {
	key, err := s.FindClipKey(ctx, sessionID, filename)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", destPath, err)
	}
	if err := s.client.FGetObject(ctx, s.bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	return nil
}

// Replace uploads a local file to key, explicitly deleting any stale object
// first so a failed upload never leaves orphaned old bytes behind a fresh
// timestamp.
func (s *BlobStore) Replace(ctx context.Context, key, path string) error {
	if err := s.Delete(ctx, key); err != nil {
		return err
	}
	return s.UploadFile(ctx, key, path)
}

// ContentTypeFor maps clip file extensions to MIME types
func ContentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg":
		return "audio/ogg"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	default:
		return "audio/x-pcm"
	}
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
