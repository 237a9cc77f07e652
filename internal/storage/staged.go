package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/minio/minio-go/v7"
)

// StagedUpload is a file staged under a temporary key. Exactly one of Commit
// or Rollback runs per handle, chosen by the owning import transaction's
// outcome rather than by the code path that detected a failure.
type StagedUpload struct {
	api         ObjectClient
	bucket      string
	tempKey     string
	finalKey    string
	size        int64
	contentType string
	logger      *slog.Logger

	mu       sync.Mutex
	promoted bool
	done     bool
}

// FinalKey is the permanent key the object lives under after Commit.
func (u *StagedUpload) FinalKey() string { return u.finalKey }

// Size is the staged payload size in bytes.
func (u *StagedUpload) Size() int64 { return u.size }

// ContentType is the MIME type the object was stored with.
func (u *StagedUpload) ContentType() string { return u.contentType }

// Commit promotes the object: copy temporary to final key, then delete the
// temporary key. When the copy fails the temporary object stays intact so a
// later Rollback still finds it. The promoted flag flips strictly after the
// copy succeeds and before the delete, so a crash mid-commit never leaves
// Rollback aimed at the wrong key.
func (u *StagedUpload) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return fmt.Errorf("staged upload %s already completed", u.finalKey)
	}

	_, err := u.api.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: u.bucket, Object: u.finalKey},
		minio.CopySrcOptions{Bucket: u.bucket, Object: u.tempKey},
	)
	if err != nil {
		return fmt.Errorf("%w: failed to promote import file: %v", ErrUnavailable, err)
	}
	u.promoted = true

	if err := u.api.RemoveObject(ctx, u.bucket, u.tempKey, minio.RemoveObjectOptions{}); err != nil {
		// The final key is live; the leftover temporary object is garbage,
		// not a failed commit.
		u.logger.Warn("failed to remove temporary import object",
			"bucket", u.bucket, "key", u.tempKey, "error", err)
	}

	u.done = true
	return nil
}

// Rollback deletes whichever key is currently live. It never returns an
// error: rollback runs during already-failing cleanup paths, so failures are
// logged instead. Calling it again is a no-op.
func (u *StagedUpload) Rollback(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return
	}
	u.done = true

	target := u.tempKey
	if u.promoted {
		target = u.finalKey
	}

	if err := u.api.RemoveObject(ctx, u.bucket, target, minio.RemoveObjectOptions{}); err != nil {
		u.logger.Warn("failed to remove staged import object",
			"bucket", u.bucket, "key", target, "error", err)
	}
}
