package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

// fakeObjectClient keeps objects in memory and can fail selected operations.
type fakeObjectClient struct {
	objects map[string][]byte

	failPut    bool
	failCopy   bool
	failRemove bool

	removed []string
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{objects: map[string][]byte{}}
}

func (f *fakeObjectClient) BucketExists(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakeObjectClient) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	return nil
}

func (f *fakeObjectClient) PutObject(_ context.Context, _, key string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.failPut {
		return minio.UploadInfo{}, errors.New("put refused")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[key] = data
	return minio.UploadInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeObjectClient) CopyObject(_ context.Context, dst minio.CopyDestOptions, src minio.CopySrcOptions) (minio.UploadInfo, error) {
	if f.failCopy {
		return minio.UploadInfo{}, errors.New("copy refused")
	}
	data, ok := f.objects[src.Object]
	if !ok {
		return minio.UploadInfo{}, errors.New("source object missing")
	}
	f.objects[dst.Object] = data
	return minio.UploadInfo{Key: dst.Object}, nil
}

func (f *fakeObjectClient) RemoveObject(_ context.Context, _, key string, _ minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, key)
	if f.failRemove {
		return errors.New("remove refused")
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectClient) GetObject(_ context.Context, _, key string, _ minio.GetObjectOptions) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object missing")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func newTestStore(api ObjectClient) *Store {
	store := NewStore(api, Config{Bucket: "imports", Folder: "tickets"}, nil)
	store.now = func() time.Time {
		return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	}
	return store
}

func TestStageWritesOnlyTemporaryKey(t *testing.T) {
	api := newFakeObjectClient()
	store := newTestStore(api)

	staged, err := store.Stage(context.Background(), "My Tickets.JSON", []byte(`[]`), "")
	if err != nil {
		t.Fatalf("stage failed: %v", err)
	}

	if !strings.HasPrefix(staged.FinalKey(), "tickets/2026/03/14/") {
		t.Fatalf("unexpected final key %q", staged.FinalKey())
	}
	if !strings.HasSuffix(staged.FinalKey(), "-my_tickets.json") {
		t.Fatalf("filename not sanitized in %q", staged.FinalKey())
	}
	if staged.ContentType() != "application/json" {
		t.Fatalf("expected default content type, got %q", staged.ContentType())
	}

	if _, ok := api.objects[staged.FinalKey()]; ok {
		t.Fatal("final key must not exist before commit")
	}
	if _, ok := api.objects[staged.tempKey]; !ok {
		t.Fatal("temporary key must exist after staging")
	}
}

func TestStageFailureSurfacesStorageError(t *testing.T) {
	api := newFakeObjectClient()
	api.failPut = true
	store := newTestStore(api)

	_, err := store.Stage(context.Background(), "a.json", []byte(`[]`), "application/json")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCommitPromotesAndRemovesTemporary(t *testing.T) {
	api := newFakeObjectClient()
	store := newTestStore(api)

	staged, err := store.Stage(context.Background(), "a.json", []byte(`[1]`), "application/json")
	if err != nil {
		t.Fatalf("stage failed: %v", err)
	}

	if err := staged.Commit(context.Background()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if _, ok := api.objects[staged.FinalKey()]; !ok {
		t.Fatal("final key must be live after commit")
	}
	if _, ok := api.objects[staged.tempKey]; ok {
		t.Fatal("temporary key must be gone after commit")
	}

	// Commit and rollback are mutually exclusive per handle.
	staged.Rollback(context.Background())
	if _, ok := api.objects[staged.FinalKey()]; !ok {
		t.Fatal("rollback after commit must not delete the promoted object")
	}
}

func TestCommitCopyFailureLeavesTemporaryIntact(t *testing.T) {
	api := newFakeObjectClient()
	store := newTestStore(api)

	staged, err := store.Stage(context.Background(), "a.json", []byte(`[1]`), "application/json")
	if err != nil {
		t.Fatalf("stage failed: %v", err)
	}

	api.failCopy = true
	if err := staged.Commit(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	if _, ok := api.objects[staged.tempKey]; !ok {
		t.Fatal("temporary object must survive a failed copy")
	}

	staged.Rollback(context.Background())
	if _, ok := api.objects[staged.tempKey]; ok {
		t.Fatal("rollback must remove the temporary object")
	}
	if _, ok := api.objects[staged.FinalKey()]; ok {
		t.Fatal("final key must not be live after rollback")
	}
}

func TestCommitSucceedsWhenTemporaryDeleteFails(t *testing.T) {
	api := newFakeObjectClient()
	store := newTestStore(api)

	staged, err := store.Stage(context.Background(), "a.json", []byte(`[1]`), "application/json")
	if err != nil {
		t.Fatalf("stage failed: %v", err)
	}

	api.failRemove = true
	if err := staged.Commit(context.Background()); err != nil {
		t.Fatalf("commit must succeed once the copy landed: %v", err)
	}
	if _, ok := api.objects[staged.FinalKey()]; !ok {
		t.Fatal("final key must be live")
	}
}

func TestRollbackIsIdempotentAndNeverTouchesOtherKeys(t *testing.T) {
	api := newFakeObjectClient()
	store := newTestStore(api)
	api.objects["tickets/other"] = []byte("keep")

	staged, err := store.Stage(context.Background(), "a.json", []byte(`[1]`), "application/json")
	if err != nil {
		t.Fatalf("stage failed: %v", err)
	}

	staged.Rollback(context.Background())
	staged.Rollback(context.Background())

	if len(api.removed) != 1 {
		t.Fatalf("expected a single remove call, got %v", api.removed)
	}
	if api.removed[0] != staged.tempKey {
		t.Fatalf("rollback removed unrelated key %q", api.removed[0])
	}
	if _, ok := api.objects["tickets/other"]; !ok {
		t.Fatal("unrelated object must survive rollback")
	}
}
