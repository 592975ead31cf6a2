package fuse

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/gatewayfs/gatewayfs/internal/gateway"
)

// xattrFakeBackend is a minimal gateway.BackendClient that tracks one
// object's body and storage class, just enough to exercise the
// storage-tier xattr round trip through a real Gateway.
type xattrFakeBackend struct {
	body         []byte
	storageClass string
	exists       bool
}

func (b *xattrFakeBackend) HeadBucket(ctx context.Context) (int, error) { return 200, nil }

func (b *xattrFakeBackend) HeadObject(ctx context.Context, key string, ifModifiedSince *time.Time) (int, map[string]string, error) {
	if !b.exists {
		return 404, nil, nil
	}
	hdrs := map[string]string{"Content-Type": "application/octet-stream"}
	if b.storageClass != "" {
		hdrs["Storage-Class"] = b.storageClass
	}
	return 200, hdrs, nil
}

func (b *xattrFakeBackend) GetObject(ctx context.Context, key string, rangeStart, rangeLen int64) (int, []byte, string, error) {
	return 200, b.body, "etag", nil
}

func (b *xattrFakeBackend) PutObject(ctx context.Context, key string, input gateway.PutInput) (int, error) {
	if input.MoveSource != "" {
		if input.StorageClass != "" {
			b.storageClass = input.StorageClass
		}
		return 200, nil
	}
	b.body = input.Body
	b.exists = true
	return 200, nil
}

func (b *xattrFakeBackend) DeleteObject(ctx context.Context, key string) (int, error) {
	b.exists = false
	return 204, nil
}

func (b *xattrFakeBackend) ListObjects(ctx context.Context, prefix, marker string, limit int) (gateway.ListPage, int, error) {
	return gateway.ListPage{}, 200, nil
}

func (b *xattrFakeBackend) InitiateMultipart(ctx context.Context, key string, input gateway.PutInput) (string, int, error) {
	return "upload-1", 200, nil
}

func (b *xattrFakeBackend) UploadPart(ctx context.Context, key, uploadID string, partNo int, body []byte) (string, int, error) {
	return "etag-part", 200, nil
}

func (b *xattrFakeBackend) CompleteMultipart(ctx context.Context, key, uploadID string, parts []gateway.CompletedPart) (int, error) {
	return 200, nil
}

func (b *xattrFakeBackend) AbortMultipart(ctx context.Context, key, uploadID string) (int, error) {
	return 200, nil
}

func (b *xattrFakeBackend) GetBucketStatistics(ctx context.Context) (gateway.BucketStats, int, error) {
	return gateway.BucketStats{}, 200, nil
}

func newXattrTestNode(t *testing.T, backend *xattrFakeBackend) *FileNode {
	t.Helper()
	gw := gateway.New(gateway.Config{
		Bucket:               "test-bucket",
		WorkerPoolSize:       1,
		MaxRetries:           1,
		MaxCachedStatEntries: 16,
	}, backend, nil, nil)
	t.Cleanup(gw.Close)

	fsys := NewFileSystem(gw, nil, nil, nil, nil)
	return &FileNode{fs: fsys, path: "/tiered.bin"}
}

func TestGetxattrReturnsENODATAForUnknownAttribute(t *testing.T) {
	node := newXattrTestNode(t, &xattrFakeBackend{exists: true, storageClass: "GLACIER"})

	_, errno := node.Getxattr(context.Background(), "user.unrelated", make([]byte, 64))
	if errno != syscall.ENODATA {
		t.Errorf("errno = %v, want ENODATA", errno)
	}
}

func TestGetxattrReturnsResolvedStorageTier(t *testing.T) {
	node := newXattrTestNode(t, &xattrFakeBackend{exists: true, storageClass: "GLACIER"})

	dest := make([]byte, 64)
	n, errno := node.Getxattr(context.Background(), storageTierXattrName, dest)
	if errno != 0 {
		t.Fatalf("Getxattr errno = %v", errno)
	}
	if got := string(dest[:n]); got != "GLACIER" {
		t.Errorf("Getxattr value = %q, want GLACIER", got)
	}
}

func TestGetxattrReportsNeededSizeOnShortBuffer(t *testing.T) {
	node := newXattrTestNode(t, &xattrFakeBackend{exists: true, storageClass: "DEEP_ARCHIVE"})

	n, errno := node.Getxattr(context.Background(), storageTierXattrName, make([]byte, 2))
	if errno != syscall.ERANGE {
		t.Fatalf("errno = %v, want ERANGE", errno)
	}
	if int(n) != len("DEEP_ARCHIVE") {
		t.Errorf("reported size = %d, want %d", n, len("DEEP_ARCHIVE"))
	}
}

func TestSetxattrRetagsObjectAndSubsequentGetxattrSeesIt(t *testing.T) {
	node := newXattrTestNode(t, &xattrFakeBackend{exists: true, storageClass: "STANDARD"})

	errno := node.Setxattr(context.Background(), storageTierXattrName, []byte("glacier"), 0)
	if errno != 0 {
		t.Fatalf("Setxattr errno = %v", errno)
	}

	dest := make([]byte, 64)
	n, errno := node.Getxattr(context.Background(), storageTierXattrName, dest)
	if errno != 0 {
		t.Fatalf("Getxattr after Setxattr errno = %v", errno)
	}
	if got := string(dest[:n]); got != "GLACIER" {
		t.Errorf("tier after Setxattr = %q, want GLACIER", got)
	}
}

func TestSetxattrRejectsUnknownAttributeAndReadOnlyMount(t *testing.T) {
	node := newXattrTestNode(t, &xattrFakeBackend{exists: true})

	if errno := node.Setxattr(context.Background(), "user.unrelated", []byte("x"), 0); errno != syscall.ENOTSUP {
		t.Errorf("errno for unknown attr = %v, want ENOTSUP", errno)
	}

	node.fs.config.ReadOnly = true
	if errno := node.Setxattr(context.Background(), storageTierXattrName, []byte("glacier"), 0); errno != syscall.EROFS {
		t.Errorf("errno on read-only mount = %v, want EROFS", errno)
	}
}

func TestListxattrOmitsAttributeUntilTierResolved(t *testing.T) {
	node := newXattrTestNode(t, &xattrFakeBackend{exists: true})

	n, errno := node.Listxattr(context.Background(), make([]byte, 64))
	if errno != 0 {
		t.Fatalf("Listxattr errno = %v", errno)
	}
	if n != 0 {
		t.Errorf("expected no xattrs before a tier is resolved, got %d bytes", n)
	}
}

func TestRemovexattrAlwaysUnsupported(t *testing.T) {
	node := newXattrTestNode(t, &xattrFakeBackend{exists: true, storageClass: "GLACIER"})

	if errno := node.Removexattr(context.Background(), storageTierXattrName); errno != syscall.ENOTSUP {
		t.Errorf("errno = %v, want ENOTSUP", errno)
	}
}
