package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gatewayfs/gatewayfs/pkg/types"
)

func metaFor(path string) types.FileMetadata {
	return types.FileMetadata{Path: path, ModifyTime: time.Now()}
}

// fakeBackend is a minimal, in-memory BackendClient used to exercise the
// gateway's operations without a real object store.
type fakeBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	dirs    map[string]bool

	// headBucketStatus lets a test force HeadBucket's return status.
	headBucketStatus int

	// putFailOnce, when set, makes the next PutObject for this key fail
	// with the given status once, then succeed.
	putFailOnce map[string]int

	// parts accumulates uploaded multipart bodies by uploadID, keyed by
	// part number, so CompleteMultipart can assemble the final object.
	parts map[string]map[int][]byte

	// failUploadPart, when set, makes every UploadPart call for this
	// uploadID fail.
	failUploadPart map[string]bool

	abortedUploadIDs []string

	// storageClasses tracks the last tier a key was copied with, so
	// HeadObject can report it back as the Storage-Class header.
	storageClasses map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		objects:        make(map[string][]byte),
		dirs:           make(map[string]bool),
		putFailOnce:    make(map[string]int),
		parts:          make(map[string]map[int][]byte),
		failUploadPart: make(map[string]bool),
		storageClasses: make(map[string]string),
	}
}

func (f *fakeBackend) HeadBucket(ctx context.Context) (int, error) {
	if f.headBucketStatus != 0 {
		return f.headBucketStatus, nil
	}
	return 200, nil
}

func (f *fakeBackend) HeadObject(ctx context.Context, key string, ifModifiedSince *time.Time) (int, map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirs[key] {
		return 200, map[string]string{"Content-Type": "application/x-directory"}, nil
	}
	if _, ok := f.objects[key]; !ok {
		return 404, nil, nil
	}
	hdrs := map[string]string{"Content-Type": "application/octet-stream"}
	if sc, ok := f.storageClasses[key]; ok {
		hdrs["Storage-Class"] = sc
	}
	return 200, hdrs, nil
}

func (f *fakeBackend) GetObject(ctx context.Context, key string, rangeStart, rangeLen int64) (int, []byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return 404, nil, "", nil
	}
	end := rangeStart + rangeLen
	if end > int64(len(body)) {
		end = int64(len(body))
	}
	return 200, body[rangeStart:end], "etag-" + key, nil
}

func (f *fakeBackend) PutObject(ctx context.Context, key string, input PutInput) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if status, ok := f.putFailOnce[key]; ok {
		delete(f.putFailOnce, key)
		return status, nil
	}

	if input.MoveSource != "" {
		// Resolve the move source ("/bucket/key") back to a local key.
		srcKey := trimBucketPrefix(input.MoveSource)
		body, ok := f.objects[srcKey]
		if !ok {
			if f.dirs[srcKey] {
				f.dirs[key] = true
				return 200, nil
			}
			return 404, nil
		}
		f.objects[key] = body
		if srcKey != key {
			delete(f.objects, srcKey)
		}
		if input.StorageClass != "" {
			f.storageClasses[key] = input.StorageClass
		}
		return 200, nil
	}

	if len(key) > 0 && key[len(key)-1] == '/' {
		f.dirs[key] = true
		return 200, nil
	}
	f.objects[key] = input.Body
	return 200, nil
}

func trimBucketPrefix(moveSource string) string {
	// "/bucket/key..." -> "key..."
	i := 0
	slashes := 0
	for ; i < len(moveSource); i++ {
		if moveSource[i] == '/' {
			slashes++
			if slashes == 2 {
				return moveSource[i+1:]
			}
		}
	}
	return moveSource
}

func (f *fakeBackend) DeleteObject(ctx context.Context, key string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	delete(f.dirs, key)
	return 204, nil
}

func (f *fakeBackend) ListObjects(ctx context.Context, prefix, marker string, limit int) (ListPage, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var page ListPage
	for k := range f.objects {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			page.Keys = append(page.Keys, k)
		}
	}
	for k := range f.dirs {
		if k != prefix && len(k) > len(prefix) && k[:len(prefix)] == prefix {
			page.CommonPrefixes = append(page.CommonPrefixes, k)
		}
	}
	return page, 200, nil
}

func (f *fakeBackend) InitiateMultipart(ctx context.Context, key string, input PutInput) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uploadID := "upload-" + key
	f.parts[uploadID] = make(map[int][]byte)
	return uploadID, 200, nil
}

func (f *fakeBackend) UploadPart(ctx context.Context, key, uploadID string, partNo int, body []byte) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUploadPart[uploadID] {
		return "", 500, nil
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	f.parts[uploadID][partNo] = cp
	return "etag-part", 200, nil
}

func (f *fakeBackend) CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var assembled []byte
	for _, p := range parts {
		assembled = append(assembled, f.parts[uploadID][p.PartNumber]...)
	}
	f.objects[key] = assembled
	delete(f.parts, uploadID)
	return 200, nil
}

func (f *fakeBackend) AbortMultipart(ctx context.Context, key, uploadID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortedUploadIDs = append(f.abortedUploadIDs, uploadID)
	delete(f.parts, uploadID)
	return 200, nil
}

func (f *fakeBackend) GetBucketStatistics(ctx context.Context) (BucketStats, int, error) {
	return BucketStats{TotalSize: 1024, TotalCount: 2}, 200, nil
}

func testConfig() Config {
	return Config{
		Bucket:               "test-bucket",
		WorkerPoolSize:       4,
		BaseTimeoutMs:        20,
		MaxRetries:           3,
		MaxListCount:         200,
		MaxCachedStatEntries: 1000,
		DefaultMode:          0755,
	}
}

func newTestGateway(t *testing.T, backend BackendClient) *Gateway {
	t.Helper()
	gw := New(testConfig(), backend, nil, nil)
	t.Cleanup(gw.Close)
	return gw
}

func TestHeadBucketSuccess(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend())
	if err := gw.HeadBucket(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMakeFileThenStat(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend())
	ctx := context.Background()

	if err := gw.MakeFile(ctx, "/a.txt"); err != nil {
		t.Fatalf("MakeFile: %v", err)
	}
	meta, _, err := gw.Stat(ctx, "/a.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if meta.Path != "/a.txt" {
		t.Errorf("meta.Path = %q, want /a.txt", meta.Path)
	}
}

func TestMakeDirectoryThenStat(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend())
	ctx := context.Background()

	if err := gw.MakeDirectory(ctx, "/d"); err != nil {
		t.Fatalf("MakeDirectory: %v", err)
	}
	meta, _, err := gw.Stat(ctx, "/d/")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !meta.IsDir {
		t.Error("expected directory metadata")
	}
}

func TestStatImplicitDirectoryProbe(t *testing.T) {
	backend := newFakeBackend()
	backend.objects["a/b.txt"] = []byte("hello")

	gw := newTestGateway(t, backend)
	ctx := context.Background()

	meta, found, err := gw.Stat(ctx, "/a/")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !found {
		t.Fatal("expected implicit directory to be synthesized")
	}
	if !meta.IsDir {
		t.Error("synthesized entry should be a directory")
	}
}

func TestStatMissingFileReturnsKeyNotExist(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend())
	_, _, err := gw.Stat(context.Background(), "/missing.txt")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestUploadFileAndDownloadRange(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend())
	ctx := context.Background()

	content := []byte("hello world")
	if err := gw.UploadFile(ctx, "/f.txt", int64(len(content)), content); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	body, _, err := gw.DownloadRange(ctx, "/f.txt", 0, int64(len(content)))
	if err != nil {
		t.Fatalf("DownloadRange: %v", err)
	}
	if string(body) != "hello world" {
		t.Errorf("body = %q, want %q", body, "hello world")
	}
}

func TestMoveFileRenamesTreeAndBackend(t *testing.T) {
	backend := newFakeBackend()
	backend.objects["a.txt"] = []byte("x")

	gw := newTestGateway(t, backend)
	ctx := context.Background()

	gw.Tree().Grow(metaFor("/a.txt"))

	if err := gw.MoveFile(ctx, "/a.txt", "/b.txt"); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if gw.Tree().Has("/a.txt") {
		t.Error("old path should be gone from the tree")
	}
	if !gw.Tree().Has("/b.txt") {
		t.Error("new path should be present in the tree")
	}
	if _, ok := backend.objects["b.txt"]; !ok {
		t.Error("backend should have the object under the new key")
	}
}

func TestDeleteFileOfHardLinkOnlyDropsAlias(t *testing.T) {
	backend := newFakeBackend()
	backend.objects["a.txt"] = []byte("x")
	gw := newTestGateway(t, backend)

	gw.Tree().Grow(metaFor("/a.txt"))
	gw.Tree().HardLink("/a.txt", "/b.txt")

	if err := gw.DeleteFile(context.Background(), "/b.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if gw.Tree().Has("/b.txt") {
		t.Error("hard link alias should be gone")
	}
	if _, ok := backend.objects["a.txt"]; !ok {
		t.Error("backend object should be untouched when deleting a hard-link alias")
	}
}

func TestListDirectoryGrowsTree(t *testing.T) {
	backend := newFakeBackend()
	backend.objects["dir/a.txt"] = []byte("1")
	backend.objects["dir/b.txt"] = []byte("2")
	backend.dirs["dir/sub/"] = true

	gw := newTestGateway(t, backend)

	metas, err := gw.ListDirectory(context.Background(), "/dir")
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("got %d entries, want 3", len(metas))
	}
	if !gw.Tree().Has("/dir/a.txt") || !gw.Tree().Has("/dir/b.txt") || !gw.Tree().Has("/dir/sub/") {
		t.Error("listed entries should be grown into the tree")
	}
}

func TestStatvfsReturnsBucketStatistics(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend())
	stats, err := gw.Statvfs(context.Background())
	if err != nil {
		t.Fatalf("Statvfs: %v", err)
	}
	if stats.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", stats.TotalCount)
	}
}

func TestMultipartUploadLifecycle(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend())
	ctx := context.Background()

	uploadID, err := gw.InitiateMultipartUpload(ctx, "/big.bin")
	if err != nil {
		t.Fatalf("InitiateMultipartUpload: %v", err)
	}
	etag, err := gw.UploadPart(ctx, "/big.bin", uploadID, 1, 5, []byte("hello"))
	if err != nil {
		t.Fatalf("UploadPart: %v", err)
	}
	if err := gw.CompleteMultipartUpload(ctx, "/big.bin", uploadID, []CompletedPart{{PartNumber: 1, ETag: etag}}); err != nil {
		t.Fatalf("CompleteMultipartUpload: %v", err)
	}
}

func TestUploadFileSplitsLargeFilesIntoMultipartParts(t *testing.T) {
	backend := newFakeBackend()
	gw := newTestGateway(t, backend)
	ctx := context.Background()

	size := multipartPartSize*2 + 1024
	src := make([]byte, size)
	for i := range src {
		src[i] = byte(i)
	}

	if err := gw.UploadFile(ctx, "/big.bin", int64(size), src); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	backend.mu.Lock()
	got, ok := backend.objects["big.bin"]
	backend.mu.Unlock()
	if !ok {
		t.Fatal("object was never completed")
	}
	if len(got) != size {
		t.Fatalf("assembled object size = %d, want %d", len(got), size)
	}
	for i := range got {
		if got[i] != src[i] {
			t.Fatalf("assembled object diverges at byte %d", i)
		}
	}
	if !gw.Tree().Has("/big.bin") {
		t.Error("completed multipart upload should grow the tree")
	}
}

func TestUploadFileSmallerThanThresholdUsesSinglePut(t *testing.T) {
	backend := newFakeBackend()
	gw := newTestGateway(t, backend)
	ctx := context.Background()

	src := []byte("small file contents")
	if err := gw.UploadFile(ctx, "/small.txt", int64(len(src)), src); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.parts) != 0 {
		t.Error("small upload should not have gone through the multipart path")
	}
	if string(backend.objects["small.txt"]) != string(src) {
		t.Error("small upload should have landed via PutObject")
	}
}

func TestUploadFileAbortsMultipartOnPartFailure(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig()
	cfg.MaxRetries = 1
	gw := New(cfg, backend, nil, nil)
	t.Cleanup(gw.Close)
	ctx := context.Background()

	size := multipartPartSize*2 + 1
	src := make([]byte, size)

	// Force every part of this upload to fail so the gateway has to abort.
	backend.failUploadPart["upload-big-fail.bin"] = true

	err := gw.UploadFile(ctx, "/big-fail.bin", int64(size), src)
	if err == nil {
		t.Fatal("expected UploadFile to fail when every part upload fails")
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.abortedUploadIDs) != 1 || backend.abortedUploadIDs[0] != "upload-big-fail.bin" {
		t.Fatalf("expected the failed upload to be aborted, got %v", backend.abortedUploadIDs)
	}
	if _, exists := backend.objects["big-fail.bin"]; exists {
		t.Error("object should not exist after an aborted multipart upload")
	}
}

func TestSetStorageTierRetagsObjectAndCachedMetadata(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend())
	ctx := context.Background()

	if err := gw.MakeFile(ctx, "/tiered.bin"); err != nil {
		t.Fatalf("MakeFile: %v", err)
	}

	if err := gw.SetStorageTier(ctx, "/tiered.bin", "GLACIER"); err != nil {
		t.Fatalf("SetStorageTier: %v", err)
	}

	meta, ok := gw.meta.Get("/tiered.bin")
	if !ok {
		t.Fatal("expected cached metadata after SetStorageTier")
	}
	if got := meta.Attributes[storageTierAttribute]; got != "GLACIER" {
		t.Errorf("cached tier = %q, want GLACIER", got)
	}

	// Stat against the backend should agree.
	meta, _, err := gw.Stat(ctx, "/tiered.bin")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if got := meta.Attributes[storageTierAttribute]; got != "GLACIER" {
		t.Errorf("Stat reported tier = %q, want GLACIER", got)
	}
}

func TestSetStorageTierMissingObjectReturnsError(t *testing.T) {
	gw := newTestGateway(t, newFakeBackend())

	if err := gw.SetStorageTier(context.Background(), "/missing.bin", "GLACIER"); err == nil {
		t.Fatal("expected an error retagging a nonexistent object")
	}
}
