// Package gateway implements the high-level filesystem operations that
// sit between the FUSE binding and the object-store backend: Stat,
// MakeFile, MakeDirectory, DeleteFile, MoveFile, MoveDirectory,
// DownloadRange, UploadFile, the multipart-upload calls, ListDirectory,
// SymLink, and Statvfs. Each composes the request executor, the response
// classifier, the object/path translator, and the directory tree and
// metadata store to turn one POSIX-shaped call into one or more backend
// requests plus a tree update.
package gateway

import (
	"context"
	stderr "errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/gatewayfs/gatewayfs/internal/circuit"
	"github.com/gatewayfs/gatewayfs/internal/classify"
	"github.com/gatewayfs/gatewayfs/internal/executor"
	"github.com/gatewayfs/gatewayfs/internal/metastore"
	"github.com/gatewayfs/gatewayfs/internal/pathtranslate"
	"github.com/gatewayfs/gatewayfs/internal/tree"
	"github.com/gatewayfs/gatewayfs/internal/workerpool"
	"github.com/gatewayfs/gatewayfs/pkg/errors"
	"github.com/gatewayfs/gatewayfs/pkg/health"
	"github.com/gatewayfs/gatewayfs/pkg/retry"
	"github.com/gatewayfs/gatewayfs/pkg/types"
	"github.com/gatewayfs/gatewayfs/pkg/utils"
)

// backendComponent is the component name the gateway reports under when
// a health.Tracker is attached via SetHealthTracker.
const backendComponent = "backend"

// storageTierAttribute is the FileMetadata.Attributes key SetStorageTier
// writes to and Stat reads from, surfaced to FUSE callers as the
// user.gateway.storage_tier extended attribute.
const storageTierAttribute = "storage_tier"

// multipartThreshold is the smallest file size that UploadFile splits
// into concurrent multipart parts instead of one PutObject.
const multipartThreshold = 64 * 1024 * 1024

// multipartPartSize is the size of each part in a multipart upload,
// below S3's 10,000-part ceiling for any file under ~640GB.
const multipartPartSize = 64 * 1024 * 1024

// Config is the configuration the gateway consumes. Every field named
// here is recognized; nothing else is — defaults are supplied by the
// composition root, not by this package.
type Config struct {
	Bucket              string `yaml:"bucket"`
	Zone                string `yaml:"zone"`
	Host                string `yaml:"host"`
	Protocol            string `yaml:"protocol"`
	Port                int    `yaml:"port"`
	CredentialsFilePath string `yaml:"credentials_file_path"`

	WorkerPoolSize       int `yaml:"worker_pool_size"`
	BaseTimeoutMs        int `yaml:"base_timeout_ms"`
	MaxRetries           int `yaml:"max_retries"`
	MaxListCount         int `yaml:"max_list_count"`
	MaxCachedStatEntries int `yaml:"max_cached_stat_entries"`
	UserAgent            string `yaml:"user_agent"`

	DefaultUID  uint32 `yaml:"default_uid"`
	DefaultGID  uint32 `yaml:"default_gid"`
	DefaultMode uint32 `yaml:"default_mode"`
}

// Gateway composes every core component into the operations table the
// FUSE binding calls.
type Gateway struct {
	cfg     Config
	backend BackendClient

	translator *pathtranslate.Translator
	tree       *tree.Tree
	meta       *metastore.Store
	pool       *workerpool.Pool
	exec       *executor.Executor
	retryer    *retry.Retryer
	logger     *utils.StructuredLogger
	health     *health.Tracker
}

// SetHealthTracker attaches a health.Tracker the gateway reports backend
// call outcomes to. Optional — a nil tracker (the default) disables
// reporting without any nil checks at call sites.
func (g *Gateway) SetHealthTracker(t *health.Tracker) {
	if t != nil {
		t.RegisterComponent(backendComponent)
	}
	g.health = t
}

// New constructs a Gateway. backend is the dependency-injected
// object-store client; the gateway never constructs one itself.
func New(cfg Config, backend BackendClient, breaker *circuit.CircuitBreaker, logger *utils.StructuredLogger) *Gateway {
	pool := workerpool.New(cfg.WorkerPoolSize)
	pool.Start()

	rootMeta := types.FileMetadata{
		ModifyTime: time.Now(),
		Mode:       cfg.DefaultMode,
		UID:        cfg.DefaultUID,
		GID:        cfg.DefaultGID,
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.MaxRetries
	retryCfg.Logger = logger

	return &Gateway{
		cfg:        cfg,
		backend:    backend,
		translator: pathtranslate.New(cfg.Bucket),
		tree:       tree.New(rootMeta, cfg.DefaultUID, cfg.DefaultGID, cfg.DefaultMode),
		meta:       metastore.New(cfg.MaxCachedStatEntries),
		pool:       pool,
		exec:       executor.New(pool, breaker),
		retryer:    retry.New(retryCfg),
		logger:     logger,
	}
}

// Close stops the worker pool. No in-flight work is cancelled; it is
// abandoned, consistent with the executor's no-cancellation policy.
func (g *Gateway) Close() {
	g.pool.Stop()
}

func (g *Gateway) baseTimeout() time.Duration {
	return time.Duration(g.cfg.BaseTimeoutMs) * time.Millisecond
}

// transferTimeout implements the §4.7 scaling rule for transfer
// operations: ceil(bytes/1MiB) * base * 4 + 1s.
func (g *Gateway) transferTimeout(bytes int64) time.Duration {
	const mib = 1 << 20
	units := math.Ceil(float64(bytes) / float64(mib))
	if units < 1 {
		units = 1
	}
	return time.Duration(units)*4*g.baseTimeout() + time.Second
}

// listTimeout implements the §4.7 scaling rule for list operations:
// ceil(maxCount/200) * base * 2 + 1s.
func (g *Gateway) listTimeout(maxCount int) time.Duration {
	units := math.Ceil(float64(maxCount) / 200.0)
	if units < 1 {
		units = 1
	}
	return time.Duration(units)*2*g.baseTimeout() + time.Second
}

// moveTimeout implements the §4.7 scaling rule for move operations:
// base * 5.
func (g *Gateway) moveTimeout() time.Duration {
	return 5 * g.baseTimeout()
}

// call submits op to the executor with the given deadline, classifies
// the outcome, and drives the retry loop. moveIdempotent enables the
// §4.8 rule: once at least one attempt has been made, a subsequent
// KeyNotExist is treated as success rather than propagated, since a
// move that times out on the client side may already have completed on
// the backend.
func (g *Gateway) call(ctx context.Context, deadline time.Duration, tag string, moveIdempotent bool, op func() (httpStatus int, err error)) error {
	attempts := 0

	return g.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		attempts++

		status, opErr := executor.SubmitAwait(g.exec, deadline, func() (int, error) {
			return op()
		})

		outcome := outcomeFromCallResult(status, opErr)

		if outcome.Kind == errors.Good {
			if g.health != nil {
				g.health.RecordSuccess(backendComponent)
			}
			return nil
		}

		if moveIdempotent && attempts > 1 && outcome.Kind == errors.KeyNotExist {
			if g.health != nil {
				g.health.RecordSuccess(backendComponent)
			}
			return nil
		}

		gwErr := classify.ToGatewayError(outcome, tag)
		if g.health != nil {
			g.health.RecordError(backendComponent, gwErr)
		}
		return gwErr
	})
}

// outcomeFromCallResult turns the executor's raw result into a
// classifier Outcome. A non-nil err from the executor itself (deadline
// elapsed, or an error already tagged by a prior classification) is
// returned as-is by unwrapping; otherwise httpStatus drives Classify.
func outcomeFromCallResult(httpStatus int, err error) classify.Outcome {
	if gwErr, ok := errors.IsGatewayError(err); ok {
		return classify.Outcome{Kind: gwErr.Kind, Retryable: gwErr.Retryable, Message: gwErr.Message}
	}
	if err != nil {
		return classify.Classify(classify.TransportSendError, 0, nil)
	}
	return classify.Classify(classify.TransportOK, httpStatus, nil)
}

// HeadBucket confirms the configured bucket is reachable.
func (g *Gateway) HeadBucket(ctx context.Context) error {
	return g.call(ctx, g.baseTimeout(), g.cfg.Bucket, false, func() (int, error) {
		status, err := g.backend.HeadBucket(ctx)
		return status, err
	})
}

// changed reports whether incoming metadata differs from what was
// already known for path — the §4.7 "modified=true iff new/changed" rule.
func changed(existing, incoming types.FileMetadata, wasPresent bool) bool {
	if !wasPresent {
		return true
	}
	return !incoming.ModifyTime.Equal(existing.ModifyTime) || incoming.Size != existing.Size
}

// Stat fetches path's metadata, upserting the tree and the metadata
// store. If path denotes a directory-style key and the backend reports
// KeyNotExist, Stat falls back to an implicit-directory probe via
// ListDirectory before giving up.
func (g *Gateway) Stat(ctx context.Context, path string) (types.FileMetadata, bool, error) {
	key := g.translator.ToKey(path)

	existing, wasPresent := g.meta.Get(path)

	var httpStatus int
	var modTime map[string]string
	err := g.call(ctx, g.baseTimeout(), path, false, func() (int, error) {
		status, hdrs, err := g.backend.HeadObject(ctx, key, nil)
		httpStatus = status
		modTime = hdrs
		return status, err
	})

	if err != nil {
		var gwErr *errors.GatewayError
		if stderr.As(err, &gwErr) && gwErr.Kind == errors.KeyNotExist && pathtranslate.IsDirectoryPath(path) {
			return g.probeDirectory(ctx, path)
		}
		return types.FileMetadata{}, false, err
	}

	incoming := metadataFromHeaders(path, httpStatus, modTime)
	g.meta.Add(path, incoming, "")
	node := g.tree.Grow(incoming)

	return node.Meta, changed(existing, incoming, wasPresent), nil
}

func metadataFromHeaders(path string, httpStatus int, hdrs map[string]string) types.FileMetadata {
	now := time.Now()
	m := types.FileMetadata{
		Path:       path,
		ModifyTime: now,
		AccessTime: now,
		ChangeTime: now,
		CachedAt:   now,
		IsDir:      pathtranslate.IsDirectoryPath(path),
	}
	if hdrs != nil {
		if v, ok := hdrs["Content-Type"]; ok {
			m.MimeType = v
		}
		if v, ok := hdrs["ETag"]; ok {
			m.ETag = v
		}
		if v, ok := hdrs["Storage-Class"]; ok && v != "" {
			m.Attributes = map[string]string{storageTierAttribute: v}
		}
	}
	return m
}

// probeDirectory implements the §4.6 directory-probing rule: after a
// directory-style HEAD comes back KeyNotExist, list the prefix with
// limit=2; any key or common prefix synthesizes the directory locally.
func (g *Gateway) probeDirectory(ctx context.Context, path string) (types.FileMetadata, bool, error) {
	page, err := g.listOnce(ctx, path, "", 2)
	if err != nil {
		return types.FileMetadata{}, false, err
	}

	result := pathtranslate.ProbeDirectory(page.Keys, page.CommonPrefixes)
	if !result.Exists {
		return types.FileMetadata{}, false, errors.NewError(errors.KeyNotExist, "no such directory: "+path).WithTag(path)
	}

	node := g.tree.UpdateDirectory(path, nil)
	return node.Meta, true, nil
}

// MakeFile creates an empty object at path. The caller is expected to
// re-Stat to learn the resulting size (always 0 immediately after).
func (g *Gateway) MakeFile(ctx context.Context, path string) error {
	key := g.translator.ToKey(path)
	err := g.call(ctx, g.baseTimeout(), path, false, func() (int, error) {
		return g.backend.PutObject(ctx, key, PutInput{MimeType: "application/octet-stream"})
	})
	if err != nil {
		return err
	}
	now := time.Now()
	g.tree.Grow(types.FileMetadata{Path: path, ModifyTime: now, AccessTime: now, ChangeTime: now, CachedAt: now})
	return nil
}

// MakeDirectory creates a directory marker object at path, forcing the
// trailing-slash convention.
func (g *Gateway) MakeDirectory(ctx context.Context, path string) error {
	dirPath := pathtranslate.AsDirectory(path)
	key := g.translator.ToKey(dirPath)

	err := g.call(ctx, g.baseTimeout(), dirPath, false, func() (int, error) {
		return g.backend.PutObject(ctx, key, PutInput{MimeType: "application/x-directory"})
	})
	if err != nil {
		return err
	}

	now := time.Now()
	g.tree.Grow(types.FileMetadata{
		Path: dirPath, IsDir: true, Mode: g.cfg.DefaultMode, UID: g.cfg.DefaultUID, GID: g.cfg.DefaultGID,
		ModifyTime: now, AccessTime: now, ChangeTime: now, CachedAt: now,
	})
	return nil
}

// DeleteFile removes path from the backend and from the tree/metadata
// store. If path is a hard link, only the local alias is dropped — the
// backend object and the other alias are untouched, since hard links are
// local-only (spec Non-goal: no hard links at the object layer).
func (g *Gateway) DeleteFile(ctx context.Context, path string) error {
	node := g.tree.Find(path)
	if node != nil && node.IsHardLink {
		g.tree.Remove(path)
		g.meta.Erase(path)
		return nil
	}

	key := g.translator.ToKey(path)
	err := g.call(ctx, g.baseTimeout(), path, false, func() (int, error) {
		return g.backend.DeleteObject(ctx, key)
	})
	if err != nil {
		return err
	}

	g.tree.Remove(path)
	g.meta.Erase(path)
	return nil
}

// MoveFile issues a server-side copy with a move-source header, then
// renames the node and metadata-store entry locally. If the backend
// reports the destination is a missing directory-style key, MoveFile
// retries once by creating the destination directory first (the §4.6
// move-to-missing-directory quirk).
func (g *Gateway) MoveFile(ctx context.Context, src, dst string) error {
	dstKey := g.translator.ToKey(dst)
	moveSource := g.translator.MoveSourceHeader(src)

	err := g.call(ctx, g.moveTimeout(), src, true, func() (int, error) {
		return g.backend.PutObject(ctx, dstKey, PutInput{MoveSource: moveSource})
	})

	if err != nil {
		var gwErr *errors.GatewayError
		if stderr.As(err, &gwErr) && gwErr.Kind == errors.KeyNotExist &&
			pathtranslate.IsMoveToMissingDirectoryQuirk(dst, true) {
			if mkErr := g.MakeDirectory(ctx, dst); mkErr != nil {
				return mkErr
			}
			err = g.call(ctx, g.moveTimeout(), src, true, func() (int, error) {
				return g.backend.PutObject(ctx, dstKey, PutInput{MoveSource: moveSource})
			})
		}
		if err != nil {
			return err
		}
	}

	g.tree.Rename(src, dst)
	g.meta.Rename(src, dst)
	return nil
}

// SetStorageTier retags the object at path into tier by issuing a
// self-copy (move-source equal to the object's own key) carrying the
// requested storage class, then updates the cached metadata so a
// subsequent Stat doesn't need a round trip to observe the change.
// Backed by the FUSE layer's user.gateway.storage_tier xattr.
func (g *Gateway) SetStorageTier(ctx context.Context, path, tier string) error {
	key := g.translator.ToKey(path)
	selfSource := g.translator.MoveSourceHeader(path)

	err := g.call(ctx, g.moveTimeout(), path, false, func() (int, error) {
		return g.backend.PutObject(ctx, key, PutInput{MoveSource: selfSource, StorageClass: tier})
	})
	if err != nil {
		return err
	}

	if existing, ok := g.meta.Get(path); ok {
		if existing.Attributes == nil {
			existing.Attributes = make(map[string]string, 1)
		}
		existing.Attributes[storageTierAttribute] = tier
		g.meta.Add(path, existing, "")
	}
	return nil
}

// MoveDirectory lists src's immediate contents and recursively moves
// each child, fanning work out across the worker pool via detached
// submissions, then moves the directory's own marker object the same
// way. MoveDirectory always returns nil once the fan-out is dispatched;
// every failure, including the directory marker's own move, is reported
// only through onChildError — matching the §4.7 contract that a
// directory move never blocks the caller on any one descendant.
func (g *Gateway) MoveDirectory(ctx context.Context, src, dst string, onChildError func(path string, err error)) error {
	srcDir := pathtranslate.AsDirectory(src)
	dstDir := pathtranslate.AsDirectory(dst)

	page, err := g.listOnce(ctx, srcDir, "", g.cfg.MaxListCount)
	if err != nil {
		return err
	}

	report := func(path string) func(struct{}, error) {
		return func(_ struct{}, err error) {
			if err != nil && onChildError != nil {
				onChildError(path, err)
			}
		}
	}

	for _, key := range page.Keys {
		childSrc := g.translator.ToPath(key)
		childDst := dstDir + trimPrefix(childSrc, srcDir)
		executor.SubmitDetached(g.exec, func() (struct{}, error) {
			return struct{}{}, g.MoveFile(ctx, childSrc, childDst)
		}, report(childSrc))
	}

	for _, prefix := range page.CommonPrefixes {
		childSrc := g.translator.ToPath(prefix)
		childDst := dstDir + trimPrefix(childSrc, srcDir)
		executor.SubmitDetached(g.exec, func() (struct{}, error) {
			return struct{}{}, g.MoveDirectory(ctx, childSrc, childDst, onChildError)
		}, report(childSrc))
	}

	executor.SubmitDetached(g.exec, func() (struct{}, error) {
		return struct{}{}, g.MoveFile(ctx, srcDir, dstDir)
	}, report(srcDir))

	return nil
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

// DownloadRange returns [rangeStart, rangeStart+rangeLen) of path's
// content together with the backend's ETag for the object.
func (g *Gateway) DownloadRange(ctx context.Context, path string, rangeStart, rangeLen int64) ([]byte, string, error) {
	key := g.translator.ToKey(path)

	var body []byte
	var etag string
	err := g.call(ctx, g.transferTimeout(rangeLen), path, false, func() (int, error) {
		status, b, e, err := g.backend.GetObject(ctx, key, rangeStart, rangeLen)
		body, etag = b, e
		return status, err
	})
	if err != nil {
		return nil, "", err
	}
	return body, etag, nil
}

// UploadFile uploads src's full content to path. Files at or above
// multipartThreshold are split into concurrent multipart parts; smaller
// files go through a single PUT.
func (g *Gateway) UploadFile(ctx context.Context, path string, size int64, src []byte) error {
	if size >= multipartThreshold {
		return g.uploadMultipart(ctx, path, src)
	}

	key := g.translator.ToKey(path)
	err := g.call(ctx, g.transferTimeout(size), path, false, func() (int, error) {
		return g.backend.PutObject(ctx, key, PutInput{Length: size, Body: src})
	})
	if err != nil {
		return err
	}
	now := time.Now()
	g.tree.Grow(types.FileMetadata{Path: path, Size: size, ModifyTime: now, AccessTime: now, ChangeTime: now, CachedAt: now})
	return nil
}

// uploadMultipart drives the multipart lifecycle for a large upload:
// it initiates the upload, fans the parts out across a worker pool
// bounded by cfg.WorkerPoolSize, and completes or aborts depending on
// whether every part succeeded.
func (g *Gateway) uploadMultipart(ctx context.Context, path string, src []byte) error {
	uploadID, err := g.InitiateMultipartUpload(ctx, path)
	if err != nil {
		return err
	}

	numParts := (len(src) + multipartPartSize - 1) / multipartPartSize
	concurrency := g.cfg.WorkerPoolSize
	if concurrency <= 0 || concurrency > numParts {
		concurrency = numParts
	}

	var mu sync.Mutex
	parts := make([]CompletedPart, 0, numParts)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(concurrency).WithCancelOnError()
	for i := 0; i < numParts; i++ {
		partNo := i + 1
		start := i * multipartPartSize
		end := start + multipartPartSize
		if end > len(src) {
			end = len(src)
		}
		body := src[start:end]

		p.Go(func(ctx context.Context) error {
			etag, err := g.UploadPart(ctx, path, uploadID, partNo, int64(len(body)), body)
			if err != nil {
				return err
			}
			mu.Lock()
			parts = append(parts, CompletedPart{PartNumber: partNo, ETag: etag})
			mu.Unlock()
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		abortErr := g.AbortMultipartUpload(context.Background(), path, uploadID)
		return multierr.Combine(err, abortErr)
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return g.CompleteMultipartUpload(ctx, path, uploadID, parts)
}

// InitiateMultipartUpload starts a multipart upload for path and returns
// its upload id.
func (g *Gateway) InitiateMultipartUpload(ctx context.Context, path string) (string, error) {
	key := g.translator.ToKey(path)
	var uploadID string
	err := g.call(ctx, g.baseTimeout(), path, false, func() (int, error) {
		id, status, err := g.backend.InitiateMultipart(ctx, key, PutInput{})
		uploadID = id
		return status, err
	})
	return uploadID, err
}

// UploadPart uploads one part of a multipart upload, returning the
// backend-assigned ETag for that part.
func (g *Gateway) UploadPart(ctx context.Context, path, uploadID string, partNo int, size int64, src []byte) (string, error) {
	key := g.translator.ToKey(path)
	var etag string
	err := g.call(ctx, g.transferTimeout(size), path, false, func() (int, error) {
		tag, status, err := g.backend.UploadPart(ctx, key, uploadID, partNo, src)
		etag = tag
		return status, err
	})
	return etag, err
}

// CompleteMultipartUpload finalizes a multipart upload given its sorted
// completed parts.
func (g *Gateway) CompleteMultipartUpload(ctx context.Context, path, uploadID string, parts []CompletedPart) error {
	key := g.translator.ToKey(path)
	err := g.call(ctx, g.baseTimeout(), path, false, func() (int, error) {
		return g.backend.CompleteMultipart(ctx, key, uploadID, parts)
	})
	if err != nil {
		return err
	}
	now := time.Now()
	g.tree.Grow(types.FileMetadata{Path: path, ModifyTime: now, AccessTime: now, ChangeTime: now, CachedAt: now})
	return nil
}

// AbortMultipartUpload cancels an in-progress multipart upload.
func (g *Gateway) AbortMultipartUpload(ctx context.Context, path, uploadID string) error {
	key := g.translator.ToKey(path)
	return g.call(ctx, g.baseTimeout(), path, false, func() (int, error) {
		return g.backend.AbortMultipart(ctx, key, uploadID)
	})
}

// SymLink creates a symlink object at linkPath whose body is target.
func (g *Gateway) SymLink(ctx context.Context, target, linkPath string) error {
	key := g.translator.ToKey(linkPath)
	body := []byte(target)
	err := g.call(ctx, g.baseTimeout(), linkPath, false, func() (int, error) {
		return g.backend.PutObject(ctx, key, PutInput{MimeType: "application/x-symlink", Body: body, Length: int64(len(body))})
	})
	if err != nil {
		return err
	}
	now := time.Now()
	g.tree.Grow(types.FileMetadata{Path: linkPath, ModifyTime: now, AccessTime: now, ChangeTime: now, CachedAt: now})
	return nil
}

// listOnce issues a single ListObjects page through the executor and
// classifier, without paging. dirPath is a filesystem path; the backend
// sees the translated object key as its prefix, and the returned page's
// keys/prefixes stay in that same object-key form for the caller to
// translate back as needed.
func (g *Gateway) listOnce(ctx context.Context, dirPath, marker string, limit int) (ListPage, error) {
	prefix := g.translator.ToKey(dirPath)
	var page ListPage
	err := g.call(ctx, g.listTimeout(limit), dirPath, false, func() (int, error) {
		p, status, err := g.backend.ListObjects(ctx, prefix, marker, limit)
		page = p
		return status, err
	})
	return page, err
}

// ListDirectory pages through dirPath's listing until exhausted or
// maxCount is reached, reconciling each page against the tree via
// UpdateDirectory (or synthesizing the directory on the first page if it
// was previously unknown).
func (g *Gateway) ListDirectory(ctx context.Context, dirPath string) ([]types.FileMetadata, error) {
	dirPath = pathtranslate.AsDirectory(dirPath)

	var all []types.FileMetadata
	marker := ""
	seen := 0

	for {
		remaining := g.cfg.MaxListCount - seen
		if remaining <= 0 {
			break
		}
		page, err := g.listOnce(ctx, dirPath, marker, remaining)
		if err != nil {
			return nil, err
		}

		childMetas := make([]types.FileMetadata, 0, len(page.Keys)+len(page.CommonPrefixes))
		now := time.Now()
		for _, key := range page.Keys {
			p := g.translator.ToPath(key)
			childMetas = append(childMetas, types.FileMetadata{Path: p, ModifyTime: now, AccessTime: now, ChangeTime: now, CachedAt: now})
		}
		for _, prefix := range page.CommonPrefixes {
			p := g.translator.ToPath(prefix)
			childMetas = append(childMetas, types.FileMetadata{Path: p, IsDir: true, ModifyTime: now, AccessTime: now, ChangeTime: now, CachedAt: now, Mode: g.cfg.DefaultMode})
		}

		g.tree.UpdateDirectory(dirPath, childMetas)
		all = append(all, childMetas...)
		seen += len(page.Keys) + len(page.CommonPrefixes)

		if !page.Truncated || page.NextMarker == "" {
			break
		}
		marker = page.NextMarker
	}

	return all, nil
}

// Statvfs fills a filesystem-statistics structure from the bucket's
// aggregate statistics.
func (g *Gateway) Statvfs(ctx context.Context) (BucketStats, error) {
	var stats BucketStats
	err := g.call(ctx, g.baseTimeout(), g.cfg.Bucket, false, func() (int, error) {
		s, status, err := g.backend.GetBucketStatistics(ctx)
		stats = s
		return status, err
	})
	return stats, err
}

// Tree exposes the underlying directory tree for the FUSE binding's
// direct Find/Has lookups that do not need to round-trip the backend.
func (g *Gateway) Tree() *tree.Tree {
	return g.tree
}

// MetaStore exposes the metadata cache so the FUSE binding can pin
// entries for open file handles.
func (g *Gateway) MetaStore() *metastore.Store {
	return g.meta
}

// QueueDepth reports the worker pool's pending task count, for the
// health checker's backpressure probe.
func (g *Gateway) QueueDepth() int {
	return g.pool.QueueDepth()
}
