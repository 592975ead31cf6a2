//go:build cgofuse
// +build cgofuse

package fuse

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/gatewayfs/gatewayfs/internal/gateway"
	"github.com/gatewayfs/gatewayfs/internal/pathtranslate"
	"github.com/gatewayfs/gatewayfs/pkg/types"
)

// CgoFuseFS implements the gateway filesystem using cgofuse, for
// platforms where the low-level hanwen/go-fuse binding isn't available.
type CgoFuseFS struct {
	fuse.FileSystemBase

	gw          *gateway.Gateway
	cache       types.Cache
	writeBuffer types.WriteBuffer
	metrics     types.MetricsCollector
	config      *Config

	// Internal state
	mu         sync.RWMutex
	openFiles  map[uint64]*OpenFile
	nextHandle uint64
	host       *fuse.FileSystemHost
	mounted    bool
}

// OpenFile represents an open file handle
type OpenFile struct {
	Path     string
	Data     []byte
	Offset   int64
	Modified bool
	Size     int64
}

// NewCgoFuseFS creates a new cgofuse-based filesystem
func NewCgoFuseFS(gw *gateway.Gateway, cache types.Cache, writeBuffer types.WriteBuffer,
	metrics types.MetricsCollector, config *Config) *CgoFuseFS {

	return &CgoFuseFS{
		gw:          gw,
		cache:       cache,
		writeBuffer: writeBuffer,
		metrics:     metrics,
		config:      config,
		openFiles:   make(map[uint64]*OpenFile),
		nextHandle:  1,
	}
}

// Mount mounts the filesystem
func (fs *CgoFuseFS) Mount(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.mounted {
		return fmt.Errorf("filesystem already mounted")
	}

	fs.host = fuse.NewFileSystemHost(fs)

	options := []string{
		"-o", "fsname=gatewayfs",
		"-o", "subtype=s3",
		"-o", "allow_other",
	}

	switch {
	case strings.Contains(os.Getenv("GOOS"), "darwin"):
		options = append(options, "-o", "volname=gatewayfs")
	case strings.Contains(os.Getenv("GOOS"), "windows"):
		options = append(options, "-o", "FileSystemName=gatewayfs")
	}

	go func() {
		ret := fs.host.Mount(fs.config.MountPoint, options)
		if ret != 0 {
			log.Printf("Mount failed with code: %d", ret)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	fs.mounted = true
	log.Printf("gatewayfs mounted at: %s", fs.config.MountPoint)
	return nil
}

// Unmount unmounts the filesystem
func (fs *CgoFuseFS) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.mounted {
		return fmt.Errorf("filesystem not mounted")
	}

	if fs.host != nil {
		ret := fs.host.Unmount()
		if ret != 0 {
			return fmt.Errorf("unmount failed with code: %d", ret)
		}
	}

	fs.mounted = false
	log.Printf("gatewayfs unmounted from: %s", fs.config.MountPoint)
	return nil
}

// IsMounted returns whether the filesystem is mounted
func (fs *CgoFuseFS) IsMounted() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.mounted
}

// FUSE Operations Implementation

// Getattr gets file attributes
func (fs *CgoFuseFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	defer fs.recordOperation("getattr", time.Now())

	if path == "/" {
		stat.Mode = fuse.S_IFDIR | 0755
		stat.Nlink = 2
		return 0
	}

	ctx := context.Background()
	meta, _, err := fs.gw.Stat(ctx, path)
	if err != nil {
		if !isKeyNotExist(err) {
			return -int(errnoFor(err))
		}
		meta, _, err = fs.gw.Stat(ctx, pathtranslate.AsDirectory(path))
		if err != nil {
			return -fuse.ENOENT
		}
	}

	fs.fillStat(stat, meta)
	return 0
}

// Open opens a file
func (fs *CgoFuseFS) Open(path string, flags int) (int, uint64) {
	defer fs.recordOperation("open", time.Now())

	fs.mu.Lock()
	handle := fs.nextHandle
	fs.nextHandle++

	fs.openFiles[handle] = &OpenFile{
		Path:   path,
		Offset: 0,
	}
	fs.mu.Unlock()

	return 0, handle
}

// Read reads from a file
func (fs *CgoFuseFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	start := time.Now()
	defer fs.recordOperation("read", start)

	if cached := fs.cache.Get(path, ofst, int64(len(buff))); cached != nil {
		fs.metrics.RecordCacheHit(path, int64(len(cached)))
		copy(buff, cached)
		return len(cached)
	}

	ctx := context.Background()
	data, _, err := fs.gw.DownloadRange(ctx, path, ofst, int64(len(buff)))
	if err != nil {
		return -int(errnoFor(err))
	}

	fs.cache.Put(path, ofst, data)
	fs.metrics.RecordCacheMiss(path, int64(len(data)))

	copy(buff, data)
	return len(data)
}

// Write writes to a file
func (fs *CgoFuseFS) Write(path string, buff []byte, ofst int64, fh uint64) int {
	defer fs.recordOperation("write", time.Now())

	if err := fs.writeBuffer.Write(path, ofst, buff); err != nil {
		return -fuse.EIO
	}

	return len(buff)
}

// Release closes a file
func (fs *CgoFuseFS) Release(path string, fh uint64) int {
	defer fs.recordOperation("release", time.Now())

	fs.mu.Lock()
	delete(fs.openFiles, fh)
	fs.mu.Unlock()

	return 0
}

// Readdir reads directory contents
func (fs *CgoFuseFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	defer fs.recordOperation("readdir", time.Now())

	fill(".", nil, 0)
	fill("..", nil, 0)

	dirPath := pathtranslate.AsDirectory(path)
	ctx := context.Background()
	metas, err := fs.gw.ListDirectory(ctx, dirPath)
	if err != nil {
		return -int(errnoFor(err))
	}

	for _, meta := range metas {
		name := strings.TrimSuffix(meta.Path, "/")
		name = name[strings.LastIndex(name, "/")+1:]
		if name == "" {
			continue
		}

		stat := &fuse.Stat_t{}
		fs.fillStat(stat, meta)

		if !fill(name, stat, 0) {
			break
		}
	}

	return 0
}

// Helper methods

func (fs *CgoFuseFS) fillStat(stat *fuse.Stat_t, meta types.FileMetadata) {
	if meta.IsDir {
		stat.Mode = fuse.S_IFDIR | 0755
		stat.Nlink = 2
		return
	}

	stat.Mode = fuse.S_IFREG | 0644
	stat.Size = meta.Size
	stat.Nlink = 1
	stat.Mtim.Sec = meta.ModifyTime.Unix()
	stat.Mtim.Nsec = meta.ModifyTime.UnixNano() % 1e9
}

func (fs *CgoFuseFS) recordOperation(op string, start time.Time) {
	duration := time.Since(start)
	if fs.metrics != nil {
		fs.metrics.RecordOperation(op, duration, 0, true)
	}
}

// GetStats returns filesystem statistics
func (fs *CgoFuseFS) GetStats() *FilesystemStats {
	return &FilesystemStats{
		Lookups:      0,
		Opens:        0,
		Reads:        0,
		Writes:       0,
		BytesRead:    0,
		BytesWritten: 0,
		CacheHits:    0,
		CacheMisses:  0,
		Errors:       0,
	}
}
