package fuse

import (
	"context"
	"log"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/gatewayfs/gatewayfs/internal/gateway"
	"github.com/gatewayfs/gatewayfs/internal/pathtranslate"
	"github.com/gatewayfs/gatewayfs/pkg/types"
	"github.com/gatewayfs/gatewayfs/pkg/utils"
)

// safeInt64ToUint64 safely converts int64 to uint64, preventing negative values
func safeInt64ToUint64(i int64) uint64 {
	if i < 0 {
		return 0
	}
	return uint64(i)
}

// safeIntToUint32 safely converts int to uint32, preventing overflow
func safeIntToUint32(i int) uint32 {
	if i < 0 {
		return 0
	}
	if i > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(i)
}

// FileSystem implements the FUSE filesystem interface on top of a
// Gateway: every node method below turns a kernel callback into one
// Gateway operation call and maps its ErrorKind to a syscall.Errno. The
// disk-backed content cache and write buffer stay as injected
// collaborators, just as they were when this filesystem talked straight
// to a backend client — only the metadata/object path changed.
type FileSystem struct {
	fs.Inode

	gw      *gateway.Gateway
	cache   types.Cache
	buffer  types.WriteBuffer
	metrics types.MetricsCollector

	// Configuration
	config *Config

	// Internal state
	mu         sync.RWMutex
	openFiles  map[uint64]*OpenFile
	nextHandle uint64

	// Performance tracking
	stats *Stats

	// Performance optimizations
	readAhead      *ReadAheadManager
	writeCoalescer *WriteCoalescer
}

// Config represents FUSE filesystem configuration
type Config struct {
	// Mount options
	MountPoint string `yaml:"mount_point"`
	ReadOnly   bool   `yaml:"read_only"`
	AllowOther bool   `yaml:"allow_other"`

	// FUSE options
	DirectIO  bool   `yaml:"direct_io"`
	KeepCache bool   `yaml:"keep_cache"`
	BigWrites bool   `yaml:"big_writes"`
	MaxRead   uint32 `yaml:"max_read"`
	MaxWrite  uint32 `yaml:"max_write"`

	// Filesystem behavior
	DefaultUID  uint32        `yaml:"default_uid"`
	DefaultGID  uint32        `yaml:"default_gid"`
	DefaultMode uint32        `yaml:"default_mode"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`

	// Performance settings
	ReadAhead       uint32           `yaml:"read_ahead"`
	WriteBuffer     uint32           `yaml:"write_buffer"`
	Concurrency     int              `yaml:"concurrency"`
	ReadAheadConfig *ReadAheadConfig `yaml:"-"`
}

// OpenFile represents an open file handle
type OpenFile struct {
	path     string
	flags    uint32
	mode     uint32
	size     int64
	modified bool
	dirty    bool

	// Access tracking
	lastAccess  time.Time
	accessCount int64
}

// Stats tracks filesystem operation statistics
type Stats struct {
	mu sync.RWMutex

	// Operation counts
	Lookups int64 `json:"lookups"`
	Opens   int64 `json:"opens"`
	Reads   int64 `json:"reads"`
	Writes  int64 `json:"writes"`
	Creates int64 `json:"creates"`
	Deletes int64 `json:"deletes"`

	// Data transfer
	BytesRead    int64 `json:"bytes_read"`
	BytesWritten int64 `json:"bytes_written"`

	// Cache statistics
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	// Error counts
	Errors int64 `json:"errors"`

	// Performance metrics
	AvgReadTime   time.Duration `json:"avg_read_time"`
	AvgWriteTime  time.Duration `json:"avg_write_time"`
	AvgLookupTime time.Duration `json:"avg_lookup_time"`
}

// NewFileSystem creates a new FUSE filesystem instance bound to gw.
func NewFileSystem(gw *gateway.Gateway, cache types.Cache, buffer types.WriteBuffer, metrics types.MetricsCollector, config *Config) *FileSystem {
	if config == nil {
		config = &Config{
			DefaultUID:  1000,
			DefaultGID:  1000,
			DefaultMode: 0644,
			CacheTTL:    5 * time.Minute,
			ReadAhead:   128 * 1024,
			WriteBuffer: 64 * 1024,
			Concurrency: 16,
		}
	}

	filesystem := &FileSystem{
		gw:         gw,
		cache:      cache,
		buffer:     buffer,
		metrics:    metrics,
		config:     config,
		openFiles:  make(map[uint64]*OpenFile),
		nextHandle: 1,
		stats:      &Stats{},
	}

	filesystem.readAhead = NewReadAheadManager(filesystem, config.ReadAheadConfig)
	filesystem.writeCoalescer = NewWriteCoalescer(filesystem, nil)

	return filesystem
}

// Root returns the root inode
func (fsys *FileSystem) Root() fs.InodeEmbedder {
	return &DirectoryNode{
		fs:   fsys,
		path: "/",
	}
}

// GetStats returns current filesystem statistics
func (fsys *FileSystem) GetStats() *Stats {
	fsys.stats.mu.RLock()
	defer fsys.stats.mu.RUnlock()

	return &Stats{
		Lookups:      fsys.stats.Lookups,
		Opens:        fsys.stats.Opens,
		Reads:        fsys.stats.Reads,
		Writes:       fsys.stats.Writes,
		BytesRead:    fsys.stats.BytesRead,
		BytesWritten: fsys.stats.BytesWritten,
		CacheHits:    fsys.stats.CacheHits,
		CacheMisses:  fsys.stats.CacheMisses,
		Errors:       fsys.stats.Errors,
	}
}

// DirectoryNode represents a directory in the filesystem. path always
// carries the gateway's own convention — "/" for the root, a trailing
// slash for every other directory.
type DirectoryNode struct {
	fs.Inode
	fs   *FileSystem
	path string
}

// Lookup looks up a child node by name. It probes for a file first;
// a KeyNotExist result is retried as a directory probe, since the
// kernel gives no hint which one it expects.
func (n *DirectoryNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	start := time.Now()
	defer func() {
		n.fs.recordLookupTime(time.Since(start))
	}()

	n.fs.stats.mu.Lock()
	n.fs.stats.Lookups++
	n.fs.stats.mu.Unlock()

	childPath := n.joinPath(name)

	meta, _, err := n.fs.gw.Stat(ctx, childPath)
	if err != nil {
		if !isKeyNotExist(err) {
			n.fs.recordError()
			return nil, errnoFor(err)
		}

		meta, _, err = n.fs.gw.Stat(ctx, pathtranslate.AsDirectory(childPath))
		if err != nil {
			n.fs.stats.mu.Lock()
			n.fs.stats.CacheMisses++
			n.fs.stats.mu.Unlock()
			return nil, errnoFor(err)
		}
	}

	n.fs.stats.mu.Lock()
	n.fs.stats.CacheMisses++
	n.fs.stats.mu.Unlock()

	if meta.IsDir {
		return n.createDirectoryNode(meta.Path), 0
	}
	return n.createChildNode(meta), 0
}

// Readdir reads directory contents via the gateway's directory listing,
// which already reconciles the tree and distinguishes files from
// common-prefix subdirectories.
func (n *DirectoryNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	metas, err := n.fs.gw.ListDirectory(ctx, n.path)
	if err != nil {
		n.fs.recordError()
		log.Printf("Readdir failed for %s: %v", n.path, err)
		return nil, errnoFor(err)
	}

	entries := make([]fuse.DirEntry, 0, len(metas))
	for _, meta := range metas {
		name := strings.TrimSuffix(meta.Path, "/")
		name = name[strings.LastIndex(name, "/")+1:]
		if name == "" {
			continue
		}

		mode := uint32(fuse.S_IFREG)
		if meta.IsDir {
			mode = fuse.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: mode})
	}

	return fs.NewListDirStream(entries), 0
}

// Mkdir creates a new directory
func (n *DirectoryNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.fs.config.ReadOnly {
		return nil, syscall.EROFS
	}
	if errno := validChildName(name); errno != 0 {
		return nil, errno
	}

	childPath := n.joinPath(name)
	if err := n.fs.gw.MakeDirectory(ctx, childPath); err != nil {
		n.fs.recordError()
		log.Printf("Mkdir failed for %s: %v", childPath, err)
		return nil, errnoFor(err)
	}

	return n.createDirectoryNode(pathtranslate.AsDirectory(childPath)), 0
}

// Rmdir removes an empty directory marker.
func (n *DirectoryNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if n.fs.config.ReadOnly {
		return syscall.EROFS
	}
	if errno := validChildName(name); errno != 0 {
		return errno
	}

	childPath := pathtranslate.AsDirectory(n.joinPath(name))
	n.fs.stats.mu.Lock()
	n.fs.stats.Deletes++
	n.fs.stats.mu.Unlock()

	if err := n.fs.gw.DeleteFile(ctx, childPath); err != nil {
		n.fs.recordError()
		log.Printf("Rmdir failed for %s: %v", childPath, err)
		return errnoFor(err)
	}
	return 0
}

// Unlink removes a file.
func (n *DirectoryNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if n.fs.config.ReadOnly {
		return syscall.EROFS
	}
	if errno := validChildName(name); errno != 0 {
		return errno
	}

	childPath := n.joinPath(name)
	n.fs.stats.mu.Lock()
	n.fs.stats.Deletes++
	n.fs.stats.mu.Unlock()

	if err := n.fs.gw.DeleteFile(ctx, childPath); err != nil {
		n.fs.recordError()
		log.Printf("Unlink failed for %s: %v", childPath, err)
		return errnoFor(err)
	}
	return 0
}

// Rename moves or renames a file or directory, dispatching to MoveFile
// or MoveDirectory depending on whether the tree already knows the
// source as a directory.
func (n *DirectoryNode) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if n.fs.config.ReadOnly {
		return syscall.EROFS
	}

	dst, ok := newParent.(*DirectoryNode)
	if !ok {
		return syscall.EINVAL
	}
	if errno := validChildName(name); errno != 0 {
		return errno
	}
	if errno := validChildName(newName); errno != 0 {
		return errno
	}

	srcPath := n.joinPath(name)
	dstPath := dst.joinPath(newName)

	isDir := n.fs.gw.Tree().Has(pathtranslate.AsDirectory(srcPath))
	if isDir {
		srcPath = pathtranslate.AsDirectory(srcPath)
		dstPath = pathtranslate.AsDirectory(dstPath)
		if err := n.fs.gw.MoveDirectory(ctx, srcPath, dstPath, func(childPath string, err error) {
			log.Printf("MoveDirectory: child %s failed: %v", childPath, err)
		}); err != nil {
			n.fs.recordError()
			return errnoFor(err)
		}
		return 0
	}

	if err := n.fs.gw.MoveFile(ctx, srcPath, dstPath); err != nil {
		n.fs.recordError()
		log.Printf("Rename failed for %s -> %s: %v", srcPath, dstPath, err)
		return errnoFor(err)
	}
	return 0
}

// Create creates a new file
func (n *DirectoryNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (node *fs.Inode, fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	if n.fs.config.ReadOnly {
		return nil, nil, 0, syscall.EROFS
	}
	if errno := validChildName(name); errno != 0 {
		return nil, nil, 0, errno
	}

	childPath := n.joinPath(name)

	if err := n.fs.gw.MakeFile(ctx, childPath); err != nil {
		n.fs.recordError()
		log.Printf("Create failed for %s: %v", childPath, err)
		return nil, nil, 0, errnoFor(err)
	}

	n.fs.stats.mu.Lock()
	n.fs.stats.Creates++
	n.fs.stats.mu.Unlock()

	now := time.Now()
	meta := types.FileMetadata{Path: childPath, Size: 0, ModifyTime: now, AccessTime: now, ChangeTime: now}

	fileNode := &FileNode{fs: n.fs, path: childPath, meta: meta}

	node = n.NewInode(ctx, fileNode, fs.StableAttr{Mode: fuse.S_IFREG})

	fh, fuseFlags, errno = fileNode.Open(ctx, flags)
	return node, fh, fuseFlags, errno
}

// Symlink creates a symlink object whose body is target.
func (n *DirectoryNode) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if n.fs.config.ReadOnly {
		return nil, syscall.EROFS
	}
	if errno := validChildName(name); errno != 0 {
		return nil, errno
	}

	linkPath := n.joinPath(name)
	if err := n.fs.gw.SymLink(ctx, target, linkPath); err != nil {
		n.fs.recordError()
		log.Printf("Symlink failed for %s: %v", linkPath, err)
		return nil, errnoFor(err)
	}

	now := time.Now()
	fileNode := &FileNode{
		fs:            n.fs,
		path:          linkPath,
		meta:          types.FileMetadata{Path: linkPath, ModifyTime: now, AccessTime: now, ChangeTime: now},
		symlinkTarget: target,
	}
	return n.NewInode(ctx, fileNode, fs.StableAttr{Mode: fuse.S_IFLNK}), 0
}

// FileNode represents a file (or symlink) in the filesystem
type FileNode struct {
	fs.Inode
	fs   *FileSystem
	path string
	meta types.FileMetadata

	// symlinkTarget is set only for nodes created via Symlink; Readlink
	// uses it directly instead of round-tripping through the backend.
	symlinkTarget string
}

// maxSymlinkTargetLength bounds the read issued by Readlink when a
// symlink node was looked up rather than freshly created, so its target
// isn't cached locally yet.
const maxSymlinkTargetLength = 4096

// storageTierXattrName is the single extended attribute this filesystem
// exposes: a read/write hint of the object's S3 storage class, backed by
// gateway.Gateway.SetStorageTier and the Attributes the gateway's Stat
// reports back.
const storageTierXattrName = "user.gateway.storage_tier"

// storageTierAttrKey is the types.FileMetadata.Attributes key the
// gateway stores the resolved tier under; it must match the key
// gateway.Gateway's metadataFromHeaders writes.
const storageTierAttrKey = "storage_tier"

// Getxattr returns the object's storage tier for storageTierXattrName and
// ENODATA for anything else. dest too small to hold the value reports
// the needed size with ERANGE, the xattr(7) convention.
func (f *FileNode) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	if attr != storageTierXattrName {
		return 0, syscall.ENODATA
	}

	meta, _, err := f.fs.gw.Stat(ctx, f.path)
	if err != nil {
		return 0, errnoFor(err)
	}

	tier := meta.Attributes[storageTierAttrKey]
	if tier == "" {
		return 0, syscall.ENODATA
	}
	if len(dest) < len(tier) {
		return uint32(len(tier)), syscall.ERANGE
	}
	return uint32(copy(dest, tier)), 0
}

// Setxattr retags the backing object's storage class via a self-copy.
// Unrecognized tier names fall back to Standard the same way a direct
// PutObject call would (see s3.ConvertTierToStorageClass).
func (f *FileNode) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	if f.fs.config.ReadOnly {
		return syscall.EROFS
	}
	if attr != storageTierXattrName {
		return syscall.ENOTSUP
	}

	tier := strings.ToUpper(strings.TrimSpace(string(data)))
	if tier == "" {
		return syscall.EINVAL
	}

	if err := f.fs.gw.SetStorageTier(ctx, f.path, tier); err != nil {
		f.fs.recordError()
		log.Printf("Setxattr storage_tier failed for %s: %v", f.path, err)
		return errnoFor(err)
	}

	if f.meta.Attributes == nil {
		f.meta.Attributes = make(map[string]string, 1)
	}
	f.meta.Attributes[storageTierAttrKey] = tier
	return 0
}

// Listxattr reports storageTierXattrName only when the backend has
// resolved a tier for this object (every real S3 object has one, but a
// node created locally and not yet Stat-refreshed may not).
func (f *FileNode) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	meta, _, err := f.fs.gw.Stat(ctx, f.path)
	if err != nil {
		return 0, errnoFor(err)
	}
	if meta.Attributes[storageTierAttrKey] == "" {
		return 0, 0
	}

	name := storageTierXattrName + "\x00"
	if len(dest) < len(name) {
		return uint32(len(name)), syscall.ERANGE
	}
	return uint32(copy(dest, name)), 0
}

// Removexattr is unsupported: an S3 object always has some storage
// class, so there is no "unset" state to transition to.
func (f *FileNode) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return syscall.ENOTSUP
}

// Readlink returns the symlink's target.
func (f *FileNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	if f.symlinkTarget != "" {
		return []byte(f.symlinkTarget), 0
	}

	body, _, err := f.fs.gw.DownloadRange(ctx, f.path, 0, maxSymlinkTargetLength)
	if err != nil {
		return nil, errnoFor(err)
	}
	return body, 0
}

// Open opens a file
func (f *FileNode) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	f.fs.stats.mu.Lock()
	f.fs.stats.Opens++
	f.fs.stats.mu.Unlock()

	if f.fs.config.ReadOnly && (flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_CREAT|syscall.O_TRUNC) != 0) {
		return nil, 0, syscall.EROFS
	}

	f.fs.mu.Lock()
	handle := f.fs.nextHandle
	f.fs.nextHandle++

	openFile := &OpenFile{
		path:        f.path,
		flags:       flags,
		mode:        f.meta.Mode,
		size:        f.meta.Size,
		lastAccess:  time.Now(),
		accessCount: 1,
	}

	f.fs.openFiles[handle] = openFile
	f.fs.mu.Unlock()

	return &FileHandle{
		fs:     f.fs,
		handle: handle,
		file:   openFile,
	}, 0, 0
}

// Getattr gets file attributes
func (f *FileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	mode := f.meta.Mode
	if mode == 0 {
		mode = f.fs.config.DefaultMode
	}
	out.Mode = mode
	out.Size = safeInt64ToUint64(f.meta.Size)

	uid, gid := f.meta.UID, f.meta.GID
	if uid == 0 && gid == 0 {
		uid, gid = f.fs.config.DefaultUID, f.fs.config.DefaultGID
	}
	out.Uid = uid
	out.Gid = gid

	unixTime := f.meta.ModifyTime.Unix()
	out.Mtime = safeInt64ToUint64(unixTime)
	out.Atime = safeInt64ToUint64(unixTime)
	out.Ctime = safeInt64ToUint64(unixTime)

	return 0
}

// FileHandle represents an open file handle
type FileHandle struct {
	fs     *FileSystem
	handle uint64
	file   *OpenFile
}

// Read reads data from the file
func (fh *FileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	start := time.Now()
	defer func() {
		fh.fs.recordReadTime(time.Since(start))
	}()

	fh.fs.stats.mu.Lock()
	fh.fs.stats.Reads++
	fh.fs.stats.mu.Unlock()

	fh.file.lastAccess = time.Now()
	fh.file.accessCount++

	if cachedData := fh.fs.cache.Get(fh.file.path, off, int64(len(dest))); cachedData != nil {
		fh.fs.stats.mu.Lock()
		fh.fs.stats.CacheHits++
		fh.fs.stats.BytesRead += int64(len(cachedData))
		fh.fs.stats.mu.Unlock()

		return fuse.ReadResultData(cachedData), 0
	}

	data, _, err := fh.fs.gw.DownloadRange(ctx, fh.file.path, off, int64(len(dest)))
	if err != nil {
		fh.fs.recordError()
		fh.fs.stats.mu.Lock()
		fh.fs.stats.CacheMisses++
		fh.fs.stats.mu.Unlock()

		log.Printf("Read failed for %s at offset %d: %v", fh.file.path, off, err)
		return nil, errnoFor(err)
	}

	fh.fs.stats.mu.Lock()
	fh.fs.stats.CacheMisses++
	fh.fs.stats.BytesRead += int64(len(data))
	fh.fs.stats.mu.Unlock()

	fh.fs.cache.Put(fh.file.path, off, data)

	if fh.fs.metrics != nil {
		fh.fs.metrics.RecordCacheMiss(fh.file.path, int64(len(data)))
	}

	if fh.fs.readAhead != nil {
		fh.fs.readAhead.OnRead(fh.file.path, off, int64(len(data)))
	}

	return fuse.ReadResultData(data), 0
}

// Write writes data to the file. The write lands in the disk-backed
// write buffer (or the coalescer ahead of it); the buffer's flush
// callback, wired by the composition root, is what actually calls
// gateway.UploadFile.
func (fh *FileHandle) Write(ctx context.Context, data []byte, off int64) (written uint32, errno syscall.Errno) {
	if fh.fs.config.ReadOnly {
		return 0, syscall.EROFS
	}

	start := time.Now()
	defer func() {
		fh.fs.recordWriteTime(time.Since(start))
	}()

	fh.fs.stats.mu.Lock()
	fh.fs.stats.Writes++
	fh.fs.stats.BytesWritten += int64(len(data))
	fh.fs.stats.mu.Unlock()

	fh.file.modified = true
	fh.file.dirty = true
	fh.file.lastAccess = time.Now()

	coalesced := false
	if fh.fs.writeCoalescer != nil {
		coalesced = fh.fs.writeCoalescer.CoalesceWrite(fh.file.path, off, data)
	}

	if !coalesced {
		if err := fh.fs.buffer.Write(fh.file.path, off, data); err != nil {
			fh.fs.recordError()
			log.Printf("Write failed for %s at offset %d: %v", fh.file.path, off, err)
			return 0, syscall.EIO
		}
	}

	newSize := off + int64(len(data))
	if newSize > fh.file.size {
		fh.file.size = newSize
	}

	return safeIntToUint32(len(data)), 0
}

// Flush flushes any pending writes
func (fh *FileHandle) Flush(ctx context.Context) syscall.Errno {
	if !fh.file.dirty {
		return 0
	}

	if err := fh.fs.buffer.Flush(fh.file.path); err != nil {
		fh.fs.recordError()
		log.Printf("Flush failed for %s: %v", fh.file.path, err)
		return syscall.EIO
	}

	fh.file.dirty = false
	return 0
}

// Release releases the file handle
func (fh *FileHandle) Release(ctx context.Context) syscall.Errno {
	if fh.fs.writeCoalescer != nil {
		fh.fs.writeCoalescer.FlushAll()
	}

	if fh.file.dirty {
		_ = fh.Flush(ctx)
	}

	fh.fs.mu.Lock()
	delete(fh.fs.openFiles, fh.handle)
	fh.fs.mu.Unlock()

	return 0
}

// Helper methods for DirectoryNode

// validChildName rejects a path component that could escape this
// directory: empty, a ".." segment, or one carrying its own separator.
// The kernel normally only ever passes single components, but a FUSE
// node has no other guard against a crafted request reaching this far.
func validChildName(name string) syscall.Errno {
	if strings.Contains(name, "/") {
		return syscall.EINVAL
	}
	if err := utils.ValidatePath(name, false); err != nil {
		return syscall.EINVAL
	}
	return 0
}

func (n *DirectoryNode) joinPath(name string) string {
	base := strings.TrimSuffix(n.path, "/")
	if base == "" {
		return "/" + name
	}
	return base + "/" + name
}

func (n *DirectoryNode) createChildNode(meta types.FileMetadata) *fs.Inode {
	fileNode := &FileNode{
		fs:   n.fs,
		path: meta.Path,
		meta: meta,
	}

	return n.NewInode(context.Background(), fileNode, fs.StableAttr{
		Mode: fuse.S_IFREG,
	})
}

func (n *DirectoryNode) createDirectoryNode(path string) *fs.Inode {
	dirNode := &DirectoryNode{
		fs:   n.fs,
		path: pathtranslate.AsDirectory(path),
	}

	return n.NewInode(context.Background(), dirNode, fs.StableAttr{
		Mode: fuse.S_IFDIR,
	})
}

// Helper methods for FileSystem

func (fsys *FileSystem) recordError() {
	fsys.stats.mu.Lock()
	fsys.stats.Errors++
	fsys.stats.mu.Unlock()
}

func (fsys *FileSystem) recordLookupTime(duration time.Duration) {
	fsys.stats.mu.Lock()
	defer fsys.stats.mu.Unlock()

	if fsys.stats.Lookups == 1 {
		fsys.stats.AvgLookupTime = duration
	} else {
		fsys.stats.AvgLookupTime = time.Duration(
			(int64(fsys.stats.AvgLookupTime)*9 + int64(duration)) / 10,
		)
	}
}

func (fsys *FileSystem) recordReadTime(duration time.Duration) {
	fsys.stats.mu.Lock()
	defer fsys.stats.mu.Unlock()

	if fsys.stats.Reads == 1 {
		fsys.stats.AvgReadTime = duration
	} else {
		fsys.stats.AvgReadTime = time.Duration(
			(int64(fsys.stats.AvgReadTime)*9 + int64(duration)) / 10,
		)
	}
}

func (fsys *FileSystem) recordWriteTime(duration time.Duration) {
	fsys.stats.mu.Lock()
	defer fsys.stats.mu.Unlock()

	if fsys.stats.Writes == 1 {
		fsys.stats.AvgWriteTime = duration
	} else {
		fsys.stats.AvgWriteTime = time.Duration(
			(int64(fsys.stats.AvgWriteTime)*9 + int64(duration)) / 10,
		)
	}
}
