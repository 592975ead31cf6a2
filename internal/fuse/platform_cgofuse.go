//go:build cgofuse
// +build cgofuse

package fuse

import (
	"context"

	"github.com/gatewayfs/gatewayfs/internal/gateway"
	"github.com/gatewayfs/gatewayfs/pkg/types"
)

// Platform-specific filesystem interface
type PlatformFileSystem interface {
	Mount(ctx context.Context) error
	Unmount() error
	IsMounted() bool
	GetStats() *FilesystemStats
}

// CreatePlatformMountManager creates the cgofuse mount manager. cgofuse has
// no read-ahead manager of its own, so readAhead is accepted for signature
// parity with the go-fuse build and otherwise unused.
func CreatePlatformMountManager(gw *gateway.Gateway, cache types.Cache, writeBuffer types.WriteBuffer,
	metrics types.MetricsCollector, config *MountConfig, readAhead *ReadAheadConfig) PlatformFileSystem {

	return NewCgoFuseMountManager(gw, cache, writeBuffer, metrics, config)
}
