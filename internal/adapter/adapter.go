package adapter

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gatewayfs/gatewayfs/internal/buffer"
	"github.com/gatewayfs/gatewayfs/internal/cache"
	"github.com/gatewayfs/gatewayfs/internal/circuit"
	"github.com/gatewayfs/gatewayfs/internal/config"
	"github.com/gatewayfs/gatewayfs/internal/fuse"
	"github.com/gatewayfs/gatewayfs/internal/gateway"
	"github.com/gatewayfs/gatewayfs/internal/health"
	"github.com/gatewayfs/gatewayfs/internal/metrics"
	"github.com/gatewayfs/gatewayfs/internal/storage/s3"
	pkghealth "github.com/gatewayfs/gatewayfs/pkg/health"
	"github.com/gatewayfs/gatewayfs/pkg/utils"
)

// Adapter is the composition root: it owns the lifecycle of every
// component between the mount point and the object store, wiring the
// S3 client, the gateway, the content cache/write buffer, and the FUSE
// binding together from one Configuration.
type Adapter struct {
	storageURI string
	mountPoint string
	bucketName string
	config     *config.Configuration

	clientManager *s3.ClientManager
	gw            *gateway.Gateway
	cache         *cache.MultiLevelCache
	writeBuffer   *buffer.WriteBuffer
	metricsCol    *metrics.Collector
	breaker       *circuit.CircuitBreaker
	logger        *utils.StructuredLogger
	logRotator    *utils.LogRotator
	mountManager  fuse.PlatformFileSystem
	healthTracker *pkghealth.Tracker
	healthChecker *health.Checker

	started bool
}

// New creates a new gatewayfs adapter instance. Component construction
// is deferred to Start; New only validates and records its inputs.
func New(ctx context.Context, storageURI, mountPoint string, cfg *config.Configuration) (*Adapter, error) {
	if err := validateStorageURI(storageURI); err != nil {
		return nil, fmt.Errorf("invalid storage URI: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	parsed, _ := url.Parse(storageURI)

	return &Adapter{
		storageURI: storageURI,
		mountPoint: mountPoint,
		bucketName: parsed.Host,
		config:     cfg,
	}, nil
}

// Start initializes every component in dependency order and mounts the
// filesystem.
func (a *Adapter) Start(ctx context.Context) error {
	if a.started {
		return fmt.Errorf("adapter already started")
	}

	log.Printf("Starting gatewayfs adapter...")
	log.Printf("Storage URI: %s", a.storageURI)
	log.Printf("Mount Point: %s", a.mountPoint)

	logLevel, err := utils.ParseLogLevel(a.config.Global.LogLevel)
	if err != nil {
		logLevel = utils.INFO
	}
	loggerCfg := &utils.StructuredLoggerConfig{
		Level:         logLevel,
		Format:        utils.FormatJSON,
		IncludeCaller: true,
	}
	if a.config.Global.LogFile != "" {
		rotator, err := utils.NewLogRotator(&utils.RotationConfig{
			Filename:   a.config.Global.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		loggerCfg.Output = rotator
		a.logRotator = rotator
	}
	logger, err := utils.NewStructuredLogger(loggerCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger

	metricsCol, err := metrics.NewCollector(&metrics.Config{
		Enabled:   a.config.Monitoring.Metrics.Enabled,
		Port:      a.config.Global.MetricsPort,
		Path:      "/metrics",
		Namespace: "gatewayfs",
		Labels:    a.config.Monitoring.Metrics.CustomLabels,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics collector: %w", err)
	}
	if err := metricsCol.Start(ctx); err != nil {
		return fmt.Errorf("failed to start metrics collector: %w", err)
	}
	a.metricsCol = metricsCol

	s3Cfg := s3.NewDefaultConfig()
	s3Cfg.Region = a.config.Storage.S3.Region
	s3Cfg.Endpoint = a.config.Storage.S3.Endpoint
	s3Cfg.ForcePathStyle = a.config.Storage.S3.ForcePathStyle
	s3Cfg.UseAccelerate = a.config.Storage.S3.UseAcceleration
	s3Cfg.MaxRetries = a.config.Network.Retry.MaxAttempts
	s3Cfg.ConnectTimeout = a.config.Network.Timeouts.Connect
	s3Cfg.RequestTimeout = a.config.Network.Timeouts.Read
	s3Cfg.PoolSize = a.config.Performance.ConnectionPoolSize

	clientManager, err := s3.NewClientManager(ctx, a.bucketName, s3Cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create S3 client manager: %w", err)
	}
	a.clientManager = clientManager

	s3Backend, err := s3.NewBackendFromClientManager(ctx, clientManager, a.bucketName, s3Cfg)
	if err != nil {
		return fmt.Errorf("failed to create S3 backend: %w", err)
	}

	gatewayClient := s3.NewGatewayClient(s3Backend)

	breaker := circuit.NewCircuitBreaker("gatewayfs-backend", circuit.Config{
		MaxRequests: 1,
		Interval:    a.config.Network.CircuitBreaker.Timeout,
		Timeout:     a.config.Network.CircuitBreaker.Timeout,
	})
	a.breaker = breaker

	gwCfg := gateway.Config{
		Bucket:               a.bucketName,
		WorkerPoolSize:       a.config.Performance.ConnectionPoolSize,
		MaxRetries:           a.config.Network.Retry.MaxAttempts,
		MaxListCount:         1000,
		MaxCachedStatEntries: a.config.Cache.MaxEntries,
		DefaultMode:          0644,
	}
	a.gw = gateway.New(gwCfg, gatewayClient, breaker, logger)

	a.healthTracker = pkghealth.NewTracker(pkghealth.DefaultConfig())
	a.gw.SetHealthTracker(a.healthTracker)

	healthChecker, err := health.NewChecker(&health.Config{
		Enabled:       a.config.Monitoring.HealthChecks.Enabled,
		CheckInterval: a.config.Monitoring.HealthChecks.Interval,
		Timeout:       a.config.Monitoring.HealthChecks.Timeout,
		HTTPEnabled:   a.config.Monitoring.HealthChecks.Enabled,
		HTTPPort:      a.config.Global.HealthPort,
		HTTPPath:      "/health",
	})
	if err != nil {
		return fmt.Errorf("failed to create health checker: %w", err)
	}
	_ = healthChecker.RegisterCheck("backend", "object store reachability",
		health.CategoryStorage, health.PriorityCritical, health.BackendCheck(a.gw.HeadBucket))
	_ = healthChecker.RegisterCheck("worker_pool", "gateway worker pool backlog",
		health.CategoryPerformance, health.PriorityHigh,
		health.QueueDepthCheck(a.gw.QueueDepth, a.config.Performance.ConnectionPoolSize*100))
	if err := healthChecker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health checker: %w", err)
	}
	a.healthChecker = healthChecker

	ra := a.config.Performance.ReadAhead
	l1Config := &cache.L1Config{
		Enabled:    true,
		Size:       parseSize(a.config.Performance.CacheSize),
		MaxEntries: a.config.Cache.MaxEntries,
		TTL:        a.config.Cache.TTL,
		Prefetch:   ra.EnablePrefetch,
	}
	if ra.EnableMLPrediction {
		l1Config.Predictive = &cache.PredictiveCacheConfig{
			EnablePrediction:          true,
			PredictionWindow:          ra.PredictionWindow,
			ConfidenceThreshold:       ra.ConfidenceThreshold,
			LearningRate:              ra.LearningRate,
			EnablePrefetch:            ra.EnablePrefetch,
			MaxConcurrentFetch:        ra.MaxConcurrentFetch,
			PrefetchAhead:             ra.PrefetchAhead,
			PrefetchBandwidth:         int64(ra.PrefetchBandwidthMBs) * 1024 * 1024,
			EnableIntelligentEviction: true,
			EvictionAlgorithm:         "ml",
			MLModelPath:               ra.MLModelPath,
			StatisticsInterval:        30 * time.Second,
			ModelUpdateInterval:       5 * time.Minute,
			PatternAnalysisDepth:      ra.PatternDepth,
		}
	}

	contentCache, err := cache.NewMultiLevelCache(&cache.MultiLevelConfig{
		L1Config: l1Config,
		L2Config: &cache.L2Config{
			Enabled:   a.config.Cache.PersistentCache.Enabled,
			Size:      parseSize(a.config.Cache.PersistentCache.MaxSize),
			Directory: a.config.Cache.PersistentCache.Directory,
			TTL:       a.config.Cache.TTL,
		},
		Policy: a.config.Cache.EvictionPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	a.cache = contentCache

	writeBuffer, err := buffer.NewWriteBuffer(&buffer.WriteBufferConfig{
		MaxBufferSize:  parseSize(a.config.WriteBuffer.MaxMemory),
		MaxBuffers:     a.config.WriteBuffer.MaxBuffers,
		FlushInterval:  a.config.WriteBuffer.FlushInterval,
		FlushThreshold: parseSize(a.config.Performance.WriteBufferSize),
		AsyncFlush:     true,
	}, a.flushToGateway)
	if err != nil {
		return fmt.Errorf("failed to create write buffer: %w", err)
	}
	a.writeBuffer = writeBuffer

	readAheadCfg := &fuse.ReadAheadConfig{
		Enabled:         ra.Enabled,
		WindowSize:      parseSize(ra.Size),
		MaxDistance:     parseSize(ra.Size) * int64(ra.PrefetchAhead+1),
		MinSequential:   ra.PatternDepth,
		ConcurrentReads: ra.MaxConcurrentFetch,
		TTL:             a.config.Cache.TTL,
	}

	fuseConfig := &fuse.MountConfig{
		MountPoint: a.mountPoint,
		Options: &fuse.MountOptions{
			MaxRead:      uint32(parseSize(a.config.Performance.ReadAheadSize)),
			MaxWrite:     uint32(parseSize(a.config.WriteBuffer.MaxMemory)),
			AttrTimeout:  a.config.Cache.TTL,
			EntryTimeout: a.config.Cache.TTL,
			FSName:       "gatewayfs",
			Subtype:      "s3",
		},
	}
	a.mountManager = fuse.CreatePlatformMountManager(a.gw, a.cache, a.writeBuffer, a.metricsCol, fuseConfig, readAheadCfg)

	if err := a.mountManager.Mount(ctx); err != nil {
		return fmt.Errorf("failed to mount filesystem: %w", err)
	}

	a.started = true
	log.Printf("gatewayfs adapter started successfully")
	return nil
}

// flushToGateway is the write buffer's FlushCallback: it ships
// accumulated dirty bytes for key to the backend through the gateway,
// the only path allowed to talk to object storage.
func (a *Adapter) flushToGateway(key string, data []byte, offset int64) error {
	ctx := context.Background()
	size := offset + int64(len(data))
	return a.gw.UploadFile(ctx, key, size, data)
}

// Stop gracefully stops the adapter: unmount first so no new requests
// arrive, then drain buffered writes, then tear down collectors.
func (a *Adapter) Stop(ctx context.Context) error {
	if !a.started {
		return fmt.Errorf("adapter not started")
	}

	log.Printf("Stopping gatewayfs adapter...")

	if a.mountManager != nil {
		if err := a.mountManager.Unmount(); err != nil {
			log.Printf("unmount failed: %v", err)
		}
	}

	if a.writeBuffer != nil {
		if err := a.writeBuffer.FlushAll(); err != nil {
			log.Printf("flush all failed: %v", err)
		}
	}

	if a.clientManager != nil {
		if err := a.clientManager.Close(); err != nil {
			log.Printf("client manager close failed: %v", err)
		}
	}

	if a.metricsCol != nil {
		if err := a.metricsCol.Stop(ctx); err != nil {
			log.Printf("metrics collector stop failed: %v", err)
		}
	}

	if a.healthChecker != nil {
		if err := a.healthChecker.Stop(); err != nil {
			log.Printf("health checker stop failed: %v", err)
		}
	}

	if a.logRotator != nil {
		if err := a.logRotator.Close(); err != nil {
			log.Printf("log file close failed: %v", err)
		}
	}

	a.started = false
	log.Printf("gatewayfs adapter stopped successfully")
	return nil
}

// validateStorageURI validates the storage URI format
func validateStorageURI(uri string) error {
	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("failed to parse URI: %w", err)
	}

	switch parsed.Scheme {
	case "s3":
		if parsed.Host == "" {
			return fmt.Errorf("S3 URI must include bucket name")
		}
	default:
		return fmt.Errorf("unsupported storage scheme: %s (only s3:// supported)", parsed.Scheme)
	}

	return nil
}

// parseSize parses a human-readable byte size such as "2GB" or "512MB",
// falling back to plain byte counts and defaulting to 1GB when the
// string is empty or malformed.
func parseSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1024 * 1024 * 1024
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}

	n, err := utils.ParseBytes(s)
	if err != nil {
		return 1024 * 1024 * 1024
	}
	return n
}
