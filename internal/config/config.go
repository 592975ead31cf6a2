package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global      GlobalConfig      `yaml:"global"`
	Storage     StorageConfig     `yaml:"storage"`
	Performance PerformanceConfig `yaml:"performance"`
	Cache       CacheConfig       `yaml:"cache"`
	WriteBuffer WriteBufferConfig `yaml:"write_buffer"`
	Network     NetworkConfig     `yaml:"network"`
	Security    SecurityConfig    `yaml:"security"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Features    FeatureConfig     `yaml:"features"`
}

// StorageConfig represents the object-store backend settings
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config represents S3-specific connection settings
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Profile         string `yaml:"profile"`
	UseAcceleration bool   `yaml:"use_acceleration"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`
	ProfilePort int    `yaml:"profile_port"`
}

// PerformanceConfig represents performance-related settings
type PerformanceConfig struct {
	CacheSize          string          `yaml:"cache_size"`
	WriteBufferSize    string          `yaml:"write_buffer_size"`
	MaxConcurrency     int             `yaml:"max_concurrency"`
	ReadAheadSize      string          `yaml:"read_ahead_size"`
	ReadAhead          ReadAheadConfig `yaml:"read_ahead"`
	CompressionEnabled bool            `yaml:"compression_enabled"`
	ConnectionPoolSize int             `yaml:"connection_pool_size"`
}

// ReadAheadConfig configures the predictive read-ahead strategy that
// feeds internal/fuse's ReadAheadManager and, when EnableMLPrediction is
// set, internal/cache's PredictiveCache.
type ReadAheadConfig struct {
	Enabled                bool    `yaml:"enabled"`
	Size                   string  `yaml:"size"`
	Strategy               string  `yaml:"strategy"` // "simple", "predictive", "ml"
	EnablePatternDetection bool    `yaml:"enable_pattern_detection"`
	SequentialThreshold    float64 `yaml:"sequential_threshold"`
	PatternDepth           int     `yaml:"pattern_depth"`
	EnablePrefetch         bool    `yaml:"enable_prefetch"`
	MaxConcurrentFetch     int     `yaml:"max_concurrent_fetch"`
	PrefetchAhead          int     `yaml:"prefetch_ahead"`
	PrefetchBandwidthMBs   int     `yaml:"prefetch_bandwidth_mbs"`
	PredictionWindow       int     `yaml:"prediction_window"`
	ConfidenceThreshold    float64 `yaml:"confidence_threshold"`
	EnableMLPrediction     bool    `yaml:"enable_ml_prediction"`
	MLModelPath            string  `yaml:"ml_model_path"`
	LearningRate           float64 `yaml:"learning_rate"`
	MetricsEnabled         bool    `yaml:"metrics_enabled"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	TTL             time.Duration         `yaml:"ttl"`
	MaxEntries      int                   `yaml:"max_entries"`
	EvictionPolicy  string                `yaml:"eviction_policy"`
	PersistentCache PersistentCacheConfig `yaml:"persistent_cache"`
}

// PersistentCacheConfig represents persistent cache settings
type PersistentCacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
	MaxSize   string `yaml:"max_size"`
}

// WriteBufferConfig represents write buffer configuration
type WriteBufferConfig struct {
	FlushInterval time.Duration     `yaml:"flush_interval"`
	MaxBuffers    int               `yaml:"max_buffers"`
	MaxMemory     string            `yaml:"max_memory"`
	Compression   CompressionConfig `yaml:"compression"`
}

// CompressionConfig represents compression settings
type CompressionConfig struct {
	Enabled   bool   `yaml:"enabled"`
	MinSize   string `yaml:"min_size"`
	Algorithm string `yaml:"algorithm"`
	Level     int    `yaml:"level"`
}

// NetworkConfig represents network configuration
type NetworkConfig struct {
	Timeouts       TimeoutConfig        `yaml:"timeouts"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// TimeoutConfig represents timeout settings
type TimeoutConfig struct {
	Connect time.Duration `yaml:"connect"`
	Read    time.Duration `yaml:"read"`
	Write   time.Duration `yaml:"write"`
}

// RetryConfig represents retry settings
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// CircuitBreakerConfig represents circuit breaker settings
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// SecurityConfig represents security settings
type SecurityConfig struct {
	TLS        TLSConfig        `yaml:"tls"`
	Encryption EncryptionConfig `yaml:"encryption"`
}

// TLSConfig represents TLS settings
type TLSConfig struct {
	VerifyCertificates bool   `yaml:"verify_certificates"`
	MinVersion         string `yaml:"min_version"`
}

// EncryptionConfig represents encryption settings
type EncryptionConfig struct {
	InTransit bool `yaml:"in_transit"`
	AtRest    bool `yaml:"at_rest"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics      MetricsConfig      `yaml:"metrics"`
	HealthChecks HealthChecksConfig `yaml:"health_checks"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Prometheus   bool              `yaml:"prometheus"`
	CustomLabels map[string]string `yaml:"custom_labels"`
}

// HealthChecksConfig represents health check settings
type HealthChecksConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Structured bool           `yaml:"structured"`
	Format     string         `yaml:"format"`
	Sampling   SamplingConfig `yaml:"sampling"`
}

// SamplingConfig represents log sampling settings
type SamplingConfig struct {
	Enabled bool `yaml:"enabled"`
	Rate    int  `yaml:"rate"`
}

// FeatureConfig represents feature flags
type FeatureConfig struct {
	Prefetching           bool `yaml:"prefetching"`
	BatchOperations       bool `yaml:"batch_operations"`
	SmallFileOptimization bool `yaml:"small_file_optimization"`
	MetadataCaching       bool `yaml:"metadata_caching"`
	OfflineMode           bool `yaml:"offline_mode"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFile:     "",
			MetricsPort: 8080,
			HealthPort:  8081,
			ProfilePort: 6060,
		},
		Storage: StorageConfig{
			S3: S3Config{
				Region:         "us-east-1",
				ForcePathStyle: false,
			},
		},
		Performance: PerformanceConfig{
			CacheSize:       "2GB",
			WriteBufferSize: "16MB",
			MaxConcurrency:  150,
			ReadAheadSize:   "64MB",
			ReadAhead: ReadAheadConfig{
				Enabled:                true,
				Size:                   "64MB",
				Strategy:               "predictive",
				EnablePatternDetection: true,
				SequentialThreshold:    0.7,
				PatternDepth:           8,
				EnablePrefetch:         true,
				MaxConcurrentFetch:     4,
				PrefetchAhead:          3,
				PrefetchBandwidthMBs:   10,
				PredictionWindow:       16,
				ConfidenceThreshold:    0.7,
				EnableMLPrediction:     false,
				LearningRate:           0.01,
				MetricsEnabled:         true,
			},
			CompressionEnabled: true,
			ConnectionPoolSize: 8,
		},
		Cache: CacheConfig{
			TTL:            5 * time.Minute,
			MaxEntries:     100000,
			EvictionPolicy: "weighted_lru",
			PersistentCache: PersistentCacheConfig{
				Enabled:   false,
				Directory: "/var/cache/gatewayfs",
				MaxSize:   "10GB",
			},
		},
		WriteBuffer: WriteBufferConfig{
			FlushInterval: 30 * time.Second,
			MaxBuffers:    1000,
			MaxMemory:     "512MB",
			Compression: CompressionConfig{
				Enabled:   true,
				MinSize:   "1KB",
				Algorithm: "gzip",
				Level:     6,
			},
		},
		Network: NetworkConfig{
			Timeouts: TimeoutConfig{
				Connect: 10 * time.Second,
				Read:    30 * time.Second,
				Write:   300 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   1 * time.Second,
				MaxDelay:    30 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				Timeout:          60 * time.Second,
			},
		},
		Security: SecurityConfig{
			TLS: TLSConfig{
				VerifyCertificates: true,
				MinVersion:         "1.2",
			},
			Encryption: EncryptionConfig{
				InTransit: true,
				AtRest:    true,
			},
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:    true,
				Prometheus: true,
				CustomLabels: map[string]string{
					"service": "gatewayfs",
				},
			},
			HealthChecks: HealthChecksConfig{
				Enabled:  true,
				Interval: 30 * time.Second,
				Timeout:  5 * time.Second,
			},
			Logging: LoggingConfig{
				Structured: true,
				Format:     "json",
				Sampling: SamplingConfig{
					Enabled: true,
					Rate:    1000,
				},
			},
		},
		Features: FeatureConfig{
			Prefetching:           true,
			BatchOperations:       true,
			SmallFileOptimization: true,
			MetadataCaching:       true,
			OfflineMode:           false,
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Global settings
	if val := os.Getenv("GATEWAYFS_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("GATEWAYFS_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("GATEWAYFS_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}

	// Storage settings
	if val := os.Getenv("GATEWAYFS_S3_REGION"); val != "" {
		c.Storage.S3.Region = val
	}
	if val := os.Getenv("GATEWAYFS_S3_ENDPOINT"); val != "" {
		c.Storage.S3.Endpoint = val
	}
	if val := os.Getenv("GATEWAYFS_S3_PROFILE"); val != "" {
		c.Storage.S3.Profile = val
	}

	// Performance settings
	if val := os.Getenv("GATEWAYFS_CACHE_SIZE"); val != "" {
		c.Performance.CacheSize = val
	}
	if val := os.Getenv("GATEWAYFS_WRITE_BUFFER_SIZE"); val != "" {
		c.Performance.WriteBufferSize = val
	}
	if val := os.Getenv("GATEWAYFS_MAX_CONCURRENCY"); val != "" {
		if concurrency, err := strconv.Atoi(val); err == nil {
			c.Performance.MaxConcurrency = concurrency
		}
	}
	if val := os.Getenv("GATEWAYFS_READ_AHEAD_SIZE"); val != "" {
		c.Performance.ReadAheadSize = val
	}

	// Read-ahead settings
	if val := os.Getenv("OBJECTFS_READAHEAD_ENABLED"); val != "" {
		c.Performance.ReadAhead.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("OBJECTFS_READAHEAD_SIZE"); val != "" {
		c.Performance.ReadAhead.Size = val
	}
	if val := os.Getenv("OBJECTFS_READAHEAD_STRATEGY"); val != "" {
		c.Performance.ReadAhead.Strategy = val
	}
	if val := os.Getenv("OBJECTFS_READAHEAD_PATTERN_DETECTION"); val != "" {
		c.Performance.ReadAhead.EnablePatternDetection = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("OBJECTFS_READAHEAD_PREFETCH"); val != "" {
		c.Performance.ReadAhead.EnablePrefetch = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("OBJECTFS_READAHEAD_ML_PREDICTION"); val != "" {
		c.Performance.ReadAhead.EnableMLPrediction = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("GATEWAYFS_COMPRESSION_ENABLED"); val != "" {
		c.Performance.CompressionEnabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("GATEWAYFS_CONNECTION_POOL_SIZE"); val != "" {
		if poolSize, err := strconv.Atoi(val); err == nil {
			c.Performance.ConnectionPoolSize = poolSize
		}
	}

	// Cache settings
	if val := os.Getenv("GATEWAYFS_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.TTL = duration
		}
	}

	// Feature flags
	if val := os.Getenv("GATEWAYFS_PREFETCHING"); val != "" {
		c.Features.Prefetching = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("GATEWAYFS_BATCH_OPERATIONS"); val != "" {
		c.Features.BatchOperations = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("GATEWAYFS_OFFLINE_MODE"); val != "" {
		c.Features.OfflineMode = strings.ToLower(val) == "true"
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.Performance.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be greater than 0")
	}

	if c.Performance.ConnectionPoolSize <= 0 {
		return fmt.Errorf("connection_pool_size must be greater than 0")
	}

	if c.Global.MetricsPort == c.Global.HealthPort {
		return fmt.Errorf("metrics_port and health_port cannot be the same")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := c.Performance.ReadAhead.validate(); err != nil {
		return fmt.Errorf("invalid read_ahead config: %w", err)
	}

	return nil
}

func (r ReadAheadConfig) validate() error {
	validStrategies := []string{"simple", "predictive", "ml"}
	strategyValid := false
	for _, s := range validStrategies {
		if r.Strategy == s {
			strategyValid = true
			break
		}
	}
	if !strategyValid {
		return fmt.Errorf("invalid strategy: %s (must be one of: %s)", r.Strategy, strings.Join(validStrategies, ", "))
	}

	if r.SequentialThreshold < 0 || r.SequentialThreshold > 1 {
		return fmt.Errorf("sequential_threshold must be between 0 and 1, got %f", r.SequentialThreshold)
	}
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", r.ConfidenceThreshold)
	}
	if r.LearningRate < 0 || r.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be between 0 and 1, got %f", r.LearningRate)
	}
	if r.PredictionWindow < 0 {
		return fmt.Errorf("prediction_window must be non-negative, got %d", r.PredictionWindow)
	}
	if r.MaxConcurrentFetch <= 0 {
		return fmt.Errorf("max_concurrent_fetch must be greater than 0, got %d", r.MaxConcurrentFetch)
	}
	if r.PrefetchAhead < 0 {
		return fmt.Errorf("prefetch_ahead must be non-negative, got %d", r.PrefetchAhead)
	}
	if r.PrefetchBandwidthMBs < 0 {
		return fmt.Errorf("prefetch_bandwidth_mbs must be non-negative, got %d", r.PrefetchBandwidthMBs)
	}
	if r.PatternDepth < 0 {
		return fmt.Errorf("pattern_depth must be non-negative, got %d", r.PatternDepth)
	}
	if r.EnableMLPrediction && r.MLModelPath == "" {
		return fmt.Errorf("ml_model_path is required when enable_ml_prediction is set")
	}

	return nil
}