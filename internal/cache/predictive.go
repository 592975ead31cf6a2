package cache

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gatewayfs/gatewayfs/pkg/types"
)

// PredictiveCache implements ML-based predictive caching with intelligent prefetching
type PredictiveCache struct {
	baseCache   types.Cache
	predictor   *AccessPredictor
	prefetcher  *IntelligentPrefetcher
	evictionMgr *IntelligentEvictionManager
	config      *PredictiveCacheConfig
	stats       *PredictiveStats
}

// PredictiveCacheConfig configures predictive caching behavior
type PredictiveCacheConfig struct {
	// Base cache config
	BaseCache types.Cache

	// Prediction settings
	EnablePrediction    bool    `yaml:"enable_prediction"`
	PredictionWindow    int     `yaml:"prediction_window"`    // Number of accesses to consider
	ConfidenceThreshold float64 `yaml:"confidence_threshold"` // Min confidence to trigger prefetch
	LearningRate        float64 `yaml:"learning_rate"`        // ML model learning rate

	// Prefetch settings
	EnablePrefetch     bool  `yaml:"enable_prefetch"`
	MaxConcurrentFetch int   `yaml:"max_concurrent_fetch"`
	PrefetchAhead      int   `yaml:"prefetch_ahead"`     // Number of blocks to prefetch ahead
	PrefetchBandwidth  int64 `yaml:"prefetch_bandwidth"` // Max bandwidth for prefetching

	// Eviction settings
	EnableIntelligentEviction bool   `yaml:"enable_intelligent_eviction"`
	EvictionAlgorithm         string `yaml:"eviction_algorithm"` // "lru", "lfu", "arc", "ml"
	MLModelPath               string `yaml:"ml_model_path"`      // Path to trained model

	// Performance settings
	StatisticsInterval   time.Duration `yaml:"statistics_interval"`
	ModelUpdateInterval  time.Duration `yaml:"model_update_interval"`
	PatternAnalysisDepth int           `yaml:"pattern_analysis_depth"`
}

// PredictiveStats tracks predictive cache performance
type PredictiveStats struct {
	mu sync.RWMutex

	// Prediction metrics
	PredictionsTotal   uint64  `json:"predictions_total"`
	PredictionsCorrect uint64  `json:"predictions_correct"`
	PredictionAccuracy float64 `json:"prediction_accuracy"`
	AvgConfidence      float64 `json:"avg_confidence"`

	// Prefetch metrics
	PrefetchRequests   uint64  `json:"prefetch_requests"`
	PrefetchHits       uint64  `json:"prefetch_hits"`
	PrefetchWaste      uint64  `json:"prefetch_waste"` // Prefetched but never used
	PrefetchEfficiency float64 `json:"prefetch_efficiency"`

	// Eviction metrics
	EvictionsTotal       uint64  `json:"evictions_total"`
	EvictionsIntelligent uint64  `json:"evictions_intelligent"` // ML-driven evictions
	EvictionAccuracy     float64 `json:"eviction_accuracy"`     // How often evicted items stayed evicted

	// Performance impact
	CacheHitImprovement float64 `json:"cache_hit_improvement"`
	LatencyReduction    float64 `json:"latency_reduction"`
	BandwidthSavings    float64 `json:"bandwidth_savings"`

	// Model performance
	ModelAccuracy     float64       `json:"model_accuracy"`
	ModelTrainingTime time.Duration `json:"model_training_time"`
	LastModelUpdate   time.Time     `json:"last_model_update"`
}

// AccessPredictor implements machine learning-based access pattern prediction
type AccessPredictor struct {
	mu           sync.RWMutex
	patterns     map[string]*AccessPattern
	model        *PredictionModel
	config       *PredictiveCacheConfig
	recentAccess []AccessEvent
	windowSize   int
}

// AccessPattern represents learned access patterns for a file/key
type AccessPattern struct {
	Key             string                    `json:"key"`
	AccessHistory   []AccessEvent             `json:"access_history"`
	SequentialScore float64                   `json:"sequential_score"` // 0-1, how sequential accesses are
	FrequencyScore  float64                   `json:"frequency_score"`  // Access frequency
	RecencyScore    float64                   `json:"recency_score"`    // Recent access score
	SizePattern     []int64                   `json:"size_pattern"`     // Common access sizes
	TimePattern     []time.Duration           `json:"time_pattern"`     // Access intervals
	Confidence      float64                   `json:"confidence"`       // Model confidence
	LastAccess      time.Time                 `json:"last_access"`
	PredictedNext   []types.PrefetchCandidate `json:"predicted_next"`
	Features        map[string]float64        `json:"features"` // ML features
}

// AccessEvent represents a single access event
type AccessEvent struct {
	Key       string    `json:"key"`
	Offset    int64     `json:"offset"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	Hit       bool      `json:"hit"`      // Was it a cache hit?
	Prefetch  bool      `json:"prefetch"` // Was it prefetched?
}

// PredictionModel implements the ML model for access prediction
type PredictionModel struct {
	mu           sync.RWMutex
	weights      map[string]float64 // Feature weights
	bias         float64
	learningRate float64
	trainingData []TrainingExample
}

// TrainingExample represents a training data point
type TrainingExample struct {
	Features []float64 `json:"features"`
	Target   float64   `json:"target"` // 1.0 if access occurred, 0.0 if not
	Weight   float64   `json:"weight"` // Importance weight
}

// IntelligentPrefetcher handles predictive prefetching
type IntelligentPrefetcher struct {
	backend       types.Backend
	prefetchQueue chan *PrefetchJob
	activeJobs    map[string]*PrefetchJob
	workerPool    chan struct{}
	stats         PrefetchStats
	rateLimiter   *RateLimiter
	config        *PredictiveCacheConfig
	stopCh        chan struct{}
}

// PrefetchJob represents a prefetch operation
type PrefetchJob struct {
	Key          string
	Candidates   []types.PrefetchCandidate
	Priority     int
	Confidence   float64
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
	Error        error
	BytesFetched int64
}

// PrefetchStats tracks prefetch performance
type PrefetchStats struct {
	JobsQueued        uint64        `json:"jobs_queued"`
	JobsCompleted     uint64        `json:"jobs_completed"`
	JobsFailed        uint64        `json:"jobs_failed"`
	BytesPrefetched   int64         `json:"bytes_prefetched"`
	AverageLatency    time.Duration `json:"average_latency"`
	QueueDepth        int           `json:"queue_depth"`
	WorkerUtilization float64       `json:"worker_utilization"`
}

// IntelligentEvictionManager handles ML-driven cache eviction
type IntelligentEvictionManager struct {
	cache         types.Cache
	predictor     *AccessPredictor
	evictionModel *EvictionModel
	config        *PredictiveCacheConfig
}

// EvictionCandidate represents an item that could be evicted
type EvictionCandidate struct {
	Key            string    `json:"key"`
	Size           int64     `json:"size"`
	LastAccess     time.Time `json:"last_access"`
	AccessCount    int       `json:"access_count"`
	PredictedReuse float64   `json:"predicted_reuse"` // Probability of future access
	EvictionScore  float64   `json:"eviction_score"`  // Higher = more likely to evict
	CacheLevel     string    `json:"cache_level"`
}

// EvictionModel implements ML-based eviction decisions
type EvictionModel struct {
	weights   map[string]float64
	threshold float64
}

// RateLimiter controls prefetch bandwidth usage
type RateLimiter struct {
	mu         sync.Mutex
	capacity   int64 // bytes per second
	tokens     int64 // current tokens
	lastRefill time.Time
	refillRate int64 // tokens per second
}

// NewPredictiveCache creates a new predictive cache
func NewPredictiveCache(config *PredictiveCacheConfig) (*PredictiveCache, error) {
	if config == nil {
		config = &PredictiveCacheConfig{
			EnablePrediction:          true,
			PredictionWindow:          100,
			ConfidenceThreshold:       0.7,
			LearningRate:              0.01,
			EnablePrefetch:            true,
			MaxConcurrentFetch:        4,
			PrefetchAhead:             3,
			PrefetchBandwidth:         10 * 1024 * 1024, // 10 MB/s
			EnableIntelligentEviction: true,
			EvictionAlgorithm:         "ml",
			StatisticsInterval:        30 * time.Second,
			ModelUpdateInterval:       5 * time.Minute,
			PatternAnalysisDepth:      1000,
		}
	}

	predictor := &AccessPredictor{
		patterns:     make(map[string]*AccessPattern),
		windowSize:   config.PredictionWindow,
		config:       config,
		recentAccess: make([]AccessEvent, 0, config.PredictionWindow),
		model: &PredictionModel{
			weights:      make(map[string]float64),
			learningRate: config.LearningRate,
			trainingData: make([]TrainingExample, 0, 10000),
		},
	}

	prefetcher := &IntelligentPrefetcher{
		prefetchQueue: make(chan *PrefetchJob, 1000),
		activeJobs:    make(map[string]*PrefetchJob),
		workerPool:    make(chan struct{}, config.MaxConcurrentFetch),
		config:        config,
		stopCh:        make(chan struct{}),
		rateLimiter: &RateLimiter{
			capacity:   config.PrefetchBandwidth,
			refillRate: config.PrefetchBandwidth,
			lastRefill: time.Now(),
		},
	}

	evictionMgr := &IntelligentEvictionManager{
		cache:     config.BaseCache,
		predictor: predictor,
		config:    config,
		evictionModel: &EvictionModel{
			weights:   make(map[string]float64),
			threshold: 0.5,
		},
	}

	pc := &PredictiveCache{
		baseCache:   config.BaseCache,
		predictor:   predictor,
		prefetcher:  prefetcher,
		evictionMgr: evictionMgr,
		config:      config,
		stats:       &PredictiveStats{},
	}

	// Initialize feature weights with reasonable defaults
	pc.initializeModel()

	// Start background workers
	if config.EnablePrefetch {
		pc.startPrefetchWorkers()
	}

	return pc, nil
}

// Get retrieves data with predictive intelligence
func (pc *PredictiveCache) Get(key string, offset, size int64) []byte {
	start := time.Now()

	// Record access event
	event := AccessEvent{
		Key:       key,
		Offset:    offset,
		Size:      size,
		Timestamp: start,
		Hit:       false,
		Prefetch:  false,
	}

	// Try base cache first
	data := pc.baseCache.Get(key, offset, size)
	event.Hit = data != nil

	// Update predictor with access pattern
	if pc.config.EnablePrediction {
		pc.predictor.RecordAccess(event)

		// Trigger predictions and prefetching
		if predictions := pc.predictor.PredictNextAccess(key); len(predictions) > 0 {
			pc.triggerPrefetch(predictions)
		}
	}

	// Update statistics
	pc.updateStats(event, time.Since(start))

	return data
}

// Put stores data with intelligent cache management
func (pc *PredictiveCache) Put(key string, offset int64, data []byte) {
	// Check if we need to evict before putting
	if pc.config.EnableIntelligentEviction {
		pc.intelligentEvict(int64(len(data)))
	}

	// Store in base cache
	pc.baseCache.Put(key, offset, data)

	// Update access patterns
	if pc.config.EnablePrediction {
		event := AccessEvent{
			Key:       key,
			Offset:    offset,
			Size:      int64(len(data)),
			Timestamp: time.Now(),
			Hit:       false,
			Prefetch:  false,
		}
		pc.predictor.RecordAccess(event)
	}
}

// Delete removes data from cache
func (pc *PredictiveCache) Delete(key string) {
	pc.baseCache.Delete(key)

	// Clean up prediction data
	if pc.config.EnablePrediction {
		pc.predictor.mu.Lock()
		delete(pc.predictor.patterns, key)
		pc.predictor.mu.Unlock()
	}
}

// Evict performs intelligent eviction
func (pc *PredictiveCache) Evict(size int64) bool {
	if pc.config.EnableIntelligentEviction {
		return pc.intelligentEvict(size)
	}
	return pc.baseCache.Evict(size)
}

// Size returns cache size
func (pc *PredictiveCache) Size() int64 {
	return pc.baseCache.Size()
}

// Stats returns comprehensive statistics
func (pc *PredictiveCache) Stats() types.CacheStats {
	baseStats := pc.baseCache.Stats()

	pc.stats.mu.RLock()
	defer pc.stats.mu.RUnlock()

	// Enhance base stats with predictive metrics
	// Note: In a full implementation, you'd merge these properly
	return baseStats
}

// GetPredictiveStats returns detailed predictive cache statistics
func (pc *PredictiveCache) GetPredictiveStats() PredictiveStats {
	pc.stats.mu.RLock()
	defer pc.stats.mu.RUnlock()
	// Create a copy to avoid returning a mutex
	return PredictiveStats{
		PredictionsTotal:     pc.stats.PredictionsTotal,
		PredictionsCorrect:   pc.stats.PredictionsCorrect,
		PredictionAccuracy:   pc.stats.PredictionAccuracy,
		AvgConfidence:        pc.stats.AvgConfidence,
		PrefetchRequests:     pc.stats.PrefetchRequests,
		PrefetchHits:         pc.stats.PrefetchHits,
		PrefetchWaste:        pc.stats.PrefetchWaste,
		PrefetchEfficiency:   pc.stats.PrefetchEfficiency,
		EvictionsTotal:       pc.stats.EvictionsTotal,
		EvictionsIntelligent: pc.stats.EvictionsIntelligent,
		EvictionAccuracy:     pc.stats.EvictionAccuracy,
		CacheHitImprovement:  pc.stats.CacheHitImprovement,
		LatencyReduction:     pc.stats.LatencyReduction,
		BandwidthSavings:     pc.stats.BandwidthSavings,
		ModelAccuracy:        pc.stats.ModelAccuracy,
		ModelTrainingTime:    pc.stats.ModelTrainingTime,
		LastModelUpdate:      pc.stats.LastModelUpdate,
	}
}

// Access Prediction Implementation

// RecordAccess updates the prediction model with new access data
func (ap *AccessPredictor) RecordAccess(event AccessEvent) {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	// Add to recent access window
	ap.recentAccess = append(ap.recentAccess, event)
	if len(ap.recentAccess) > ap.windowSize {
		ap.recentAccess = ap.recentAccess[1:]
	}

	// Update or create pattern for this key
	pattern, exists := ap.patterns[event.Key]
	if !exists {
		pattern = &AccessPattern{
			Key:           event.Key,
			AccessHistory: make([]AccessEvent, 0, 100),
			Features:      make(map[string]float64),
		}
		ap.patterns[event.Key] = pattern
	}

	// Update pattern
	pattern.AccessHistory = append(pattern.AccessHistory, event)
	if len(pattern.AccessHistory) > 100 {
		pattern.AccessHistory = pattern.AccessHistory[1:]
	}
	pattern.LastAccess = event.Timestamp

	// Recalculate pattern features
	ap.calculatePatternFeatures(pattern)

	// Update ML model if we have enough data
	if len(ap.recentAccess) >= ap.windowSize/2 {
		ap.updateModel()
	}
}

// PredictNextAccess uses ML to predict future access patterns
func (ap *AccessPredictor) PredictNextAccess(key string) []types.PrefetchCandidate {
	ap.mu.RLock()
	defer ap.mu.RUnlock()

	pattern, exists := ap.patterns[key]
	if !exists || len(pattern.AccessHistory) < 3 {
		return nil
	}

	var candidates []types.PrefetchCandidate

	// Sequential prediction
	if pattern.SequentialScore > 0.7 {
		candidates = append(candidates, ap.predictSequential(pattern)...)
	}

	// Temporal prediction
	if pattern.FrequencyScore > 0.5 {
		candidates = append(candidates, ap.predictTemporal(pattern)...)
	}

	// ML-based prediction
	if ap.model != nil {
		candidates = append(candidates, ap.predictML(pattern)...)
	}

	// Sort by confidence and return top candidates
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	if len(candidates) > ap.config.PrefetchAhead {
		candidates = candidates[:ap.config.PrefetchAhead]
	}

	return candidates
}

// Helper methods for prediction algorithms

func (ap *AccessPredictor) calculatePatternFeatures(pattern *AccessPattern) {
	if len(pattern.AccessHistory) < 2 {
		return
	}

	// Calculate sequential score
	sequential := 0
	total := 0
	for i := 1; i < len(pattern.AccessHistory); i++ {
		prev := pattern.AccessHistory[i-1]
		curr := pattern.AccessHistory[i]

		if curr.Offset == prev.Offset+prev.Size {
			sequential++
		}
		total++
	}
	if total > 0 {
		pattern.SequentialScore = float64(sequential) / float64(total)
	}

	// Calculate frequency score
	now := time.Now()
	recent := 0
	for _, event := range pattern.AccessHistory {
		if now.Sub(event.Timestamp) < time.Hour {
			recent++
		}
	}
	pattern.FrequencyScore = float64(recent) / float64(len(pattern.AccessHistory))

	// Calculate recency score
	if !pattern.LastAccess.IsZero() {
		age := now.Sub(pattern.LastAccess)
		pattern.RecencyScore = math.Exp(-age.Hours() / 24) // Exponential decay over days
	}

	// Update ML features
	pattern.Features["sequential_score"] = pattern.SequentialScore
	pattern.Features["frequency_score"] = pattern.FrequencyScore
	pattern.Features["recency_score"] = pattern.RecencyScore
	pattern.Features["access_count"] = float64(len(pattern.AccessHistory))
	pattern.Features["avg_size"] = ap.calculateAverageSize(pattern.AccessHistory)
	pattern.Features["time_variance"] = ap.calculateTimeVariance(pattern.AccessHistory)
}

func (ap *AccessPredictor) predictSequential(pattern *AccessPattern) []types.PrefetchCandidate {
	if len(pattern.AccessHistory) == 0 {
		return nil
	}

	lastAccess := pattern.AccessHistory[len(pattern.AccessHistory)-1]
	var candidates []types.PrefetchCandidate

	// Predict next sequential blocks
	for i := 1; i <= ap.config.PrefetchAhead; i++ {
		offset := lastAccess.Offset + int64(i)*lastAccess.Size
		candidates = append(candidates, types.PrefetchCandidate{
			Path:     pattern.Key,
			Offset:   offset,
			Size:     lastAccess.Size,
			Priority: int(pattern.SequentialScore*100) - i, // Decreasing priority
			Deadline: time.Now().Add(time.Minute),
		})
	}

	return candidates
}

func (ap *AccessPredictor) predictTemporal(pattern *AccessPattern) []types.PrefetchCandidate {
	// Predict based on temporal patterns (simplified)
	// In practice, this would analyze time-based access patterns
	return nil
}

func (ap *AccessPredictor) predictML(pattern *AccessPattern) []types.PrefetchCandidate {
	if ap.model == nil {
		return nil
	}

	// Use ML model to predict next access
	features := ap.extractFeatures(pattern)
	confidence := ap.model.predict(features)

	if confidence < ap.config.ConfidenceThreshold {
		return nil
	}

	// Generate candidates based on ML prediction
	// This is a simplified version - real ML would be more sophisticated
	return []types.PrefetchCandidate{
		{
			Path:     pattern.Key,
			Offset:   pattern.AccessHistory[len(pattern.AccessHistory)-1].Offset,
			Size:     pattern.AccessHistory[len(pattern.AccessHistory)-1].Size,
			Priority: int(confidence * 100),
			Deadline: time.Now().Add(30 * time.Second),
		},
	}
}

func (ap *AccessPredictor) updateModel() {
	// Update ML model with recent training data
	// This is a simplified online learning approach

	if len(ap.recentAccess) < ap.windowSize {
		return
	}

	// Create training examples from recent access patterns
	examples := ap.createTrainingExamples()

	// Update model weights using gradient descent
	ap.model.mu.Lock()
	for _, example := range examples {
		prediction := ap.model.predict(example.Features)
		error := example.Target - prediction

		// Update weights
		for i, feature := range example.Features {
			featureName := ap.getFeatureName(i)
			if _, exists := ap.model.weights[featureName]; !exists {
				ap.model.weights[featureName] = 0.0
			}
			ap.model.weights[featureName] += ap.model.learningRate * error * feature * example.Weight
		}

		// Update bias
		ap.model.bias += ap.model.learningRate * error * example.Weight
	}
	// Model training completed
	ap.model.mu.Unlock()
}

// Helper methods

func (ap *AccessPredictor) calculateAverageSize(history []AccessEvent) float64 {
	if len(history) == 0 {
		return 0
	}

	total := int64(0)
	for _, event := range history {
		total += event.Size
	}
	return float64(total) / float64(len(history))
}

func (ap *AccessPredictor) calculateTimeVariance(history []AccessEvent) float64 {
	if len(history) < 2 {
		return 0
	}

	intervals := make([]time.Duration, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		interval := history[i].Timestamp.Sub(history[i-1].Timestamp)
		intervals = append(intervals, interval)
	}

	// Calculate variance of intervals
	mean := time.Duration(0)
	for _, interval := range intervals {
		mean += interval
	}
	mean /= time.Duration(len(intervals))

	variance := float64(0)
	for _, interval := range intervals {
		diff := float64(interval - mean)
		variance += diff * diff
	}
	variance /= float64(len(intervals))

	return variance
}

func (ap *AccessPredictor) extractFeatures(pattern *AccessPattern) []float64 {
	features := make([]float64, 0, 10)

	features = append(features, pattern.SequentialScore)
	features = append(features, pattern.FrequencyScore)
	features = append(features, pattern.RecencyScore)
	features = append(features, float64(len(pattern.AccessHistory)))

	if len(pattern.AccessHistory) > 0 {
		features = append(features, float64(pattern.AccessHistory[len(pattern.AccessHistory)-1].Size))
	} else {
		features = append(features, 0)
	}

	// Add more sophisticated features as needed
	return features
}

func (ap *AccessPredictor) createTrainingExamples() []TrainingExample {
	// Create training examples from access patterns
	// This is simplified - real implementation would be more sophisticated
	examples := make([]TrainingExample, 0, len(ap.recentAccess))

	for i := 1; i < len(ap.recentAccess); i++ {
		prev := ap.recentAccess[i-1]
		curr := ap.recentAccess[i]

		// Create features from previous access
		features := []float64{
			float64(prev.Size),
			float64(prev.Offset),
			float64(prev.Timestamp.Unix()),
		}

		// Target: 1 if next access was sequential, 0 otherwise
		target := 0.0
		if curr.Offset == prev.Offset+prev.Size && curr.Key == prev.Key {
			target = 1.0
		}

		examples = append(examples, TrainingExample{
			Features: features,
			Target:   target,
			Weight:   1.0,
		})
	}

	return examples
}

func (ap *AccessPredictor) getFeatureName(index int) string {
	names := []string{"size", "offset", "timestamp", "sequential", "frequency", "recency"}
	if index < len(names) {
		return names[index]
	}
	return "feature_" + string(rune(index))
}

// ML Model Implementation

func (pm *PredictionModel) predict(features []float64) float64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	prediction := pm.bias
	featureNames := []string{"size", "offset", "timestamp", "sequential", "frequency", "recency"}

	for i, feature := range features {
		var featureName string
		if i < len(featureNames) {
			featureName = featureNames[i]
		} else {
			featureName = "feature_" + string(rune(i))
		}

		if weight, exists := pm.weights[featureName]; exists {
			prediction += weight * feature
		}
	}

	// Apply sigmoid activation
	return 1.0 / (1.0 + math.Exp(-prediction))
}

// Prefetch Implementation

func (pc *PredictiveCache) triggerPrefetch(candidates []types.PrefetchCandidate) {
	if !pc.config.EnablePrefetch || len(candidates) == 0 {
		return
	}

	job := &PrefetchJob{
		Candidates: candidates,
		CreatedAt:  time.Now(),
		Priority:   candidates[0].Priority,
		Confidence: float64(candidates[0].Priority) / 100.0,
	}

	select {
	case pc.prefetcher.prefetchQueue <- job:
		// Note: In production, this would need proper synchronization
		pc.prefetcher.stats.JobsQueued++
	default:
		// Queue full, drop job
	}
}

func (pc *PredictiveCache) startPrefetchWorkers() {
	for i := 0; i < pc.config.MaxConcurrentFetch; i++ {
		go pc.prefetchWorker()
	}
}

func (pc *PredictiveCache) prefetchWorker() {
	for {
		select {
		case job := <-pc.prefetcher.prefetchQueue:
			pc.processPrefetchJob(job)
		case <-pc.prefetcher.stopCh:
			return
		}
	}
}

func (pc *PredictiveCache) processPrefetchJob(job *PrefetchJob) {
	job.StartedAt = time.Now()

	for _, candidate := range job.Candidates {
		// Check rate limiter
		if !pc.prefetcher.rateLimiter.Allow(candidate.Size) {
			continue
		}

		// Check if already in cache
		if existing := pc.baseCache.Get(candidate.Path, candidate.Offset, candidate.Size); existing != nil {
			continue
		}

		// Fetch from backend if available
		if pc.prefetcher.backend != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			data, err := pc.prefetcher.backend.GetObject(ctx, candidate.Path, candidate.Offset, candidate.Size)
			cancel()

			if err == nil {
				pc.baseCache.Put(candidate.Path, candidate.Offset, data)
				job.BytesFetched += int64(len(data))
			}
		}
	}

	job.CompletedAt = time.Now()

	// Note: In production, this would need proper synchronization
	pc.prefetcher.stats.JobsCompleted++
}

// Intelligent Eviction Implementation

func (pc *PredictiveCache) intelligentEvict(sizeNeeded int64) bool {
	candidates := pc.evictionMgr.generateEvictionCandidates()
	if len(candidates) == 0 {
		return pc.baseCache.Evict(sizeNeeded)
	}

	// Sort by eviction score (higher score = more likely to evict)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].EvictionScore > candidates[j].EvictionScore
	})

	totalEvicted := int64(0)
	for _, candidate := range candidates {
		if totalEvicted >= sizeNeeded {
			break
		}

		pc.baseCache.Delete(candidate.Key)
		totalEvicted += candidate.Size

		pc.stats.mu.Lock()
		pc.stats.EvictionsTotal++
		pc.stats.EvictionsIntelligent++
		pc.stats.mu.Unlock()
	}

	return totalEvicted >= sizeNeeded
}

func (em *IntelligentEvictionManager) generateEvictionCandidates() []*EvictionCandidate {
	// This would analyze cache contents and generate candidates
	// For now, return empty slice as placeholder
	return []*EvictionCandidate{}
}

// Rate Limiter Implementation

func (rl *RateLimiter) Allow(bytes int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)

	// Refill tokens
	newTokens := int64(elapsed.Seconds()) * rl.refillRate
	rl.tokens = min(rl.capacity, rl.tokens+newTokens)
	rl.lastRefill = now

	if rl.tokens >= bytes {
		rl.tokens -= bytes
		return true
	}

	return false
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Statistics and monitoring

func (pc *PredictiveCache) updateStats(event AccessEvent, latency time.Duration) {
	pc.stats.mu.Lock()
	defer pc.stats.mu.Unlock()

	// Update prediction accuracy if we had predictions
	if event.Hit && event.Prefetch {
		pc.stats.PrefetchHits++
	}

	// Update other metrics as needed
}

// Initialize model with reasonable defaults
func (pc *PredictiveCache) initializeModel() {
	pc.predictor.model.weights["sequential_score"] = 2.0
	pc.predictor.model.weights["frequency_score"] = 1.5
	pc.predictor.model.weights["recency_score"] = 1.0
	pc.predictor.model.weights["size"] = 0.1
	pc.predictor.model.bias = -0.5
}

// Close shuts down the predictive cache and stops all background workers
func (pc *PredictiveCache) Close() error {
	if pc.config.EnablePrefetch && pc.prefetcher != nil {
		close(pc.prefetcher.stopCh)
		// Drain the queue to unblock any pending sends
		close(pc.prefetcher.prefetchQueue)
	}
	return nil
}
