package prom

import (
	"context"
	"sync"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/xerrors"
)

// Registry 持有指标标识并创建绑定到同一后端的收集器。
//
// 标识 namespace:name 在全部类型之间唯一。Registry 可被多个 goroutine 并发使用。
type Registry struct {
	storage Storage
	logger  clog.Logger

	mu            sync.RWMutex
	defaultLabels map[string]string
	types         map[string]MetricType
	counters      map[string]*Counter
	gauges        map[string]*Gauge
	histograms    map[string]*Histogram
}

// NewRegistry 创建注册表
func NewRegistry(storage Storage, opts ...Option) (*Registry, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	o := applyOptions(opts)
	r := &Registry{
		storage:    storage,
		logger:     o.logger,
		types:      make(map[string]MetricType),
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
	if len(o.defaultLabels) > 0 {
		if err := r.ApplyDefaultLabels(o.defaultLabels); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Storage 返回注册表使用的后端
func (r *Registry) Storage() Storage { return r.storage }

// RegisterCounter 注册计数器，标识已存在时返回 ErrDuplicateMetric
func (r *Registry) RegisterCounter(namespace, name, help string, labels []string) (*Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerCounterLocked(namespace, name, help, labels)
}

// GetCounter 查找计数器，不存在或类型不同时返回 ErrNotFound
func (r *Registry) GetCounter(namespace, name string) (*Counter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := metricIdentifier(namespace, name)
	c, ok := r.counters[id]
	if !ok {
		return nil, r.notFound(id, TypeCounter)
	}
	return c, nil
}

// GetOrRegisterCounter 返回已注册的计数器，不存在时注册
func (r *Registry) GetOrRegisterCounter(namespace, name, help string, labels []string) (*Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[metricIdentifier(namespace, name)]; ok {
		return c, nil
	}
	return r.registerCounterLocked(namespace, name, help, labels)
}

func (r *Registry) registerCounterLocked(namespace, name, help string, labels []string) (*Counter, error) {
	id := metricIdentifier(namespace, name)
	if err := r.checkDuplicateLocked(id); err != nil {
		return nil, err
	}
	c, err := NewCounter(r.storage, namespace, name, help, labels)
	if err != nil {
		return nil, err
	}
	if err := r.applyDefaultsLocked(c.collector); err != nil {
		return nil, err
	}
	r.counters[id] = c
	r.track(id, TypeCounter)
	return c, nil
}

// RegisterGauge 注册仪表盘，标识已存在时返回 ErrDuplicateMetric
func (r *Registry) RegisterGauge(namespace, name, help string, labels []string) (*Gauge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerGaugeLocked(namespace, name, help, labels)
}

// GetGauge 查找仪表盘，不存在或类型不同时返回 ErrNotFound
func (r *Registry) GetGauge(namespace, name string) (*Gauge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := metricIdentifier(namespace, name)
	g, ok := r.gauges[id]
	if !ok {
		return nil, r.notFound(id, TypeGauge)
	}
	return g, nil
}

// GetOrRegisterGauge 返回已注册的仪表盘，不存在时注册
func (r *Registry) GetOrRegisterGauge(namespace, name, help string, labels []string) (*Gauge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[metricIdentifier(namespace, name)]; ok {
		return g, nil
	}
	return r.registerGaugeLocked(namespace, name, help, labels)
}

func (r *Registry) registerGaugeLocked(namespace, name, help string, labels []string) (*Gauge, error) {
	id := metricIdentifier(namespace, name)
	if err := r.checkDuplicateLocked(id); err != nil {
		return nil, err
	}
	g, err := NewGauge(r.storage, namespace, name, help, labels)
	if err != nil {
		return nil, err
	}
	if err := r.applyDefaultsLocked(g.collector); err != nil {
		return nil, err
	}
	r.gauges[id] = g
	r.track(id, TypeGauge)
	return g, nil
}

// RegisterHistogram 注册直方图，buckets 为 nil 时使用 DefaultBuckets
func (r *Registry) RegisterHistogram(namespace, name, help string, labels []string, buckets []float64) (*Histogram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerHistogramLocked(namespace, name, help, labels, buckets)
}

// GetHistogram 查找直方图，不存在或类型不同时返回 ErrNotFound
func (r *Registry) GetHistogram(namespace, name string) (*Histogram, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := metricIdentifier(namespace, name)
	h, ok := r.histograms[id]
	if !ok {
		return nil, r.notFound(id, TypeHistogram)
	}
	return h, nil
}

// GetOrRegisterHistogram 返回已注册的直方图，不存在时注册。
// 已注册时忽略传入的 buckets。
func (r *Registry) GetOrRegisterHistogram(namespace, name, help string, labels []string, buckets []float64) (*Histogram, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[metricIdentifier(namespace, name)]; ok {
		return h, nil
	}
	return r.registerHistogramLocked(namespace, name, help, labels, buckets)
}

func (r *Registry) registerHistogramLocked(namespace, name, help string, labels []string, buckets []float64) (*Histogram, error) {
	id := metricIdentifier(namespace, name)
	if err := r.checkDuplicateLocked(id); err != nil {
		return nil, err
	}
	h, err := NewHistogram(r.storage, namespace, name, help, labels, buckets)
	if err != nil {
		return nil, err
	}
	if err := r.applyDefaultsLocked(h.collector); err != nil {
		return nil, err
	}
	r.histograms[id] = h
	r.track(id, TypeHistogram)
	return h, nil
}

// ApplyDefaultLabels 设置默认标签，作用于已注册和之后注册的全部收集器。
//
// 再次调用会替换之前的默认标签。已写入后端的序列保留写入时的标签名，
// 因此应在第一次更新之前调用。
func (r *Registry) ApplyDefaultLabels(labels map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 先全部校验，失败时不改动任何收集器
	for _, c := range r.collectorsLocked() {
		check := &collector{typ: c.typ, name: c.name, labels: c.labels}
		if err := check.ApplyDefaultLabels(labels); err != nil {
			return err
		}
	}
	for _, c := range r.collectorsLocked() {
		if err := c.ApplyDefaultLabels(labels); err != nil {
			return err
		}
	}

	r.defaultLabels = make(map[string]string, len(labels))
	for k, v := range labels {
		r.defaultLabels[k] = v
	}
	r.logger.Debug("default labels applied", clog.Any("labels", r.defaultLabels))
	return nil
}

// GetMetricFamilySamples 从后端收集全部指标
func (r *Registry) GetMetricFamilySamples(ctx context.Context) ([]MetricFamilySamples, error) {
	return r.storage.Collect(ctx)
}

// Flush 清空后端中的全部指标状态，后端不支持时返回 ErrUnsupported
func (r *Registry) Flush(ctx context.Context) error {
	f, ok := r.storage.(Flusher)
	if !ok {
		return xerrors.Wrapf(ErrUnsupported, "%T cannot flush", r.storage)
	}
	if err := f.Flush(ctx); err != nil {
		return err
	}
	r.logger.Info("storage flushed")
	return nil
}

func (r *Registry) checkDuplicateLocked(id string) error {
	if typ, ok := r.types[id]; ok {
		return xerrors.Wrapf(ErrDuplicateMetric, "%s (registered as %s)", id, typ)
	}
	return nil
}

func (r *Registry) applyDefaultsLocked(c *collector) error {
	if len(r.defaultLabels) == 0 {
		return nil
	}
	return c.ApplyDefaultLabels(r.defaultLabels)
}

func (r *Registry) track(id string, typ MetricType) {
	r.types[id] = typ
	r.logger.Debug("metric registered", clog.String("id", id), clog.String("type", string(typ)))
}

func (r *Registry) notFound(id string, want MetricType) error {
	if typ, ok := r.types[id]; ok {
		return xerrors.Wrapf(ErrNotFound, "%s is a %s, not a %s", id, typ, want)
	}
	return xerrors.Wrapf(ErrNotFound, "%s", id)
}

func (r *Registry) collectorsLocked() []*collector {
	out := make([]*collector, 0, len(r.types))
	for _, c := range r.counters {
		out = append(out, c.collector)
	}
	for _, g := range r.gauges {
		out = append(out, g.collector)
	}
	for _, h := range r.histograms {
		out = append(out, h.collector)
	}
	return out
}
