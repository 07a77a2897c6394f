package prom

import (
	"context"
	"sync"
)

// recordingStorage 记录收到的更新，不做聚合
type recordingStorage struct {
	mu         sync.Mutex
	counters   []CounterUpdate
	gauges     []GaugeUpdate
	histograms []HistogramUpdate
	families   []MetricFamilySamples
	flushed    int
	err        error
}

func (s *recordingStorage) UpdateCounter(_ context.Context, u CounterUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = append(s.counters, u)
	return s.err
}

func (s *recordingStorage) UpdateGauge(_ context.Context, u GaugeUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges = append(s.gauges, u)
	return s.err
}

func (s *recordingStorage) UpdateHistogram(_ context.Context, u HistogramUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histograms = append(s.histograms, u)
	return s.err
}

func (s *recordingStorage) Collect(context.Context) ([]MetricFamilySamples, error) {
	return s.families, s.err
}

type flushingStorage struct {
	recordingStorage
}

func (s *flushingStorage) Flush(context.Context) error {
	s.flushed++
	return s.err
}

func (s *recordingStorage) updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters) + len(s.gauges) + len(s.histograms)
}
