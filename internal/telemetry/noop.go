package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Noop 返回不记录任何内容的 Meter
func Noop() Meter {
	return noopMeter{}
}

type noopMeter struct{}

func (noopMeter) Counter(string, string) (Counter, error) { return noopCounter{}, nil }

func (noopMeter) Histogram(string, string, string) (Histogram, error) { return noopHistogram{}, nil }

func (noopMeter) Gatherer() prometheus.Gatherer { return prometheus.NewRegistry() }

func (noopMeter) Shutdown(context.Context) error { return nil }

type noopCounter struct{}

func (noopCounter) Inc(context.Context, ...Label)        {}
func (noopCounter) Add(context.Context, int64, ...Label) {}

type noopHistogram struct{}

func (noopHistogram) Record(context.Context, float64, ...Label) {}
