package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

type MetricType string

const (
	Counter   MetricType = "counter"
	Gauge     MetricType = "gauge"
	Histogram MetricType = "histogram"
)

var ErrInvalidMetric = errors.New("invalid metric")

// Metric is immutable once constructed; build it with NewMetric.
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Timestamp time.Time         `json:"timestamp"`
	Labels    map[string]string `json:"labels,omitempty"`
	TenantID  string            `json:"tenant_id"`
}

func NewMetric(
	tenantID string,
	name string,
	metricType MetricType,
	value float64,
	timestamp time.Time,
	labels map[string]string,
) (Metric, error) {
	m := Metric{
		Name:      name,
		Type:      metricType,
		Value:     value,
		Timestamp: timestamp.UTC(),
		TenantID:  tenantID,
	}
	if labels != nil {
		m.Labels = make(map[string]string, len(labels))
		for k, v := range labels {
			m.Labels[k] = v
		}
	}
	if err := m.Validate(); err != nil {
		return Metric{}, err
	}
	return m, nil
}

func (m Metric) Validate() error {
	if m.TenantID == "" {
		return fmt.Errorf("metric %q has no tenant: %w", m.Name, ErrInvalidMetric)
	}
	if m.Name == "" {
		return fmt.Errorf("metric name is empty: %w", ErrInvalidMetric)
	}
	switch m.Type {
	case Counter, Gauge, Histogram:
	default:
		return fmt.Errorf("metric %q has unknown type %q: %w", m.Name, m.Type, ErrInvalidMetric)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fmt.Errorf("metric %q has non-finite value: %w", m.Name, ErrInvalidMetric)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("metric %q has no timestamp: %w", m.Name, ErrInvalidMetric)
	}
	return nil
}
