package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/ingestion/model"
	"github.com/Avi18971911/telemetry-core/internal/otel_server/common"
	protoMetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	v1 "go.opentelemetry.io/proto/otlp/metrics/v1"
	"go.uber.org/zap"
	"strconv"
	"time"
)

var (
	errQueueRejected     = errors.New("metric queue rejected data point")
	errUnsupportedMetric = errors.New("unsupported metric data type")
)

type MetricSubmitter interface {
	SubmitMetric(metric model.Metric) (bool, error)
}

// MetricServiceServerImpl turns OTLP gauge, sum and histogram data points into metrics on the
// ingestion queue.
type MetricServiceServerImpl struct {
	protoMetrics.UnimplementedMetricsServiceServer
	submitter MetricSubmitter
	logger    *zap.Logger
}

func NewMetricServiceServerImpl(
	submitter MetricSubmitter,
	logger *zap.Logger,
) *MetricServiceServerImpl {
	logger.Info("Creating new MetricServiceServerImpl")
	return &MetricServiceServerImpl{
		submitter: submitter,
		logger:    logger,
	}
}

func (mss *MetricServiceServerImpl) Export(
	ctx context.Context,
	req *protoMetrics.ExportMetricsServiceRequest,
) (*protoMetrics.ExportMetricsServiceResponse, error) {
	var rejected int64
	var lastErr error
	for _, resourceMetrics := range req.GetResourceMetrics() {
		tenantID := common.TenantID(ctx, resourceMetrics.GetResource())
		serviceName := common.ServiceName(resourceMetrics.GetResource())
		for _, scopeMetrics := range resourceMetrics.GetScopeMetrics() {
			for _, metric := range scopeMetrics.GetMetrics() {
				typedMetrics, skipped, err := typeMetrics(metric, tenantID, serviceName)
				if err != nil {
					rejected += int64(skipped)
					lastErr = err
				}
				for _, typed := range typedMetrics {
					accepted, err := mss.submitter.SubmitMetric(typed)
					if err != nil || !accepted {
						if err == nil {
							err = errQueueRejected
						}
						rejected++
						lastErr = err
					}
				}
			}
		}
	}

	response := &protoMetrics.ExportMetricsServiceResponse{}
	if rejected > 0 {
		mss.logger.Warn("Rejected OTLP data points", zap.Int64("rejected", rejected), zap.Error(lastErr))
		response.PartialSuccess = &protoMetrics.ExportMetricsPartialSuccess{
			RejectedDataPoints: rejected,
			ErrorMessage:       fmt.Sprintf("%d data points rejected: %v", rejected, lastErr),
		}
	}
	return response, nil
}

// typeMetrics returns the converted data points. Points that cannot be converted are
// counted in skipped and reported through err.
func typeMetrics(metric *v1.Metric, tenantID string, serviceName string) ([]model.Metric, int, error) {
	var result []model.Metric
	skipped := 0
	var lastErr error
	add := func(metricType model.MetricType, value float64, ts uint64, attrs []*commonv1.KeyValue, extra map[string]string) {
		var timestamp time.Time
		if ts != 0 {
			timestamp = common.UnixNano(ts)
		}
		labels := toLabels(attrs, serviceName, extra)
		typed, err := model.NewMetric(tenantID, metric.GetName(), metricType, value, timestamp, labels)
		if err != nil {
			skipped++
			lastErr = err
			return
		}
		result = append(result, typed)
	}

	switch data := metric.GetData().(type) {
	case *v1.Metric_Gauge:
		for _, point := range data.Gauge.GetDataPoints() {
			add(model.Gauge, numberValue(point), point.GetTimeUnixNano(), point.GetAttributes(), nil)
		}
	case *v1.Metric_Sum:
		metricType := model.Gauge
		if data.Sum.GetIsMonotonic() {
			metricType = model.Counter
		}
		for _, point := range data.Sum.GetDataPoints() {
			add(metricType, numberValue(point), point.GetTimeUnixNano(), point.GetAttributes(), nil)
		}
	case *v1.Metric_Histogram:
		for _, point := range data.Histogram.GetDataPoints() {
			extra := map[string]string{"count": strconv.FormatUint(point.GetCount(), 10)}
			add(model.Histogram, point.GetSum(), point.GetTimeUnixNano(), point.GetAttributes(), extra)
		}
	default:
		return nil, 1, fmt.Errorf("%w: %s", errUnsupportedMetric, metric.GetName())
	}
	return result, skipped, lastErr
}

func numberValue(point *v1.NumberDataPoint) float64 {
	if v, ok := point.GetValue().(*v1.NumberDataPoint_AsInt); ok {
		return float64(v.AsInt)
	}
	return point.GetAsDouble()
}

func toLabels(attrs []*commonv1.KeyValue, serviceName string, extra map[string]string) map[string]string {
	labels := map[string]string{common.ServiceAttribute: serviceName}
	for key, value := range common.Attributes(attrs) {
		labels[key] = fmt.Sprint(value)
	}
	for key, value := range extra {
		labels[key] = value
	}
	return labels
}
