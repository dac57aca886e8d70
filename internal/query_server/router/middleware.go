package router

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/telemetry-core/internal/correlation"
	"github.com/Avi18971911/telemetry-core/internal/metrics"
	traceService "github.com/Avi18971911/telemetry-core/internal/trace/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"net/http"
	"strconv"
	"time"
)

var errServerFailure = errors.New("request failed with a server error")

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}
	return r.URL.Path
}

// CorrelationMiddleware seeds the correlation context from the inbound headers and serves
// the request inside a server span named "<METHOD> <route>". The trace and span ids are
// echoed on the response.
func CorrelationMiddleware(
	recorder traceService.SpanRecorder,
	untraced map[string]bool,
	logger *zap.Logger,
) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := correlation.NewContext(r.Context(), correlation.FromHeaders(r.Header))
			w.Header().Set(correlation.RequestIDHeader, correlation.RequestID(ctx))
			route := routeName(r)
			if untraced[route] {
				w.Header().Set(correlation.TraceIDHeader, correlation.TraceID(ctx))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			served := false
			err := recorder.WithSpan(ctx, r.Method+" "+route, func(spanCtx context.Context) error {
				served = true
				w.Header().Set(correlation.TraceIDHeader, correlation.TraceID(spanCtx))
				w.Header().Set(correlation.SpanIDHeader, correlation.SpanID(spanCtx))
				rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
				next.ServeHTTP(rec, r.WithContext(spanCtx))
				if rec.status >= http.StatusInternalServerError {
					return fmt.Errorf("%w: %d", errServerFailure, rec.status)
				}
				return nil
			})
			if !served {
				logger.Warn(
					"Could not open a server span, serving untraced",
					append(correlation.ZapFields(ctx), zap.String("route", route), zap.Error(err))...,
				)
				w.Header().Set(correlation.TraceIDHeader, correlation.TraceID(ctx))
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// MetricsMiddleware counts requests per route and status code and observes their latency.
func MetricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			route := routeName(r)
			m.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
