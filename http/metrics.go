package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"churnguard/ml"
)

// Metrics 服务的Prometheus指标，使用独立的注册表
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	predictions *prometheus.CounterVec
	scores      prometheus.Histogram
}

// NewMetrics 创建指标集合，ready用于导出模型就绪状态
func NewMetrics(ready func() bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "churn",
			Name:      "http_requests_total",
			Help:      "HTTP requests by handler, method and status code.",
		}, []string{"handler", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "churn",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by handler and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "method"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "churn",
			Name:      "predictions_total",
			Help:      "Predictions served by predicted label.",
		}, []string{"label"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "churn",
			Name:      "prediction_score",
			Help:      "Distribution of predicted churn probabilities.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 9),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.predictions,
		m.scores,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "churn",
			Name:      "model_ready",
			Help:      "1 once a fitted model is serving predictions.",
		}, func() float64 {
			if ready() {
				return 1
			}
			return 0
		}),
	)
	return m
}

// Handler 暴露/metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// instrument 为单个路由记录请求数和延迟
func (m *Metrics) instrument(name string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": name}
	return promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), h))
}

func (m *Metrics) observePrediction(p ml.Prediction) {
	m.predictions.WithLabelValues(p.Label).Inc()
	m.scores.Observe(p.Probability)
}
