// Package metrics 重复线索处理相关的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal 按处理方式和结果统计的预警处理次数
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadops",
			Subsystem: "resolution",
			Name:      "attempts_total",
			Help:      "Total number of duplicate alert resolution attempts by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// ResolutionDuration 预警处理耗时
	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "leadops",
			Subsystem: "resolution",
			Name:      "duration_seconds",
			Help:      "Duration of duplicate alert resolutions in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"action"},
	)

	// AlertsIngestedTotal 按来源和结果统计的检测事件
	AlertsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadops",
			Subsystem: "ingest",
			Name:      "alerts_total",
			Help:      "Total number of detector events ingested by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	// ResolutionsPublishedTotal 处理记录发布结果
	ResolutionsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadops",
			Subsystem: "events",
			Name:      "resolutions_published_total",
			Help:      "Total number of resolution records handed to the publisher",
		},
		[]string{"status"},
	)

	// PendingAlerts 待处理预警数量
	PendingAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "leadops",
			Subsystem: "backlog",
			Name:      "pending_alerts",
			Help:      "Number of duplicate alerts waiting for a decision",
		},
	)

	// OldestPendingAlertAge 最早待处理预警的等待时长
	OldestPendingAlertAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "leadops",
			Subsystem: "backlog",
			Name:      "oldest_pending_alert_age_seconds",
			Help:      "Age in seconds of the oldest pending duplicate alert",
		},
	)
)

// 处理结果标签
const (
	OutcomeSuccess           = "success"
	OutcomeNotFound          = "not_found"
	OutcomeAlreadyResolved   = "already_resolved"
	OutcomeInvalidAction     = "invalid_action"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeConflict          = "conflict"
	OutcomeInvalidInput      = "invalid_input"
	OutcomeDuplicate         = "duplicate"
	OutcomeError             = "error"
)

// 检测事件来源标签
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
)

// RecordResolution 记录一次处理尝试
func RecordResolution(action, outcome string, seconds float64) {
	if action == "" {
		action = "unknown"
	}
	ResolutionsTotal.WithLabelValues(action, outcome).Inc()
	ResolutionDuration.WithLabelValues(action).Observe(seconds)
}

// RecordIngest 记录一次检测事件的接收
func RecordIngest(source, outcome string) {
	AlertsIngestedTotal.WithLabelValues(source, outcome).Inc()
}
