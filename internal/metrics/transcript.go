package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transcriptsGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "omniscribe",
			Subsystem: "transcript",
			Name:      "generated_total",
			Help:      "成功生成的转录文档总数。",
		},
	)

	transcriptJobsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "omniscribe",
			Subsystem: "transcript",
			Name:      "jobs_rejected_total",
			Help:      "因渲染并发上限被拒绝（等待重投）的任务总数。",
		},
	)

	transcriptJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "omniscribe",
			Subsystem: "transcript",
			Name:      "job_duration_seconds",
			Help:      "转录生成任务耗时分布（秒）。",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

// TranscriptGenerated 记录一次成功的转录生成。
func TranscriptGenerated() {
	transcriptsGeneratedTotal.Inc()
}

// TranscriptJobRejected 记录一次因并发上限被拒绝的任务。
func TranscriptJobRejected() {
	transcriptJobsRejectedTotal.Inc()
}

// ObserveTranscriptJob 记录一次任务的执行耗时。
func ObserveTranscriptJob(d time.Duration) {
	transcriptJobDuration.Observe(d.Seconds())
}
