package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	TaskChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucode_task_checks_total",
			Help: "Graded component submissions by component type and result",
		},
		[]string{"type", "result"},
	)

	LessonCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucode_lesson_completion_transitions_total",
			Help: "Lesson completion state transitions",
		},
		[]string{"direction"},
	)

	CertificatesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ucode_certificates_issued_total",
			Help: "Newly issued course certificates",
		},
	)

	CodingVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ucode_coding_verdicts_total",
			Help: "Finished coding submissions by status",
		},
		[]string{"language", "status"},
	)

	JudgeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ucode_judge_duration_seconds",
			Help:    "Time spent judging one coding submission",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30},
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(TaskChecks)
		prometheus.MustRegister(LessonCompletions)
		prometheus.MustRegister(CertificatesIssued)
		prometheus.MustRegister(CodingVerdicts)
		prometheus.MustRegister(JudgeDuration)
	})
}

func ObserveTaskCheck(kind string, correct bool) {
	result := "wrong"
	if correct {
		result = "correct"
	}
	TaskChecks.WithLabelValues(kind, result).Inc()
}

// ObserveLessonTransition 只统计完成状态发生变化的情况
func ObserveLessonTransition(wasCompleted, isCompleted bool) {
	switch {
	case !wasCompleted && isCompleted:
		LessonCompletions.WithLabelValues("completed").Inc()
	case wasCompleted && !isCompleted:
		LessonCompletions.WithLabelValues("reverted").Inc()
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
