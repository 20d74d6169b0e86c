package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic and
// the learning-engine domain counters.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	sectionsCompleted   prometheus.Counter
	quizSubmissions     *prometheus.CounterVec
	sessionsStarted     prometheus.Counter
	attemptsSubmitted   *prometheus.CounterVec
	certificatesIssued  prometheus.Counter
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sectionsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "training_sections_completed_total",
		Help: "Total course sections marked complete",
	})

	quizSubmissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "training_quiz_submissions_total",
		Help: "In-course quiz submissions by result",
	}, []string{"result"})

	sessionsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "training_exam_sessions_started_total",
		Help: "Exam sessions started",
	})

	attemptsSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "training_exam_attempts_total",
		Help: "Submitted exam attempts by result",
	}, []string{"result"})

	certificatesIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "training_certificates_issued_total",
		Help: "Completion certificates minted",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Snapshot cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Snapshot cache misses",
	})

	registry.MustRegister(requestDuration, requestTotal, sectionsCompleted, quizSubmissions,
		sessionsStarted, attemptsSubmitted, certificatesIssued, cacheHits, cacheMisses)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		sectionsCompleted:  sectionsCompleted,
		quizSubmissions:    quizSubmissions,
		sessionsStarted:    sessionsStarted,
		attemptsSubmitted:  attemptsSubmitted,
		certificatesIssued: certificatesIssued,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
	}
}

// Handler exposes the scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveSectionCompleted counts a section completion.
func (s *MetricsService) ObserveSectionCompleted() {
	if s == nil {
		return
	}
	s.sectionsCompleted.Inc()
}

// ObserveQuizSubmission counts a graded quiz by result.
func (s *MetricsService) ObserveQuizSubmission(passed bool) {
	if s == nil {
		return
	}
	s.quizSubmissions.WithLabelValues(resultLabel(passed)).Inc()
}

// ObserveSessionStarted counts a started exam session.
func (s *MetricsService) ObserveSessionStarted() {
	if s == nil {
		return
	}
	s.sessionsStarted.Inc()
}

// ObserveAttemptSubmitted counts a submitted attempt by result.
func (s *MetricsService) ObserveAttemptSubmitted(passed bool) {
	if s == nil {
		return
	}
	s.attemptsSubmitted.WithLabelValues(resultLabel(passed)).Inc()
}

// ObserveCertificateIssued counts a minted certificate.
func (s *MetricsService) ObserveCertificateIssued() {
	if s == nil {
		return
	}
	s.certificatesIssued.Inc()
}

// ObserveCacheLookup counts a snapshot cache hit or miss.
func (s *MetricsService) ObserveCacheLookup(hit bool) {
	if s == nil {
		return
	}
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}

func resultLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
