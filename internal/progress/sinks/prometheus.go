package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seoforge/inlink-prospector/internal/progress"
)

// PrometheusSink exports analysis progress metrics via Prometheus. It owns
// the collectors for jobs started/finished/running and per-page counters.
type PrometheusSink struct {
	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobsRunning  prometheus.Gauge
	jobsPaused   prometheus.Gauge

	pagesAnalyzed    prometheus.Counter
	suggestionsTotal prometheus.Counter
	pageDuration     prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prospector_jobs_started_total",
			Help: "Total analysis jobs that have started.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prospector_jobs_finished_total",
			Help: "Total analysis jobs finished partitioned by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "prospector_jobs_running",
			Help: "Current number of running analysis workers.",
		}),
		jobsPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "prospector_jobs_paused",
			Help: "Current number of paused analysis workers.",
		}),
		pagesAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prospector_pages_analyzed_total",
			Help: "Pages handed to the analysis collaborator.",
		}),
		suggestionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prospector_suggestions_total",
			Help: "Suggestion rows accepted from the analysis collaborator.",
		}),
		pageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prospector_page_analysis_duration_seconds",
			Help:    "Wall time per analyzed page.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.jobsStarted,
		s.jobsFinished,
		s.jobsRunning,
		s.jobsPaused,
		s.pagesAnalyzed,
		s.suggestionsTotal,
		s.pageDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageJobStart:
			s.jobsStarted.Inc()
			s.jobsRunning.Inc()
		case progress.StagePageDone:
			s.pagesAnalyzed.Inc()
			s.suggestionsTotal.Add(float64(evt.Suggestions))
			s.pageDuration.Observe(evt.Dur.Seconds())
		case progress.StageJobPaused:
			s.jobsRunning.Dec()
			s.jobsPaused.Inc()
		case progress.StageJobResume:
			s.jobsPaused.Dec()
			s.jobsRunning.Inc()
		case progress.StageJobDone:
			s.jobsRunning.Dec()
			s.jobsFinished.WithLabelValues(evt.Note).Inc()
		case progress.StageJobError:
			s.jobsRunning.Dec()
			s.jobsFinished.WithLabelValues("failed").Inc()
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
