package metrics

import "time"

// PipelineObserver feeds QA pipeline outcomes into the shared registry. It
// satisfies the use-case observer interfaces.
type PipelineObserver struct {
	service string
	metrics *HTTPServerMetrics
}

func NewPipelineObserver(service string, metrics *HTTPServerMetrics) *PipelineObserver {
	return &PipelineObserver{service: service, metrics: metrics}
}

func (o *PipelineObserver) SignalFailed(index, signal string) {
	o.metrics.retrievalSignalFails.WithLabelValues(o.service, index, signal).Inc()
}

func (o *PipelineObserver) RerankFellBack() {
	o.metrics.rerankFallbacksTotal.WithLabelValues(o.service).Inc()
}

func (o *PipelineObserver) SuggestionTested(found bool) {
	o.metrics.suggestionsTested.WithLabelValues(o.service, outcome(found)).Inc()
}

func (o *PipelineObserver) AnswerCompleted(found bool, duration time.Duration) {
	o.metrics.qaRequestsTotal.WithLabelValues(o.service, outcome(found)).Inc()
	o.metrics.qaDuration.WithLabelValues(o.service).Observe(duration.Seconds())
}

// CitationsAttached records how many citations a found answer carried.
func (o *PipelineObserver) CitationsAttached(count int) {
	o.metrics.qaCitations.WithLabelValues(o.service).Observe(float64(count))
}

func outcome(found bool) string {
	if found {
		return "found"
	}
	return "not_found"
}
