package metrics

// Chat completion metrics. mode is "sync" or "stream".
var (
	CompletionRequestsTotal = counter("completion_requests_total",
		"Chat completion calls by outcome", "model", "mode", "status")

	CompletionRequestDuration = histogram("completion_request_duration_seconds",
		"Chat completion latency, until the last fragment for streams",
		[]float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		"model", "mode")

	StreamFragmentsTotal = counter("stream_fragments_total",
		"Content fragments relayed from streaming completions", "model")
)
