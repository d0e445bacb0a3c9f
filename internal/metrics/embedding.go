package metrics

// Embedding provider metrics, labelled by provider and model.
var (
	EmbeddingRequestsTotal = counter("embedding_requests_total",
		"Embedding calls by outcome", "provider", "model", "status")

	EmbeddingRequestDuration = histogram("embedding_request_duration_seconds",
		"Embedding call latency",
		[]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		"provider", "model")

	EmbeddingTokensTotal = counter("embedding_tokens_total",
		"Tokens billed by the embedding provider", "provider", "model", "type") // prompt / total

	EmbeddingErrorsTotal = counter("embedding_errors_total",
		"Failed embedding calls by error class", "provider", "model", "error_type")

	EmbeddingCacheTotal = counter("embedding_cache_total",
		"Embedding cache lookups", "result") // hit / miss
)
