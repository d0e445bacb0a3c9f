package metrics

// Retrieval, session and ingestion metrics.
var (
	RetrievalErrorsTotal = counter("retrieval_errors_total",
		"Collection searches that failed and contributed no context", "collection")

	ActiveSessions = gauge("active_sessions", "Chat sessions held in memory")

	IngestChunksTotal = counter("ingest_chunks_total",
		"Chunks processed by ingestion", "collection", "result") // indexed / skipped / failed
)
