// Package metrics holds the shelfindex Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shelfindex"

var registerOnce sync.Once

// Register adds every shelfindex collector to the default registry. Calls
// after the first are no-ops, so the server and the admin CLI can share the
// composition root.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			httpRequestsInFlight,
			httpResponseSize,

			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			EmbedDuration,

			IndexingJobsTotal,
			IndexingDuration,
			IndexingQueueDepth,
			IndexingRetriesTotal,
			SearchRequestsTotal,
			SearchResultsReturned,
		)
	})
}
