package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 工作流指标
var (
	DocumentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curation_document_transitions_total",
		Help: "Document status transitions by from/to state",
	}, []string{"from", "to"})

	ChunkTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curation_chunk_transitions_total",
		Help: "Chunk review status transitions by from/to state",
	}, []string{"from", "to"})

	GatewayFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curation_gateway_failures_total",
		Help: "Chunking/enrichment gateway failures by operation",
	}, []string{"operation"})

	EmbeddingFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curation_embedding_failures_total",
		Help: "Best-effort embedding generation failures after approval",
	})
)

// Handler 返回Prometheus指标的HTTP处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
