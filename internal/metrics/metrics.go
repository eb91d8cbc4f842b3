// Package metrics holds the Prometheus collectors of the document engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DocumentsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "crm", Name: "documents_generated_total", Help: "Number of documents generated from templates by entity type."},
		[]string{"entity_type"},
	)
	VersionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "crm", Name: "document_versions_created_total", Help: "Number of document versions created."},
	)
	ConflictRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "crm", Name: "conflict_retries_total", Help: "Number of retried transactions after a lost version race."},
		[]string{"operation"},
	)
	AuditFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "crm", Name: "audit_failures_total", Help: "Number of activity records that could not be written."},
		[]string{"sink"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(DocumentsGenerated)
	reg.MustRegister(VersionsCreated)
	reg.MustRegister(ConflictRetries)
	reg.MustRegister(AuditFailures)
}
