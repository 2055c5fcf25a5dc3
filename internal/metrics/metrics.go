// Package metrics defines the Prometheus collectors exported on /metrics.
// Collectors register with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vidcurate"

// GateVerdictsTotal counts committed admin gate verdicts.
// Labels:
//   - state: "authorized" or "denied"
//   - redirect: "none", "sign_in" or "unauthorized"
var GateVerdictsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_verdicts_total",
		Help:      "Total number of admin gate verdicts, by state and redirect.",
	},
	[]string{"state", "redirect"},
)

// EnrichmentTotal counts metadata enrichment outcomes.
// Label:
//   - result: "ok", "unconfigured" or "fallback"
var EnrichmentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_total",
		Help:      "Total number of metadata enrichment attempts, by result.",
	},
	[]string{"result"},
)

// EnrichmentDuration measures how long provider lookups take.
var EnrichmentDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "enrichment_duration_seconds",
		Help:      "Duration of metadata provider lookups.",
		Buckets:   prometheus.DefBuckets,
	},
)

// CatalogOperationsTotal counts catalog operations.
// Labels:
//   - op: "list", "create", "update" or "delete"
//   - result: "ok", "invalid" or "error"
var CatalogOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_operations_total",
		Help:      "Total number of catalog operations, by operation and result.",
	},
	[]string{"op", "result"},
)

// MetadataCacheTotal counts metadata cache lookups.
// Label:
//   - result: "hit" or "miss"
var MetadataCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "metadata_cache_total",
		Help:      "Total number of metadata cache lookups, by result.",
	},
	[]string{"result"},
)

// ThumbnailMirrorTotal counts thumbnail mirror jobs.
// Label:
//   - result: "ok", "superseded" or "error"
var ThumbnailMirrorTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "thumbnail_mirror_total",
		Help:      "Total number of thumbnail mirror jobs, by result.",
	},
	[]string{"result"},
)

// HTTPRequestsTotal counts served HTTP requests.
// Labels:
//   - method: the request method
//   - code: the response status code
var HTTPRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests, by method and status code.",
	},
	[]string{"method", "code"},
)

// RateLimitedTotal counts requests rejected by a rate limiter.
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of rate limited requests, by scope.",
	},
	[]string{"scope"},
)
