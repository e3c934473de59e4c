package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JournalHits tracks lookups that found an accepted batch
	JournalHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fssp_journal_hits_total",
			Help: "Total number of submission journal hits",
		},
	)

	// JournalMisses tracks lookups without an entry
	JournalMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fssp_journal_misses_total",
			Help: "Total number of submission journal misses",
		},
	)

	// JournalErrors tracks journal operation errors
	JournalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fssp_journal_errors_total",
			Help: "Total number of submission journal errors",
		},
		[]string{"operation"}, // "get", "put", "delete"
	)
)
