package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	contactSubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "folio_contact_submissions_total",
		Help: "Contact form submissions accepted.",
	})

	chatRoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_chat_rounds_total",
		Help: "Chat send round trips by outcome.",
	}, []string{"outcome"})

	submissionMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "folio_submission_mutations_total",
		Help: "Admin mutations on submissions by action.",
	}, []string{"action"})
)
