package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttemptsTotal counts sign-in attempts by outcome.
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cri_novadis_login_attempts_total",
		Help: "The total number of sign-in attempts by outcome",
	}, []string{"outcome"})

	// SessionRestoresTotal counts startup session checks by result.
	SessionRestoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cri_novadis_session_restores_total",
		Help: "The total number of startup session restores by result",
	}, []string{"result"})

	// RemoteOperationsTotal counts calls to the remote authorization source.
	RemoteOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cri_novadis_remote_operations_total",
		Help: "The total number of remote authorization operations by status",
	}, []string{"operation", "status"})
)
