package identity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medrota",
		Subsystem: "iam",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	lockoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medrota",
		Subsystem: "iam",
		Name:      "lockouts_total",
		Help:      "Accounts locked after repeated failures.",
	})

	activeMFAVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medrota",
		Subsystem: "iam",
		Name:      "mfa_verifications_total",
		Help:      "Second-factor verifications by outcome.",
	}, []string{"outcome"})

	sessionsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medrota",
		Subsystem: "iam",
		Name:      "sessions_issued_total",
		Help:      "Sessions issued, including refresh rotations.",
	})
)
