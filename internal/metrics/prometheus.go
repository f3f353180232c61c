package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	SignInTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authd_sign_in_total",
		Help: "Sign-in attempts by flow, account kind and outcome.",
	}, []string{"flow", "kind", "outcome"})

	RegistrationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authd_registrations_total",
		Help: "Accounts created by flow and account kind.",
	}, []string{"flow", "kind"})

	AuthModeTransitionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authd_auth_mode_transitions_total",
		Help: "Auth mode changes on existing accounts.",
	}, []string{"from", "to"})

	TokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authd_tokens_issued_total",
		Help: "Session tokens issued by type.",
	}, []string{"type"})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authd_rate_limited_total",
		Help: "Authentication requests rejected by the abuse guard.",
	})
)

// Register registers the custom metrics with reg. It should be called once at startup.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	for _, c := range []prometheus.Collector{
		SignInTotal,
		RegistrationTotal,
		AuthModeTransitionTotal,
		TokensIssuedTotal,
		RateLimitedTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
