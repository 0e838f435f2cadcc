package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of bearer tokens issued or reused, by kind.",
		},
		[]string{"kind", "result"},
	)

	TokenVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_verifications_total",
			Help: "Total number of token verification attempts, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	SessionsMintedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_sessions_minted_total",
			Help: "Total number of session credentials minted.",
		},
		[]string{"result"},
	)

	TokensSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_tokens_swept_total",
			Help: "Total number of expired tokens deleted by the sweeper.",
		},
	)

	RenewalRemindersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_renewal_reminders_total",
			Help: "Total number of QR renewal reminders sent.",
		},
		[]string{"result"},
	)
)

// MustRegister registers every collector with the default registry, tagging
// each series with the service name.
func MustRegister(serviceName string) {
	MustRegisterWith(prometheus.DefaultRegisterer, serviceName)
}

func MustRegisterWith(reg prometheus.Registerer, serviceName string) {
	prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, reg).MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		TokensIssuedTotal,
		TokenVerificationsTotal,
		SessionsMintedTotal,
		TokensSweptTotal,
		RenewalRemindersTotal,
	)
}
