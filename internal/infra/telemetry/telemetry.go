package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/autodoc-access/internal/core/port"
)

// Namespace prefixes every collector exported by the service.
const Namespace = "autodoc"

// Register registers c with reg, returning the already registered collector
// when an identical one exists.
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// AccessMetrics implements port.AccessMetrics with Prometheus counters.
type AccessMetrics struct {
	Verifications *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	Invitations   *prometheus.CounterVec
}

// NewAccessMetrics builds and registers the access outcome counters.
func NewAccessMetrics(reg prometheus.Registerer) (*AccessMetrics, error) {
	verifications, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_key_verifications_total",
		Help:      "API key verifications partitioned by operation and outcome.",
	}, []string{"operation", "outcome"}))
	if err != nil {
		return nil, err
	}

	registrations, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "registrations_total",
		Help:      "Registration attempts partitioned by strategy and outcome.",
	}, []string{"strategy", "outcome"}))
	if err != nil {
		return nil, err
	}

	invitations, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "invitations_total",
		Help:      "Invitation issue and accept attempts partitioned by stage and outcome.",
	}, []string{"stage", "outcome"}))
	if err != nil {
		return nil, err
	}

	return &AccessMetrics{
		Verifications: verifications,
		Registrations: registrations,
		Invitations:   invitations,
	}, nil
}

func (m *AccessMetrics) ObserveVerification(operation, outcome string) {
	m.Verifications.WithLabelValues(operation, outcome).Inc()
}

func (m *AccessMetrics) IncRegistration(strategy, outcome string) {
	m.Registrations.WithLabelValues(strategy, outcome).Inc()
}

func (m *AccessMetrics) IncInvitation(stage, outcome string) {
	m.Invitations.WithLabelValues(stage, outcome).Inc()
}

var _ port.AccessMetrics = (*AccessMetrics)(nil)
