// Package metrics holds the Prometheus collectors for agent lifecycle events.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rental_agents"

type Metrics struct {
	EligibilityDecisions    *prometheus.CounterVec
	VerificationOutcomes    *prometheus.CounterVec
	ReferralApplications    *prometheus.CounterVec
	SubscriptionActivations *prometheus.CounterVec
	SubscriptionsExpired    prometheus.Counter
}

// New registers the collectors with reg, reusing collectors that are already
// registered under the same name.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		EligibilityDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eligibility_decisions_total",
			Help:      "Listing eligibility decisions partitioned by reason and outcome.",
		}, []string{"reason", "allowed"}),
		VerificationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_outcomes_total",
			Help:      "Verification transitions partitioned by outcome.",
		}, []string{"outcome"}),
		ReferralApplications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_applications_total",
			Help:      "Referral code applications partitioned by result.",
		}, []string{"result"}),
		SubscriptionActivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_activations_total",
			Help:      "Paid subscription activations and renewals partitioned by plan.",
		}, []string{"plan", "kind"}),
		SubscriptionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions restamped as expired by the sweep.",
		}),
	}

	var err error
	if m.EligibilityDecisions, err = registerCounterVec(reg, m.EligibilityDecisions); err != nil {
		return nil, err
	}
	if m.VerificationOutcomes, err = registerCounterVec(reg, m.VerificationOutcomes); err != nil {
		return nil, err
	}
	if m.ReferralApplications, err = registerCounterVec(reg, m.ReferralApplications); err != nil {
		return nil, err
	}
	if m.SubscriptionActivations, err = registerCounterVec(reg, m.SubscriptionActivations); err != nil {
		return nil, err
	}
	if err := reg.Register(m.SubscriptionsExpired); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register expired collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, fmt.Errorf("existing expired collector has unexpected type %T", already.ExistingCollector)
		}
		m.SubscriptionsExpired = existing
	}

	return m, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

func (m *Metrics) Eligibility(reason string, allowed bool) {
	if m == nil {
		return
	}
	m.EligibilityDecisions.WithLabelValues(reason, fmt.Sprintf("%t", allowed)).Inc()
}

func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.VerificationOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Referral(result string) {
	if m == nil {
		return
	}
	m.ReferralApplications.WithLabelValues(result).Inc()
}

func (m *Metrics) Subscription(plan, kind string) {
	if m == nil {
		return
	}
	m.SubscriptionActivations.WithLabelValues(plan, kind).Inc()
}

func (m *Metrics) Expired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SubscriptionsExpired.Add(float64(n))
}
