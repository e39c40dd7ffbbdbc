package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eks_containment"

var (
	// RunsTotal counts finished runs by mode and reported status
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Containment runs by mode and status.",
	}, []string{"mode", "status"})

	// APIRequestsTotal counts control-plane calls; code is "error" for transport failures
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "kube_api_requests_total",
		Help:      "Kubernetes API requests by method and response code.",
	}, []string{"method", "code"})

	// AuthenticationAttemptsTotal counts probe results per signing strategy
	AuthenticationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authentication_attempts_total",
		Help:      "Bearer token probe attempts by signing strategy and result.",
	}, []string{"strategy", "result"})

	// ContainmentActionsTotal counts individual mutations applied to the cluster
	ContainmentActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "containment_actions_total",
		Help:      "Containment mutations by action.",
	}, []string{"action"})
)

// RecordAPIRequest records a control-plane call. A zero code means the request
// never produced a response.
func RecordAPIRequest(method string, code int) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	APIRequestsTotal.WithLabelValues(method, label).Inc()
}

func RecordAuthentication(strategy string, accepted bool) {
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	AuthenticationAttemptsTotal.WithLabelValues(strategy, result).Inc()
}

func RecordRun(mode, status string) {
	RunsTotal.WithLabelValues(mode, status).Inc()
}

func RecordAction(action string) {
	ContainmentActionsTotal.WithLabelValues(action).Inc()
}
