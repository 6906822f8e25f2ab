package stats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	contractx "github.com/Nicolassaint/grist-ai-api/agent/contract"
)

var (
	agentInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gristai_agent_invocations_total",
			Help: "Total number of completed agent invocations.",
		},
		[]string{"agent"},
	)

	agentErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gristai_agent_errors_total",
			Help: "Total number of failed agent invocations.",
		},
		[]string{"agent"},
	)

	agentLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gristai_agent_latency_seconds",
			Help:    "Agent invocation latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)
)

func init() {
	prometheus.MustRegister(agentInvocationsTotal, agentErrorsTotal, agentLatencySeconds)
}

// AgentUsage holds the per-agent counters of the stats query.
type AgentUsage struct {
	Invocations      uint64 `json:"invocations"`
	Errors           uint64 `json:"errors"`
	TotalLatencyMsec int64  `json:"total_latency_ms"`
}

// Snapshot is a point-in-time copy of the process-wide usage counters.
type Snapshot struct {
	TotalRequests  uint64                `json:"total_requests"`
	Errors         uint64                `json:"errors"`
	IntentUsage    map[string]uint64     `json:"intent_usage"`
	MostUsedIntent string                `json:"most_used_intent"`
	Agents         map[string]AgentUsage `json:"agents"`
}

// Registry is the only mutable state shared across concurrent workflows.
// Counters are initialized at process start, incremented under the mutex by
// every completed agent invocation, and never reset.
type Registry struct {
	mu            sync.Mutex
	totalRequests uint64
	errors        uint64
	intentUsage   map[contractx.Intent]uint64
	agents        map[string]*AgentUsage
}

func NewRegistry() *Registry {
	return &Registry{
		intentUsage: map[contractx.Intent]uint64{
			contractx.IntentGeneric:     0,
			contractx.IntentDataRequest: 0,
		},
		agents: make(map[string]*AgentUsage),
	}
}

// RecordRequest counts one inbound chat request.
func (r *Registry) RecordRequest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalRequests++
}

// RecordIntent counts a routing decision.
func (r *Registry) RecordIntent(intent contractx.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intentUsage[intent]++
}

// RecordError counts a request that ended in a top-level failure response.
func (r *Registry) RecordError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

// RecordInvocation counts one terminal agent invocation with its latency.
// SQLAgent calls this once per outcome, not once per generation attempt.
func (r *Registry) RecordInvocation(agent string, latency time.Duration, failed bool) {
	agentInvocationsTotal.WithLabelValues(agent).Inc()
	agentLatencySeconds.WithLabelValues(agent).Observe(latency.Seconds())
	if failed {
		agentErrorsTotal.WithLabelValues(agent).Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	usage, ok := r.agents[agent]
	if !ok {
		usage = &AgentUsage{}
		r.agents[agent] = usage
	}
	usage.Invocations++
	usage.TotalLatencyMsec += latency.Milliseconds()
	if failed {
		usage.Errors++
	}
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		TotalRequests:  r.totalRequests,
		Errors:         r.errors,
		IntentUsage:    make(map[string]uint64, len(r.intentUsage)),
		MostUsedIntent: "none",
		Agents:         make(map[string]AgentUsage, len(r.agents)),
	}

	var best uint64
	for intent, count := range r.intentUsage {
		snap.IntentUsage[string(intent)] = count
		if count > best {
			best = count
			snap.MostUsedIntent = string(intent)
		}
	}
	for name, usage := range r.agents {
		snap.Agents[name] = *usage
	}
	return snap
}
