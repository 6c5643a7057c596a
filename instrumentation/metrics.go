// Package instrumentation holds the process-wide counters exposed over
// both prometheus and expvar, grounded line-for-line on the teacher's
// harpoon-scheduler/instrumentation.go (paired expvar + prometheus
// counters, incXxx(n int) helpers), generalized onto the domain
// server's own counter set.
package instrumentation

import (
	"expvar"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eParameterPushes  = expvar.NewInt("parameter_pushes")
	ePlayStatePushes  = expvar.NewInt("play_state_pushes")
	eDriverReconnects = expvar.NewInt("driver_reconnects")
	ePacketsFlushed   = expvar.NewInt("packets_flushed")
	eTasksCreated     = expvar.NewInt("tasks_created")
	eTasksDeleted     = expvar.NewInt("tasks_deleted")
)

var (
	pParameterPushes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "audiocloud",
		Subsystem: "domain",
		Name:      "instance_parameter_pushes_total",
		Help:      "Number of parameter pushes sent to fixed instance drivers.",
	})
	pPlayStatePushes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "audiocloud",
		Subsystem: "domain",
		Name:      "instance_play_state_pushes_total",
		Help:      "Number of desired play state pushes sent to fixed instance drivers.",
	})
	pDriverReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "audiocloud",
		Subsystem: "domain",
		Name:      "instance_driver_reconnects_total",
		Help:      "Number of times a fixed instance's driver event stream was re-established.",
	})
	pPacketsFlushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "audiocloud",
		Subsystem: "domain",
		Name:      "task_packets_flushed_total",
		Help:      "Number of streaming packets flushed from task actors.",
	})
	pTasksCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "audiocloud",
		Subsystem: "domain",
		Name:      "tasks_created_total",
		Help:      "Number of tasks created.",
	})
	pTasksDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "audiocloud",
		Subsystem: "domain",
		Name:      "tasks_deleted_total",
		Help:      "Number of tasks deleted.",
	})
)

// Registry bundles the prometheus registration the teacher never
// actually performed (harpoon-scheduler builds counters but never
// registers or serves them); added here because the ops endpoint in
// cmd/domaind needs somewhere real to register against.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry constructs a Registry with every counter above
// registered, so a single /metrics handler serves them all.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		pParameterPushes,
		pPlayStatePushes,
		pDriverReconnects,
		pPacketsFlushed,
		pTasksCreated,
		pTasksDeleted,
	)
	return &Registry{reg: reg}
}

// Handler serves the registered counters in the prometheus text
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func IncParameterPushes(n int)  { eParameterPushes.Add(int64(n)); pParameterPushes.Add(float64(n)) }
func IncPlayStatePushes(n int)  { ePlayStatePushes.Add(int64(n)); pPlayStatePushes.Add(float64(n)) }
func IncDriverReconnects(n int) { eDriverReconnects.Add(int64(n)); pDriverReconnects.Add(float64(n)) }
func IncPacketsFlushed(n int)   { ePacketsFlushed.Add(int64(n)); pPacketsFlushed.Add(float64(n)) }
func IncTasksCreated(n int)     { eTasksCreated.Add(int64(n)); pTasksCreated.Add(float64(n)) }
func IncTasksDeleted(n int)     { eTasksDeleted.Add(int64(n)); pTasksDeleted.Add(float64(n)) }
