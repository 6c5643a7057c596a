package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/streadway/handy/report"

	"github.com/audiocloud/domain-server/fixedinstances"
	"github.com/audiocloud/domain-server/instrumentation"
	"github.com/audiocloud/domain-server/tasks"
)

// newOpsServer builds the ops HTTP surface: /healthz and /metrics.
// Grounded on the teacher's harpoon-scheduler/main.go (httprouter +
// streadway/handy/report request logging); the REST API's business
// logic stays out of scope per spec.md §1, so this is deliberately the
// only HTTP surface in the repository.
func newOpsServer(listen string, metrics *instrumentation.Registry, instances *fixedinstances.Supervisor, tasksSupervisor *tasks.Supervisor) *http.Server {
	router := httprouter.New()
	router.GET("/healthz", noParams(report.JSON(opsLogWriter{}, handleHealthz(instances, tasksSupervisor))))
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())

	return &http.Server{Addr: listen, Handler: router}
}

func noParams(h http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}

type healthResponse struct {
	InstancesConfigured int `json:"instances_configured"`
	TasksActive         int `json:"tasks_active"`
}

func handleHealthz(instances *fixedinstances.Supervisor, tasksSupervisor *tasks.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{
			InstancesConfigured: len(instances.ListInstances()),
			TasksActive:         len(tasksSupervisor.ListTasks()),
		})
	}
}

type opsLogWriter struct{}

func (opsLogWriter) Write(p []byte) (int, error) {
	log.Print(string(p))
	return len(p), nil
}
