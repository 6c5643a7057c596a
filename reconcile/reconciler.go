// Package reconcile periodically loads the authoritative DomainConfig
// and drives every dependent supervisor's NotifyDomainConfiguration,
// plus the event bus (spec.md §4.3, §6). Grounded on the teacher's
// harpoon-scheduler/main.go wiring (newRegistry -> newTransformer ->
// newBasicScheduler) and transformer.go's poll-and-diff loop shape,
// generalized from "poll remote agents" to "poll a config source".
package reconcile

import (
	"encoding/json"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/audiocloud/domain-server/domainconfig"
	"github.com/audiocloud/domain-server/eventbus"
	"github.com/audiocloud/domain-server/store"
)

// Target is anything that reacts to a freshly-loaded DomainConfig.
// FixedInstancesSupervisor satisfies this; kept as a narrow interface
// rather than the concrete type so the reconciler never stores a
// handle it didn't need (spec.md §9).
type Target interface {
	NotifyDomainConfiguration(cfg domainconfig.DomainConfig)
}

// ModelStore persists the model spec of every configured instance,
// satisfied by *store.Store. Supplements spec.md §6 with
// original_source/.../db/models.rs's delete_all_models_except pruning:
// every reconciliation pass persists the current config's instances
// and drops any previously-stored model no longer referenced.
type ModelStore interface {
	SetModel(id store.ModelId, spec json.RawMessage) error
	DeleteAllModelsExcept(keep []store.ModelId) error
}

// Loader abstracts domainconfig.Load so tests can substitute an
// in-memory source.
type Loader func(sourceURI string) (domainconfig.DomainConfig, error)

// Reconciler polls a config source on an interval, and whenever the
// loaded snapshot differs from the last one applied, pushes it to
// every registered Target and publishes it on the event bus.
type Reconciler struct {
	sourceURI string
	interval  time.Duration
	loader    Loader
	targets   []Target
	bus       *eventbus.Bus
	models    ModelStore
	log       *zap.SugaredLogger

	reload chan chan error
	quit   chan chan struct{}
}

// Deps configures a Reconciler. Interval defaults to 10s when zero.
type Deps struct {
	SourceURI string
	Interval  time.Duration
	Loader    Loader
	Targets   []Target
	Bus       *eventbus.Bus
	Models    ModelStore
	Log       *zap.SugaredLogger
}

// New constructs a Reconciler and performs its first load synchronously
// so a misconfigured source aborts startup rather than the process
// coming up with no instances configured (spec.md §7 "Fatal
// conditions... config load failure aborts initialization").
func New(d Deps) (*Reconciler, error) {
	if d.Interval <= 0 {
		d.Interval = 10 * time.Second
	}
	if d.Loader == nil {
		d.Loader = domainconfig.Load
	}
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}
	r := &Reconciler{
		sourceURI: d.SourceURI,
		interval:  d.Interval,
		loader:    d.Loader,
		targets:   d.Targets,
		bus:       d.Bus,
		models:    d.Models,
		log:       d.Log,
		reload:    make(chan chan error),
		quit:      make(chan chan struct{}),
	}

	cfg, err := r.loader(r.sourceURI)
	if err != nil {
		return nil, err
	}
	r.apply(cfg)

	go r.loop(cfg)
	return r, nil
}

func (r *Reconciler) Stop() {
	q := make(chan struct{})
	r.quit <- q
	<-q
}

// Reload forces an out-of-band load, e.g. in response to a SIGHUP or
// an admin API call, returning the load error (if any) without waiting
// for the next tick.
func (r *Reconciler) Reload() error {
	c := make(chan error)
	r.reload <- c
	return <-c
}

func (r *Reconciler) loop(current domainconfig.DomainConfig) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cfg, err := r.loader(r.sourceURI)
			if err != nil {
				r.log.Errorw("reconciler: reloading config failed, keeping previous snapshot", "error", err)
				continue
			}
			if !sameConfig(current, cfg) {
				r.apply(cfg)
				current = cfg
			}

		case c := <-r.reload:
			cfg, err := r.loader(r.sourceURI)
			if err != nil {
				r.log.Errorw("reconciler: forced reload failed, keeping previous snapshot", "error", err)
				c <- err
				continue
			}
			if !sameConfig(current, cfg) {
				r.apply(cfg)
				current = cfg
			}
			c <- nil

		case q := <-r.quit:
			close(q)
			return
		}
	}
}

func (r *Reconciler) apply(cfg domainconfig.DomainConfig) {
	for _, t := range r.targets {
		t.NotifyDomainConfiguration(cfg)
	}
	if r.bus != nil {
		r.bus.Publish(eventbus.TopicDomainConfiguration, eventbus.NotifyDomainConfiguration{Config: cfg})
	}
	if r.models != nil {
		r.persistModels(cfg)
	}
}

// persistModels stores every configured instance's spec under its
// model id and prunes any model no longer referenced by the current
// config, mirroring db/models.rs's delete_all_models_except (run after
// every successful reload rather than only at startup).
func (r *Reconciler) persistModels(cfg domainconfig.DomainConfig) {
	keep := make([]store.ModelId, 0, len(cfg.Instances))
	for _, ic := range cfg.Instances {
		modelId := store.ModelId(ic.Model)
		keep = append(keep, modelId)
		spec, err := json.Marshal(ic)
		if err != nil {
			r.log.Errorw("reconciler: encoding instance config for model store", "model_id", modelId, "error", err)
			continue
		}
		if err := r.models.SetModel(modelId, spec); err != nil {
			r.log.Errorw("reconciler: persisting model failed", "model_id", modelId, "error", err)
		}
	}
	if err := r.models.DeleteAllModelsExcept(keep); err != nil {
		r.log.Errorw("reconciler: pruning stale models failed", "error", err)
	}
}

// sameConfig compares snapshots by value, ignoring where the config
// came from, so an unchanged file polled again doesn't trigger a
// pointless reconfiguration pass through every supervisor.
func sameConfig(a, b domainconfig.DomainConfig) bool {
	a.Source, b.Source = domainconfig.Source{}, domainconfig.Source{}
	return reflect.DeepEqual(a, b)
}
