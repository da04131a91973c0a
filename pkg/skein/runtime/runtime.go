// Package runtime assembles the reactive runtime: one evaluation
// queue, one event queue, a shared path-id allocator and any number of
// indexers, threaded to every component by construction so tests can
// instantiate a fresh runtime per case.
package runtime

import (
	"time"

	"github.com/wayneeseguin/skein/internal/config"
	"github.com/wayneeseguin/skein/log"
	"github.com/wayneeseguin/skein/pkg/skein"
	"github.com/wayneeseguin/skein/pkg/skein/eval"
	"github.com/wayneeseguin/skein/pkg/skein/event"
	"github.com/wayneeseguin/skein/pkg/skein/indexer"
)

// Runtime is the aggregate context of one reactive system instance.
type Runtime struct {
	cfg *config.Config

	Eval        *eval.Queue
	Events      *event.Queue
	Paths       *indexer.PathIDAllocator
	Compression *indexer.CompressionRegistry
	Metrics     *skein.MetricsRegistry

	indexers []*indexer.Indexer
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	cfg   *config.Config
	areas *event.AreaRegistry
}

// WithConfig sets the runtime configuration.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithProfile loads a named configuration profile.
func WithProfile(name string) Option {
	return func(o *options) {
		cfg, err := config.LoadProfile(name)
		if err != nil {
			log.PrintfStdErr("%s; using defaults\n", err)
			return
		}
		o.cfg = cfg
	}
}

// WithAreaRegistry shares an existing area registry.
func WithAreaRegistry(areas *event.AreaRegistry) Option {
	return func(o *options) { o.areas = areas }
}

// New creates a runtime.
func New(opts ...Option) *Runtime {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
		o.cfg.ApplyEnv()
	}

	metrics := skein.NewMetricsRegistry()
	r := &Runtime{
		cfg:         o.cfg,
		Eval:        eval.NewQueue(o.cfg, metrics),
		Events:      event.NewQueue(o.cfg, o.areas, metrics),
		Paths:       indexer.NewPathIDAllocator(),
		Compression: indexer.NewCompressionRegistry(),
		Metrics:     metrics,
	}
	return r
}

// Config returns the runtime configuration.
func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// NewIndexer creates an indexer sharing the runtime's allocator and
// compression registry, and hooks its epilogue flush into the
// evaluation queue's step boundaries.
func (r *Runtime) NewIndexer() *indexer.Indexer {
	ix := indexer.NewIndexer(r.Paths, r.Compression, r.cfg, r.Metrics)
	r.indexers = append(r.indexers, ix)
	r.Eval.RegisterStepBoundaryHook(ix.Flush)
	return ix
}

// Indexers returns the runtime's indexers.
func (r *Runtime) Indexers() []*indexer.Indexer {
	return r.indexers
}

// Run drives the system until quiescent: the event queue drains, the
// evaluation queue runs to completion, indexer epilogues flush, and
// the cycle boundary is marked. Returns false when the evaluation
// slice budget ran out before quiescence.
func (r *Runtime) Run(deadline time.Time) bool {
	for {
		r.Events.ProcessEvents()
		if !r.Eval.RunQueue(0, deadline) {
			return false
		}
		for _, ix := range r.indexers {
			ix.Flush()
		}
		if r.Events.Len() == 0 && r.Eval.NrScheduled() == 0 {
			break
		}
	}
	r.Eval.MarkEndOfEvaluationMoment()
	return true
}
