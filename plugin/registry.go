package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallnest/kernelplugins/log"
)

var (
	invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kernelplugins_invocations_total",
			Help: "Total plugin function invocations",
		},
		[]string{"plugin", "function", "status"},
	)

	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kernelplugins_invocation_duration_seconds",
			Help:    "Plugin function invocation duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"plugin", "function"},
	)
)

func init() {
	prometheus.MustRegister(invocations, invocationDuration)
}

// Registry maps plugin names to plugins. It is filled once at startup and
// read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	order   []string
	logger  log.Logger
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for registration and invocation events.
func WithRegistryLogger(l log.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		plugins: make(map[string]Plugin),
		logger:  log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds p. Names must be unique.
func (r *Registry) Register(p Plugin) error {
	if p == nil || p.Name() == "" {
		return errors.New("plugin must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, ok := r.plugins[name]; ok {
		return fmt.Errorf("plugin %q already registered", name)
	}
	r.plugins[name] = p
	r.order = append(r.order, name)
	r.logger.Info("registered plugin %s with %d functions", name, len(p.Functions()))
	return nil
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Names returns the registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Invoke runs function fn of plugin name with args. It never panics and
// never returns a Go error: unknown names, handler panics and handler
// failures all come back as failed Results.
func (r *Registry) Invoke(ctx context.Context, name, fn string, args Args) (res Result) {
	p, ok := r.Get(name)
	if !ok {
		return Fail(Invalid("unknown plugin %q", name))
	}
	f, ok := Lookup(p, fn)
	if !ok {
		return Fail(Invalid("plugin %q has no function %q", name, fn))
	}

	start := time.Now()
	defer func() {
		status := "success"
		if rec := recover(); rec != nil {
			r.logger.Error("plugin %s.%s panicked: %v", name, fn, rec)
			res = Fail(fmt.Errorf("internal error: %s.%s panicked: %v", name, fn, rec))
			status = "panic"
		} else if !res.Success {
			status = string(res.Kind)
		}
		invocations.WithLabelValues(name, fn, status).Inc()
		invocationDuration.WithLabelValues(name, fn).Observe(time.Since(start).Seconds())
	}()

	r.logger.Debug("invoking %s.%s", name, fn)
	res = f.Call(ctx, args)
	if !res.Success {
		r.logger.Warn("%s.%s failed: %s", name, fn, res.Error)
	}
	return res
}

// Close closes every registered plugin that implements io.Closer.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.order {
		if c, ok := r.plugins[name].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
