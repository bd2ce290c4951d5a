package export

import "sync"

// WildcardSubType matches any sub-type for a (module, type) pair. Usage-log
// builders register under it because their sub-type is not discriminating.
const WildcardSubType = "*"

type (
	builderKey struct {
		module  Module
		typ     string
		subType string
	}

	// BuilderRegistry maps (module, type, subType) triples to report builders.
	// Lookup tries the exact triple first, then the sub-type wildcard.
	BuilderRegistry struct {
		mu       sync.RWMutex
		builders map[builderKey]ReportBuilder
	}

	// SinkRegistry maps delivery modes to sinks.
	SinkRegistry struct {
		mu    sync.RWMutex
		sinks map[Mode]DeliverySink
	}
)

// NewBuilderRegistry returns an empty builder registry.
func NewBuilderRegistry() *BuilderRegistry {
	return &BuilderRegistry{builders: make(map[builderKey]ReportBuilder)}
}

// Register binds a builder to a dispatch triple. Later registrations replace
// earlier ones; registration happens once at startup.
func (r *BuilderRegistry) Register(module Module, typ, subType string, b ReportBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[builderKey{module: module, typ: typ, subType: subType}] = b
}

// Lookup resolves the builder for a dispatch triple.
func (r *BuilderRegistry) Lookup(module Module, typ, subType string) (ReportBuilder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.builders[builderKey{module: module, typ: typ, subType: subType}]; ok {
		return b, true
	}
	b, ok := r.builders[builderKey{module: module, typ: typ, subType: WildcardSubType}]
	return b, ok
}

// NewSinkRegistry returns an empty sink registry.
func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{sinks: make(map[Mode]DeliverySink)}
}

// Register binds a sink to a delivery mode.
func (r *SinkRegistry) Register(mode Mode, s DeliverySink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[mode] = s
}

// Lookup resolves the sink for a delivery mode.
func (r *SinkRegistry) Lookup(mode Mode) (DeliverySink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sinks[mode]
	return s, ok
}
