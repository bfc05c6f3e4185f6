package query

// Option configures an evaluator.
type Option func(*engineConfig)

type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// WithProgramCache caches compiled programs in cache.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes the functions of registry. The registry is
// copied, later registrations do not leak into the evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *engineConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyOptions(opts []Option) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg engineConfig) callHelper() func(name string, arguments ...any) (any, error) {
	return func(name string, arguments ...any) (any, error) {
		return cfg.registry.Call(name, arguments...)
	}
}
