package layerdoc

import (
	"github.com/goliatone/go-layerdoc/pkg/activity"
	"github.com/goliatone/go-layerdoc/query"
	"github.com/goliatone/go-layerdoc/undo"
	"github.com/rs/zerolog"
)

// Option configures a Document.
type Option func(*documentConfig)

type documentConfig struct {
	logger        zerolog.Logger
	stack         *undo.Stack
	confirm       ConfirmFunc
	evaluator     query.Evaluator
	programCache  query.ProgramCache
	functions     *query.FunctionRegistry
	evalLogger    query.Logger
	activityHooks activity.Hooks
	activityCfg   *activity.Config
	id            string
}

func applyOptions(opts []Option) documentConfig {
	cfg := documentConfig{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger sets the document logger. Registered items log through it.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *documentConfig) {
		cfg.logger = logger
	}
}

// WithUndoStack shares an existing undo stack instead of creating one.
func WithUndoStack(stack *undo.Stack) Option {
	return func(cfg *documentConfig) {
		cfg.stack = stack
	}
}

// WithConfirm installs the callback consulted before destructive commands.
// Without one every confirmation is granted.
func WithConfirm(fn ConfirmFunc) Option {
	return func(cfg *documentConfig) {
		cfg.confirm = fn
	}
}

// WithDocumentID pins the document uuid instead of generating one.
func WithDocumentID(id string) Option {
	return func(cfg *documentConfig) {
		cfg.id = id
	}
}

// WithEvaluator sets the engine behind Query. The expr engine is used by
// default.
func WithEvaluator(e query.Evaluator) Option {
	return func(cfg *documentConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache shares compiled query programs across documents.
func WithProgramCache(cache query.ProgramCache) Option {
	return func(cfg *documentConfig) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes registry to queries through call(name, ...).
func WithFunctionRegistry(registry *query.FunctionRegistry) Option {
	return func(cfg *documentConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn for queries under name, next to the
// drawing helpers of query.NewDrawingRegistry.
func WithCustomFunction(name string, fn query.Function) Option {
	return func(cfg *documentConfig) {
		if cfg.functions == nil {
			cfg.functions = query.NewDrawingRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithEvaluatorLogger records every query evaluation.
func WithEvaluatorLogger(logger query.Logger) Option {
	return func(cfg *documentConfig) {
		cfg.evalLogger = logger
	}
}

// WithActivityHooks reports undo traffic and layer activation to hooks.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Compact()
	return func(cfg *documentConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig overrides the activity channel and actor defaults.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *documentConfig) {
		c := config
		cfg.activityCfg = &c
	}
}

func (cfg documentConfig) emitter() *activity.Emitter {
	if len(cfg.activityHooks) == 0 {
		return nil
	}
	config := activity.Config{Enabled: true}
	if cfg.activityCfg != nil {
		config = *cfg.activityCfg
	}
	return activity.NewEmitter(cfg.activityHooks, config)
}

func (cfg documentConfig) queryEvaluator() query.Evaluator {
	if cfg.evaluator != nil {
		return cfg.evaluator
	}
	var opts []query.Option
	if cfg.programCache != nil {
		opts = append(opts, query.WithProgramCache(cfg.programCache))
	}
	functions := cfg.functions
	if functions == nil {
		functions = query.NewDrawingRegistry()
	}
	opts = append(opts, query.WithFunctionRegistry(functions))
	return query.NewExprEvaluator(opts...)
}

// ConfirmAction names the destructive operation awaiting confirmation.
type ConfirmAction string

const (
	ConfirmDeleteTag    ConfirmAction = "delete-tag"
	ConfirmRemoveLayers ConfirmAction = "remove-layers"
)

// Confirmation describes a pending destructive operation.
type Confirmation struct {
	Action  ConfirmAction
	Message string
	// Count is the number of affected items or overrides.
	Count int
}

// ConfirmFunc grants (true) or denies (false) a destructive operation.
type ConfirmFunc func(Confirmation) bool
