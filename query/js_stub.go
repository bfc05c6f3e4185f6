//go:build !js_eval

package query

// NewJSEvaluator returns nil unless the module is built with the js_eval tag.
func NewJSEvaluator(opts ...Option) Evaluator {
	_ = applyOptions(opts)
	return nil
}

func isJSEvaluator(Evaluator) bool {
	return false
}

func jsAvailable() bool {
	return false
}
