package query

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError decorates an engine error with the expression and the
// subject it ran against.
type EvaluationError struct {
	Engine  string
	Expr    string
	Subject string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	expr := "expr=<empty>"
	if e.Expr != "" {
		expr = fmt.Sprintf("expr=%q", e.Expr)
	}
	return fmt.Sprintf("query: %s evaluator %s subject=%s: %v", e.Engine, expr, e.Subject, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "query:") {
		return err
	}
	return fmt.Errorf("query: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, subject string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Subject == "" {
			evalErr.Subject = subject
		}
		return evalErr
	}
	return &EvaluationError{Engine: engine, Expr: expr, Subject: subject, Err: err}
}
