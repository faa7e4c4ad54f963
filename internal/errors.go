package internal

import "fmt"

// ParseError means an evaluator payload could not be mapped onto the rubric.
// It is fatal to the pass that produced it and is never retried.
type ParseError struct {
	Judge  string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse failure (%s): %s: %v", e.Judge, e.Detail, e.Err)
	}
	return fmt.Sprintf("parse failure (%s): %s", e.Judge, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExternalCallError wraps a timeout, network, or rate-limit failure from an
// external collaborator. It aborts the controller invocation that hit it.
type ExternalCallError struct {
	Op  string
	Err error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("external call failed (%s): %v", e.Op, e.Err)
}

func (e *ExternalCallError) Unwrap() error { return e.Err }

// ConfigError reports an invalid configuration. It is raised once at engine
// construction; no evaluation runs against a bad configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}
