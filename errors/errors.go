// Package errors provides a structured error type for every component of the
// simulator: effect engine, agent runner, simulator, policy agent,
// intervention runner, and forecast resolver all raise *SimError so callers
// can branch on Code rather than matching on message text.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCode categorizes the error types raised across the simulator.
type ErrorCode string

const (
	// Configuration errors (fail fast at load time).
	CodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	CodeDuplicateAgent   ErrorCode = "DUPLICATE_AGENT"
	CodeDanglingRef      ErrorCode = "DANGLING_REFERENCE"
	CodeUnknownItem      ErrorCode = "UNKNOWN_ITEM"

	// LLM invocation errors.
	CodeLLMRequest  ErrorCode = "LLM_REQUEST"
	CodeLLMTimeout  ErrorCode = "LLM_TIMEOUT"
	CodeLLMRateLimit ErrorCode = "LLM_RATE_LIMIT"
	CodeLLMParse    ErrorCode = "LLM_PARSE"
	CodeLLMResponse ErrorCode = "LLM_RESPONSE"

	// Cost-limit errors.
	CodeCostLimitExceeded ErrorCode = "COST_LIMIT_EXCEEDED"

	// Agent runner errors (recovered locally with a no_action fallback).
	CodeAgentAction ErrorCode = "AGENT_ACTION"

	// Policy agent / forecast resolver errors (propagated to the caller).
	CodePolicyFailed     ErrorCode = "POLICY_FAILED"
	CodeForecastMismatch ErrorCode = "FORECAST_MISMATCH"
	CodeResolutionFailed ErrorCode = "RESOLUTION_FAILED"

	// Simulator errors.
	CodeUnknownAction ErrorCode = "UNKNOWN_ACTION"

	// General.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StackFrame is a single captured frame in a SimError's creation stack.
type StackFrame struct {
	File     string
	Line     int
	Function string
}

// SimError is the structured error type used across the simulator.
type SimError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Component string
	Context   map[string]interface{}
	Cause     error
	Stack     []StackFrame
}

func (e *SimError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s]", e.Code))
	if e.Component != "" {
		sb.WriteString(fmt.Sprintf(" [%s]", e.Component))
	}
	if e.Operation != "" {
		sb.WriteString(fmt.Sprintf(" operation=%s", e.Operation))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if len(e.Context) > 0 {
		sb.WriteString(" (")
		first := true
		for k, v := range e.Context {
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		sb.WriteString(")")
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return sb.String()
}

// Unwrap supports errors.Is/errors.As through the cause chain.
func (e *SimError) Unwrap() error { return e.Cause }

// Is compares two SimErrors by code.
func (e *SimError) Is(target error) bool {
	t, ok := target.(*SimError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a SimError with the given code and message.
func New(code ErrorCode, message string) *SimError {
	return &SimError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
		Stack:   captureStack(2),
	}
}

// Newf creates a SimError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *SimError {
	return &SimError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Context: make(map[string]interface{}),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error, preserving it as Cause.
func Wrap(err error, code ErrorCode, message string) *SimError {
	if err == nil {
		return nil
	}
	return &SimError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// WithOperation sets the operation that was being attempted.
func (e *SimError) WithOperation(op string) *SimError {
	e.Operation = op
	return e
}

// WithComponent sets the component that raised the error.
func (e *SimError) WithComponent(component string) *SimError {
	e.Component = component
	return e
}

// WithContext attaches a single key/value pair of structured context.
func (e *SimError) WithContext(key string, value interface{}) *SimError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Code extracts the ErrorCode from any error, defaulting to CodeInternal.
func Code(err error) ErrorCode {
	var se *SimError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// HasCode reports whether err (or a wrapped cause) carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return Code(err) == code
}

func captureStack(skip int) []StackFrame {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+1, pcs)

	frames := make([]StackFrame, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callersFrames.Next()
		frames = append(frames, StackFrame{File: frame.File, Line: frame.Line, Function: frame.Function})
		if !more {
			break
		}
	}
	return frames
}
