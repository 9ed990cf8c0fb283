package engine

import "fmt"

// ErrorCode tags a routing failure. Errors are values the caller inspects,
// never control flow inside the engine.
type ErrorCode string

const (
	// CodeNotInitialized: a query arrived before Initialize completed.
	CodeNotInitialized ErrorCode = "not-initialized"

	// CodeNoDoor: an endpoint sits in a private room with no usable door.
	CodeNoDoor ErrorCode = "no-door"

	// CodeNoPath: the graph holds no route between any candidate pair.
	CodeNoPath ErrorCode = "no-path"

	// CodeBlocked: no candidate connector cleared even after every fallback.
	CodeBlocked ErrorCode = "blocked"
)

// RouteError is a tagged routing failure with a human-readable message.
type RouteError struct {
	Code    ErrorCode
	Message string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func routeErrorf(code ErrorCode, format string, args ...any) *RouteError {
	return &RouteError{Code: code, Message: fmt.Sprintf(format, args...)}
}
