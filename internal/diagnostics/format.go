package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"
)

// stackTracer is implemented by errors that carry their own stack.
type stackTracer interface {
	Stack() string
}

// namedError lets an error choose the name written to the trail.
type namedError interface {
	Name() string
}

func formatInit(ts string, debugMode bool) string {
	line := ts + " - Logger initialized"
	if debugMode {
		line += " in debug mode"
	}
	return line
}

func formatTrace(ts, message string, data any) string {
	entry := ts + " - " + message
	if data != nil {
		entry += "\n" + dump(data)
	}
	return entry
}

func formatError(ts, message string, value any) string {
	entry := ts + " - ERROR: " + message
	if isNil(value) {
		return entry
	}

	if err, ok := value.(error); ok {
		return entry + fmt.Sprintf("\nName: %s\nMessage: %s\nStack: %s",
			errorName(err), err.Error(), errorStack(err))
	}

	return entry + "\n" + dump(value)
}

// isNil also catches typed nils, whose methods may dereference the receiver.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	switch rv := reflect.ValueOf(value); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func errorName(err error) string {
	var named namedError
	if errors.As(err, &named) {
		return named.Name()
	}
	return fmt.Sprintf("%T", err)
}

func errorStack(err error) string {
	var tracer stackTracer
	if errors.As(err, &tracer) {
		if s := strings.TrimSpace(tracer.Stack()); s != "" {
			return s
		}
	}
	return strings.TrimSpace(string(debug.Stack()))
}

func dump(data any) string {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", data)
	}
	return string(out)
}
