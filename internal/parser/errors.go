package parser

import "fmt"

// ParseError reports the first problem found while decoding tool output.
// Field is the dotted path from the document root, for example
// "changes.breakingChanges[2].severity", and is empty for syntax errors.
type ParseError struct {
	Field   string
	Value   any
	Message string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func errAt(path string, value any, format string, args ...any) *ParseError {
	return &ParseError{Field: path, Value: value, Message: fmt.Sprintf(format, args...)}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "number"
	}
}
