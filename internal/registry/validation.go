package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Violation is a single schema failure.
type Violation struct {
	// Field is the JSON pointer of the offending value, "/" for the root.
	Field string `json:"field"`

	// Keyword is the schema keyword that failed, such as "required".
	Keyword string `json:"keyword,omitempty"`

	// Message is a human readable description.
	Message string `json:"message"`
}

// ValidationError reports arguments that do not satisfy a tool's schema.
type ValidationError struct {
	Tool       string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	return fmt.Sprintf("arguments for %s failed validation: %s", e.Tool, strings.Join(parts, "; "))
}

// Details returns the violations in the shape carried by a ValidationError
// failure result.
func (e *ValidationError) Details() map[string]any {
	errs := make([]any, 0, len(e.Violations))
	for _, v := range e.Violations {
		entry := map[string]any{"field": v.Field, "message": v.Message}
		if v.Keyword != "" {
			entry["keyword"] = v.Keyword
		}
		errs = append(errs, entry)
	}
	return map[string]any{"errors": errs}
}

// violations flattens the leaf causes of a jsonschema error.
func violations(verr *jsonschema.ValidationError) []Violation {
	var out []Violation
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			v := Violation{
				Field:   pointer(e.InstanceLocation),
				Message: e.ErrorKind.LocalizedString(printer),
			}
			if path := e.ErrorKind.KeywordPath(); len(path) > 0 {
				v.Keyword = path[len(path)-1]
			}
			out = append(out, v)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func pointer(loc []string) string {
	if len(loc) == 0 {
		return "/"
	}
	escaped := make([]string, len(loc))
	for i, tok := range loc {
		tok = strings.ReplaceAll(tok, "~", "~0")
		escaped[i] = strings.ReplaceAll(tok, "/", "~1")
	}
	return "/" + strings.Join(escaped, "/")
}
