// Package registry holds the gateway's tool descriptors.
//
// A Registry is populated during startup with Register and then sealed. Once
// sealed it is read-only, so Lookup and List take no locks and are safe to
// call from any number of request goroutines.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
	internalerrors "github.com/jamesprial/mcp-tool-gateway/internal/errors"
)

// Sentinel errors returned (wrapped in a DomainError of kind ErrConfig) by Register.
var (
	// ErrDuplicateTool indicates a tool with the same name is already registered.
	ErrDuplicateTool = errors.New("duplicate tool")

	// ErrInvalidSchema indicates the tool's input schema failed self-validation.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrInvalidDescriptor indicates a descriptor is missing its name or handler.
	ErrInvalidDescriptor = errors.New("invalid tool descriptor")

	// ErrRegistrySealed indicates Register was called after Seal.
	ErrRegistrySealed = errors.New("registry sealed")
)

var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

// CallContext is the per-request context handed to a tool handler.
type CallContext struct {
	// RequestID correlates the call across logs, traces and the response.
	RequestID string

	// Claims are the verified token claims of the caller.
	Claims *auth.Claims
}

// Handler executes a tool. Handlers must honour ctx cancellation.
type Handler func(ctx context.Context, args map[string]any, call CallContext) (map[string]any, error)

// Descriptor describes a tool at registration time.
type Descriptor struct {
	// Name is the unique tool name clients call.
	Name string

	// Description explains what the tool does.
	Description string

	// InputSchema is a JSON Schema for the arguments object. A nil schema
	// accepts any object.
	InputSchema map[string]any

	// RequiredCapability is a logical permission tag policy rules may refer
	// to as "capability:<tag>".
	RequiredCapability string

	// Timeout overrides the dispatcher's default handler budget when positive.
	Timeout time.Duration

	// Handler runs the tool.
	Handler Handler
}

// Tool is an immutable registered tool with its compiled schema.
type Tool struct {
	name               string
	description        string
	inputSchema        map[string]any
	requiredCapability string
	timeout            time.Duration
	handler            Handler
	schema             *jsonschema.Schema
}

// Name returns the tool name.
func (t *Tool) Name() string { return t.name }

// Description returns the tool description.
func (t *Tool) Description() string { return t.description }

// RequiredCapability returns the capability tag, which may be empty.
func (t *Tool) RequiredCapability() string { return t.requiredCapability }

// Timeout returns the per-tool handler timeout, or zero for the default.
func (t *Tool) Timeout() time.Duration { return t.timeout }

// Handler returns the tool's handler.
func (t *Tool) Handler() Handler { return t.handler }

// InputSchema returns a copy of the tool's input schema for client discovery.
func (t *Tool) InputSchema() map[string]any {
	return cloneMap(t.inputSchema)
}

// ValidateArguments checks args against the tool's input schema. A failure is
// returned as a *ValidationError.
func (t *Tool) ValidateArguments(args map[string]any) error {
	inst, err := normalize(args)
	if err != nil {
		return &ValidationError{
			Tool:       t.name,
			Violations: []Violation{{Field: "/", Keyword: "type", Message: "arguments are not JSON encodable"}},
		}
	}
	if err := t.schema.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &ValidationError{Tool: t.name, Violations: violations(verr)}
		}
		return &ValidationError{
			Tool:       t.name,
			Violations: []Violation{{Field: "/", Message: err.Error()}},
		}
	}
	return nil
}

// Registry maps tool names to tools.
type Registry struct {
	mu     sync.Mutex
	sealed atomic.Bool
	tools  map[string]*Tool
}

// New creates an empty, unsealed registry.
func New() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register compiles the descriptor's schema and adds the tool.
func (r *Registry) Register(d Descriptor) error {
	const op = "Register"

	if r.sealed.Load() {
		return newConfigError(op, ErrRegistrySealed, d.Name)
	}
	if !toolNamePattern.MatchString(d.Name) {
		return newConfigError(op, fmt.Errorf("%w: name %q must match %s", ErrInvalidDescriptor, d.Name, toolNamePattern), d.Name)
	}
	if d.Handler == nil {
		return newConfigError(op, fmt.Errorf("%w: handler is required", ErrInvalidDescriptor), d.Name)
	}

	schema, err := compileSchema(d.Name, d.InputSchema)
	if err != nil {
		return newConfigError(op, fmt.Errorf("%w: %w", ErrInvalidSchema, err), d.Name)
	}

	tool := &Tool{
		name:               d.Name,
		description:        d.Description,
		inputSchema:        schemaDocument(d.InputSchema),
		requiredCapability: d.RequiredCapability,
		timeout:            d.Timeout,
		handler:            d.Handler,
		schema:             schema,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return newConfigError(op, ErrRegistrySealed, d.Name)
	}
	if _, exists := r.tools[d.Name]; exists {
		return newConfigError(op, ErrDuplicateTool, d.Name)
	}
	r.tools[d.Name] = tool
	return nil
}

// MustRegister registers every descriptor and panics on the first error.
func (r *Registry) MustRegister(descriptors ...Descriptor) {
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Seal ends the registration phase. It is idempotent.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed.Store(true)
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	if !r.sealed.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []*Tool {
	if !r.sealed.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	tools := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].name < tools[j].name })
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if !r.sealed.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	return len(r.tools)
}

func compileSchema(name string, doc map[string]any) (*jsonschema.Schema, error) {
	inst, err := normalize(schemaDocument(doc))
	if err != nil {
		return nil, err
	}
	if _, ok := inst.(map[string]any); !ok {
		return nil, fmt.Errorf("schema must be a JSON object")
	}

	url := name + ".schema.json"
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	if err := c.AddResource(url, inst); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// schemaDocument substitutes the permissive object schema for nil.
func schemaDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return map[string]any{"type": "object"}
	}
	return doc
}

// normalize round-trips v through JSON so Go-typed literals (ints, typed
// slices, structs) become the generic values the schema engine expects.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

func cloneMap(m map[string]any) map[string]any {
	b, err := json.Marshal(m)
	if err != nil {
		return m
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return m
	}
	return out
}

func newConfigError(op string, err error, tool string) error {
	return internalerrors.New("registry", op, internalerrors.ErrConfig, err).
		WithContext("tool", tool)
}
