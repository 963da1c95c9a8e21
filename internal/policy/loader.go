package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	internalerrors "github.com/jamesprial/mcp-tool-gateway/internal/errors"
)

// ErrInvalidPolicy indicates a policy document failed validation.
var ErrInvalidPolicy = errors.New("invalid policy")

// File is the YAML representation of a policy.
type File struct {
	Anonymous         *AnonymousFile `yaml:"anonymous"`
	NamespaceArgument string         `yaml:"namespaceArgument"`
	Rules             []RuleFile     `yaml:"rules"`
}

// AnonymousFile is the anonymous section of a policy file.
type AnonymousFile struct {
	Enabled bool   `yaml:"enabled"`
	Role    string `yaml:"role"`
}

// RuleFile grants every listed principal every listed tool pattern.
type RuleFile struct {
	Principals []string `yaml:"principals"`
	Tools      []string `yaml:"tools"`
	Namespaces []string `yaml:"namespaces"`
}

// Load reads and parses the policy file at path.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, internalerrors.New("policy", "Load", internalerrors.ErrConfig, err).
			WithContext("path", path)
	}
	p, err := Parse(data)
	if err != nil {
		var de *internalerrors.DomainError
		if errors.As(err, &de) {
			return nil, de.WithContext("path", path)
		}
		return nil, err
	}
	return p, nil
}

// Parse decodes a YAML policy document. Unknown fields are rejected.
func Parse(data []byte) (*Policy, error) {
	const op = "Parse"

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, internalerrors.New("policy", op, internalerrors.ErrConfig,
			fmt.Errorf("%w: %w", ErrInvalidPolicy, err))
	}

	p, err := f.Compile()
	if err != nil {
		return nil, internalerrors.New("policy", op, internalerrors.ErrConfig, err)
	}
	return p, nil
}

// Compile validates the file and expands each entry into one Rule per
// (principal, tool) pair.
func (f *File) Compile() (*Policy, error) {
	p := &Policy{NamespaceArgument: strings.TrimSpace(f.NamespaceArgument)}
	if p.NamespaceArgument == "" {
		p.NamespaceArgument = DefaultNamespaceArgument
	}
	if f.Anonymous != nil {
		p.Anonymous = Anonymous{Enabled: f.Anonymous.Enabled, Role: strings.TrimSpace(f.Anonymous.Role)}
		if p.Anonymous.Enabled && p.Anonymous.Role == "" {
			p.Anonymous.Role = DefaultAnonymousRole
		}
	}

	var problems []string
	for i, rf := range f.Rules {
		if len(rf.Principals) == 0 {
			problems = append(problems, fmt.Sprintf("rules[%d]: principals must not be empty", i))
		}
		if len(rf.Tools) == 0 {
			problems = append(problems, fmt.Sprintf("rules[%d]: tools must not be empty", i))
		}
		if rf.Namespaces != nil && len(rf.Namespaces) == 0 {
			problems = append(problems, fmt.Sprintf("rules[%d]: namespaces must be omitted or non-empty", i))
		}
		for _, pr := range rf.Principals {
			if strings.TrimSpace(pr) == "" {
				problems = append(problems, fmt.Sprintf("rules[%d]: empty principal", i))
			}
		}
		for _, tp := range rf.Tools {
			if err := validatePattern(tp); err != nil {
				problems = append(problems, fmt.Sprintf("rules[%d]: tool %q: %v", i, tp, err))
			}
		}
		for _, ns := range rf.Namespaces {
			if err := validateWildcard(ns); err != nil {
				problems = append(problems, fmt.Sprintf("rules[%d]: namespace %q: %v", i, ns, err))
			}
		}

		var namespaces []string
		if rf.Namespaces != nil {
			namespaces = append([]string(nil), rf.Namespaces...)
		}
		for _, pr := range rf.Principals {
			for _, tp := range rf.Tools {
				p.Rules = append(p.Rules, Rule{
					RoleOrUser:        strings.TrimSpace(pr),
					ToolPattern:       tp,
					AllowedNamespaces: namespaces,
				})
			}
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(problems, "; "))
	}
	return p, nil
}

func validatePattern(pattern string) error {
	if tag, ok := strings.CutPrefix(pattern, CapabilityPrefix); ok {
		if tag == "" || strings.Contains(tag, "*") {
			return fmt.Errorf("capability tag must be a non-empty literal")
		}
		return nil
	}
	return validateWildcard(pattern)
}

func validateWildcard(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("must not be empty")
	}
	if i := strings.Index(pattern, "*"); i >= 0 && i != len(pattern)-1 {
		return fmt.Errorf("wildcard is only allowed as the final character")
	}
	return nil
}
