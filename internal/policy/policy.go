// Package policy evaluates tool-call authorization.
//
// Evaluation is deny-by-default: a call is allowed only when some Rule names
// the caller (by subject or role), matches the tool, and, if the rule lists
// namespaces, admits the call's namespace argument. There are no deny rules.
package policy

import (
	"fmt"
	"strings"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth"
)

const (
	// AnyPrincipal as a rule's RoleOrUser matches every authenticated caller.
	AnyPrincipal = "*"

	// CapabilityPrefix marks a tool pattern that matches on the tool's
	// required capability instead of its name.
	CapabilityPrefix = "capability:"

	// DefaultNamespaceArgument is the argument checked against AllowedNamespaces.
	DefaultNamespaceArgument = "namespace"

	// DefaultAnonymousRole is assigned to role-less callers when anonymous
	// access is enabled without an explicit role.
	DefaultAnonymousRole = "anonymous"
)

// Deny reasons.
const (
	ReasonNoMatchingRule   = "no matching rule"
	ReasonNamespaceMissing = "namespace argument required"
	ReasonNamespaceDenied  = "namespace not allowed"
)

// Rule grants a principal access to tools matching a pattern.
type Rule struct {
	// RoleOrUser is a role name, a subject, or AnyPrincipal.
	RoleOrUser string

	// ToolPattern is an exact tool name, a prefix ending in "*", or
	// "capability:<tag>".
	ToolPattern string

	// AllowedNamespaces restricts the namespace argument when non-nil.
	// Entries may end in "*".
	AllowedNamespaces []string
}

// Anonymous configures the role used for callers whose token carries no roles.
type Anonymous struct {
	Enabled bool
	Role    string
}

// Policy is an immutable rule set. Replace it as a whole to change it.
type Policy struct {
	Rules             []Rule
	Anonymous         Anonymous
	NamespaceArgument string
}

// Request is the input to Authorize.
type Request struct {
	Claims     *auth.Claims
	Tool       string
	Capability string
	Arguments  map[string]any
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool

	// Reason is set on denial.
	Reason string

	// Rule is the rule that allowed the call.
	Rule *Rule
}

// Allow is a convenience constructor.
func Allow(rule *Rule) Decision { return Decision{Allowed: true, Rule: rule} }

// Deny is a convenience constructor.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Authorize decides whether req may proceed under p. It has no side effects.
func Authorize(p *Policy, req Request) Decision {
	if p == nil {
		return Deny(ReasonNoMatchingRule)
	}

	principals := p.principals(req.Claims)
	reason := ReasonNoMatchingRule

	for i := range p.Rules {
		rule := &p.Rules[i]
		if !principalMatches(rule.RoleOrUser, principals) {
			continue
		}
		if !toolMatches(rule.ToolPattern, req.Tool, req.Capability) {
			continue
		}
		if rule.AllowedNamespaces == nil {
			return Allow(rule)
		}

		ns, ok := req.Arguments[p.namespaceArgument()].(string)
		if !ok || ns == "" {
			reason = ReasonNamespaceMissing
			continue
		}
		if namespaceAllowed(rule.AllowedNamespaces, ns) {
			return Allow(rule)
		}
		if reason == ReasonNoMatchingRule {
			reason = fmt.Sprintf("%s: %s", ReasonNamespaceDenied, ns)
		}
	}
	return Deny(reason)
}

// Visible reports whether any rule could admit claims to the tool for some
// arguments. It is used to filter tool listings.
func Visible(p *Policy, claims *auth.Claims, tool, capability string) bool {
	if p == nil {
		return false
	}
	principals := p.principals(claims)
	for i := range p.Rules {
		rule := &p.Rules[i]
		if principalMatches(rule.RoleOrUser, principals) && toolMatches(rule.ToolPattern, tool, capability) {
			return true
		}
	}
	return false
}

// namespaceArgument returns the argument key checked against AllowedNamespaces.
func (p *Policy) namespaceArgument() string {
	if p.NamespaceArgument == "" {
		return DefaultNamespaceArgument
	}
	return p.NamespaceArgument
}

// principals returns the subject plus effective roles of the caller.
func (p *Policy) principals(claims *auth.Claims) []string {
	var out []string
	var roles []string
	if claims != nil {
		if claims.Subject != "" {
			out = append(out, claims.Subject)
		}
		roles = claims.Roles
	}
	if len(roles) == 0 && p.Anonymous.Enabled {
		role := p.Anonymous.Role
		if role == "" {
			role = DefaultAnonymousRole
		}
		roles = []string{role}
	}
	return append(out, roles...)
}

func principalMatches(roleOrUser string, principals []string) bool {
	if roleOrUser == AnyPrincipal {
		return len(principals) > 0
	}
	for _, p := range principals {
		if p == roleOrUser {
			return true
		}
	}
	return false
}

func toolMatches(pattern, tool, capability string) bool {
	if tag, ok := strings.CutPrefix(pattern, CapabilityPrefix); ok {
		return capability != "" && capability == tag
	}
	return wildcardMatch(pattern, tool)
}

func namespaceAllowed(allowed []string, ns string) bool {
	for _, a := range allowed {
		if wildcardMatch(a, ns) {
			return true
		}
	}
	return false
}

// wildcardMatch matches value exactly, or by prefix when pattern ends in "*".
func wildcardMatch(pattern, value string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(value, prefix)
	}
	return pattern == value
}
