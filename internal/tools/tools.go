// Package tools provides the gateway's built-in tools.
//
// The cluster tools take their Cluster backend at construction time, so a
// gateway can serve several clusters or run its tests against a fake.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jamesprial/mcp-tool-gateway/internal/registry"
)

// Capability tags of the built-in tools.
const (
	CapabilityGreet     = "greet"
	CapabilityIdentity  = "identity"
	CapabilityDiagnose  = "diagnose"
	CapabilityLogs      = "logs"
	CapabilityRemediate = "remediate"
)

const (
	defaultLogTail = 100
	maxLogTail     = 5000
	maxLogBytes    = 256 << 10
)

// Builtins returns every built-in tool. Cluster tools are omitted when
// cluster is nil.
func Builtins(cluster Cluster) []registry.Descriptor {
	out := []registry.Descriptor{HelloWorld(), WhoAmI()}
	if cluster != nil {
		out = append(out,
			DiagnosePod(cluster),
			DiagnoseDeployment(cluster),
			GetPodLogs(cluster),
			RemediatePodRestart(cluster),
		)
	}
	return out
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var (
	namespaceProp = map[string]any{
		"type":        "string",
		"description": "Kubernetes namespace",
		"pattern":     `^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`,
		"maxLength":   63,
	}
	nameProp = func(kind string) map[string]any {
		return map[string]any{
			"type":        "string",
			"description": kind + " name",
			"pattern":     `^[a-z0-9]([-a-z0-9.]*[a-z0-9])?$`,
			"maxLength":   253,
		}
	}
)

// HelloWorld greets the caller.
func HelloWorld() registry.Descriptor {
	return registry.Descriptor{
		Name:               "hello_world",
		Description:        "Return a greeting.",
		RequiredCapability: CapabilityGreet,
		InputSchema: objectSchema(nil, map[string]any{
			"name": map[string]any{"type": "string", "maxLength": 128},
		}),
		Handler: func(ctx context.Context, args map[string]any, call registry.CallContext) (map[string]any, error) {
			name, _ := args["name"].(string)
			if name == "" && call.Claims != nil {
				name = call.Claims.Subject
			}
			if name == "" {
				name = "world"
			}
			return map[string]any{"message": fmt.Sprintf("Hello, %s!", name)}, nil
		},
	}
}

// WhoAmI reports the caller's verified identity.
func WhoAmI() registry.Descriptor {
	return registry.Descriptor{
		Name:               "whoami",
		Description:        "Return the caller's subject and roles as seen by the gateway.",
		RequiredCapability: CapabilityIdentity,
		InputSchema:        objectSchema(nil, map[string]any{}),
		Handler: func(ctx context.Context, args map[string]any, call registry.CallContext) (map[string]any, error) {
			out := map[string]any{"request_id": call.RequestID}
			if c := call.Claims; c != nil {
				roles := c.Roles
				if roles == nil {
					roles = []string{}
				}
				out["subject"] = c.Subject
				out["issuer"] = c.Issuer
				out["roles"] = roles
				if !c.ExpiresAt.IsZero() {
					out["expires_at"] = c.ExpiresAt.UTC().Format(time.RFC3339)
				}
			}
			return out, nil
		},
	}
}

// DiagnosePod reports a pod's phase, restarts, and unhealthy signals.
func DiagnosePod(cluster Cluster) registry.Descriptor {
	return registry.Descriptor{
		Name:               "diagnose_pod",
		Description:        "Summarize a pod's phase, restarts, container states, and failing conditions.",
		RequiredCapability: CapabilityDiagnose,
		InputSchema: objectSchema([]string{"name", "namespace"}, map[string]any{
			"name":      nameProp("Pod"),
			"namespace": namespaceProp,
		}),
		Handler: func(ctx context.Context, args map[string]any, call registry.CallContext) (map[string]any, error) {
			ns, name := stringArg(args, "namespace"), stringArg(args, "name")
			pod, err := cluster.GetPod(ctx, ns, name)
			if errors.Is(err, ErrNotFound) {
				return notFound("pod", ns, name), nil
			}
			if err != nil {
				return nil, err
			}

			var issues []string
			containers := make([]any, 0, len(pod.Containers))
			for _, c := range pod.Containers {
				containers = append(containers, map[string]any{
					"name":            c.Name,
					"ready":           c.Ready,
					"restarts":        c.RestartCount,
					"waiting":         c.Waiting,
					"last_terminated": c.LastTerminated,
				})
				if c.Waiting != "" {
					issues = append(issues, fmt.Sprintf("container %s waiting: %s", c.Name, c.Waiting))
				}
				if c.LastTerminated == "OOMKilled" {
					issues = append(issues, fmt.Sprintf("container %s was OOMKilled", c.Name))
				}
			}
			for _, cond := range pod.Conditions {
				if cond.Status != "True" {
					issues = append(issues, conditionIssue(cond))
				}
			}
			if issues == nil {
				issues = []string{}
			}

			return map[string]any{
				"found":      true,
				"name":       pod.Name,
				"namespace":  pod.Namespace,
				"phase":      pod.Phase,
				"node":       pod.NodeName,
				"ready":      pod.Ready(),
				"restarts":   pod.Restarts(),
				"containers": containers,
				"issues":     issues,
				"healthy":    pod.Phase == "Running" && pod.Ready() && len(issues) == 0,
			}, nil
		},
	}
}

// DiagnoseDeployment compares ready replicas with the desired count.
func DiagnoseDeployment(cluster Cluster) registry.Descriptor {
	return registry.Descriptor{
		Name:               "diagnose_deployment",
		Description:        "Compare a deployment's ready, updated, and available replicas with the desired count.",
		RequiredCapability: CapabilityDiagnose,
		InputSchema: objectSchema([]string{"name", "namespace"}, map[string]any{
			"name":      nameProp("Deployment"),
			"namespace": namespaceProp,
		}),
		Handler: func(ctx context.Context, args map[string]any, call registry.CallContext) (map[string]any, error) {
			ns, name := stringArg(args, "namespace"), stringArg(args, "name")
			d, err := cluster.GetDeployment(ctx, ns, name)
			if errors.Is(err, ErrNotFound) {
				return notFound("deployment", ns, name), nil
			}
			if err != nil {
				return nil, err
			}

			issues := []string{}
			if d.Ready < d.Desired {
				issues = append(issues, fmt.Sprintf("%d of %d replicas ready", d.Ready, d.Desired))
			}
			if d.Updated < d.Desired {
				issues = append(issues, fmt.Sprintf("rollout in progress: %d of %d replicas updated", d.Updated, d.Desired))
			}
			for _, cond := range d.Conditions {
				if cond.Status != "True" {
					issues = append(issues, conditionIssue(cond))
				}
			}

			return map[string]any{
				"found":     true,
				"name":      d.Name,
				"namespace": d.Namespace,
				"desired":   d.Desired,
				"ready":     d.Ready,
				"updated":   d.Updated,
				"available": d.Available,
				"issues":    issues,
				"healthy":   len(issues) == 0,
			}, nil
		},
	}
}

// GetPodLogs returns the tail of a pod's logs.
func GetPodLogs(cluster Cluster) registry.Descriptor {
	return registry.Descriptor{
		Name:               "get_pod_logs",
		Description:        "Return the most recent log lines of a pod.",
		RequiredCapability: CapabilityLogs,
		InputSchema: objectSchema([]string{"name", "namespace"}, map[string]any{
			"name":      nameProp("Pod"),
			"namespace": namespaceProp,
			"container": map[string]any{"type": "string", "maxLength": 63},
			"tail":      map[string]any{"type": "integer", "minimum": 1, "maximum": maxLogTail},
			"previous":  map[string]any{"type": "boolean"},
		}),
		Handler: func(ctx context.Context, args map[string]any, call registry.CallContext) (map[string]any, error) {
			ns, name := stringArg(args, "namespace"), stringArg(args, "name")
			opts := LogOptions{
				Container: stringArg(args, "container"),
				Tail:      intArg(args, "tail", defaultLogTail),
			}
			opts.Previous, _ = args["previous"].(bool)

			logs, err := cluster.PodLogs(ctx, ns, name, opts)
			if errors.Is(err, ErrNotFound) {
				return notFound("pod", ns, name), nil
			}
			if err != nil {
				return nil, err
			}

			truncated := false
			if len(logs) > maxLogBytes {
				logs = logs[len(logs)-maxLogBytes:]
				truncated = true
			}
			lines := 0
			if logs != "" {
				lines = strings.Count(strings.TrimRight(logs, "\n"), "\n") + 1
			}
			return map[string]any{
				"found":     true,
				"name":      name,
				"namespace": ns,
				"lines":     lines,
				"truncated": truncated,
				"logs":      logs,
			}, nil
		},
	}
}

// RemediatePodRestart deletes a pod so its controller recreates it.
func RemediatePodRestart(cluster Cluster) registry.Descriptor {
	return registry.Descriptor{
		Name:               "remediate_pod_restart",
		Description:        "Restart a pod by deleting it. The owning controller schedules a replacement.",
		RequiredCapability: CapabilityRemediate,
		InputSchema: objectSchema([]string{"name", "namespace"}, map[string]any{
			"name":      nameProp("Pod"),
			"namespace": namespaceProp,
			"reason":    map[string]any{"type": "string", "maxLength": 512},
		}),
		Handler: func(ctx context.Context, args map[string]any, call registry.CallContext) (map[string]any, error) {
			ns, name := stringArg(args, "namespace"), stringArg(args, "name")
			err := cluster.DeletePod(ctx, ns, name)
			if errors.Is(err, ErrNotFound) {
				return notFound("pod", ns, name), nil
			}
			if err != nil {
				return nil, err
			}
			out := map[string]any{
				"found":      true,
				"name":       name,
				"namespace":  ns,
				"restarted":  true,
				"request_id": call.RequestID,
			}
			if call.Claims != nil {
				out["requested_by"] = call.Claims.Subject
			}
			return out, nil
		},
	}
}

func notFound(kind, ns, name string) map[string]any {
	return map[string]any{
		"found":     false,
		"kind":      kind,
		"name":      name,
		"namespace": ns,
	}
}

func conditionIssue(c Condition) string {
	msg := fmt.Sprintf("condition %s=%s", c.Type, c.Status)
	if c.Reason != "" {
		msg += " (" + c.Reason + ")"
	}
	if c.Message != "" {
		msg += ": " + c.Message
	}
	return msg
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg reads an integer argument. JSON numbers arrive as float64.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
	}
}
