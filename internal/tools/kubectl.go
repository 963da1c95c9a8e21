package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec. Stderr is folded into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s %s: %w: %s", name, args[0], err, msg)
		}
		return out, fmt.Errorf("%s %s: %w", name, args[0], err)
	}
	return out, nil
}

// Kubectl implements Cluster by shelling out to kubectl.
type Kubectl struct {
	path       string
	kubeconfig string
	run        Runner
}

// NewKubectl creates a kubectl-backed Cluster. An empty path means "kubectl"
// from PATH; a nil runner means ExecRunner.
func NewKubectl(path, kubeconfig string, run Runner) *Kubectl {
	if path == "" {
		path = "kubectl"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Kubectl{path: path, kubeconfig: kubeconfig, run: run}
}

func (k *Kubectl) kubectl(ctx context.Context, args ...string) ([]byte, error) {
	if k.kubeconfig != "" {
		args = append(args, "--kubeconfig", k.kubeconfig)
	}
	out, err := k.run(ctx, k.path, args...)
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, err
	}
	return out, nil
}

type objectMeta struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

type conditionJSON struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type podJSON struct {
	Metadata objectMeta `json:"metadata"`
	Spec     struct {
		NodeName string `json:"nodeName"`
	} `json:"spec"`
	Status struct {
		Phase             string          `json:"phase"`
		Conditions        []conditionJSON `json:"conditions"`
		ContainerStatuses []struct {
			Name         string `json:"name"`
			Ready        bool   `json:"ready"`
			RestartCount int    `json:"restartCount"`
			State        struct {
				Waiting *struct {
					Reason string `json:"reason"`
				} `json:"waiting"`
			} `json:"state"`
			LastState struct {
				Terminated *struct {
					Reason string `json:"reason"`
				} `json:"terminated"`
			} `json:"lastState"`
		} `json:"containerStatuses"`
	} `json:"status"`
}

type deploymentJSON struct {
	Metadata objectMeta `json:"metadata"`
	Spec     struct {
		Replicas *int `json:"replicas"`
	} `json:"spec"`
	Status struct {
		ReadyReplicas     int             `json:"readyReplicas"`
		UpdatedReplicas   int             `json:"updatedReplicas"`
		AvailableReplicas int             `json:"availableReplicas"`
		Conditions        []conditionJSON `json:"conditions"`
	} `json:"status"`
}

// GetPod implements Cluster.
func (k *Kubectl) GetPod(ctx context.Context, namespace, name string) (*Pod, error) {
	out, err := k.kubectl(ctx, "get", "pod", name, "-n", namespace, "-o", "json")
	if err != nil {
		return nil, err
	}
	var raw podJSON
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("decoding pod %s/%s: %w", namespace, name, err)
	}

	pod := &Pod{
		Name:       raw.Metadata.Name,
		Namespace:  raw.Metadata.Namespace,
		Phase:      raw.Status.Phase,
		NodeName:   raw.Spec.NodeName,
		Conditions: conditions(raw.Status.Conditions),
	}
	for _, cs := range raw.Status.ContainerStatuses {
		status := ContainerStatus{Name: cs.Name, Ready: cs.Ready, RestartCount: cs.RestartCount}
		if cs.State.Waiting != nil {
			status.Waiting = cs.State.Waiting.Reason
		}
		if cs.LastState.Terminated != nil {
			status.LastTerminated = cs.LastState.Terminated.Reason
		}
		pod.Containers = append(pod.Containers, status)
	}
	return pod, nil
}

// GetDeployment implements Cluster.
func (k *Kubectl) GetDeployment(ctx context.Context, namespace, name string) (*Deployment, error) {
	out, err := k.kubectl(ctx, "get", "deployment", name, "-n", namespace, "-o", "json")
	if err != nil {
		return nil, err
	}
	var raw deploymentJSON
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("decoding deployment %s/%s: %w", namespace, name, err)
	}

	desired := 1
	if raw.Spec.Replicas != nil {
		desired = *raw.Spec.Replicas
	}
	return &Deployment{
		Name:       raw.Metadata.Name,
		Namespace:  raw.Metadata.Namespace,
		Desired:    desired,
		Ready:      raw.Status.ReadyReplicas,
		Updated:    raw.Status.UpdatedReplicas,
		Available:  raw.Status.AvailableReplicas,
		Conditions: conditions(raw.Status.Conditions),
	}, nil
}

// PodLogs implements Cluster.
func (k *Kubectl) PodLogs(ctx context.Context, namespace, name string, opts LogOptions) (string, error) {
	args := []string{"logs", name, "-n", namespace}
	if opts.Container != "" {
		args = append(args, "-c", opts.Container)
	}
	if opts.Tail > 0 {
		args = append(args, "--tail", strconv.Itoa(opts.Tail))
	}
	if opts.Previous {
		args = append(args, "--previous")
	}
	out, err := k.kubectl(ctx, args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DeletePod implements Cluster. The pod's controller recreates it.
func (k *Kubectl) DeletePod(ctx context.Context, namespace, name string) error {
	_, err := k.kubectl(ctx, "delete", "pod", name, "-n", namespace, "--wait=false")
	return err
}

func conditions(in []conditionJSON) []Condition {
	if len(in) == 0 {
		return nil
	}
	out := make([]Condition, len(in))
	for i, c := range in {
		out[i] = Condition(c)
	}
	return out
}
