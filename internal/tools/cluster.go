package tools

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Cluster when the named object does not exist.
var ErrNotFound = errors.New("object not found")

// Cluster is the Kubernetes backend the cluster tools run against.
type Cluster interface {
	GetPod(ctx context.Context, namespace, name string) (*Pod, error)
	GetDeployment(ctx context.Context, namespace, name string) (*Deployment, error)
	PodLogs(ctx context.Context, namespace, name string, opts LogOptions) (string, error)
	DeletePod(ctx context.Context, namespace, name string) error
}

// Pod is the subset of pod state the diagnostics report.
type Pod struct {
	Name       string
	Namespace  string
	Phase      string
	NodeName   string
	Containers []ContainerStatus
	Conditions []Condition
}

// Restarts sums restart counts across containers.
func (p *Pod) Restarts() int {
	total := 0
	for _, c := range p.Containers {
		total += c.RestartCount
	}
	return total
}

// Ready reports whether every container is ready.
func (p *Pod) Ready() bool {
	if len(p.Containers) == 0 {
		return false
	}
	for _, c := range p.Containers {
		if !c.Ready {
			return false
		}
	}
	return true
}

// ContainerStatus is one container's status.
type ContainerStatus struct {
	Name         string
	Ready        bool
	RestartCount int
	// Waiting is the waiting reason, such as CrashLoopBackOff.
	Waiting string
	// LastTerminated is the reason the previous instance exited.
	LastTerminated string
}

// Condition is a pod or deployment condition.
type Condition struct {
	Type    string
	Status  string
	Reason  string
	Message string
}

// Deployment is the subset of deployment state the diagnostics report.
type Deployment struct {
	Name       string
	Namespace  string
	Desired    int
	Ready      int
	Updated    int
	Available  int
	Conditions []Condition
}

// LogOptions selects which logs PodLogs returns.
type LogOptions struct {
	Container string
	Tail      int
	Previous  bool
}
