package deps

import (
	"context"
	"time"
)

// Dependency is one of the external tools solo relies on
type Dependency string

const (
	Helm    Dependency = "helm"
	Kubectl Dependency = "kubectl"
	Kind    Dependency = "kind"
)

// All returns every known dependency in check order
func All() []Dependency {
	return []Dependency{Helm, Kubectl, Kind}
}

// Parse resolves a dependency by name
func Parse(name string) (Dependency, bool) {
	for _, d := range All() {
		if string(d) == name {
			return d, true
		}
	}
	return "", false
}

// Required reports whether provisioning cannot proceed without d.
// Kind is only needed for local clusters.
func (d Dependency) Required() bool {
	return d != Kind
}

// MinVersion is the oldest supported release of d as a semver constraint
func (d Dependency) MinVersion() string {
	switch d {
	case Helm:
		return ">= 3.8.0"
	case Kubectl:
		return ">= 1.25.0"
	case Kind:
		return ">= 0.20.0"
	default:
		return ""
	}
}

// Check runs the check function belonging to d
func (d Dependency) Check(ctx context.Context, runner Runner) Result {
	switch d {
	case Helm:
		return checkHelm(ctx, runner)
	case Kubectl:
		return checkKubectl(ctx, runner)
	case Kind:
		return checkKind(ctx, runner)
	default:
		now := time.Now()
		return Result{
			Name:      string(d),
			Healthy:   false,
			Message:   "unknown dependency",
			CheckedAt: now,
		}
	}
}

// CheckType represents the type of check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypeExec CheckType = "exec"
)

// Result represents the outcome of a check
type Result struct {
	Name      string
	Healthy   bool
	Required  bool
	Path      string // Resolved binary, exec checks only
	Version   string // Detected version, exec checks only
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is implemented by the endpoint checks
type Checker interface {
	// Check performs the check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of check
	Type() CheckType
}
