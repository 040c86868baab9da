package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// DefaultExecTimeout bounds every version command
const DefaultExecTimeout = 10 * time.Second

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+)`)

// Runner locates and runs local binaries
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, path string, args ...string) (string, error)
}

// ExecRunner runs commands on the host with a timeout
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates a runner with the default timeout
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Timeout: DefaultExecTimeout}
}

// LookPath resolves name in PATH
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run executes path with args and returns stdout
func (r *ExecRunner) Run(ctx context.Context, path string, args ...string) (string, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return stdout.String(), fmt.Errorf("%w, stderr: %s", err, strings.TrimSpace(stderr.String()))
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}

func checkHelm(ctx context.Context, runner Runner) Result {
	return checkTool(ctx, runner, Helm, "version", "--short")
}

func checkKubectl(ctx context.Context, runner Runner) Result {
	return checkTool(ctx, runner, Kubectl, "version", "--client")
}

func checkKind(ctx context.Context, runner Runner) Result {
	return checkTool(ctx, runner, Kind, "version")
}

// checkTool resolves the binary of d, runs its version command and compares
// the reported version with d's minimum
func checkTool(ctx context.Context, runner Runner, d Dependency, args ...string) Result {
	start := time.Now()
	result := Result{
		Name:      string(d),
		Required:  d.Required(),
		CheckedAt: start,
	}
	done := func(healthy bool, format string, a ...interface{}) Result {
		result.Healthy = healthy
		result.Message = fmt.Sprintf(format, a...)
		result.Duration = time.Since(start)
		return result
	}

	path, err := runner.LookPath(string(d))
	if err != nil {
		return done(false, "%s not found in PATH", d)
	}
	result.Path = path

	output, err := runner.Run(ctx, path, args...)
	if err != nil {
		return done(false, "%s %s failed: %v", d, strings.Join(args, " "), err)
	}

	version, err := parseVersion(output)
	if err != nil {
		return done(false, "%s: %v", d, err)
	}
	result.Version = "v" + version.String()

	constraint, err := semver.NewConstraint(d.MinVersion())
	if err != nil {
		return done(false, "%s: invalid minimum version: %v", d, err)
	}
	if !constraint.Check(version) {
		return done(false, "%s %s does not satisfy %s", d, result.Version, d.MinVersion())
	}

	return done(true, "%s %s", d, result.Version)
}

// parseVersion extracts the first MAJOR.MINOR.PATCH from command output
func parseVersion(output string) (*semver.Version, error) {
	match := versionPattern.FindStringSubmatch(output)
	if match == nil {
		first := strings.TrimSpace(output)
		if len(first) > 100 {
			first = first[:100] + "..."
		}
		return nil, fmt.Errorf("no version found in output %q", first)
	}
	return semver.NewVersion(match[1])
}
