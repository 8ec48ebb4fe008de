package fault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soralab/netfault/internal/logging"
	"github.com/soralab/netfault/internal/model"
	"github.com/soralab/netfault/internal/runner"
)

const injectTimeout = 10 * time.Second

var errKeywords = []string{"error", "failed", "no such", "cannot", "invalid", "unknown"}

// FlagSetter latches the shared fault flag; the collector implements it.
type FlagSetter interface {
	SetFaultFlag(bool)
}

// Injector validates fault requests and executes them against the lab.
type Injector struct {
	lab  *runner.Lab
	flag FlagSetter
}

// NewInjector creates an Injector. flag may be nil when no measurement
// loop is wired (offline use).
func NewInjector(lab *runner.Lab, flag FlagSetter) *Injector {
	return &Injector{lab: lab, flag: flag}
}

// Inject validates the request, latches the fault flag, runs the fault
// command and classifies its outcome. Validation failures reject the
// request before anything is mutated.
func (i *Injector) Inject(ctx context.Context, req Request) model.OpResult {
	f, err := Parse(req)
	if err != nil {
		return model.OpResult{Status: model.StatusError, Message: err.Error()}
	}

	// From this instant samples are tagged as fault-influenced, even if
	// the command below ends up failing: a fault was requested.
	if i.flag != nil {
		i.flag.SetFaultFlag(true)
	}

	logging.Info("Fault", "injecting "+f.Describe(), nil)

	res, err := i.lab.Docker(ctx, injectTimeout, f.DockerArgs()...)
	if err != nil {
		return model.OpResult{
			Status:  model.StatusError,
			Message: fmt.Sprintf("Command execution for %s on %s likely timed out or failed: %v.", f.Kind(), f.Describe(), err),
		}
	}

	return classify(f, res)
}

// classify maps command output onto a status. tc prints to stderr even on
// some benign outcomes, so the matching is keyword-based.
func classify(f Fault, res runner.Result) model.OpResult {
	stderr := strings.ToLower(res.Stderr)
	out := strings.TrimSpace(res.Combined())

	if f.addsQdisc() && strings.Contains(stderr, "file exists") {
		return model.OpResult{
			Status:  model.StatusWarning,
			Message: fmt.Sprintf("Executed %s on %s, but a qdisc already existed. Output: %s", f.Kind(), f.Describe(), out),
		}
	}

	for _, kw := range errKeywords {
		if strings.Contains(stderr, kw) {
			return model.OpResult{
				Status:  model.StatusError,
				Message: fmt.Sprintf("Failed to inject %s on %s. Error: %s", f.Kind(), f.Describe(), strings.TrimSpace(res.Stderr)),
			}
		}
	}

	if out == "" && res.ExitCode != 0 {
		return model.OpResult{
			Status:  model.StatusError,
			Message: fmt.Sprintf("Command for %s on %s failed with no output.", f.Kind(), f.Describe()),
		}
	}

	return model.OpResult{
		Status:  model.StatusSuccess,
		Message: fmt.Sprintf("Successfully executed %s on %s.", f.Kind(), f.Describe()),
	}
}
