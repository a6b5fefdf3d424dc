// SPDX-License-Identifier: MPL-2.0

package flowmod

import (
	"context"
	"errors"
	"fmt"
)

const (
	// OutcomeFetched means the module was synced into a fresh directory.
	OutcomeFetched Outcome = iota
	// OutcomeOverwritten means an existing directory was replaced, either by
	// explicit overwrite or after a confirmed conflict.
	OutcomeOverwritten
	// OutcomeUpToDate means the directory already held the requested module.
	OutcomeUpToDate
	// OutcomeDeclined means a conflict was not confirmed and the directory was left alone.
	OutcomeDeclined
	// OutcomeFailed means the dependency could not be synced; see Result.Err.
	OutcomeFailed
)

type (
	// Outcome classifies what happened to one dependency during a sync.
	Outcome int

	// Result describes the sync of one dependency.
	Result struct {
		Dependency Dependency
		ModuleID   ModuleID
		Target     string
		Outcome    Outcome
		// Previous is the identity found in Target before the sync, if any.
		Previous ModuleID
		Err      error
	}

	// Report collects results in declaration order.
	Report struct {
		Label   string
		Results []Result
	}

	// Conflict describes an existing remote directory whose recorded identity
	// differs from the requested one.
	Conflict struct {
		Target    string
		Current   ModuleID
		Requested ModuleID
	}

	// Confirmer decides whether a conflicting directory may be overwritten.
	// Calls are serialized by the Syncer.
	Confirmer func(ctx context.Context, c Conflict) (bool, error)
)

var outcomeNames = map[Outcome]string{
	OutcomeFetched:     "fetched",
	OutcomeOverwritten: "overwritten",
	OutcomeUpToDate:    "up-to-date",
	OutcomeDeclined:    "declined",
	OutcomeFailed:      "failed",
}

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// String renders the prompt text for a conflict.
func (c Conflict) String() string {
	return fmt.Sprintf("%s already synced, it will be overwritten by new revision %s", c.Current, c.Requested)
}

// AlwaysConfirm accepts every conflict.
func AlwaysConfirm(context.Context, Conflict) (bool, error) { return true, nil }

// NeverConfirm declines every conflict. It is the policy for non-interactive runs.
func NeverConfirm(context.Context, Conflict) (bool, error) { return false, nil }

// Count returns how many results have the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the results that ended in an error.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err joins the errors of all failed results, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}
