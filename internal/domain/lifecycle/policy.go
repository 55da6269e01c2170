package lifecycle

import (
	"fmt"
	"strings"

	"github.com/mamadbah2/farmchain/internal/domain/models"
)

// Mode selects how status writes are checked.
type Mode int

const (
	// Permissive accepts any status label, matching the legacy behavior.
	Permissive Mode = iota
	// Strict only accepts the transitions listed in the table below.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "permissive"
}

var transitions = map[models.Status][]models.Status{
	models.StatusPlanted:              {models.StatusHarvested, models.StatusSubmittedForApproval},
	models.StatusHarvested:            {models.StatusSubmittedForApproval, models.StatusApproved, models.StatusRejected},
	models.StatusSubmittedForApproval: {models.StatusApproved, models.StatusRejected},
	models.StatusApproved:             {models.StatusActive},
	models.StatusActive:               {models.StatusSubmittedForApproval, models.StatusApproved},
	models.StatusRejected:             nil,
	models.StatusMerged:               nil,
}

// Policy decides whether a batch may move from one status to another.
type Policy struct {
	mode Mode
}

// NewPolicy returns a policy operating in the given mode.
func NewPolicy(mode Mode) Policy {
	return Policy{mode: mode}
}

// Mode returns the configured mode.
func (p Policy) Mode() Mode {
	return p.mode
}

// Check returns an error describing why from -> to is not allowed, or nil.
// Labels are compared without regard to case.
func (p Policy) Check(from, to models.Status) error {
	if p.mode == Permissive {
		return nil
	}
	from, to = canonical(from), canonical(to)
	if !Known(to) {
		return fmt.Errorf("unknown status %q", to)
	}
	if from == to {
		return nil
	}
	if Terminal(from) {
		return fmt.Errorf("status %s is terminal", from)
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("transition %s -> %s is not allowed", from, to)
}

// Known reports whether status belongs to the standard vocabulary.
func Known(status models.Status) bool {
	_, ok := transitions[canonical(status)]
	return ok
}

// Terminal reports whether no transition leaves status.
func Terminal(status models.Status) bool {
	next, ok := transitions[canonical(status)]
	return ok && len(next) == 0
}

func canonical(status models.Status) models.Status {
	return models.Status(strings.ToUpper(strings.TrimSpace(string(status))))
}
