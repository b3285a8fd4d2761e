package harness

import (
	"github.com/roach88/splitledger/internal/ledger"
)

// TraceEvent is the outcome of one engine call.
type TraceEvent struct {
	// Step locates the call, e.g. "steps[3].concurrent[1]".
	Step string `json:"step"`
	As   string `json:"as"`
	Op   string `json:"op"`
	// Target is the saved label for add, else the debt id argument.
	Target string `json:"target,omitempty"`
	// Outcome is "ok" or the ledger error code.
	Outcome string `json:"outcome"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds one event per call, in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Ledger is every stored row after the last step.
	Ledger []ledger.Debt `json:"ledger"`

	// Labels maps debt ids to the labels steps saved them under.
	Labels map[string]string `json:"labels,omitempty"`

	// Accounts maps user ids to the account each user stands for.
	Accounts map[string]string `json:"accounts,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Labels:   make(map[string]string),
		Accounts: make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
