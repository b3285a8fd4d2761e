package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/splitledger/internal/ledger"
)

// Scenario is one ledger conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Accounts are created before any step runs.
	Accounts []AccountSetup `yaml:"accounts"`

	// Connections link account pairs both ways.
	Connections [][]string `yaml:"connections,omitempty"`

	// Steps run in order. A step with Concurrent set runs its children at
	// once so the engine coalesces them.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final ledger.
	Assertions []Assertion `yaml:"assertions"`
}

// AccountSetup describes an account to create.
type AccountSetup struct {
	ID                string `yaml:"id"`
	Email             string `yaml:"email,omitempty"`
	ManualAcceptDebts bool   `yaml:"manual_accept_debts,omitempty"`
}

// Step is one engine call, or a set of concurrent calls.
type Step struct {
	// As is the calling account.
	As string `yaml:"as,omitempty"`

	// Op is one of the Op* constants.
	Op string `yaml:"op,omitempty"`

	Args Args `yaml:"args,omitempty"`

	// Save labels the id returned by add.
	Save string `yaml:"save,omitempty"`

	// Expect checks the call's outcome. If nil, the call must succeed.
	Expect *Expect `yaml:"expect,omitempty"`

	Concurrent []Step `yaml:"concurrent,omitempty"`
}

// Args are the union of every operation's arguments.
type Args struct {
	// With is the counterparty account (add).
	With string `yaml:"with,omitempty"`
	// ID is a debt id or label (update, remove, accept).
	ID string `yaml:"id,omitempty"`

	Amount       *string `yaml:"amount,omitempty"`
	CurrencyCode *string `yaml:"currency_code,omitempty"`
	Timestamp    *string `yaml:"timestamp,omitempty"`
	Note         *string `yaml:"note,omitempty"`
	ReceiptID    *string `yaml:"receipt_id,omitempty"`
	Locked       *bool   `yaml:"locked,omitempty"`
	Unlocked     bool    `yaml:"unlocked,omitempty"`

	// ManualAcceptDebts is the new setting (settings).
	ManualAcceptDebts *bool `yaml:"manual_accept_debts,omitempty"`
}

// Expect specifies a call's outcome.
type Expect struct {
	// Error is the expected ledger error code, e.g. NOT_FOUND.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the JSON form of the result.
	Result map[string]any `yaml:"result,omitempty"`

	// Count checks the length of list results (intentions, accept_all).
	Count *int `yaml:"count,omitempty"`
}

// Assertion validates the final ledger.
type Assertion struct {
	Type   string         `yaml:"type"`
	Owner  string         `yaml:"owner,omitempty"`
	ID     string         `yaml:"id,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
	Count  *int           `yaml:"count,omitempty"`
}

// Operations a step can invoke.
const (
	OpAdd        = "add"
	OpUpdate     = "update"
	OpRemove     = "remove"
	OpIntentions = "intentions"
	OpAccept     = "accept"
	OpAcceptAll  = "accept_all"
	OpSettings   = "settings"
)

// Assertion type constants.
const (
	AssertDebt       = "debt"
	AssertDebtAbsent = "debt_absent"
	AssertDebtCount  = "debt_count"
	AssertMirror     = "mirror"
)

var knownCodes = map[string]bool{
	string(ledger.CodeNotFound):            true,
	string(ledger.CodeForbidden):           true,
	string(ledger.CodeReciprocalForbidden): true,
	string(ledger.CodeBadRequest):          true,
	string(ledger.CodeInternal):            true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Accounts) == 0 {
		return fmt.Errorf("accounts list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	accounts := make(map[string]bool, len(s.Accounts))
	for i, a := range s.Accounts {
		if a.ID == "" {
			return fmt.Errorf("accounts[%d]: id is required", i)
		}
		if accounts[a.ID] {
			return fmt.Errorf("accounts[%d]: duplicate id %q", i, a.ID)
		}
		accounts[a.ID] = true
	}
	for i, c := range s.Connections {
		if len(c) != 2 {
			return fmt.Errorf("connections[%d]: expected a pair of accounts", i)
		}
		for _, id := range c {
			if !accounts[id] {
				return fmt.Errorf("connections[%d]: unknown account %q", i, id)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), step, accounts, true); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, accounts); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step, accounts map[string]bool, nest bool) error {
	if len(step.Concurrent) > 0 {
		if !nest {
			return fmt.Errorf("%s: concurrent steps cannot nest", where)
		}
		if step.Op != "" || step.As != "" {
			return fmt.Errorf("%s: a concurrent step takes no op or as", where)
		}
		for i, child := range step.Concurrent {
			if err := validateStep(fmt.Sprintf("%s.concurrent[%d]", where, i), child, accounts, false); err != nil {
				return err
			}
		}
		return nil
	}

	if !accounts[step.As] {
		return fmt.Errorf("%s: unknown account %q", where, step.As)
	}
	switch step.Op {
	case OpAdd:
		if step.Args.With == "" {
			return fmt.Errorf("%s: add requires args.with", where)
		}
	case OpUpdate, OpRemove, OpAccept:
		if step.Args.ID == "" {
			return fmt.Errorf("%s: %s requires args.id", where, step.Op)
		}
	case OpSettings:
		if step.Args.ManualAcceptDebts == nil {
			return fmt.Errorf("%s: settings requires args.manual_accept_debts", where)
		}
	case OpIntentions, OpAcceptAll:
	case "":
		return fmt.Errorf("%s: op is required", where)
	default:
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	if step.Save != "" && step.Op != OpAdd {
		return fmt.Errorf("%s: save is only valid on add", where)
	}
	if step.Expect != nil && step.Expect.Error != "" && !knownCodes[step.Expect.Error] {
		return fmt.Errorf("%s.expect: unknown error code %q", where, step.Expect.Error)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, accounts map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	switch a.Type {
	case AssertDebt, AssertDebtAbsent:
		if !accounts[a.Owner] {
			return fmt.Errorf("assertions[%d]: unknown owner %q", index, a.Owner)
		}
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Type)
		}
	case AssertDebtCount:
		if !accounts[a.Owner] {
			return fmt.Errorf("assertions[%d]: unknown owner %q", index, a.Owner)
		}
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for debt_count", index)
		}
	case AssertMirror:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for mirror", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
