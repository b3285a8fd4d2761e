package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/splitledger/internal/batch"
	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ledger"
	"github.com/roach88/splitledger/internal/schema"
	"github.com/roach88/splitledger/internal/store"
	"github.com/roach88/splitledger/internal/testutil"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	store     *store.Store
	engine    *engine.Engine
	validator *schema.Validator
	logger    *slog.Logger

	identities map[string]ledger.Identity
	// contacts[owner][other] is owner's user standing for other.
	contacts map[string]map[string]string

	mu     sync.Mutex
	labels map[string]string // label -> debt id
	result *Result
}

// Options tunes a scenario run.
type Options struct {
	// Logger receives engine logs. Default: discarded.
	Logger *slog.Logger
	// Wait is the coalescing window. Default: 5ms.
	Wait time.Duration
}

// Run executes a scenario with default options.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return RunWithOptions(ctx, scenario, Options{})
}

// RunWithOptions executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// The returned error reports harness failures; scenario mismatches are
// recorded in the result.
func RunWithOptions(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Wait == 0 {
		opts.Wait = 5 * time.Millisecond
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	validator, err := schema.New()
	if err != nil {
		return nil, err
	}

	h := &Harness{
		store: st,
		engine: engine.New(st,
			engine.WithClock(testutil.NewStepClock(testutil.DefaultEpoch, time.Second)),
			engine.WithIDGenerator(testutil.NewSequenceIDs("id")),
			engine.WithLogger(opts.Logger),
			engine.WithBatchOptions(batch.Options{Wait: opts.Wait}),
		),
		validator:  validator,
		logger:     opts.Logger,
		identities: make(map[string]ledger.Identity),
		contacts:   make(map[string]map[string]string),
		labels:     make(map[string]string),
		result:     NewResult(),
	}

	if err := h.setup(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	for i, step := range scenario.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		if len(step.Concurrent) == 0 {
			h.record(where, step, h.call(ctx, step))
			continue
		}
		if err := h.runConcurrent(ctx, where, step.Concurrent); err != nil {
			return nil, err
		}
	}

	debts, err := st.Queries().ReadAllDebts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	h.result.Ledger = debts
	for label, id := range h.labels {
		h.result.Labels[id] = label
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, h.resolve) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func (h *Harness) setup(ctx context.Context, s *Scenario) error {
	for _, a := range s.Accounts {
		email := a.Email
		if email == "" {
			email = a.ID + "@example.com"
		}
		acc, err := h.engine.CreateAccount(ctx, engine.AccountInput{ID: a.ID, Email: email})
		if err != nil {
			return fmt.Errorf("account %s: %w", a.ID, err)
		}
		h.identities[a.ID] = acc.Identity
		h.contacts[a.ID] = map[string]string{a.ID: acc.SelfUserID}
		h.result.Accounts[acc.SelfUserID] = a.ID

		if a.ManualAcceptDebts {
			if err := h.engine.SetManualAcceptDebts(ctx, acc.Identity, true); err != nil {
				return fmt.Errorf("account %s: %w", a.ID, err)
			}
		}
	}

	for _, c := range s.Connections {
		conn, err := h.engine.Connect(ctx, h.identities[c[0]], h.identities[c[1]])
		if err != nil {
			return fmt.Errorf("connect %s and %s: %w", c[0], c[1], err)
		}
		h.contacts[c[0]][c[1]] = conn.AUserID
		h.contacts[c[1]][c[0]] = conn.BUserID
		h.result.Accounts[conn.AUserID] = c[1]
		h.result.Accounts[conn.BUserID] = c[0]
	}
	return nil
}

// runConcurrent starts every child at once and records outcomes in child
// order, so the trace does not depend on scheduling.
func (h *Harness) runConcurrent(ctx context.Context, where string, steps []Step) error {
	outcomes := make([]outcome, len(steps))
	g, gctx := errgroup.WithContext(ctx)
	for i, step := range steps {
		g.Go(func() error {
			outcomes[i] = h.call(gctx, step)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, step := range steps {
		h.record(fmt.Sprintf("%s.concurrent[%d]", where, i), step, outcomes[i])
	}
	return nil
}

type outcome struct {
	value any
	err   error
}

// call invokes one step against the engine.
func (h *Harness) call(ctx context.Context, step Step) outcome {
	id := h.identities[step.As]
	a := step.Args

	switch step.Op {
	case OpAdd:
		in, err := h.validator.Debt(schema.DebtInput{
			UserID:       h.contact(step.As, a.With),
			Amount:       deref(a.Amount),
			CurrencyCode: deref(a.CurrencyCode),
			Timestamp:    deref(a.Timestamp),
			Note:         deref(a.Note),
			ReceiptID:    a.ReceiptID,
			Unlocked:     a.Unlocked,
		})
		if err != nil {
			return outcome{err: err}
		}
		res, err := h.engine.Add(ctx, id, in)
		if err == nil && step.Save != "" {
			h.mu.Lock()
			h.labels[step.Save] = res.ID
			h.mu.Unlock()
		}
		return outcome{res, err}

	case OpUpdate:
		p, err := h.validator.Patch(schema.PatchInput{
			Amount:       a.Amount,
			CurrencyCode: a.CurrencyCode,
			Timestamp:    a.Timestamp,
			Note:         a.Note,
			ReceiptID:    a.ReceiptID,
			Locked:       a.Locked,
		})
		if err != nil {
			return outcome{err: err}
		}
		res, err := h.engine.Update(ctx, id, engine.UpdateInput{ID: h.resolve(a.ID), Patch: p})
		return outcome{res, err}

	case OpRemove:
		res, err := h.engine.Remove(ctx, id, h.resolve(a.ID))
		return outcome{res, err}

	case OpIntentions:
		res, err := h.engine.GetIntentions(ctx, id)
		return outcome{res, err}

	case OpAccept:
		res, err := h.engine.AcceptIntention(ctx, id, h.resolve(a.ID))
		return outcome{res, err}

	case OpAcceptAll:
		res, err := h.engine.AcceptAllIntentions(ctx, id)
		return outcome{res, err}

	case OpSettings:
		err := h.engine.SetManualAcceptDebts(ctx, id, *a.ManualAcceptDebts)
		return outcome{err: err}
	}
	return outcome{err: fmt.Errorf("unknown op %q", step.Op)}
}

// record appends the trace event and checks the expect clause.
func (h *Harness) record(where string, step Step, out outcome) {
	ev := TraceEvent{Step: where, As: step.As, Op: step.Op, Target: step.Args.ID, Outcome: "ok"}
	if step.Op == OpAdd {
		ev.Target = step.Save
	}
	if out.err != nil {
		ev.Outcome = string(ledger.CodeOf(out.err))
	}
	h.result.Trace = append(h.result.Trace, ev)

	h.logger.Debug("scenario step completed",
		"step", where,
		"op", step.Op,
		"as", step.As,
		"outcome", ev.Outcome,
	)

	for _, msg := range checkExpect(where, step.Expect, out, h.resolve) {
		h.result.AddError(msg)
	}
}

// contact returns the caller's user standing for account other. Unknown
// names pass through so scenarios can probe invalid user ids.
func (h *Harness) contact(owner, other string) string {
	if u, ok := h.contacts[owner][other]; ok {
		return u
	}
	return other
}

// resolve maps a label to its debt id; anything else passes through.
func (h *Harness) resolve(s string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.labels[s]; ok {
		return id
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
