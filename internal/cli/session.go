package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/splitledger/internal/config"
	"github.com/roach88/splitledger/internal/engine"
	"github.com/roach88/splitledger/internal/ledger"
	"github.com/roach88/splitledger/internal/store"
)

// session is an open database and engine for one command.
type session struct {
	opts    *RootOptions
	store   *store.Store
	engine  *engine.Engine
	logger  *slog.Logger
	out     *OutputFormatter
	printer *message.Printer
}

// openSession loads the environment, applies flag overrides and opens the
// store. Callers must Close the session.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.DB != "" {
		cfg.DBPath = opts.DB
	}

	level, err := cfg.Level()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	tag, err := language.Parse(opts.Lang)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --lang", err)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	logger.Debug("opened database", "path", cfg.DBPath)

	return &session{
		opts:   opts,
		store:  st,
		engine: engine.New(st, engine.WithLogger(logger), engine.WithBatchOptions(cfg.BatchOptions())),
		logger: logger,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
		printer: message.NewPrinter(tag),
	}, nil
}

// Close closes the store.
func (s *session) Close() error {
	return s.store.Close()
}

// identity resolves --as to the caller.
func (s *session) identity(ctx context.Context) (ledger.Identity, error) {
	if s.opts.As == "" {
		return ledger.Identity{}, NewExitError(ExitCommandError, "--as is required")
	}
	id, err := s.engine.Identity(ctx, s.opts.As)
	if err != nil {
		return ledger.Identity{}, s.out.LedgerError(err)
	}
	return id, nil
}

// withSession wraps a command body with session setup and teardown.
func withSession(opts *RootOptions, fn func(ctx context.Context, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, opts)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd.Context(), s, args)
	}
}

// asCaller is withSession for commands that act as --as.
func asCaller(opts *RootOptions, fn func(ctx context.Context, s *session, id ledger.Identity, args []string) error) func(*cobra.Command, []string) error {
	return withSession(opts, func(ctx context.Context, s *session, args []string) error {
		id, err := s.identity(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, s, id, args)
	})
}
