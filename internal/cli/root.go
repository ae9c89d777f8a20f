// Package cli implements dealctl, the operator command line over the deal
// service. Results are printed to stdout as JSON; failures are printed to
// stderr as the standard error envelope.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stwalsh4118/dealdesk/internal/app"
	"github.com/stwalsh4118/dealdesk/internal/config"
	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/logger"
	"github.com/stwalsh4118/dealdesk/internal/schema"
	"github.com/stwalsh4118/dealdesk/internal/services"
)

var (
	version = "dev"
	commit  = "none"
)

// Backend is what commands need from a connected engine.
type Backend struct {
	Deals   services.DealService
	Catalog schema.Catalog
	// Migrate applies pending migrations and returns the schema version.
	Migrate func(ctx context.Context) (int64, error)
	// CheckSchema compares the pinned layout with the live database.
	CheckSchema func(ctx context.Context) (schema.CompatibilityReport, error)
	Close       func()
}

// Opener connects a Backend. It is called once per command that needs one.
type Opener func(ctx context.Context, log *logger.Logger) (*Backend, error)

// Execute runs dealctl and returns the process exit code.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr, openRuntime)
}

func run(args []string, stdout, stderr io.Writer, open Opener) int {
	s := &session{open: open}
	defer s.close()

	root := newRootCmd(s)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		printError(stderr, err)
		if apperrors.Code(err) == apperrors.CodeInternal {
			return 1
		}
		return 2
	}
	return 0
}

// openRuntime connects using the same environment configuration as the server.
func openRuntime(ctx context.Context, log *logger.Logger) (*Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// The command decides when to migrate.
	cfg.Database.MigrateOnStart = false

	rt, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Deals:       rt.Deals,
		Catalog:     rt.Catalog,
		Migrate:     rt.Migrate,
		CheckSchema: rt.CheckSchema,
		Close:       rt.Close,
	}, nil
}

// session carries the state shared by subcommands of one invocation.
type session struct {
	open     Opener
	log      *logger.Logger
	backend  *Backend
	logLevel string
	actor    string
	timeout  time.Duration
}

// connect opens the backend on first use.
func (s *session) connect(ctx context.Context) (*Backend, error) {
	if s.backend != nil {
		return s.backend, nil
	}
	b, err := s.open(ctx, s.log)
	if err != nil {
		return nil, err
	}
	s.backend = b
	return b, nil
}

func (s *session) close() {
	if s.backend != nil && s.backend.Close != nil {
		s.backend.Close()
		s.backend = nil
	}
}

// commandContext returns the command context carrying the actor and deadline.
func (s *session) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if s.actor != "" {
		ctx = services.WithActor(ctx, s.actor)
	}
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func newRootCmd(s *session) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dealctl",
		Short:         "Operate the deal assumption store",
		Long:          "Command-line interface for creating deals, saving assumption tabs, and inspecting the live schema.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s.log = logger.NewConsole(cmd.ErrOrStderr(), s.logLevel)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.logLevel, "log-level", os.Getenv("LOG_LEVEL"), "Log level written to stderr (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&s.actor, "actor", os.Getenv("DEALCTL_ACTOR"), "User recorded in audit columns")
	rootCmd.PersistentFlags().DurationVar(&s.timeout, "timeout", time.Minute, "Deadline for the whole command")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newMigrateCmd(s))
	rootCmd.AddCommand(newDealCmd(s))
	rootCmd.AddCommand(newTabCmd(s))
	rootCmd.AddCommand(newSchemaCmd(s))
	rootCmd.AddCommand(newMetricsCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"version": version,
				"commit":  commit,
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// printError writes the error envelope. Unlike API responses, internal
// errors keep their message since the operator is the audience.
func printError(w io.Writer, err error) {
	resp := apperrors.NewErrorResponse(err)
	if resp.Error.Code == apperrors.CodeInternal {
		resp.Error.Message = err.Error()
	}
	_ = printJSON(w, resp)
}
