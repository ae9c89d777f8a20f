package cli

import (
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
)

func newSchemaCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the live deal schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "List the tables in the configured schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()

			b, err := s.connect(ctx)
			if err != nil {
				return err
			}
			tables, err := b.Catalog.ListTables(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tables)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns of a table as the engine sees them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()

			b, err := s.connect(ctx)
			if err != nil {
				return err
			}
			desc, err := b.Catalog.DescribeTable(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if !desc.Exists {
				return &apperrors.SchemaResolutionError{Table: args[0], Reason: "table does not exist"}
			}
			return printJSON(cmd.OutOrStdout(), desc)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Compare the live schema with the layout the engine writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()

			b, err := s.connect(ctx)
			if err != nil {
				return err
			}
			report, err := b.CheckSchema(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.OK() {
				return &apperrors.SchemaResolutionError{Table: "schema", Reason: report.String()}
			}
			return nil
		},
	})
	return cmd
}

func newMigrateCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()

			b, err := s.connect(ctx)
			if err != nil {
				return err
			}
			version, err := b.Migrate(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int64{"version": version})
		},
	}
}
