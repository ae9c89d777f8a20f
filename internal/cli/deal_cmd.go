package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/models"
	"github.com/stwalsh4118/dealdesk/internal/services"
)

func newDealCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deal",
		Short: "Create and inspect deals",
	}
	cmd.AddCommand(newDealCreateCmd(s))
	cmd.AddCommand(newDealShowCmd(s))
	cmd.AddCommand(newDealListCmd(s))
	return cmd
}

func newDealCreateCmd(s *session) *cobra.Command {
	var flags fieldFlags
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a deal header",
		Example: "  dealctl deal create --set deal_name='Harbor Inn' --set city=Portland --set rooms=97",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fields, err := flags.collect()
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()

			b, err := s.connect(ctx)
			if err != nil {
				return err
			}
			id, err := b.Deals.CreateDeal(ctx, models.NewDeal{Fields: fields, Actor: s.actor})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int64{"id": id})
		},
	}
	addFieldFlags(cmd, &flags)
	return cmd
}

func newDealShowCmd(s *session) *cobra.Command {
	var assumptions bool
	cmd := &cobra.Command{
		Use:   "show <deal-id>",
		Short: "Show a deal with its metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dealID, err := parseDealID(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := s.commandContext(cmd)
			defer cancel()

			b, err := s.connect(ctx)
			if err != nil {
				return err
			}
			summary, err := b.Deals.GetDealSummary(ctx, dealID)
			if err != nil {
				return err
			}
			if !assumptions {
				summary.Assumptions = nil
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().BoolVarP(&assumptions, "assumptions", "a", true, "Include the flattened assumptions")
	return cmd
}

func newDealListCmd(s *session) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently updated deals with their metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := s.commandContext(cmd)
			defer cancel()

			b, err := s.connect(ctx)
			if err != nil {
				return err
			}
			deals, err := b.Deals.ListDeals(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), deals)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", services.DefaultListLimit, fmt.Sprintf("Maximum deals to list (at most %d)", services.MaxListLimit))
	return cmd
}

func addFieldFlags(cmd *cobra.Command, flags *fieldFlags) {
	cmd.Flags().StringArrayVar(&flags.sets, "set", nil, "Field assignment key=value (repeatable; value null clears the field)")
	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "JSON object of fields")
}

func parseDealID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, &apperrors.ValidationError{Field: "deal_id", Reason: fmt.Sprintf("must be a positive integer, got %q", arg)}
	}
	return id, nil
}
