package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
	"github.com/stwalsh4118/dealdesk/internal/models"
)

func newTabCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tab",
		Short: "Save assumption tabs",
	}
	cmd.AddCommand(newTabSaveCmd(s))
	cmd.AddCommand(newTabListCmd())
	return cmd
}

// tabSaveResult is printed after a successful save.
type tabSaveResult struct {
	Tab      string `json:"tab"`
	DealID   int64  `json:"deal_id"`
	RecordID int64  `json:"record_id"`
}

func newTabSaveCmd(s *session) *cobra.Command {
	var flags fieldFlags
	cmd := &cobra.Command{
		Use:   "save <tab> <deal-id>",
		Short: "Save the supplied fields of one tab",
		Long: "Save the supplied fields of one tab. Fields that are not supplied keep their stored values.\n" +
			"Tabs: " + strings.Join(models.TabNames(), ", "),
		Example: "  dealctl tab save acquisition 7 --set purchase_price=12500000 --set hold_period=7\n" +
			"  dealctl tab save revenue 7 --file revenue.json",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, ok := models.ParseTab(args[0])
			if !ok {
				return &apperrors.ValidationError{
					Field:  "tab",
					Reason: fmt.Sprintf("unknown tab %q, expected one of %s", args[0], strings.Join(models.TabNames(), ", ")),
				}
			}
			dealID, err := parseDealID(args[1])
			if err != nil {
				return err
			}
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
			id, err := b.Deals.SaveTab(ctx, string(tab.Kind), dealID, fields)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tabSaveResult{Tab: string(tab.Kind), DealID: dealID, RecordID: id})
		},
	}
	addFieldFlags(cmd, &flags)
	return cmd
}

// tabInfo describes one tab for `tab list`.
type tabInfo struct {
	Tab    string   `json:"tab"`
	Table  string   `json:"table"`
	Fields []string `json:"fields"`
}

func newTabListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tabs and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tabs := models.Tabs()
			out := make([]tabInfo, 0, len(tabs))
			for _, tab := range tabs {
				info := tabInfo{Tab: string(tab.Kind), Table: tab.Table}
				for _, f := range tab.Fields {
					info.Fields = append(info.Fields, f.Name)
				}
				out = append(out, info)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
