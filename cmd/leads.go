package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fieldsnap/internal/export"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect stored leads",
	Long:  "Commands for listing, viewing, and exporting leads.",
}

// -- leads list --

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := leadFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		ls, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}

		if len(ls) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(os.Stdout, ls)
		return nil
	},
}

// -- leads show --

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show full details of a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lead, err := st.GetLead(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "leads show")
		}
		if lead == nil {
			return eris.Wrapf(store.ErrNotFound, "leads show %s", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(lead)
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export <path.xlsx>",
	Short: "Export leads to a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter, err := leadFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		ls, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads export")
		}
		if err := export.WriteXLSX(ls, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d leads to %s\n", len(ls), args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsExportCmd} {
		c.Flags().String("status", "", "filter by processing status (received, processing, completed, failed)")
		c.Flags().String("qualification", "", "filter by qualification (qualified, unqualified)")
	}
	leadsListCmd.Flags().Int("limit", 50, "max number of leads to display")
	leadsExportCmd.Flags().Int("limit", 1000, "max number of leads to export")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsShowCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}

func leadFilterFromFlags(cmd *cobra.Command) (model.LeadFilter, error) {
	status, _ := cmd.Flags().GetString("status")
	qual, _ := cmd.Flags().GetString("qualification")
	limit, _ := cmd.Flags().GetInt("limit")

	f := model.LeadFilter{
		Status:        model.ProcessingStatus(status),
		Qualification: model.Qualification(qual),
		Limit:         limit,
	}
	switch f.Status {
	case "", model.StatusReceived, model.StatusProcessing, model.StatusCompleted, model.StatusFailed:
	default:
		return f, eris.Errorf("unknown status %q", status)
	}
	switch f.Qualification {
	case "", model.Qualified, model.Unqualified:
	default:
		return f, eris.Errorf("unknown qualification %q", qual)
	}
	return f, nil
}

// formatLeadsList writes a tabular list of leads to out.
func formatLeadsList(out io.Writer, ls []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBUSINESS\tSTATUS\tSCORE\tQUALIFICATION\tCREATED")
	for _, l := range ls {
		name := l.BusinessName
		if name == "" {
			name = "-"
		}
		qual := string(l.QualificationStatus)
		if qual == "" {
			qual = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%s\t%s\n",
			truncateID(l.ID),
			name,
			l.ProcessingStatus,
			l.LeadScore,
			qual,
			l.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID shortens a UUID to its first 8 characters for display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
