package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fieldsnap/internal/leads"
	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/store"
)

var (
	resumeAll  bool
	rescoreAll bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume [lead-id...]",
	Short: "Resume unfinished leads, skipping stages already done",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if resumeAll {
			ids, err = unfinishedLeadIDs(ctx, env.Store)
			if err != nil {
				return err
			}
		}
		if len(ids) == 0 {
			return eris.New("resume: provide lead IDs or --all")
		}

		return forEachLead(ctx, ids, "resumed", func(ctx context.Context, id string) (*model.Lead, error) {
			lead, err := env.Orchestrator.Resume(ctx, id)
			if eris.Is(err, leads.ErrTerminal) {
				zap.L().Info("lead already finished", zap.String("lead_id", id))
				return nil, nil
			}
			return lead, err
		})
	},
}

var rescoreCmd = &cobra.Command{
	Use:   "rescore [lead-id...]",
	Short: "Recompute scores for extracted leads under the current rule table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if rescoreAll {
			all, err := env.Store.ListLeads(ctx, model.LeadFilter{Limit: 10000})
			if err != nil {
				return eris.Wrap(err, "rescore: list leads")
			}
			ids = make([]string, 0, len(all))
			for _, l := range all {
				if l.ProcessingSteps.Done(model.StageExtraction) {
					ids = append(ids, l.ID)
				}
			}
		}
		if len(ids) == 0 {
			return eris.New("rescore: provide lead IDs or --all")
		}

		return forEachLead(ctx, ids, "rescored", func(ctx context.Context, id string) (*model.Lead, error) {
			lead, err := env.Orchestrator.Rescore(ctx, id)
			if eris.Is(err, leads.ErrNotExtracted) {
				zap.L().Warn("lead has no extraction to score", zap.String("lead_id", id))
				return nil, nil
			}
			return lead, err
		})
	},
}

func init() {
	resumeCmd.Flags().BoolVar(&resumeAll, "all", false, "resume every received or processing lead")
	rescoreCmd.Flags().BoolVar(&rescoreAll, "all", false, "rescore every extracted lead")
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(rescoreCmd)
}

// unfinishedLeadIDs lists leads left in received or processing, e.g.
// after a crash or a lost queue task.
func unfinishedLeadIDs(ctx context.Context, st store.Store) ([]string, error) {
	var ids []string
	for _, status := range []model.ProcessingStatus{model.StatusReceived, model.StatusProcessing} {
		ls, err := st.ListLeads(ctx, model.LeadFilter{Status: status, Limit: 10000})
		if err != nil {
			return nil, eris.Wrapf(err, "list %s leads", status)
		}
		for _, l := range ls {
			ids = append(ids, l.ID)
		}
	}
	return ids, nil
}

// forEachLead applies fn to each ID in order and prints one summary line
// per lead. It stops on the first error.
func forEachLead(ctx context.Context, ids []string, verb string, fn func(context.Context, string) (*model.Lead, error)) error {
	var n int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		lead, err := fn(ctx, id)
		if err != nil {
			return eris.Wrapf(err, "%s %s", verb, id)
		}
		if lead == nil {
			continue
		}
		n++
		fmt.Fprintf(os.Stdout, "%s\t%s\t%.0f\t%s\n", lead.ID, lead.ProcessingStatus, lead.LeadScore, lead.QualificationStatus)
	}
	zap.L().Info("done", zap.String("action", verb), zap.Int("leads", n))
	return nil
}
