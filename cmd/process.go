package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fieldsnap/internal/export"
	"github.com/sells-group/fieldsnap/internal/model"
)

var (
	processLocation    string
	processNotes       string
	processFile        string
	processLimit       int
	processConcurrency int
)

var processCmd = &cobra.Command{
	Use:   "process [image-url]",
	Short: "Process one image URL, or a spreadsheet of them, synchronously",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var reqs []model.IngestRequest
		switch {
		case processFile != "":
			r, err := export.ReadImageRequests(processFile)
			if err != nil {
				return err
			}
			reqs = r
		case len(args) == 1:
			reqs = []model.IngestRequest{{
				ImageURL:       args[0],
				SourceLocation: processLocation,
				SourceNotes:    processNotes,
			}}
		default:
			return eris.New("process: provide an image URL or --file")
		}

		env, err := initApp(ctx, "process")
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := processConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Queue.Concurrency
		}

		summary, err := processBatch(ctx, reqs, processLimit, concurrency, env.Orchestrator.ProcessLead)
		if err != nil {
			return err
		}
		return writeBatchSummary(os.Stdout, summary)
	},
}

func init() {
	processCmd.Flags().StringVar(&processLocation, "location", "", "where the photo was taken")
	processCmd.Flags().StringVar(&processNotes, "notes", "", "free-form notes about the photo")
	processCmd.Flags().StringVar(&processFile, "file", "", "xlsx file with an image URL column")
	processCmd.Flags().IntVar(&processLimit, "limit", 100, "max number of rows to process from --file")
	processCmd.Flags().IntVar(&processConcurrency, "concurrency", 0, "parallel leads (default from queue.concurrency)")
	rootCmd.AddCommand(processCmd)
}

// processFunc runs the full pipeline for one ingestion request.
type processFunc func(ctx context.Context, req model.IngestRequest) (*model.Lead, error)

// batchSummary is the JSON written after a process run.
type batchSummary struct {
	Total     int          `json:"total"`
	Succeeded int64        `json:"succeeded"`
	Failed    int64        `json:"failed"`
	Leads     []model.Lead `json:"leads"`
}

// processBatch applies limit, then runs reqs concurrently. A lead that
// ends in the failed state counts as failed; so does a request that never
// produced a lead.
func processBatch(ctx context.Context, reqs []model.IngestRequest, limit, concurrency int, process processFunc) (*batchSummary, error) {
	if limit > 0 && len(reqs) > limit {
		reqs = reqs[:limit]
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("requests", len(reqs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64
	var mu sync.Mutex
	results := make([]model.Lead, 0, len(reqs))

	for _, req := range reqs {
		g.Go(func() error {
			log := zap.L().With(zap.String("image_url", req.ImageURL))

			lead, err := process(gctx, req)
			if err != nil {
				failed.Add(1)
				log.Error("lead processing failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			if lead.ProcessingStatus == model.StatusFailed {
				failed.Add(1)
				log.Warn("lead failed", zap.String("lead_id", lead.ID), zap.String("error", lead.ProcessingError))
			} else {
				succeeded.Add(1)
				log.Info("lead processed",
					zap.String("lead_id", lead.ID),
					zap.Float64("score", lead.LeadScore),
					zap.String("qualification", string(lead.QualificationStatus)),
				)
			}

			mu.Lock()
			results = append(results, *lead)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)

	return &batchSummary{
		Total:     len(reqs),
		Succeeded: succeeded.Load(),
		Failed:    failed.Load(),
		Leads:     results,
	}, nil
}

func writeBatchSummary(w io.Writer, s *batchSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
