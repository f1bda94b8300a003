package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/jobmatch/internal/app"
	"github.com/markdave123-py/jobmatch/internal/core/queue"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch all enabled job sources and store new postings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Ingestor.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d new postings\n", n)
			return nil
		})
	},
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Enqueue the daily ingestion and matching run",
	Long: `Enqueue a daily task. With the redis backend the API workers pick it up.
With the memory backend a local worker pool runs the task and the match
tasks it fans out, and the command returns once all of them are done.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			mq, local := a.Queue.(*queue.MemoryQueue)
			if !local {
				t, err := a.Orchestrator.TriggerDaily(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued daily task %s\n", t.ID)
				return nil
			}

			wctx, stop := context.WithCancel(ctx)
			a.Worker.Start(wctx, a.Config.Queue.Workers)
			_, err := a.Orchestrator.TriggerDaily(ctx)
			if err == nil {
				err = waitIdle(ctx, mq, 200*time.Millisecond)
			}
			stop()
			a.Worker.Wait()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daily run finished, %d tasks dead-lettered\n", len(mq.Dead()))
			return nil
		})
	},
}

// waitIdle blocks until mq has no waiting or running tasks.
func waitIdle(ctx context.Context, mq *queue.MemoryQueue, every time.Duration) error {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for mq.Outstanding() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

var (
	matchUser     string
	matchTopK     int
	matchLookback time.Duration
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match one user's latest resume against recent postings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			topK, lookback := a.Config.Schedule.TopK, a.Config.Schedule.Lookback
			if matchTopK > 0 {
				topK = matchTopK
			}
			if matchLookback > 0 {
				lookback = matchLookback
			}
			n, err := a.Matcher.MatchForUser(ctx, matchUser, topK, lookback)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d new matches for %s\n", n, matchUser)
			return nil
		})
	},
}

var processResume string

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process an uploaded resume now",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Processor.Process(ctx, processResume); err != nil {
				return err
			}
			r, err := a.DBClient.GetResume(ctx, processResume)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resume %s is %s\n", r.ID, r.Status)
			return nil
		})
	},
}

var backfillLimit int

var backfillCmd = &cobra.Command{
	Use:   "backfill-embeddings",
	Short: "Embed stored postings that have no vector",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Ingestor.BackfillEmbeddings(ctx, backfillLimit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedded %d postings\n", n)
			return nil
		})
	},
}

var deadLimit int64

var deadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "List tasks that exhausted their retries",
	Long: `List dead-lettered tasks, newest first. Only the redis backend keeps
them across processes; the memory backend starts empty.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return printDeadLetters(ctx, cmd.OutOrStdout(), a.Queue, deadLimit)
		})
	},
}

func printDeadLetters(ctx context.Context, w io.Writer, q queue.Queue, limit int64) error {
	r, ok := q.(queue.DeadLetterReader)
	if !ok {
		return fmt.Errorf("queue %T cannot list dead letters", q)
	}
	tasks, err := r.DeadLetters(ctx, limit)
	if err != nil {
		return fmt.Errorf("list dead letters: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no dead-lettered tasks")
		return nil
	}
	for _, t := range tasks {
		subject := t.UserID
		if t.ResumeID != "" {
			subject = t.ResumeID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\tattempt=%d\t%s\t%s\n",
			t.ID, t.Kind, subject, t.Attempt, t.EnqueuedAt.Format(time.RFC3339), t.LastError)
	}
	return nil
}

func init() {
	matchCmd.Flags().StringVar(&matchUser, "user", "", "user id to match")
	matchCmd.Flags().IntVar(&matchTopK, "top-k", 0, "number of nearest postings to consider (default from config)")
	matchCmd.Flags().DurationVar(&matchLookback, "lookback", 0, "only consider postings created within this window (default from config)")
	_ = matchCmd.MarkFlagRequired("user")

	processCmd.Flags().StringVar(&processResume, "resume", "", "resume id to process")
	_ = processCmd.MarkFlagRequired("resume")

	backfillCmd.Flags().IntVar(&backfillLimit, "limit", 500, "maximum postings to embed")

	deadLettersCmd.Flags().Int64Var(&deadLimit, "limit", 20, "maximum tasks to list")

	rootCmd.AddCommand(ingestCmd, dailyCmd, matchCmd, processCmd, backfillCmd, deadLettersCmd)
}
