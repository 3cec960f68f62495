package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"recruitline/internal/batch"
	"recruitline/internal/domain"
	"recruitline/internal/engine"
	"recruitline/internal/feedback"
	"recruitline/internal/tui"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Bulk approve or reject",
		Long: `Walks the selected candidates one at a time, sending one feedback message
per candidate. Without --template the interactive review screen opens.`,
	}
	cmd.AddCommand(batchRunCmd(domain.ActionApprove))
	cmd.AddCommand(batchRunCmd(domain.ActionReject))
	return cmd
}

func batchRunCmd(action domain.Action) *cobra.Command {
	var (
		sub    feedback.Submission
		screen string
	)
	cmd := &cobra.Command{
		Use:   string(action) + " <candidate-id>...",
		Short: fmt.Sprintf("%s several candidates", action),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					b   *batch.Batch
					err error
				)
				if action == domain.ActionApprove {
					b, err = e.ApproveMany(ctx, args, domain.Screen(screen), actorID())
				} else {
					b, err = e.RejectMany(ctx, args, domain.Screen(screen), actorID())
				}
				if err != nil {
					return err
				}
				var p batch.Progress
				if sub.TemplateID != "" || sub.Content != "" {
					p, err = drainBatch(ctx, b, sub)
				} else {
					p, err = reviewBatch(ctx, b)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	feedbackFlags(cmd, &sub)
	cmd.Flags().StringVar(&screen, "screen", string(domain.ScreenNewCandidates), "new_candidates or in_review")
	return cmd
}

// drainBatch submits the same feedback to every candidate, drafting it from
// the template per candidate when subject or content are left empty. The
// first failure cancels what is left of the batch.
func drainBatch(ctx context.Context, b *batch.Batch, sub feedback.Submission) (batch.Progress, error) {
	for {
		p := b.Progress()
		if p.Done {
			return p, nil
		}
		fb := sub
		if fb.TemplateID != "" && (fb.Subject == "" || fb.Content == "") {
			_, d, err := b.Draft(ctx, fb.TemplateID)
			if err != nil {
				if b.Progress().Done {
					return b.Progress(), nil
				}
				return cancelAfter(ctx, b, err)
			}
			if fb.Subject == "" {
				fb.Subject = d.Subject
			}
			if fb.Content == "" {
				fb.Content = d.Content
			}
		}
		if _, err := b.Submit(ctx, fb); err != nil {
			return cancelAfter(ctx, b, err)
		}
	}
}

func cancelAfter(ctx context.Context, b *batch.Batch, cause error) (batch.Progress, error) {
	p, err := b.Cancel(ctx)
	if err != nil {
		return p, fmt.Errorf("%w (cancel: %v)", cause, err)
	}
	return p, fmt.Errorf("batch canceled after %d of %d: %w", p.Processed, p.Total, cause)
}

func reviewBatch(ctx context.Context, b *batch.Batch) (batch.Progress, error) {
	m := tui.NewReview(ctx, b)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(os.Stderr)).Run(); err != nil {
		return m.Progress(), err
	}
	if p := m.Progress(); !p.Done {
		// Quit without finishing: drop the rest so nothing stays half-open.
		return b.Cancel(ctx)
	}
	return m.Progress(), nil
}
