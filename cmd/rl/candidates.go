package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"recruitline/internal/domain"
	"recruitline/internal/engine"
	"recruitline/internal/feedback"
	"recruitline/internal/listing"
)

func candidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "candidate",
		Aliases: []string{"cand"},
		Short:   "Manage candidates",
	}
	cmd.AddCommand(candidateListCmd())
	cmd.AddCommand(candidateShowCmd())
	cmd.AddCommand(candidateCreateCmd())
	cmd.AddCommand(candidateStageCmd())
	cmd.AddCommand(candidateTakeOutCmd())
	cmd.AddCommand(candidateTransferCmd())
	cmd.AddCommand(candidateArchiveCmd())
	cmd.AddCommand(candidateDecideCmd(domain.ActionApprove))
	cmd.AddCommand(candidateDecideCmd(domain.ActionReject))
	cmd.AddCommand(candidateFeedbackCmd())
	return cmd
}

func candidateListCmd() *cobra.Command {
	var (
		search, stage, status, disposition, openingID string
		page, size                                    int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := listing.Filter{
				Search:      search,
				Stage:       domain.Stage(stage),
				Disposition: domain.Disposition(disposition),
				OpeningID:   openingID,
			}
			if status != "" {
				s, ok := domain.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				f.Status = &s
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ListCandidates(ctx, f, page, size)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				if err := printCandidates(res.Items); err != nil {
					return err
				}
				fmt.Printf("page %d of %d, %d candidate(s)\n", res.Page, res.Pages, res.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "match name, email, role or skills")
	cmd.Flags().StringVar(&stage, "stage", "", "applied, cv_review or ready_for_interview")
	cmd.Flags().StringVar(&status, "status", "", "qualified, not_qualified or undecided")
	cmd.Flags().StringVar(&disposition, "disposition", string(domain.DispositionActive), "active, rejected or archived")
	cmd.Flags().StringVar(&openingID, "opening", "", "opening id")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "page-size", 0, "page size (config default when 0)")
	return cmd
}

func candidateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <candidate-id>",
		Short: "Show a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCandidate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func candidateCreateCmd() *cobra.Command {
	var (
		opts    engine.CandidateCreateOptions
		applied string
		stage   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			if applied != "" {
				t, err := time.Parse(time.DateOnly, applied)
				if err != nil {
					if t, err = time.Parse(time.RFC3339, applied); err != nil {
						return fmt.Errorf("--applied must be YYYY-MM-DD or RFC 3339")
					}
				}
				opts.AppliedAt = t
			}
			opts.Stage = domain.Stage(stage)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = actorID()
				c, err := e.CreateCandidate(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "candidate id (generated when empty)")
	cmd.Flags().StringVar(&opts.OpeningID, "opening", "", "opening id")
	cmd.Flags().StringVar(&opts.FormTitle, "form-title", "", "application form title, used when no opening id is given")
	cmd.Flags().StringVar(&opts.Name, "name", "", "full name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.Role, "role", "", "current role")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	cmd.Flags().StringSliceVar(&opts.Skills, "skill", nil, "skill (repeatable)")
	cmd.Flags().StringVar(&applied, "applied", "", "application date (now when empty)")
	cmd.Flags().StringVar(&stage, "stage", "", "initial stage")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func printTransition(c domain.Candidate, applied bool) error {
	if !applied {
		if viper.GetBool("json") {
			return printJSON(map[string]any{"applied": false})
		}
		fmt.Println("candidate not found, nothing changed")
		return nil
	}
	return printJSONOrTable(c)
}

func candidateStageCmd() *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "stage <candidate-id> <stage>",
		Short: "Move a candidate to a stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, applied, err := e.SetStage(ctx, args[0], domain.Stage(args[1]), version, actorID())
				if err != nil {
					return err
				}
				return printTransition(c, applied)
			})
		},
	}
	cmd.Flags().IntVar(&version, "expected-version", 0, "fail if the candidate changed since this version")
	return cmd
}

func candidateTakeOutCmd() *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "take-out <candidate-id>",
		Short: "Send a candidate back to the applied stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, applied, err := e.TakeOut(ctx, args[0], version, actorID())
				if err != nil {
					return err
				}
				return printTransition(c, applied)
			})
		},
	}
	cmd.Flags().IntVar(&version, "expected-version", 0, "fail if the candidate changed since this version")
	return cmd
}

func candidateTransferCmd() *cobra.Command {
	var opts engine.TransferOptions
	cmd := &cobra.Command{
		Use:   "transfer <candidate-id>...",
		Short: "Move candidates to another opening, all or nothing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.IDs = args
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = actorID()
				moved, err := e.Transfer(ctx, opts)
				if err != nil {
					return err
				}
				return printCandidates(moved)
			})
		},
	}
	cmd.Flags().StringVar(&opts.TargetOpeningID, "to", "", "target opening id")
	cmd.Flags().BoolVar(&opts.KeepPreviousData, "keep-previous", false, "record the current opening in the candidate's prior jobs")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func candidateArchiveCmd() *cobra.Command {
	var version int
	cmd := &cobra.Command{
		Use:   "archive <candidate-id>",
		Short: "Move a candidate to the archived view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Archive(ctx, args[0], version, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().IntVar(&version, "expected-version", 0, "fail if the candidate changed since this version")
	return cmd
}

func feedbackFlags(cmd *cobra.Command, sub *feedback.Submission) {
	cmd.Flags().StringVar(&sub.TemplateID, "template", "", "template id; fills subject and content when they are empty")
	cmd.Flags().StringVar(&sub.Subject, "subject", "", "feedback subject")
	cmd.Flags().StringVar(&sub.Content, "content", "", "feedback content")
	cmd.Flags().StringVar(&sub.Attachment, "attachment", "", "attachment reference")
}

// fillFromTemplate completes sub from its template when subject or content
// were not given. Placeholders are rendered when the message is sent.
func fillFromTemplate(ctx context.Context, e engine.Engine, sub feedback.Submission) (feedback.Submission, error) {
	if sub.TemplateID == "" || (sub.Subject != "" && sub.Content != "") {
		return sub, nil
	}
	catalog, err := e.ListTemplates(ctx, "")
	if err != nil {
		return sub, err
	}
	for _, t := range catalog {
		if t.ID != sub.TemplateID {
			continue
		}
		if sub.Subject == "" {
			sub.Subject = t.Subject
		}
		if sub.Content == "" {
			sub.Content = t.Content
		}
		return sub, nil
	}
	return sub, domain.Invalid("template_id", fmt.Sprintf("unknown template %s", sub.TemplateID))
}

func candidateDecideCmd(action domain.Action) *cobra.Command {
	var (
		sub     feedback.Submission
		screen  string
		version int
	)
	cmd := &cobra.Command{
		Use:   string(action) + " <candidate-id>",
		Short: fmt.Sprintf("%s a candidate and send feedback", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				full, err := fillFromTemplate(ctx, e, sub)
				if err != nil {
					return err
				}
				res, err := e.Decide(ctx, engine.DecideOptions{
					CandidateID:     args[0],
					Action:          action,
					Screen:          domain.Screen(screen),
					Feedback:        full,
					ExpectedVersion: version,
					ActorID:         actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	feedbackFlags(cmd, &sub)
	cmd.Flags().StringVar(&screen, "screen", string(domain.ScreenNewCandidates), "new_candidates or in_review")
	cmd.Flags().IntVar(&version, "expected-version", 0, "fail if the candidate changed since this version")
	return cmd
}

func candidateFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <candidate-id>",
		Short: "Feedback sent to a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListFeedback(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
}
