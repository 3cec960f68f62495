package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"recruitline/internal/domain"
	"recruitline/internal/engine"
	"recruitline/internal/listing"
)

func openingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opening",
		Short: "Manage job openings",
		Long:  "Openings receive applications in waves. Closing ends the current wave; reopening starts the next.",
	}
	cmd.AddCommand(openingListCmd())
	cmd.AddCommand(openingCreateCmd())
	cmd.AddCommand(openingStatusCmd("close", "Close an opening and its current wave", engine.Engine.CloseOpening))
	cmd.AddCommand(openingStatusCmd("reopen", "Reopen an opening with a new wave", engine.Engine.ReopenOpening))
	cmd.AddCommand(openingWavesCmd())
	return cmd
}

func openingListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List openings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListOpenings(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Company", "Status", "Waves"})
				for _, o := range items {
					tw.AppendRow(table.Row{o.ID, o.Title, o.CompanyName, o.Status, len(o.Waves)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func openingCreateCmd() *cobra.Command {
	var opts engine.OpeningCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an opening",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = actorID()
				o, err := e.CreateOpening(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "opening id (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "job title")
	cmd.Flags().StringVar(&opts.CompanyName, "company", "", "company name")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func openingStatusCmd(use, short string, fn func(engine.Engine, context.Context, string, string) (domain.JobOpening, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <opening-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := fn(e, ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

func openingWavesCmd() *cobra.Command {
	var search, status string
	cmd := &cobra.Command{
		Use:   "waves <opening-id>",
		Short: "Candidates of an opening grouped by wave",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := listing.Filter{Search: search}
			if status != "" {
				s, ok := domain.ParseStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				f.Status = &s
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				groups, err := e.Waves(ctx, args[0], f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(groups)
				}
				for _, g := range groups {
					closed := "open"
					if g.Wave.ClosedAt != nil {
						closed = g.Wave.ClosedAt.Format(time.DateOnly)
					}
					fmt.Printf("Wave %d (%s to %s): %d candidate(s)\n", g.Wave.Number, g.Wave.OpenedAt.Format(time.DateOnly), closed, len(g.Candidates))
					for _, c := range g.Candidates {
						fmt.Printf("  %s  %s  [%s, %s]\n", c.ID, c.Name, c.Stage, c.Status)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "match name, email, role or skills")
	cmd.Flags().StringVar(&status, "status", "", "qualified, not_qualified or undecided")
	return cmd
}
