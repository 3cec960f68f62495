package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"recruitline/internal/domain"
	"recruitline/internal/engine"
)

func templateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "template", Short: "Feedback templates"}
	cmd.AddCommand(templateListCmd())
	cmd.AddCommand(templateCreateCmd())
	cmd.AddCommand(templateOfferedCmd())
	return cmd
}

func printTemplates(items []domain.FeedbackTemplate) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Type", "Subject"})
	for _, t := range items {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Type, t.Subject})
	}
	tw.Render()
	return nil
}

func templateListCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the template catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListTemplates(ctx, domain.TemplateType(typ))
				if err != nil {
					return err
				}
				return printTemplates(items)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "acceptance, rejection, interview or other")
	return cmd
}

func templateCreateCmd() *cobra.Command {
	var (
		opts engine.TemplateCreateOptions
		typ  string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a template",
		Long:  "Subject and content may use {candidate_name} and {position}.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Type = domain.TemplateType(typ)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = actorID()
				t, err := e.CreateTemplate(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "template id (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "subject")
	cmd.Flags().StringVar(&opts.Content, "content", "", "content")
	cmd.Flags().StringVar(&typ, "type", "", "acceptance, rejection, interview or other")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func templateOfferedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offered <approve|reject>",
		Short: "Templates offered when deciding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.OfferedTemplates(ctx, domain.Action(args[0]))
				if err != nil {
					return err
				}
				return printTemplates(items)
			})
		},
	}
}
