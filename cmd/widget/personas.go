package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-tavern/widget/internal/client/chatapi"
)

func newPersonasCmd(flags *widgetFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the personas the service offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			client := chatapi.New(cfg.Widget.APIURL, chatapi.WithTimeout(cfg.Widget.Timeout))
			return printPersonas(cmd.Context(), client, cmd.OutOrStdout())
		},
	}
}

type personaLister interface {
	ListPersonas(ctx context.Context) ([]chatapi.Persona, error)
}

func printPersonas(ctx context.Context, client personaLister, out io.Writer) error {
	personas, err := client.ListPersonas(ctx)
	if err != nil {
		return fmt.Errorf("list personas: %w", err)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "GREETING")
	for _, p := range personas {
		t.Row(p.ID, p.Name, p.OpeningLine)
	}
	_, err = fmt.Fprintln(out, t.String())
	return err
}
