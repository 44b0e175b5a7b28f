package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-tavern/widget/internal/client/chatapi"
	"github.com/zhouzirui/z-tavern/widget/internal/config"
	"github.com/zhouzirui/z-tavern/widget/internal/logger"
	"github.com/zhouzirui/z-tavern/widget/internal/widget/controller"
	"github.com/zhouzirui/z-tavern/widget/internal/widget/store"
	"github.com/zhouzirui/z-tavern/widget/internal/widget/view"
)

func newChatCmd(flags *widgetFlags) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat widget",
		Long: `Open the chat widget in the terminal. A session is created on start
and the bot's greeting is shown. Enter sends, ctrl+e edits the last message,
ctrl+d deletes it and alt+1..9 picks a suggested reply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			logr, closer, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Prefix: "widget"})
			if err != nil {
				return fmt.Errorf("open log: %w", err)
			}
			defer closer.Close()

			client := chatapi.New(cfg.Widget.APIURL,
				chatapi.WithTimeout(cfg.Widget.Timeout),
				chatapi.WithLogger(logr),
				chatapi.WithPersona(cfg.Widget.Persona),
			)

			st := store.New()
			ctrl := controller.New(client, st, logr, controller.Options{
				RequireSession:   cfg.Widget.RequireSession,
				SerializeActions: cfg.Widget.SerializeActions,
			})

			updates, cancel := st.Subscribe()
			defer cancel()

			ctx := cmd.Context()
			model := view.New(ctx, ctrl, updates, view.Options{
				Title:                title,
				SurfaceErrors:        cfg.Widget.SurfaceErrors,
				Markdown:             cfg.Widget.Markdown,
				DisableSendWhileBusy: cfg.Widget.SerializeActions,
				Styles:               view.DefaultStyles(),
			})

			logr.Info("widget starting", "api", cfg.Widget.APIURL, "persona", cfg.Widget.Persona)
			if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("run widget: %w", err)
			}
			logr.Info("widget closed", "messages", ctrl.State().Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "Chatbot", "header title")
	return cmd
}

func loadConfig(flags *widgetFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	flags.apply(cfg)
	return cfg, nil
}
