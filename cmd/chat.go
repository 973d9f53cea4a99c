package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"github.com/raglet/raglet/internal/app"
	"github.com/raglet/raglet/internal/tui"
)

var chatMode string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat TUI",
	RunE:  runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&chatMode, "mode", "m", "", "starting conversation mode (public or dual)")
	rootCmd.AddCommand(chatCmd)
}

// runChat starts the Bubble Tea TUI. Also the default action of the
// root command.
func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logs go to the state-dir file so the alt screen stays clean.
	a, err := app.Setup(ctx, app.Options{LogToFile: true})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	mode := chatMode
	if mode == "" {
		mode = a.Config.DefaultMode
	}

	model, err := tui.New(ctx, tui.Deps{
		Store:  a.Store,
		Guard:  a.Guard,
		Client: a.Client,
		Mode:   mode,
		Logger: a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}
