package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raglet/raglet/internal/app"
	"github.com/raglet/raglet/internal/convo"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"convs"},
	Short:   "Manage conversations without opening the TUI",
}

func init() {
	conversationsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List conversations for the current mode",
		RunE:  runConversationsList,
	})
	conversationsCmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Create an empty conversation",
		RunE:  runConversationsNew,
	})
	rootCmd.AddCommand(conversationsCmd)
}

// newDirectory builds a conversation directory for the flag-selected
// mode, defaulting to the configured one.
func newDirectory(a *app.App) *convo.Directory {
	mode := chatMode
	if mode == "" {
		mode = a.Config.DefaultMode
	}
	return convo.NewDirectory(a.Client, mode, a.Logger)
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := app.Setup(ctx, app.Options{})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	dir := newDirectory(a)
	convs, err := dir.List(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}
	if len(convs) == 0 {
		fmt.Printf("No conversations in %s mode.\n", dir.Mode())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPDATED\tTITLE")
	for _, c := range convs {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.UpdatedAt.Format("2006-01-02 15:04"), c.DisplayTitle())
	}
	return w.Flush()
}

func runConversationsNew(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := app.Setup(ctx, app.Options{})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	dir := newDirectory(a)
	conv, err := dir.Create(ctx)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	fmt.Printf("Created conversation %d in %s mode.\n", conv.ID, dir.Mode())
	return nil
}
