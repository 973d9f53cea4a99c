package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raglet/raglet/internal/app"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored credential",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := app.Setup(context.Background(), app.Options{})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if _, ok := a.Store.Current(); !ok {
		fmt.Println("Not logged in.")
		return nil
	}
	if err := a.Store.Clear(); err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}
	fmt.Println("Logged out.")
	return nil
}
