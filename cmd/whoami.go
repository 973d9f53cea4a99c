package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raglet/raglet/internal/app"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored credential (token redacted)",
	RunE:  runWhoami,
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a, err := app.Setup(context.Background(), app.Options{})
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	cred, ok := a.Store.Current()
	if !ok {
		fmt.Println("Not logged in.")
		return nil
	}

	out, err := cred.MarshalRedacted()
	if err != nil {
		return fmt.Errorf("rendering credential: %w", err)
	}
	fmt.Println(string(out))

	if exp := cred.TokenExpiry(); !exp.IsZero() {
		if cred.Expired(time.Now()) {
			fmt.Printf("Token expired at %s. Run raglet login again.\n", exp.Format(time.RFC3339))
		} else {
			fmt.Printf("Token expires at %s.\n", exp.Format(time.RFC3339))
		}
	}
	return nil
}
