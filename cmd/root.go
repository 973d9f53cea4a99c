// Package cmd defines the raglet command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "raglet",
	Short: "Raglet is a terminal client for the RAG chat service",
	Long: `Raglet is a terminal client for the RAG chat service.

Running raglet without arguments opens the interactive chat TUI.
Use "raglet login" first to store a credential, or browse public
conversations anonymously.`,
	SilenceUsage: true,
	RunE:         runChat,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
