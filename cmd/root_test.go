package cmd

import (
	"testing"
)

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "raglet" {
		t.Errorf("Use = %q, want %q", rootCmd.Use, "raglet")
	}
	if rootCmd.RunE == nil {
		t.Error("root command should run the chat TUI by default")
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"chat", "login", "logout", "whoami", "conversations", "serve", "version"}
	for _, name := range want {
		t.Run(name, func(t *testing.T) {
			for _, c := range rootCmd.Commands() {
				if c.Name() == name {
					return
				}
			}
			t.Errorf("subcommand %q not registered", name)
		})
	}
}

func TestFlags(t *testing.T) {
	if rootCmd.PersistentFlags().Lookup("mode") == nil {
		t.Error("missing persistent --mode flag")
	}
	if loginCmd.Flags().Lookup("username") == nil || loginCmd.Flags().Lookup("password") == nil {
		t.Error("login command missing credential flags")
	}
	if serveCmd.Flags().Lookup("addr") == nil {
		t.Error("serve command missing --addr flag")
	}
}
