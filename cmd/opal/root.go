package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/opalchat/opal/internal/config"
	"github.com/opalchat/opal/internal/server"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "opal",
	Short: "Chat backend with streaming LLM proxy and long-term memory",
	Long: `Opal is a chat backend that streams conversations through an
OpenAI-compatible API, persists session history in SQLite, and maintains
a bounded long-term user profile via a background summarizer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (yaml)")
}

func runServer() error {
	// .env is optional; real env vars take precedence either way
	godotenv.Load()

	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal: %v - shutting down...\n", sig)
		cancel()
	}()

	return server.Run(ctx, c)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
