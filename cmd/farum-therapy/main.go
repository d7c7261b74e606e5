package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/farum-therapy/internal/observability"
)

var (
	rootCmd = &cobra.Command{
		Use:   "farum-therapy",
		Short: "Supportive conversation agent with crisis-aware response routing",
		Long: `farum-therapy runs the conversation pipeline behind an HTTP and websocket API
(serve) or as an interactive terminal session (chat).

Configuration is read from FARUM_* environment variables.`,
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket API",
		RunE:  runServe, // Defined in serve.go
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent from the terminal",
		RunE:  runChat, // Defined in chat.go
	}
)

func init() {
	chatCmd.Flags().String("log-level", "warn", "log level while chatting (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		observability.Logger().Error("command failed", "error", err)
		os.Exit(1)
	}
}
