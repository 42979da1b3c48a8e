// Package main provides the jsonspider command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jsonspider",
		Short: "Fetch a payload and save it under a name built from its content",
		Long: "jsonspider downloads a JSON, YAML, WebVTT, XML, CSV or text payload, detects its type, " +
			"optionally reformats it and writes it to a file named from a template filled with the payload's fields.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging and a summary of each result")

	root.AddCommand(newFetchCmd(), newDetectCmd(), newValidateCmd())
	return root
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
