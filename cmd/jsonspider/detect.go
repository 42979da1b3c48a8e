package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/simplejsonspider/internal/detect"
	"github.com/jonathan/simplejsonspider/internal/observability"
)

func newDetectCmd() *cobra.Command {
	var prettify bool
	cmd := &cobra.Command{
		Use:   "detect <file>...",
		Short: "Classify local files",
		Long:  "Prints the detected content type of each file. With --prettify the reformatted content of a single file is printed instead.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			if prettify && len(args) != 1 {
				return fmt.Errorf("--prettify takes exactly one file")
			}

			out := cmd.OutOrStdout()
			printer := observability.NewPrinter(out)
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				t := detect.Classify(string(data))

				switch {
				case prettify:
					_, _ = fmt.Fprintln(out, detect.Prettify(string(data), t))
				case verbose:
					printer.PrintDetection(path, t, len(data))
				default:
					_, _ = fmt.Fprintf(out, "%s\t%s\n", path, t)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&prettify, "prettify", false, "Print the reformatted content")
	return cmd
}
