// Command tos-transfer is a thin CLI over the tos package: upload, download,
// and resume one object against a TOS-compatible endpoint, with a terminal
// progress bar and structured logging.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ares89/ve-tos-go-sdk/internal/logging"
)

func main() {
	logger := logging.NewLogger()
	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(logger *logging.Logger) *cobra.Command {
	var (
		endpoint string
		region   string
	)

	root := &cobra.Command{
		Use:           "tos-transfer",
		Short:         "Resumable upload/download against a TOS-compatible object store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&endpoint, "endpoint", os.Getenv("TOS_ENDPOINT"), "TOS-compatible endpoint (default: $TOS_ENDPOINT)")
	root.PersistentFlags().StringVar(&region, "region", os.Getenv("TOS_REGION"), "signing region (default: $TOS_REGION)")

	root.AddCommand(newUploadCmd(logger, &endpoint, &region))
	root.AddCommand(newDownloadCmd(logger, &endpoint, &region))
	root.AddCommand(newResumeCmd(logger, &endpoint, &region))
	return root
}
