// Command hyperlink-cli drives the hyperlinking API from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var serverURL string

	root := &cobra.Command{
		Use:   "hyperlink-cli",
		Short: "Court bundle hyperlinking from the command line",
		Long: `hyperlink-cli registers case documents, runs the OCR and linking
pipeline, and manages human review of the produced hyperlinks.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "hyperlinkd base URL")

	client := &apiClient{baseURL: func() string { return serverURL }}
	root.AddCommand(
		newRegisterCmd(client),
		newProcessCmd(client),
		newLinksCmd(client),
		newOverrideCmd(client),
		newStatusCmd(client),
		newManifestCmd(client),
	)
	return root
}
