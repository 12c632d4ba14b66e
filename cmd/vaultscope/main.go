// vaultscope extracts bulk CSV reports from privileged-vault REST APIs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vaultscope/vaultscope/cmd/vaultscope/cli"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "vaultscope",
		Short: "Bulk CSV extraction for privileged-vault REST APIs",
		Long: `vaultscope extracts large paginated datasets (privileged accounts, vault
users, safes) from a vault management REST API and streams them to CSV
reports without loading full datasets into memory. Transient API failures
are retried with exponential backoff; expired tokens are refreshed inline.`,
		Version:      version,
		SilenceUsage: true,
	}

	cli.RegisterReportCommands(rootCmd)
	cli.RegisterCredsCommands(rootCmd)
	cli.RegisterHistoryCommands(rootCmd)
	cli.RegisterConfigCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
