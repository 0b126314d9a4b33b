package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pgbulk",
	Short: "Bulk upserts into PostgreSQL",
	Long: `pgbulk streams rows into a transaction-scoped staging table with binary COPY,
then merges them into the target table with a single INSERT ... ON CONFLICT
statement. Either every row lands or none does.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration, options or merge condition
  11 - Database connection failed
  12 - Input file could not be read or decoded
  13 - Staging, merge or commit failed
  14 - Target table missing or has no primary key`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("help", false, "Help for pgbulk")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log connection details and generated SQL")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
