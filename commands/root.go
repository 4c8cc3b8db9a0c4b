// Package commands is the relay CLI: a demo JSON-RPC server and tooling to
// inspect a running one.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envPath    string
	verbose    bool
)

// The base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "A JSON-RPC 2.0 over HTTP server and toolkit",
	Long: `Relay serves remote procedures declared as Go functions over JSON-RPC 2.0,
describes them as JSON-WSP and JSON Schema documents, and ships a client that
calls them as if they were local.`,
	// Run before any subcommand
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envPath == "" {
			return
		}
		if err := godotenv.Load(envPath); err != nil && verbose {
			fmt.Printf("Warning: error loading .env file: %v\n", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.relay/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "Path to .env file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}
