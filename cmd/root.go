package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/lKV/cmd/kv"
	"github.com/ValentinKolb/lKV/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "lkv",
		Short: "log-structured key-value store",
		Long: fmt.Sprintf(`lKV (v%s)

A single-file, append-only key-value store served over a line-oriented
TCP protocol. Send SIGUSR1 to a running server to compact its log.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lKV v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
