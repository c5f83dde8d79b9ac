package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dbatch/cmd/query"
	"github.com/ValentinKolb/dbatch/cmd/serve"
	"github.com/ValentinKolb/dbatch/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dbatch",
		Short: "batch reads across a partitioned key-value cluster",
		Long: fmt.Sprintf(`dbatch (v%s)

Reads many keys at once from a partitioned, replicated key-value cluster.
Keys are grouped by node, sent as one request per node, and the keys of
failed requests are retried on other replicas.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dbatch",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dbatch v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(query.QueryCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (http, tcp, unix)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("level at which logs are written (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
