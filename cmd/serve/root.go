package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dbatch/cmd/util"
	"github.com/ValentinKolb/dbatch/lib/store/lstore"
	"github.com/ValentinKolb/dbatch/rpc/common"
	"github.com/ValentinKolb/dbatch/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start a storage node",
		Long:    `Start a storage node that answers batch read requests from an in-memory store. The configuration can be set via command line flags or environment variables. The format of the environment variables is DBATCH_<flag> (e.g. DBATCH_MAX_BATCH_KEYS=5000)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "node-name"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Name of the node as listed in the topology file (defaults to the host name)"))

	key = "namespaces"
	ServeCmd.PersistentFlags().String(key, "test", cmdUtil.WrapString("Comma-separated list of namespaces served by the node"))

	key = "seed"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional YAML file with records loaded into the store on start"))

	key = "max-batch-keys"
	ServeCmd.PersistentFlags().Int(key, 5000, cmdUtil.WrapString("Requests with more keys are rejected (0 means no limit)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Timeout in seconds for idle connections"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:3000", cmdUtil.WrapString("The address on which the node will listen (e.g. localhost:3000, /tmp/dbatch.sock, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 4, cmdUtil.WrapString("How many requests of one connection are handled concurrently (ignored for http)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Size of the per connection read buffer in KB (0 selects the transport default, ignored for http)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.NodeName = viper.GetString("node-name")
	if serveCmdConfig.NodeName == "" {
		host, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("node-name is required: %w", err)
		}
		serveCmdConfig.NodeName = host
	}

	serveCmdConfig.Namespaces = nil
	for _, ns := range strings.Split(viper.GetString("namespaces"), ",") {
		if ns = strings.TrimSpace(ns); ns != "" {
			serveCmdConfig.Namespaces = append(serveCmdConfig.Namespaces, ns)
		}
	}
	if len(serveCmdConfig.Namespaces) == 0 {
		return fmt.Errorf("at least one namespace is required")
	}

	serveCmdConfig.SeedFile = viper.GetString("seed")
	serveCmdConfig.MaxBatchKeys = viper.GetInt("max-batch-keys")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.TransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		BufferSize:     viper.GetInt("buffer-size") * 1024,
	}

	return cmdUtil.InitLogging()
}

// run starts the node and blocks until it is stopped by a signal
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport(serveCmdConfig)
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		lstore.NewLocalStore(serveCmdConfig.Namespaces...),
		t,
		s,
	)

	// stop on SIGINT / SIGTERM
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		if _, ok := <-sigs; ok {
			_ = serv.Close()
		}
	}()

	return serv.Serve()
}
