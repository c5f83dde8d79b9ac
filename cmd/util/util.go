package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dbatch/lib/cluster"
	"github.com/ValentinKolb/dbatch/rpc/common"
	"github.com/ValentinKolb/dbatch/rpc/serializer"
	"github.com/ValentinKolb/dbatch/rpc/transport"
	"github.com/ValentinKolb/dbatch/rpc/transport/http"
	"github.com/ValentinKolb/dbatch/rpc/transport/tcp"
	"github.com/ValentinKolb/dbatch/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and binds environment variables with the
// DBATCH_ prefix (e.g. DBATCH_TOTAL_TIMEOUT_MS=500)
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dbatch")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging sets the level of all module loggers from the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// --------------------------------------------------------------------------
// Client flags
// --------------------------------------------------------------------------

// SetupBatchClientFlags adds the topology, policy and transport flags of the batch client to a command
func SetupBatchClientFlags(cmd *cobra.Command) {
	key := "topology"
	cmd.PersistentFlags().String(key, "cluster.yaml", WrapString("Path of the YAML file describing the cluster nodes and namespaces"))

	key = "event-loops"
	cmd.PersistentFlags().Int(key, 4, WrapString("Number of event loops batch calls are spread over"))

	key = "replica"
	cmd.PersistentFlags().String(key, "sequence", WrapString("Replica selection (master, master-proles, sequence, prefer-rack)"))

	key = "rack"
	cmd.PersistentFlags().Int(key, 0, WrapString("Rack of the client, used by the prefer-rack replica mode"))

	key = "total-timeout-ms"
	cmd.PersistentFlags().Int(key, 1000, WrapString("Deadline of a batch call including all retries (0 means no deadline)"))

	key = "socket-timeout-ms"
	cmd.PersistentFlags().Int(key, 0, WrapString("Deadline of a single node request (0 means the total timeout is used)"))

	key = "max-retries"
	cmd.PersistentFlags().Int(key, 2, WrapString("How often the keys of a failed node request are retried"))

	key = "sleep-between-retries-ms"
	cmd.PersistentFlags().Int(key, 0, WrapString("Pause before keys of a failed node request are sent again"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Socket write timeout in seconds for calls without a deadline"))

	key = "transport-conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 1, WrapString("Simultaneous connections per node (ignored for http)"))

	key = "transport-dial-timeout-ms"
	cmd.PersistentFlags().Int(key, 1000, WrapString("How long to wait for a connection to a node"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB, only for tcp)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB, only for tcp)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, only for tcp)"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TopologyFile:          viper.GetString("topology"),
		EventLoops:            viper.GetInt("event-loops"),
		ReplicaMode:           viper.GetString("replica"),
		RackID:                viper.GetInt("rack"),
		TotalTimeoutMs:        viper.GetInt("total-timeout-ms"),
		SocketTimeoutMs:       viper.GetInt("socket-timeout-ms"),
		MaxRetries:            viper.GetInt("max-retries"),
		SleepBetweenRetriesMs: viper.GetInt("sleep-between-retries-ms"),
		TimeoutSecond:         viper.GetInt("timeout"),
		Transport: common.TransportConfig{
			ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
			DialTimeoutMs:          viper.GetInt("transport-dial-timeout-ms"),
			TCPNoDelay:             viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec:        viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:           viper.GetInt("transport-tcp-linger"),
			WriteBufferSize:        viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:         viper.GetInt("transport-read-buffer") * 1024,
		},
	}
}

// GetCluster loads the topology file named in the configuration
func GetCluster(config *common.ClientConfig) (*cluster.Cluster, error) {
	topology, err := cluster.LoadTopology(config.TopologyFile)
	if err != nil {
		return nil, err
	}
	return cluster.NewCluster(topology)
}

// --------------------------------------------------------------------------
// Serializer and transport
// --------------------------------------------------------------------------

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetClientTransport creates a client transport based on configuration
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates a server transport based on configuration
func GetServerTransport(config *common.ServerConfig) (transport.IRPCServerTransport, error) {
	workers := config.Transport.WorkersPerConn
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(config.Transport.BufferSize, workers), nil
	case "unix":
		return unix.NewUnixServerTransport(config.Transport.BufferSize, workers), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}
