package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dbatch/lib/batch"
)

// --------------------------------------------------------------------------
// Transport configuration struct (shared by client and server)
// --------------------------------------------------------------------------

type TransportConfig struct {
	// Server side
	Endpoint       string
	WorkersPerConn int
	BufferSize     int

	// Client side
	ConnectionsPerEndpoint int
	DialTimeoutMs          int

	// Socket options (tcp only)
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
	WriteBufferSize int
	ReadBufferSize  int
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a node server.
type ServerConfig struct {
	// NodeName is reported in logs and error responses
	NodeName string
	// Namespaces served by the node
	Namespaces []string
	// SeedFile is an optional YAML file loaded into the store on start
	SeedFile string

	// TimeoutSecond bounds reads and writes on idle connections
	TimeoutSecond int64
	// MaxBatchKeys rejects larger requests with BatchMaxRequests, zero means no limit
	MaxBatchKeys int

	Transport TransportConfig

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-24s: %s\n", name, value))
	}

	// Node settings
	addSection("Node")
	addField("Name", c.NodeName)
	addField("Namespaces", strings.Join(c.Namespaces, ", "))
	addField("Seed File", orNone(c.SeedFile))
	addField("Max Batch Keys", limitString(c.MaxBatchKeys))

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Connection", strconv.Itoa(max(1, c.Transport.WorkersPerConn)))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.Transport.BufferSize))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of a batch client.
type ClientConfig struct {
	// TopologyFile is the YAML file describing the cluster
	TopologyFile string
	// EventLoops is the number of loops batch calls are spread over
	EventLoops int

	// Batch policy
	ReplicaMode           string
	RackID                int
	TotalTimeoutMs        int
	SocketTimeoutMs       int
	MaxRetries            int
	SleepBetweenRetriesMs int

	// TimeoutSecond bounds socket writes when a call has no deadline
	TimeoutSecond int

	Transport TransportConfig
}

// Policy converts the policy settings into a batch.Policy.
func (c *ClientConfig) Policy() (*batch.Policy, error) {
	mode, err := batch.ParseReplicaMode(c.ReplicaMode)
	if err != nil {
		return nil, err
	}
	if c.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	return &batch.Policy{
		Replica:             mode,
		RackID:              c.RackID,
		TotalTimeout:        time.Duration(c.TotalTimeoutMs) * time.Millisecond,
		SocketTimeout:       time.Duration(c.SocketTimeoutMs) * time.Millisecond,
		MaxRetries:          c.MaxRetries,
		SleepBetweenRetries: time.Duration(c.SleepBetweenRetriesMs) * time.Millisecond,
	}, nil
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-24s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Topology File", orNone(c.TopologyFile))
	addField("Event Loops", strconv.Itoa(max(1, c.EventLoops)))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Connections Per Endpoint", strconv.Itoa(max(1, c.Transport.ConnectionsPerEndpoint)))
	addField("Dial Timeout", fmt.Sprintf("%d ms", c.Transport.DialTimeoutMs))

	// Policy
	addSection("Batch Policy")
	addField("Replica Mode", c.ReplicaMode)
	addField("Rack", strconv.Itoa(c.RackID))
	addField("Total Timeout", fmt.Sprintf("%d ms", c.TotalTimeoutMs))
	addField("Socket Timeout", fmt.Sprintf("%d ms", c.SocketTimeoutMs))
	addField("Max Retries", strconv.Itoa(c.MaxRetries))
	addField("Sleep Between Retries", fmt.Sprintf("%d ms", c.SleepBetweenRetriesMs))

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func limitString(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}
