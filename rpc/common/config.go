package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Shared transport settings
// --------------------------------------------------------------------------

// SocketConf holds socket buffer sizes (0 keeps the system default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// writeSocketSection renders socket and TCP settings with the given field writer
func writeSocketSection(addField func(name, value string), s SocketConf, t TCPConf) {
	addField("Write Buffer Size", strconv.Itoa(s.WriteBufferSize))
	addField("Read Buffer Size", strconv.Itoa(s.ReadBufferSize))
	addField("TCP No Delay", strconv.FormatBool(t.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", t.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", t.TCPLingerSec))
}

// formatter returns the helper functions used by all String methods
func formatter(sb *strings.Builder) (addSection func(string), addField func(string, string)) {
	addSection = func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField = func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-24s: %s\n", name, value))
	}
	return addSection, addField
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// BackendType selects the storage of the cache server
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendBolt   BackendType = "bolt"
)

// ParseBackendType validates a backend name
func ParseBackendType(s string) (BackendType, error) {
	switch BackendType(strings.ToLower(s)) {
	case BackendMemory:
		return BackendMemory, nil
	case BackendBolt:
		return BackendBolt, nil
	}
	return "", fmt.Errorf("invalid backend: %s. must be one of memory, bolt", s)
}

// ServerTransportConfig holds the listener settings of the server
type ServerTransportConfig struct {
	Endpoint       string
	WorkersPerConn int
	SocketConf
	TCPConf
}

// ServerConfig holds all configuration parameters of a cache server
type ServerConfig struct {
	// Storage
	Backend BackendType
	DataDir string

	// TimeoutSecond bounds the connection handshake
	TimeoutSecond int64

	// MetricsIntervalSecond enables periodic metric logging when > 0
	MetricsIntervalSecond int64

	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder
	addSection, addField := formatter(&sb)

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Workers Per Connection", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	writeSocketSection(addField, c.Transport.SocketConf, c.Transport.TCPConf)

	// Storage
	addSection("Storage")
	addField("Backend", string(c.Backend))
	if c.Backend == BackendBolt {
		addField("Data Directory", c.DataDir)
	}

	// Metrics and logging
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	if c.MetricsIntervalSecond > 0 {
		addField("Metrics Interval", fmt.Sprintf("%d sec", c.MetricsIntervalSecond))
	} else {
		addField("Metrics Interval", "disabled")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the connection settings of a client
type ClientTransportConfig struct {
	Endpoints              []string
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf
	TCPConf
}

// ClientConfig holds all configuration parameters of a cache client
type ClientConfig struct {
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	addSection, addField := formatter(&sb)

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))
	writeSocketSection(addField, c.Transport.SocketConf, c.Transport.TCPConf)

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
