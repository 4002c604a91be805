package base

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/ValentinKolb/dGrid/rpc/transport"
	"github.com/jpillora/backoff"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection
type clientConnection struct {
	conn     net.Conn
	endpoint string
	stopCh   chan struct{} // Close signal for the reader goroutine
	stopOnce sync.Once
	pending  *xsync.MapOf[uint64, chan responseResult]
	connMu   sync.Mutex // Protects the connection itself
	parent   *clientTransport
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	handshake     common.Handshake
	connections   []*clientConnection
	connectionsMu sync.RWMutex
	nextConnIndex uint64      // Atomic counter for Round Robin
	nextRequestID uint64      // Atomic counter for unique request IDs
	stopping      atomic.Bool // Signals shutdown
}

// -----------------------------------------------------------
// Transport Factory Method
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector: connector,
		handshake: common.NewHandshake(0),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) SetHandshake(h common.Handshake) {
	t.handshake = h
}

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Close all existing connections
	t.closeConnections()

	// Store the config
	t.config = config
	t.stopping.Store(false)

	// Set default value for ConnectionsPerEndpoint
	connectionsPerEP := 1
	if config.Transport.ConnectionsPerEndpoint > 0 {
		connectionsPerEP = config.Transport.ConnectionsPerEndpoint
	}

	connections := make([]*clientConnection, 0, len(config.Transport.Endpoints)*connectionsPerEP)
	connected := 0
	var lastErr error

	// Initialize client connections
	for _, endpoint := range config.Transport.Endpoints {
		// Create multiple connections per endpoint
		for i := 0; i < connectionsPerEP; i++ {
			clientConn := &clientConnection{
				endpoint: endpoint,
				stopCh:   make(chan struct{}),
				pending:  xsync.NewMapOf[uint64, chan responseResult](),
				parent:   t,
			}

			// Establish the initial connection, failed ones are retried by the reader
			if err := clientConn.reconnect(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, connectionsPerEP, err)
				lastErr = err
			} else {
				connected++
				Logger.Debugf("Connected to %s (connection %d/%d)", endpoint, i+1, connectionsPerEP)
			}
			connections = append(connections, clientConn)
		}
	}

	// Check if we have at least one connection
	if connected == 0 {
		for _, c := range connections {
			c.close()
		}
		return fmt.Errorf("failed to connect to any endpoint: %w", lastErr)
	}

	t.connectionsMu.Lock()
	t.connections = connections
	t.connectionsMu.Unlock()

	// Start the response readers
	for _, c := range connections {
		go c.readResponses()
	}

	Logger.Infof("Connected %d out of %d connections to %d endpoints using %s transport",
		connected, len(connections), len(config.Transport.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(channelId uint64, req []byte) (resp []byte, err error) {
	if t.stopping.Load() {
		return nil, transport.ErrClosed
	}

	// We always try at least once, and up to RetryCount times
	maxRetries := t.config.Transport.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}

	b := &backoff.Backoff{
		Min:    50 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn := t.getNextConnection()
		if conn == nil {
			return nil, fmt.Errorf("no active connections available")
		}

		// Generate a unique request ID per attempt
		requestID := atomic.AddUint64(&t.nextRequestID, 1)

		data, err := conn.send(channelId, requestID, req)
		if err == nil {
			return data, nil
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", i+1, maxRetries, err)

		if t.stopping.Load() {
			return nil, transport.ErrClosed
		}
		if i+1 < maxRetries {
			time.Sleep(b.Duration())
		}
	}

	// All attempts failed
	return nil, fmt.Errorf("failed to send request after %d attempts: %w", maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// timeout returns the configured request timeout, 0 means none
func (t *clientTransport) timeout() time.Duration {
	return time.Duration(t.config.TimeoutSecond) * time.Second
}

// getNextConnection selects the next live connection via Round Robin
func (t *clientTransport) getNextConnection() *clientConnection {
	t.connectionsMu.RLock()
	defer t.connectionsMu.RUnlock()

	n := uint64(len(t.connections))
	if n == 0 {
		return nil
	}

	// optimize for single connection
	if n == 1 {
		return t.connections[0]
	}

	start := atomic.AddUint64(&t.nextConnIndex, 1)
	for i := uint64(0); i < n; i++ {
		c := t.connections[(start+i)%n]
		if c.isConnected() {
			return c
		}
	}
	return t.connections[start%n]
}

// closeConnections closes all active connections
func (t *clientTransport) closeConnections() {
	t.connectionsMu.Lock()
	defer t.connectionsMu.Unlock()

	for _, conn := range t.connections {
		conn.close()
	}

	// Empty the list
	t.connections = nil
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

func (c *clientConnection) isConnected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// current returns the current net connection, nil while disconnected
func (c *clientConnection) current() net.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// send writes one request frame and waits for the matching response
func (c *clientConnection) send(channelId, requestID uint64, req []byte) ([]byte, error) {
	// Create a channel for the response and register the request
	respCh := make(chan responseResult, 1)
	c.pending.Store(requestID, respCh)

	// Ensure we clean up when done
	defer c.pending.Delete(requestID)

	timeout := c.parent.timeout()

	// Lock the connection only for writing
	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		return nil, fmt.Errorf("connection to %s is closed", c.endpoint)
	}
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err := writeFrame(c.conn, channelId, requestID, req)
	c.connMu.Unlock()

	if err != nil {
		return nil, err
	}

	// Wait for response or timeout
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-timeoutCh:
		return nil, fmt.Errorf("request %d timed out after %s", requestID, timeout)
	case <-c.stopCh:
		return nil, transport.ErrClosed
	}
}

// readResponses reads responses in a loop and distributes them to waiting requests
func (c *clientConnection) readResponses() {
	for {
		conn := c.current()
		if conn == nil {
			if !c.reconnectLoop() {
				return
			}
			continue
		}

		// Read the response frame
		channelID, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			if c.stopped() {
				c.failPending(transport.ErrClosed)
				return
			}
			Logger.Warningf("Lost connection to %s: %v", c.endpoint, err)
			c.drop(conn)
			c.failPending(fmt.Errorf("connection to %s lost: %w", c.endpoint, err))
			continue
		}

		// Find the corresponding request channel
		if respCh, found := c.pending.LoadAndDelete(requestID); found {
			respCh <- responseResult{data: data}
		} else {
			// Late response of a request that timed out
			Logger.Warningf("Received response for unknown request ID %d on channel %d", requestID, channelID)
		}
	}
}

// reconnectLoop retries the connection with exponential backoff until it
// succeeds or the connection is closed
func (c *clientConnection) reconnectLoop() bool {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	for {
		d := b.Duration()
		select {
		case <-c.stopCh:
			return false
		case <-time.After(d):
		}
		if err := c.reconnect(); err != nil {
			Logger.Warningf("Reconnecting to %s failed: %v", c.endpoint, err)
			continue
		}
		Logger.Infof("Reconnected to %s after %d attempts", c.endpoint, int(b.Attempt()))
		return true
	}
}

// reconnect establishes or restores a connection to the endpoint and
// exchanges the handshake
func (c *clientConnection) reconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Close the old connection if it exists
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	t := c.parent
	conn, err := t.connector.Connect(c.endpoint, t.timeout())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	if err := c.exchangeHandshake(conn); err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	return nil
}

// exchangeHandshake sends the local handshake and validates the answer of the server
func (c *clientConnection) exchangeHandshake(conn net.Conn) error {
	if timeout := c.parent.timeout(); timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
		defer conn.SetDeadline(time.Time{})
	}
	if err := writeHandshake(conn, c.parent.handshake); err != nil {
		return fmt.Errorf("failed to send handshake to %s: %w", c.endpoint, err)
	}
	remote, err := readHandshake(conn)
	if err != nil {
		return fmt.Errorf("failed to read handshake of %s: %w", c.endpoint, err)
	}
	return checkHandshake(c.parent.handshake, remote, c.endpoint)
}

// drop closes conn if it still is the current connection
func (c *clientConnection) drop(conn net.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == conn {
		c.conn.Close()
		c.conn = nil
	}
}

// failPending fails all requests waiting on this connection
func (c *clientConnection) failPending(err error) {
	c.pending.Range(func(id uint64, ch chan responseResult) bool {
		if _, ok := c.pending.LoadAndDelete(id); ok {
			ch <- responseResult{err: err}
		}
		return true
	})
}

func (c *clientConnection) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// close stops the reader goroutine and closes the connection
func (c *clientConnection) close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
