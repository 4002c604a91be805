package base

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/ValentinKolb/dGrid/rpc/transport"
	"github.com/cavaliercoder/badio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Frames
// --------------------------------------------------------------------------

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 7, 42, []byte("hello")))
	require.NoError(t, writeFrame(&buf, 8, 43, nil))
	require.NoError(t, writeFrame(&buf, 9, 44, bytes.Repeat([]byte{0xAB}, 100)))

	channel, request, data, err := readFrame(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), channel)
	assert.Equal(t, uint64(42), request)
	assert.Equal(t, []byte("hello"), data)

	channel, request, data, err = readFrame(&buf, make([]byte, 64))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), channel)
	assert.Equal(t, uint64(43), request)
	assert.Empty(t, data)

	// a pooled buffer that is too small is replaced
	_, _, data, err = readFrame(&buf, make([]byte, 32))
	require.NoError(t, err)
	assert.Len(t, data, 100)
}

func TestReadFrameBrokenReader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 1, 2, bytes.Repeat([]byte("x"), 64)))
	frame := buf.Bytes()

	for _, n := range []int64{5, 10, frameHeaderSize + 5} {
		t.Run(fmt.Sprintf("break after %d", n), func(t *testing.T) {
			r := badio.NewBreakReader(bytes.NewReader(frame), n)
			_, _, _, err := readFrame(r, nil)
			require.Error(t, err)
			assert.True(t, badio.IsBadIOError(err), err)
		})
	}
}

func TestReadFrameRejectsOversizedFrames(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[16:], maxFrameSize+1)
	_, _, _, err := readFrame(bytes.NewReader(header), nil)
	assert.Error(t, err)

	assert.Error(t, writeFrame(&bytes.Buffer{}, 1, 1, make([]byte, maxFrameSize+1)))
}

func TestReadHandshakeRequiresHandshakeChannel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, 5, 0, common.NewHandshake(1).Marshal()))
	_, err := readHandshake(&buf)
	assert.ErrorIs(t, err, common.ErrBadHandshake)
}

func TestCheckHandshake(t *testing.T) {
	local := common.Handshake{Version: 1, Fingerprint: 10}
	assert.NoError(t, checkHandshake(local, common.Handshake{Version: 1, Fingerprint: 10}, "peer"))
	// fingerprints only produce a warning
	assert.NoError(t, checkHandshake(local, common.Handshake{Version: 1, Fingerprint: 11}, "peer"))
	assert.ErrorIs(t, checkHandshake(local, common.Handshake{Version: 2}, "peer"), transport.ErrIncompatibleProtocol)
}

// --------------------------------------------------------------------------
// Client and server over in-memory pipes
// --------------------------------------------------------------------------

// pipeConnector connects clients to a server transport through net.Pipe
type pipeConnector struct {
	server *serverTransport
	dials  atomic.Int32
	fail   atomic.Bool

	mu      sync.Mutex
	serving []net.Conn
}

func (p *pipeConnector) GetName() string { return "pipe" }

func (p *pipeConnector) Connect(string, time.Duration) (net.Conn, error) {
	if p.fail.Load() {
		return nil, fmt.Errorf("dial refused")
	}
	p.dials.Add(1)
	client, server := net.Pipe()
	p.mu.Lock()
	p.serving = append(p.serving, server)
	p.mu.Unlock()
	go p.server.handleConnection(server)
	return client, nil
}

func (p *pipeConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

// dropAll closes the server side of all connections
func (p *pipeConnector) dropAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.serving {
		c.Close()
	}
	p.serving = nil
}

// echoHandler prefixes every request with its channel id
func echoHandler(channelId uint64, req []byte) []byte {
	return append([]byte(fmt.Sprintf("%d:", channelId)), req...)
}

func newPipeSetup(t *testing.T, workers int) (*pipeConnector, transport.IRPCClientTransport) {
	srv := NewBaseServerTransport(nil, 1024).(*serverTransport)
	srv.RegisterHandler(echoHandler)
	srv.SetHandshake(common.NewHandshake(77))
	srv.config = common.ServerConfig{Transport: common.ServerTransportConfig{WorkersPerConn: workers}}

	connector := &pipeConnector{server: srv}
	client := NewBaseClientTransport(connector)
	client.SetHandshake(common.NewHandshake(77))
	t.Cleanup(func() {
		client.Close()
		srv.Close()
	})
	return connector, client
}

func testClientConfig(connections int) common.ClientConfig {
	return common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{"pipe"},
			RetryCount:             3,
			ConnectionsPerEndpoint: connections,
		},
	}
}

func TestClientServerRoundTrip(t *testing.T) {
	_, client := newPipeSetup(t, 4)
	require.NoError(t, client.Connect(testClientConfig(2)))

	resp, err := client.Send(99, []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "99:ping", string(resp))
}

func TestConcurrentRequests(t *testing.T) {
	_, client := newPipeSetup(t, 8)
	require.NoError(t, client.Connect(testClientConfig(3)))

	const workers = 16
	const rounds = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				req := fmt.Sprintf("w%d-%d", w, i)
				resp, err := client.Send(uint64(w+1), []byte(req))
				if err != nil {
					errs <- err
					return
				}
				if want := fmt.Sprintf("%d:%s", w+1, req); string(resp) != want {
					errs <- fmt.Errorf("got %q, want %q", resp, want)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestConnectRejectsOtherProtocolVersion(t *testing.T) {
	_, client := newPipeSetup(t, 1)
	client.SetHandshake(common.Handshake{Version: common.ProtocolVersion + 1})

	err := client.Connect(testClientConfig(1))
	assert.ErrorIs(t, err, transport.ErrIncompatibleProtocol)
}

func TestConnectToleratesOtherFingerprint(t *testing.T) {
	_, client := newPipeSetup(t, 1)
	client.SetHandshake(common.NewHandshake(12345))

	require.NoError(t, client.Connect(testClientConfig(1)))
	resp, err := client.Send(1, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "1:x", string(resp))
}

func TestConnectFailsWithoutEndpoints(t *testing.T) {
	_, client := newPipeSetup(t, 1)
	assert.Error(t, client.Connect(common.ClientConfig{}))
}

func TestConnectFailsWhenAllDialsFail(t *testing.T) {
	connector, client := newPipeSetup(t, 1)
	connector.fail.Store(true)
	assert.Error(t, client.Connect(testClientConfig(2)))
}

func TestSendAfterClose(t *testing.T) {
	_, client := newPipeSetup(t, 1)
	require.NoError(t, client.Connect(testClientConfig(1)))
	require.NoError(t, client.Close())

	_, err := client.Send(1, []byte("late"))
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestReconnectAfterConnectionLoss(t *testing.T) {
	connector, client := newPipeSetup(t, 1)
	require.NoError(t, client.Connect(testClientConfig(1)))
	require.Equal(t, int32(1), connector.dials.Load())

	connector.dropAll()

	require.Eventually(t, func() bool {
		return connector.dials.Load() >= 2
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		resp, err := client.Send(3, []byte("again"))
		return err == nil && string(resp) == "3:again"
	}, 5*time.Second, 20*time.Millisecond)
}
