package server

import (
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/ValentinKolb/dGrid/rpc/serializer"
	"github.com/ValentinKolb/dGrid/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport records the handler and handshake and blocks in Listen
// until Close is called
type stubTransport struct {
	handler   transport.ServerHandleFunc
	handshake common.Handshake
	listening atomic.Bool
	done      chan struct{}
}

func newStubTransport() *stubTransport {
	return &stubTransport{done: make(chan struct{})}
}

func (t *stubTransport) RegisterHandler(h transport.ServerHandleFunc) { t.handler = h }
func (t *stubTransport) SetHandshake(h common.Handshake)              { t.handshake = h }
func (t *stubTransport) Addr() net.Addr                               { return nil }

func (t *stubTransport) Listen(common.ServerConfig) error {
	t.listening.Store(true)
	<-t.done
	return nil
}

func (t *stubTransport) Close() error {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
	return nil
}

var serializers = map[string]func() serializer.IRPCSerializer{
	"POF":     func() serializer.IRPCSerializer { return serializer.NewPofSerializer(nil) },
	"Msgpack": serializer.NewMsgpackSerializer,
}

func newTestServer(t *testing.T, s serializer.IRPCSerializer) *rpcServer {
	srv := NewRPCServer(common.ServerConfig{LogLevel: "error"}, newStubTransport(), s,
		WithBackend(NewMemoryBackend(common.NewProtocolContext())))
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

// roundTrip sends req through the encoded request path of srv
func roundTrip(t *testing.T, srv *rpcServer, s serializer.IRPCSerializer, channelId uint64, req *common.Message) *common.Message {
	data, err := s.Serialize(*req)
	require.NoError(t, err)
	respBytes := srv.Handle(channelId, data)
	require.NotEmpty(t, respBytes)

	var resp common.Message
	require.NoError(t, s.Deserialize(respBytes, &resp))
	return &resp
}

func TestHandleOperations(t *testing.T) {
	const cache = "users"
	id := common.CacheId(cache)

	for name, factory := range serializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			srv := newTestServer(t, s)
			call := func(req *common.Message) *common.Message {
				resp := roundTrip(t, srv, s, id, req)
				require.Empty(t, resp.Err)
				require.Equal(t, req.Kind, resp.Kind)
				return resp
			}

			resp := call(common.NewPutRequest(cache, "alice", "admin", 0))
			assert.False(t, resp.Ok)

			resp = call(common.NewPutRequest(cache, "alice", "owner", 0))
			assert.True(t, resp.Ok)
			assert.Equal(t, "admin", resp.Value)

			resp = call(common.NewGetRequest(cache, "alice"))
			assert.True(t, resp.Ok)
			assert.Equal(t, "owner", resp.Value)

			resp = call(common.NewPutAllRequest(cache, map[any]any{"bob": "dev", "carol": "ops"}, time.Hour))
			assert.Equal(t, int64(2), resp.Count)

			resp = call(common.NewGetAllRequest(cache, []any{"bob", "dave"}))
			assert.Equal(t, map[any]any{"bob": "dev"}, resp.Entries)

			resp = call(common.NewContainsKeyRequest(cache, "carol"))
			assert.True(t, resp.Ok)

			resp = call(common.NewSizeRequest(cache))
			assert.Equal(t, int64(3), resp.Count)

			resp = call(common.NewKeysRequest(cache))
			assert.ElementsMatch(t, []any{"alice", "bob", "carol"}, resp.Keys)

			resp = call(common.NewRemoveRequest(cache, "alice"))
			assert.True(t, resp.Ok)
			assert.Equal(t, "owner", resp.Value)

			resp = call(common.NewClearRequest(cache))
			assert.Equal(t, int64(2), resp.Count)

			resp = call(common.NewSizeRequest(cache))
			assert.Zero(t, resp.Count)
		})
	}
}

func TestHandleDefaultValuedKeys(t *testing.T) {
	const cache = "zeros"
	id := common.CacheId(cache)

	for name, factory := range serializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			srv := newTestServer(t, s)
			call := func(req *common.Message) *common.Message {
				resp := roundTrip(t, srv, s, id, req)
				require.Empty(t, resp.Err)
				return resp
			}

			call(common.NewPutRequest(cache, int64(0), "zero", 0))
			call(common.NewPutRequest(cache, "", false, 0))

			resp := call(common.NewGetRequest(cache, int64(0)))
			assert.True(t, resp.Ok)
			assert.Equal(t, "zero", resp.Value)

			resp = call(common.NewGetRequest(cache, ""))
			assert.True(t, resp.Ok)
			assert.Equal(t, false, resp.Value)

			resp = call(common.NewRemoveRequest(cache, int32(0)))
			assert.True(t, resp.Ok)
			assert.Equal(t, int64(1), call(common.NewSizeRequest(cache)).Count)
		})
	}
}

func TestDispatchRejectsInvalidRequests(t *testing.T) {
	srv := newTestServer(t, serializer.NewPofSerializer(nil))
	id := common.CacheId("c")

	tests := []struct {
		name      string
		channelId uint64
		req       *common.Message
		contains  string
	}{
		{"empty cache", id, common.NewSizeRequest(""), "cache name is empty"},
		{"wrong channel", id + 1, common.NewSizeRequest("c"), "not addressed"},
		{"nil key get", id, common.NewGetRequest("c", nil), "requires a key"},
		{"nil key put", id, common.NewPutRequest("c", nil, "v", 0), "requires a key"},
		{"unsupported kind", id, &common.Message{Kind: common.MsgKResponse, Cache: "c"}, "unsupported message kind"},
		{"unhashable getAll key", id, common.NewGetAllRequest("c", []any{[]any{"x"}}), "cannot be used in a map"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := srv.Dispatch(tt.channelId, tt.req)
			require.NotEmpty(t, resp.Err)
			assert.Contains(t, resp.Err, tt.contains)
		})
	}
}

func TestHandleUndecodableRequest(t *testing.T) {
	for name, factory := range serializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			srv := newTestServer(t, s)

			respBytes := srv.Handle(common.CacheId("c"), []byte{0xff, 0x00, 0x13})
			require.NotEmpty(t, respBytes)

			var resp common.Message
			require.NoError(t, s.Deserialize(respBytes, &resp))
			assert.Equal(t, common.MsgKError, resp.Kind)
			assert.True(t, strings.HasPrefix(resp.Err, "failed to deserialize request"), resp.Err)
		})
	}
}

func TestHandleUnencodableResponse(t *testing.T) {
	s := serializer.NewPofSerializer(nil)
	srv := newTestServer(t, s)

	// values stored by Dispatch are never checked by the memory backend
	type opaque struct{ X int }
	resp := srv.Dispatch(common.CacheId("c"), common.NewPutRequest("c", "k", opaque{X: 1}, 0))
	require.Empty(t, resp.Err)

	out := roundTrip(t, srv, s, common.CacheId("c"), common.NewGetRequest("c", "k"))
	assert.Equal(t, common.MsgKError, out.Kind)
	assert.Contains(t, out.Err, "failed to serialize response")
}

func TestServeAndClose(t *testing.T) {
	tr := newStubTransport()
	s := serializer.NewPofSerializer(nil)
	srv := NewRPCServer(common.ServerConfig{LogLevel: "error", MetricsIntervalSecond: 1}, tr, s,
		WithBackend(NewMemoryBackend(common.NewProtocolContext())))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	require.Eventually(t, tr.listening.Load, time.Second, 10*time.Millisecond)
	require.NotNil(t, tr.handler)
	assert.Equal(t, common.ProtocolVersion, tr.handshake.Version)
	assert.Equal(t, serializer.Fingerprint(s), tr.handshake.Fingerprint)
	assert.NotZero(t, tr.handshake.Fingerprint)

	require.NoError(t, srv.Close())
	require.NoError(t, <-errCh)

	// closing twice is a no-op
	require.NoError(t, srv.Close())
}

func TestServeTwiceInOneProcess(t *testing.T) {
	for i := 0; i < 2; i++ {
		tr := newStubTransport()
		srv := NewRPCServer(common.ServerConfig{LogLevel: "error"}, tr, serializer.NewPofSerializer(nil),
			WithBackend(NewMemoryBackend(common.NewProtocolContext())))

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve() }()
		require.Eventually(t, tr.listening.Load, time.Second, 10*time.Millisecond)

		require.NoError(t, srv.Close())
		require.NoError(t, <-errCh)
	}
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	srv := NewRPCServer(common.ServerConfig{Backend: "redis", LogLevel: "info"}, newStubTransport(), serializer.NewPofSerializer(nil))
	assert.Error(t, srv.Serve())

	srv = NewRPCServer(common.ServerConfig{LogLevel: "loud"}, newStubTransport(), serializer.NewPofSerializer(nil))
	assert.Error(t, srv.Serve())
}

func TestServerMetrics(t *testing.T) {
	srv := newTestServer(t, serializer.NewPofSerializer(nil))
	id := common.CacheId("c")

	srv.Dispatch(id, common.NewPutRequest("c", "k", "v", 0))
	srv.Dispatch(id, common.NewGetRequest("c", "k"))
	srv.Dispatch(id, common.NewGetRequest("c", nil))

	assert.Equal(t, int64(2), srv.metrics.timers[common.MsgKGet].Count())
	assert.Equal(t, int64(1), srv.metrics.timers[common.MsgKPut].Count())
	assert.Equal(t, int64(1), srv.metrics.errors.Count())

	// logging a snapshot must not fail
	srv.metrics.log()
}
