package client

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dGrid/lib/pof"
	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/ValentinKolb/dGrid/rpc/serializer"
	"github.com/ValentinKolb/dGrid/rpc/transport"
)

// Session shares one connected transport between any number of named caches
type Session struct {
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// NewSession connects transport with config. The handshake carries the
// registry fingerprint of serializer.
func NewSession(config common.ClientConfig, transport transport.IRPCClientTransport, s serializer.IRPCSerializer) (*Session, error) {
	transport.SetHandshake(common.NewHandshake(serializer.Fingerprint(s)))

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}
	Logger.Debugf("Session connected to %v", config.Transport.Endpoints)
	return &Session{transport: transport, serializer: s}, nil
}

// Cache returns the named cache called name
func (s *Session) Cache(name string) INamedCache {
	return &namedCache{
		name: name,
		rpcClientAdapter: rpcClientAdapter{
			channelId:  common.CacheId(name),
			transport:  s.transport,
			serializer: s.serializer,
		},
	}
}

// Close closes the underlying transport
func (s *Session) Close() error {
	return s.transport.Close()
}

// NewNamedCache connects transport and returns the named cache called name
func NewNamedCache(
	name string,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (INamedCache, error) {
	session, err := NewSession(config, transport, serializer)
	if err != nil {
		return nil, err
	}
	return session.Cache(name), nil
}

// GetAs reads key from c and converts the value to T. Use it to undo the
// compaction of the wire formats, for example an int64 that arrives as int32.
func GetAs[T any](c INamedCache, key any) (T, bool, error) {
	var zero T
	v, ok, err := c.Get(key)
	if err != nil || !ok {
		return zero, ok, err
	}
	t, err := pof.Convert[T](v)
	if err != nil {
		return zero, true, fmt.Errorf("value of %v: %w", key, err)
	}
	return t, true, nil
}

type namedCache struct {
	name string
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see client.INamedCache)
// --------------------------------------------------------------------------

func (c *namedCache) Name() string {
	return c.name
}

func (c *namedCache) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(c.channelId, req, c.transport, c.serializer)
}

func (c *namedCache) Get(key any) (any, bool, error) {
	resp, err := c.invoke(common.NewGetRequest(c.name, key))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (c *namedCache) Put(key, value any, expiry time.Duration) (any, error) {
	resp, err := c.invoke(common.NewPutRequest(c.name, key, value, expiry))
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

func (c *namedCache) PutAll(entries map[any]any, expiry time.Duration) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := c.invoke(common.NewPutAllRequest(c.name, entries, expiry))
	return err
}

func (c *namedCache) GetAll(keys []any) (map[any]any, error) {
	if len(keys) == 0 {
		return map[any]any{}, nil
	}
	resp, err := c.invoke(common.NewGetAllRequest(c.name, keys))
	if err != nil {
		return nil, err
	}
	if resp.Entries == nil {
		return map[any]any{}, nil
	}
	return resp.Entries, nil
}

func (c *namedCache) Remove(key any) (any, bool, error) {
	resp, err := c.invoke(common.NewRemoveRequest(c.name, key))
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (c *namedCache) ContainsKey(key any) (bool, error) {
	resp, err := c.invoke(common.NewContainsKeyRequest(c.name, key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (c *namedCache) Size() (int64, error) {
	resp, err := c.invoke(common.NewSizeRequest(c.name))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *namedCache) Clear() (int64, error) {
	resp, err := c.invoke(common.NewClearRequest(c.name))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *namedCache) Keys() ([]any, error) {
	resp, err := c.invoke(common.NewKeysRequest(c.name))
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}
