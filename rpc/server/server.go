package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dGrid/lib/pof"
	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/ValentinKolb/dGrid/rpc/serializer"
	"github.com/ValentinKolb/dGrid/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("server")

// purgeInterval is the pause between two runs of the expiry purge
const purgeInterval = time.Second

// Option configures an RPC server
type Option func(*rpcServer)

// WithBackend makes the server use backend instead of the one selected by
// the configuration. The server closes the backend on Close.
func WithBackend(backend ICacheBackend) Option {
	return func(s *rpcServer) { s.backend = backend }
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewPofSerializer(nil),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	s serializer.IRPCSerializer,
	opts ...Option,
) *rpcServer {
	ctx := serializer.Context(s)
	if ctx == nil {
		ctx = common.NewProtocolContext()
	}

	server := &rpcServer{
		config:     config,
		transport:  transport,
		serializer: s,
		ctx:        ctx,
		metrics:    newServerMetrics(),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(server)
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())
	return server
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	ctx        pof.IPofContext
	backend    ICacheBackend
	metrics    *serverMetrics

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// --------------------------------------------------------------------------
// Request Handling
// --------------------------------------------------------------------------

// Handle decodes a request frame, dispatches it and encodes the response.
// It never returns an empty response, failures are sent as error messages.
func (s *rpcServer) Handle(channelId uint64, req []byte) []byte {
	var msg common.Message
	var resp *common.Message

	if err := s.serializer.Deserialize(req, &msg); err != nil {
		resp = common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
		s.metrics.observe(common.MsgKUnknown, time.Now(), true)
	} else {
		resp = s.Dispatch(channelId, &msg)
	}

	val, err := s.serializer.Serialize(*resp)
	if err != nil {
		Logger.Warningf("failed to serialize %s response: %v", resp.Kind, err)
		val, err = s.serializer.Serialize(*common.NewErrorResponse(
			fmt.Sprintf("failed to serialize response: %s", err),
		))
		if err != nil {
			Logger.Errorf("failed to serialize error response: %v", err)
		}
	}
	return val
}

// Dispatch runs req against the backend and returns the response
func (s *rpcServer) Dispatch(channelId uint64, req *common.Message) *common.Message {
	start := time.Now()
	resp := s.dispatch(channelId, req)
	s.metrics.observe(req.Kind, start, resp.Err != "")
	if resp.Err != "" {
		Logger.Debugf("%s on cache %q failed: %s", req.Kind, req.Cache, resp.Err)
	}
	return resp
}

func (s *rpcServer) dispatch(channelId uint64, req *common.Message) *common.Message {
	if s.backend == nil {
		return common.NewErrorResponse("server: backend is not initialized")
	}
	if req.Cache == "" {
		return common.NewErrorResponse("server: cache name is empty")
	}
	if common.CacheId(req.Cache) != channelId {
		return common.NewErrorResponse(fmt.Sprintf("server: cache %q is not addressed by channel %d", req.Cache, channelId))
	}

	switch req.Kind {
	case common.MsgKGet, common.MsgKPut, common.MsgKRemove, common.MsgKContainsKey:
		if req.Key == nil {
			return common.NewErrorResponse(fmt.Sprintf("server: %s requires a key", req.Kind))
		}
	}

	switch req.Kind {
	case common.MsgKGet:
		val, ok, err := s.backend.Get(req.Cache, req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgKPut:
		prev, ok, err := s.backend.Put(req.Cache, req.Key, req.Value, req.Expiry)
		return common.NewPutResponse(prev, ok, err)
	case common.MsgKPutAll:
		n, err := s.backend.PutAll(req.Cache, req.Entries, req.Expiry)
		return common.NewPutAllResponse(n, err)
	case common.MsgKGetAll:
		entries, err := s.backend.GetAll(req.Cache, req.Keys)
		return common.NewGetAllResponse(entries, err)
	case common.MsgKRemove:
		prev, ok, err := s.backend.Remove(req.Cache, req.Key)
		return common.NewRemoveResponse(prev, ok, err)
	case common.MsgKContainsKey:
		ok, err := s.backend.ContainsKey(req.Cache, req.Key)
		return common.NewContainsKeyResponse(ok, err)
	case common.MsgKSize:
		n, err := s.backend.Size(req.Cache)
		return common.NewSizeResponse(n, err)
	case common.MsgKClear:
		n, err := s.backend.Clear(req.Cache)
		return common.NewClearResponse(n, err)
	case common.MsgKKeys:
		keys, err := s.backend.Keys(req.Cache)
		return common.NewKeysResponse(keys, err)
	default:
		return common.NewErrorResponse(fmt.Sprintf("server: unsupported message kind: %s", req.Kind))
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (s *rpcServer) init() error {
	// Init logger
	level := s.config.LogLevel
	if level == "" {
		level = "info"
	}
	if err := common.InitLoggers(level); err != nil {
		return err
	}

	if s.backend == nil {
		backend, err := NewBackend(s.config, s.ctx)
		if err != nil {
			return fmt.Errorf("failed to create backend: %w", err)
		}
		s.backend = backend
	}

	// Configure the transport layer
	s.transport.SetHandshake(common.NewHandshake(serializer.Fingerprint(s.serializer)))
	s.transport.RegisterHandler(s.Handle)

	s.wg.Add(1)
	go s.purgeLoop()

	if s.config.MetricsIntervalSecond > 0 {
		s.wg.Add(1)
		go s.metricsLoop(time.Duration(s.config.MetricsIntervalSecond) * time.Second)
	}

	Logger.Infof("dGrid setup completed successfully")
	return nil
}

// Serve starts the RPC server
// This function will also initialize the backend and start the transport layer.
// It blocks until Close is called.
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and the background loops and closes the backend
func (s *rpcServer) Close() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		err = s.transport.Close()
		s.wg.Wait()
		if s.backend != nil {
			if cerr := s.backend.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		Logger.Infof("RPC Server closed")
	})
	return err
}

func (s *rpcServer) purgeLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			n, err := s.backend.Purge()
			if err != nil {
				Logger.Warningf("failed to purge expired entries: %v", err)
			}
			s.metrics.purged.Inc(int64(n))
		}
	}
}

func (s *rpcServer) metricsLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.metrics.log()
		}
	}
}
