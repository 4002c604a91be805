package client

import (
	"fmt"

	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/ValentinKolb/dGrid/rpc/serializer"
	"github.com/ValentinKolb/dGrid/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// RemoteError is an error reported by the server
type RemoteError struct {
	Kind    common.MessageKind
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %s", e.Kind, e.Message)
}

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	channelId  uint64
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a channel ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the kind of the response is the expected kind
func invokeRPCRequest(channelId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", req.Kind, err)
	}

	// Send the request
	respBytes, err := transport.Send(channelId, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", req.Kind, err)
	}

	// Check if the response is an error response
	if resp.Kind == common.MsgKError || resp.Err != "" {
		return nil, &RemoteError{Kind: req.Kind, Message: resp.Err}
	}

	// Check if the kind of the response is the expected kind
	if resp.Kind != req.Kind {
		return nil, fmt.Errorf("unexpected message kind: %s, expected %s", resp.Kind, req.Kind)
	}

	// Return the response
	return resp, nil
}
