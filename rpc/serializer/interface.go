package serializer

import (
	"github.com/ValentinKolb/dGrid/lib/pof"
	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("serializer")

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// ByName returns the serializer registered under name ("pof" or "msgpack").
// The pof serializer uses a fresh protocol context.
func ByName(name string) (IRPCSerializer, bool) {
	switch name {
	case "pof":
		return NewPofSerializer(nil), true
	case "msgpack":
		return NewMsgpackSerializer(), true
	}
	return nil, false
}

// Fingerprint returns the type registry fingerprint of s, used in the
// transport handshake. Serializers without a registry return 0.
func Fingerprint(s IRPCSerializer) uint64 {
	if p, ok := s.(*pofSerializerImpl); ok {
		if f, ok := p.ctx.(interface{ Fingerprint() uint64 }); ok {
			return f.Fingerprint()
		}
	}
	return 0
}

// Context returns the POF registry of s, or nil if s does not use one
func Context(s IRPCSerializer) pof.IPofContext {
	if p, ok := s.(*pofSerializerImpl); ok {
		return p.ctx
	}
	return nil
}
