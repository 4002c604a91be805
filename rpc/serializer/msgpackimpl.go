package serializer

import (
	"bytes"
	"time"

	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/vmihailenco/msgpack/v5"
)

// NewMsgpackSerializer creates a new serializer using msgpack encoding. Only
// plain data keys and values survive the round trip, user types do not.
// Integers decode as int64 and floats as float64.
func NewMsgpackSerializer() IRPCSerializer {
	return &msgpackSerializerImpl{metrics: newCodecMetrics("msgpack")}
}

// msgpackSerializerImpl implements the IRPCSerializer interface using msgpack
type msgpackSerializerImpl struct {
	metrics *codecMetrics
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (m *msgpackSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	start := time.Now()
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	err := enc.Encode(&msg)
	msgpack.PutEncoder(enc)
	m.metrics.observeEncode(start, buf.Len(), err)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *msgpackSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	start := time.Now()
	var r bytes.Reader
	r.Reset(b)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	dec.UseLooseInterfaceDecoding(true)
	err := dec.Decode(msg)
	msgpack.PutDecoder(dec)
	m.metrics.observeDecode(start, err)
	return err
}
