package serializer

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dGrid/lib/pof"
	"github.com/ValentinKolb/dGrid/rpc/common"
)

// NewPofSerializer creates a new serializer encoding messages as POF user
// types. ctx must have common.Message registered, see common.NewProtocolContext.
// A nil ctx uses a fresh protocol context.
func NewPofSerializer(ctx pof.IPofContext) IRPCSerializer {
	if ctx == nil {
		ctx = common.NewProtocolContext()
	}
	return &pofSerializerImpl{
		ctx:     ctx,
		metrics: newCodecMetrics("pof"),
	}
}

// pofSerializerImpl implements the IRPCSerializer interface using POF
type pofSerializerImpl struct {
	ctx     pof.IPofContext
	metrics *codecMetrics
}

// Context returns the registry used to resolve user types
func (p *pofSerializerImpl) Context() pof.IPofContext {
	return p.ctx
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (p *pofSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	start := time.Now()
	data, err := pof.Serialize(p.ctx, &msg)
	p.metrics.observeEncode(start, len(data), err)
	if err != nil {
		Logger.Debugf("failed to encode %s message: %v", msg.Kind, err)
		return nil, err
	}
	return data, nil
}

func (p *pofSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	start := time.Now()
	err := p.deserialize(b, msg)
	p.metrics.observeDecode(start, err)
	return err
}

func (p *pofSerializerImpl) deserialize(b []byte, msg *common.Message) error {
	v, err := pof.Deserialize(p.ctx, b)
	if err != nil {
		return err
	}
	decoded, ok := v.(*common.Message)
	if !ok {
		return fmt.Errorf("expected message, got %T", v)
	}
	*msg = *decoded
	return nil
}
