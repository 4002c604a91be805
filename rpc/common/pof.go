package common

import (
	"github.com/ValentinKolb/dGrid/lib/pof"
)

// --------------------------------------------------------------------------
// POF binding of the message structure
// --------------------------------------------------------------------------

// MessageTypeId is the POF user type id of Message
const MessageTypeId int32 = 1

// property indexes of Message, written in ascending order
const (
	propKind int32 = iota
	propCache
	propKey
	propValue
	propEntries
	propKeys
	propOk
	propCount
	propErr
	propExpiry
)

// NewProtocolContext returns a fresh registry with all protocol types
// registered. Applications register their own key and value types on the
// returned context before handing it to a serializer.
func NewProtocolContext(opts ...pof.ContextOption) *pof.SimpleContext {
	ctx := pof.NewSimpleContext(opts...)
	if err := ctx.RegisterPortable(MessageTypeId, &Message{}); err != nil {
		// the context is empty, so this can only fail on a programming error
		panic(err)
	}
	return ctx
}

// WriteExternal implements pof.IPortableObject
func (m *Message) WriteExternal(w pof.IPofWriter) error {
	w.WriteInt32(propKind, int32(m.Kind))
	w.WriteString(propCache, m.Cache)
	if err := w.WriteObject(propKey, m.Key); err != nil {
		return err
	}
	if err := w.WriteObject(propValue, m.Value); err != nil {
		return err
	}
	if m.Entries != nil {
		if err := w.WriteMap(propEntries, m.Entries); err != nil {
			return err
		}
	}
	if m.Keys != nil {
		if err := w.WriteCollection(propKeys, m.Keys); err != nil {
			return err
		}
	}
	w.WriteBool(propOk, m.Ok)
	w.WriteInt64(propCount, m.Count)
	w.WriteString(propErr, m.Err)
	w.WriteDuration(propExpiry, m.Expiry)
	return nil
}

// ReadExternal implements pof.IPortableObject
func (m *Message) ReadExternal(r pof.IPofReader) (err error) {
	kind, err := r.ReadInt32(propKind)
	if err != nil {
		return err
	}
	m.Kind = MessageKind(kind)
	if m.Cache, err = r.ReadString(propCache); err != nil {
		return err
	}
	if m.Key, err = r.ReadObject(propKey); err != nil {
		return err
	}
	if m.Value, err = r.ReadObject(propValue); err != nil {
		return err
	}
	if m.Entries, err = r.ReadMap(propEntries); err != nil {
		return err
	}
	if m.Keys, err = r.ReadCollection(propKeys); err != nil {
		return err
	}
	if m.Ok, err = r.ReadBool(propOk); err != nil {
		return err
	}
	if m.Count, err = r.ReadInt64(propCount); err != nil {
		return err
	}
	if m.Err, err = r.ReadString(propErr); err != nil {
		return err
	}
	m.Expiry, err = r.ReadDuration(propExpiry)
	return err
}
