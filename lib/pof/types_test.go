package pof

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// User types shared by the tests of this package
// --------------------------------------------------------------------------

const (
	personTypeId = 1001
	recordTypeId = 500
	dogTypeId    = 10
	animalLevel  = 20
)

type person struct {
	Name   string
	Age    int32
	Friend *person
	Tags   []string
}

func (p *person) WriteExternal(w IPofWriter) error {
	w.WriteString(0, p.Name)
	w.WriteInt32(1, p.Age)
	if err := w.WriteObject(2, p.Friend); err != nil {
		return err
	}
	w.WriteStringArray(3, p.Tags)
	return nil
}

func (p *person) ReadExternal(r IPofReader) (err error) {
	if p.Name, err = r.ReadString(0); err != nil {
		return err
	}
	if p.Age, err = r.ReadInt32(1); err != nil {
		return err
	}
	friend, err := r.ReadObject(2)
	if err != nil {
		return err
	}
	if friend != nil {
		p.Friend = friend.(*person)
	}
	p.Tags, err = r.ReadStringArray(3)
	return err
}

// employee embeds person to exercise subtype resolution
type employee struct {
	person
	Dept string
}

// recordV1 and recordV2 are two versions of the same user type
type recordV1 struct {
	Evolvable
	A, B string
}

func (r *recordV1) ImplVersion() int32 { return 1 }

func (r *recordV1) WriteExternal(w IPofWriter) error {
	w.WriteString(1, r.A)
	w.WriteString(2, r.B)
	return nil
}

func (r *recordV1) ReadExternal(in IPofReader) (err error) {
	if r.A, err = in.ReadString(1); err != nil {
		return err
	}
	r.B, err = in.ReadString(2)
	return err
}

type recordV2 struct {
	Evolvable
	A, B, C string
}

func (r *recordV2) ImplVersion() int32 { return 2 }

func (r *recordV2) WriteExternal(w IPofWriter) error {
	w.WriteString(1, r.A)
	w.WriteString(2, r.B)
	w.WriteString(3, r.C)
	return nil
}

func (r *recordV2) ReadExternal(in IPofReader) (err error) {
	if r.A, err = in.ReadString(1); err != nil {
		return err
	}
	if r.B, err = in.ReadString(2); err != nil {
		return err
	}
	r.C, err = in.ReadString(3)
	return err
}

// dog is written as two hierarchy levels: its own (10) and animal (20)
type dog struct {
	Name, Breed string
	holder      EvolvableHolder
}

func (d *dog) EvolvableHolder() *EvolvableHolder { return &d.holder }

func (d *dog) WriteLevel(typeId int32, w IPofWriter) error {
	switch typeId {
	case dogTypeId:
		w.WriteString(0, d.Breed)
	case animalLevel:
		w.WriteString(0, d.Name)
	}
	return nil
}

func (d *dog) ReadLevel(typeId int32, r IPofReader) (err error) {
	switch typeId {
	case dogTypeId:
		d.Breed, err = r.ReadString(0)
	case animalLevel:
		d.Name, err = r.ReadString(0)
	}
	return err
}

// animal only knows the animal level of the hierarchy
type animal struct {
	Name   string
	holder EvolvableHolder
}

func (a *animal) EvolvableHolder() *EvolvableHolder { return &a.holder }

func (a *animal) WriteLevel(typeId int32, w IPofWriter) error {
	if typeId == animalLevel {
		w.WriteString(0, a.Name)
	}
	return nil
}

func (a *animal) ReadLevel(typeId int32, r IPofReader) (err error) {
	if typeId == animalLevel {
		a.Name, err = r.ReadString(0)
	}
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// newTestContext returns a context with person registered
func newTestContext(t testing.TB, opts ...ContextOption) *SimpleContext {
	t.Helper()
	ctx := NewSimpleContext(opts...)
	require.NoError(t, ctx.RegisterPortable(personTypeId, &person{}))
	return ctx
}

// funcMarker is the value type bound by funcContext
type funcMarker struct{}

// funcContext returns a context in which funcMarker is written and read by
// the given functions
func funcContext(t testing.TB, typeId int32, write func(IPofWriter) error, read func(IPofReader) error) *SimpleContext {
	t.Helper()
	ctx := NewSimpleContext()
	require.NoError(t, ctx.Register(typeId, funcMarker{}, SerializerFuncs[funcMarker]{
		Write: func(w IPofWriter, _ funcMarker) error {
			if write == nil {
				return nil
			}
			return write(w)
		},
		Read: func(r IPofReader) (funcMarker, error) {
			if read == nil {
				return funcMarker{}, nil
			}
			return funcMarker{}, read(r)
		},
	}))
	return ctx
}

// requireProtocolPanic asserts that fn panics with a *ProtocolError
func requireProtocolPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a protocol violation")
		_, ok := r.(*ProtocolError)
		require.True(t, ok, "expected *ProtocolError, got %T: %v", r, r)
	}()
	fn()
}
