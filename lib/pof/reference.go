package pof

import "reflect"

// refKey identifies an object by its dynamic type and address
type refKey struct {
	typ reflect.Type
	ptr uintptr
}

// referenceKey returns the identity of v if v is reference eligible
// (a non-nil pointer or map)
func referenceKey(v any) (refKey, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return refKey{}, false
		}
		return refKey{typ: rv.Type(), ptr: rv.Pointer()}, true
	}
	return refKey{}, false
}

// identityMap assigns identity ids to objects during one serialize call.
// Ids start at 1 and increase in first encounter order.
type identityMap struct {
	ids  map[refKey]int32
	next int32
}

func newIdentityMap() *identityMap {
	return &identityMap{ids: make(map[refKey]int32), next: 1}
}

func (m *identityMap) lookup(k refKey) (int32, bool) {
	id, ok := m.ids[k]
	return id, ok
}

func (m *identityMap) register(k refKey) int32 {
	id := m.next
	m.ids[k] = id
	m.next++
	return id
}

// referenceTable maps identity ids to materialized values during one deserialize call
type referenceTable struct {
	values map[int32]any
}

func newReferenceTable() *referenceTable {
	return &referenceTable{values: make(map[int32]any)}
}

func (t *referenceTable) register(id int32, v any) {
	if _, ok := t.values[id]; !ok {
		t.values[id] = v
	}
}

func (t *referenceTable) resolve(id int32) (any, bool) {
	v, ok := t.values[id]
	return v, ok
}
