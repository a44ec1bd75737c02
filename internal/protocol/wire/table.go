package wire

// Table is an ordered mapping of ASCII keys to values. Keys keep their
// first-insertion position; assigning an existing key replaces the value in
// place.
type Table struct {
	keys []string
	vals map[string]Value
}

func NewTable() *Table {
	return &Table{vals: make(map[string]Value)}
}

func (*Table) wireType() uint8 { return TypeTable }

func (t *Table) Set(key string, v Value) *Table {
	if t.vals == nil {
		t.vals = make(map[string]Value)
	}
	if _, ok := t.vals[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.vals[key] = v
	return t
}

// SetString is Set with a text value.
func (t *Table) SetString(key, v string) *Table {
	return t.Set(key, String(v))
}

func (t *Table) Get(key string) (Value, bool) {
	if t == nil {
		return nil, false
	}
	v, ok := t.vals[key]
	return v, ok
}

// Table returns the nested table stored at key.
func (t *Table) Table(key string) (*Table, bool) {
	v, ok := t.Get(key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*Table)
	return sub, ok && sub != nil
}

// Bytes returns the byte value stored at key.
func (t *Table) Bytes(key string) (Bytes, bool) {
	v, ok := t.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.(Bytes)
	return b, ok
}

// Text returns the byte value stored at key as a string, or "".
func (t *Table) Text(key string) string {
	b, _ := t.Bytes(key)
	return string(b)
}

func (t *Table) Delete(key string) {
	if t == nil {
		return
	}
	if _, ok := t.vals[key]; !ok {
		return
	}
	delete(t.vals, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i:i], t.keys[i+1:]...)
			break
		}
	}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns the keys in iteration order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Range calls fn for each entry in order until fn returns false.
func (t *Table) Range(fn func(key string, v Value) bool) {
	if t == nil {
		return
	}
	for _, k := range t.keys {
		if !fn(k, t.vals[k]) {
			return
		}
	}
}
