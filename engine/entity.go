/*
entity.go - Population partitions

PURPOSE:
  An Entity groups the holders of every variable attached to one
  population partition (individuals, households, ...) within one
  simulation. The member count is set once, when input data is loaded,
  and every holder under the entity shares that length thereafter.
*/
package engine

// Entity is one population partition inside one simulation.
type Entity struct {
	kind    EntityKind
	count   int
	holders map[string]*Holder
}

func newEntity(kind EntityKind) *Entity {
	return &Entity{kind: kind, holders: make(map[string]*Holder)}
}

// Kind returns the entity kind.
func (e *Entity) Kind() EntityKind { return e.kind }

// Count returns the member count (0 until input data is loaded).
func (e *Entity) Count() int { return e.count }

// setCount fixes the member count. Growing or shrinking a populated
// entity would silently desynchronize its holders, so any disagreement
// with an already-set count is a loader defect.
func (e *Entity) setCount(n int) error {
	if e.count != 0 && e.count != n {
		return &EntityLengthMismatchError{Entity: e.kind, Want: e.count, Got: n}
	}
	e.count = n
	return nil
}

// holder returns the cache cell for a variable, creating it lazily on
// first access.
func (e *Entity) holder(v *Variable) *Holder {
	h, ok := e.holders[v.Name()]
	if !ok {
		h = newHolder(v)
		e.holders[v.Name()] = h
	}
	return h
}
