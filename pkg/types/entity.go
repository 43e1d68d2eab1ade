package types

// Entity holds the fields every record carries. Activated is transient: it
// is set on read while the record takes part in the active workout session
// and is never part of a backup.
type Entity struct {
	ID               string `json:"id"`
	CreatedTimestamp int64  `json:"createdTimestamp"`
	Activated        bool   `json:"activated,omitempty"`
}

// Parent holds the fields shared by catalog records.
type Parent struct {
	Entity
	Name      string `json:"name"`
	Desc      string `json:"desc"`
	Enabled   bool   `json:"enabled"`
	Favorited bool   `json:"favorited"`
}

// Child holds the fields shared by result records.
type Child struct {
	Entity
	ParentID string `json:"parentId"`
	Note     string `json:"note"`
}

// Base returns the embedded entity fields.
func (e *Entity) Base() *Entity { return e }

// ParentBase returns the embedded parent fields.
func (p *Parent) ParentBase() *Parent { return p }

// ChildBase returns the embedded child fields.
func (c *Child) ChildBase() *Child { return c }

// Record is implemented by the six record kinds. The set is closed: the
// unexported method keeps other packages from adding kinds the registry
// cannot dispatch on.
type Record interface {
	Base() *Entity
	Table() Table
	record()
}

// ParentRecord is a Record that owns children and caches the latest one.
type ParentRecord interface {
	Record
	ParentBase() *Parent
	// PreviousChild returns the cached latest child, or nil.
	PreviousChild() ChildRecord
	// SetPreviousChild replaces the cache with a copy of c; nil clears it.
	// c must be a child of this parent's kind.
	SetPreviousChild(c ChildRecord) error
}

// ChildRecord is a Record that belongs to a parent.
type ChildRecord interface {
	Record
	ChildBase() *Child
}

// AsParent returns r as a ParentRecord when it is one.
func AsParent(r Record) (ParentRecord, bool) {
	p, ok := r.(ParentRecord)
	return p, ok
}

// AsChild returns r as a ChildRecord when it is one.
func AsChild(r Record) (ChildRecord, bool) {
	c, ok := r.(ChildRecord)
	return c, ok
}

// ClearTransient strips the fields that never leave the store: the activated
// flag on every record and the previous-child cache on parents.
func ClearTransient(r Record) {
	r.Base().Activated = false
	if p, ok := r.(ParentRecord); ok {
		_ = p.SetPreviousChild(nil)
	}
}
