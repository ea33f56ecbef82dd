package api

import (
	"encoding/json"
	"sort"
)

// RootKey is the synthetic root of the index. Its children are host names.
const RootKey = "__ROOT__"

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Record is the unit of persistence, one per path-key.
type Record struct {
	// IsEndpoint is true iff some ingested URL terminates exactly here.
	IsEndpoint bool
	// Children holds the names of immediate child segments (not full keys).
	Children map[string]struct{}
	// Scheme is empty when no URL has set it. https is never downgraded.
	Scheme string
}

// NewRecord returns an empty record with an allocated child set.
func NewRecord() *Record {
	return &Record{Children: make(map[string]struct{})}
}

// AddChild inserts name into the child set.
func (r *Record) AddChild(name string) {
	if r.Children == nil {
		r.Children = make(map[string]struct{})
	}
	r.Children[name] = struct{}{}
}

// RemoveChild deletes name from the child set and reports whether it was present.
func (r *Record) RemoveChild(name string) bool {
	if _, ok := r.Children[name]; !ok {
		return false
	}
	delete(r.Children, name)
	return true
}

// HasChild reports whether name is in the child set.
func (r *Record) HasChild(name string) bool {
	_, ok := r.Children[name]
	return ok
}

// ChildNames returns the child set sorted lexicographically.
func (r *Record) ChildNames() []string {
	names := make([]string, 0, len(r.Children))
	for c := range r.Children {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

// ObserveScheme applies the sticky-https rule for a newly observed scheme.
func (r *Record) ObserveScheme(observed string) {
	r.Scheme = ResolveScheme(r.Scheme, observed)
}

// ResolveScheme returns the scheme a record holds after observing another one.
// A held https always wins; an empty observation keeps what is held.
func ResolveScheme(held, observed string) string {
	if held == SchemeHTTPS || observed == "" {
		return held
	}
	return observed
}

// Merge folds other into r: children are unioned, IsEndpoint is OR-ed and the
// scheme follows ResolveScheme with r's scheme as the held one.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}
	r.IsEndpoint = r.IsEndpoint || other.IsEndpoint
	for c := range other.Children {
		r.AddChild(c)
	}
	r.ObserveScheme(other.Scheme)
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := &Record{
		IsEndpoint: r.IsEndpoint,
		Scheme:     r.Scheme,
		Children:   make(map[string]struct{}, len(r.Children)),
	}
	for name := range r.Children {
		c.Children[name] = struct{}{}
	}
	return c
}

// URL renders the fully qualified URL for a record stored under key.
// Records without a scheme render as the bare key.
func (r *Record) URL(key string) string {
	if r.Scheme == "" {
		return key
	}
	return r.Scheme + "://" + key
}

type wireRecord struct {
	IsEndpoint bool     `json:"is_endpoint"`
	Children   []string `json:"children"`
	Scheme     *string  `json:"scheme"`
}

// MarshalJSON encodes the child set as a sorted array and an unset scheme as null.
func (r *Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		IsEndpoint: r.IsEndpoint,
		Children:   r.ChildNames(),
	}
	if r.Scheme != "" {
		s := r.Scheme
		w.Scheme = &s
	}
	return json.Marshal(w)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.IsEndpoint = w.IsEndpoint
	r.Children = make(map[string]struct{}, len(w.Children))
	for _, c := range w.Children {
		r.Children[c] = struct{}{}
	}
	r.Scheme = ""
	if w.Scheme != nil {
		r.Scheme = *w.Scheme
	}
	return nil
}

// Encode serialises r for storage.
func Encode(r *Record) ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a stored record.
func Decode(data []byte) (*Record, error) {
	r := NewRecord()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, nil
}
