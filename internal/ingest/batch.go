package ingest

import (
	"github.com/agentic-research/sitemap/api"
)

// Batch is the write-batch cache: records folded from decomposed URLs,
// waiting to be merged into the store. It is owned by a single Engine.
type Batch struct {
	records map[string]*api.Record
}

func NewBatch() *Batch {
	return &Batch{records: make(map[string]*api.Record)}
}

func (b *Batch) node(key string) *api.Record {
	r, ok := b.records[key]
	if !ok {
		r = api.NewRecord()
		b.records[key] = r
	}
	return r
}

// Touch makes sure key has a record in the batch, possibly empty.
func (b *Batch) Touch(key string) {
	b.node(key)
}

// Add folds one decomposed URL into the batch. Adding the same Path twice
// leaves the batch unchanged.
func (b *Batch) Add(p Path) {
	b.node(api.RootKey).AddChild(p.Host)
	b.node(p.Host).ObserveScheme(p.Scheme)

	parent := p.Host
	for _, seg := range p.Parents() {
		b.node(parent).AddChild(seg)
		parent += "/" + seg
	}

	key := parent
	if p.Leaf != "" {
		b.node(parent).AddChild(p.Leaf)
		key = parent + "/" + p.Leaf
	}
	end := b.node(key)
	end.IsEndpoint = true
	end.ObserveScheme(p.Scheme)
}

// Len returns the number of distinct keys in the batch.
func (b *Batch) Len() int {
	return len(b.records)
}

// Records exposes the batch contents. The map is owned by the batch.
func (b *Batch) Records() map[string]*api.Record {
	return b.records
}

// Reset empties the batch and releases its memory.
func (b *Batch) Reset() {
	b.records = make(map[string]*api.Record)
}
