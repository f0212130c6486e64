package ingest

import (
	"sync"

	"spedflow/internal/domain"
)

// Snapshot is the content of the buffers at flush time.
type Snapshot struct {
	Documents []*domain.Document
	Items     []domain.LineItem
	Partners  []domain.Partner
	Products  []domain.Product
}

// Len returns the number of records in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Documents) + len(s.Items) + len(s.Partners) + len(s.Products)
}

// BufferAggregator collects decoded records from the parsing workers and
// signals once the flush threshold is reached.
type BufferAggregator struct {
	threshold int
	signal    chan struct{}

	mu  sync.Mutex
	buf Snapshot
	n   int
}

// NewBufferAggregator creates an aggregator signalling at threshold buffered records.
func NewBufferAggregator(threshold int) *BufferAggregator {
	if threshold <= 0 {
		threshold = 20000
	}
	return &BufferAggregator{
		threshold: threshold,
		signal:    make(chan struct{}, 1),
	}
}

// Ready is signalled when the buffered count crosses the threshold.
func (a *BufferAggregator) Ready() <-chan struct{} {
	return a.signal
}

func (a *BufferAggregator) AddDocument(d *domain.Document) {
	a.add(func(b *Snapshot) { b.Documents = append(b.Documents, d) })
}

func (a *BufferAggregator) AddItem(it domain.LineItem) {
	a.add(func(b *Snapshot) { b.Items = append(b.Items, it) })
}

func (a *BufferAggregator) AddPartner(p domain.Partner) {
	a.add(func(b *Snapshot) { b.Partners = append(b.Partners, p) })
}

func (a *BufferAggregator) AddProduct(p domain.Product) {
	a.add(func(b *Snapshot) { b.Products = append(b.Products, p) })
}

func (a *BufferAggregator) add(fn func(*Snapshot)) {
	a.mu.Lock()
	fn(&a.buf)
	a.n++
	full := a.n >= a.threshold
	a.mu.Unlock()

	if full {
		select {
		case a.signal <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of buffered records.
func (a *BufferAggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

// Drain hands over the buffered records and empties the buffers.
func (a *BufferAggregator) Drain() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.buf
	a.buf = Snapshot{}
	a.n = 0
	return out
}
