package sped

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultCacheSize bounds the parse cache when no size is configured.
const DefaultCacheSize = 5000

// Parser decodes raw lines into records, memoizing repeated lines in a
// bounded FIFO cache. It is safe for concurrent use by pipeline workers.
type Parser struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]Record
	ring    []string
	next    int
	size    int
}

// NewParser creates a parser whose cache holds at most size lines.
func NewParser(size int, logger *zap.Logger) *Parser {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		logger:  logger,
		entries: make(map[string]Record, size),
		ring:    make([]string, size),
		size:    size,
	}
}

// Parse decodes one line. It never fails: malformed lines yield an empty record.
func (p *Parser) Parse(line string) Record {
	key := strings.TrimSpace(line)
	if key == "" {
		return Record{}
	}

	p.mu.Lock()
	rec, ok := p.entries[key]
	p.mu.Unlock()
	if ok {
		return rec
	}

	rec = ParseLine(key)
	if rec.Empty() {
		p.logger.Debug("skipping malformed line", zap.Int("length", len(key)))
		return rec
	}

	p.mu.Lock()
	if _, exists := p.entries[key]; !exists {
		if old := p.ring[p.next]; old != "" {
			delete(p.entries, old)
		}
		p.ring[p.next] = key
		p.next = (p.next + 1) % p.size
		p.entries[key] = rec
	}
	p.mu.Unlock()
	return rec
}

// Len returns the number of cached lines.
func (p *Parser) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Reset drops every cached line. Called at run boundaries.
func (p *Parser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]Record, p.size)
	p.ring = make([]string, p.size)
	p.next = 0
}
