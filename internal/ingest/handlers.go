package ingest

import (
	"spedflow/internal/domain"
	"spedflow/internal/sped"
)

// recordHandler decodes one record and buffers the resulting row.
// It returns false when the record is too short to decode.
type recordHandler func(agg *BufferAggregator, rec sped.Record, ln lineRef, scope domain.RunScope) bool

// handlers is the strategy table for data-bearing tags. 0000 and 9999 are
// consumed by the tracker on the reader goroutine and never reach workers.
var handlers = map[sped.Tag]recordHandler{
	sped.TagPartner:  handlePartner,
	sped.TagProduct:  handleProduct,
	sped.TagDocument: handleDocument,
	sped.TagItem:     handleItem,
}

func handlePartner(agg *BufferAggregator, rec sped.Record, _ lineRef, scope domain.RunScope) bool {
	p, ok := sped.DecodePartner(rec)
	if !ok {
		return false
	}
	p.RunScope = scope
	agg.AddPartner(p)
	return true
}

func handleProduct(agg *BufferAggregator, rec sped.Record, _ lineRef, scope domain.RunScope) bool {
	p, ok := sped.DecodeProduct(rec)
	if !ok {
		return false
	}
	p.RunScope = scope
	agg.AddProduct(p)
	return true
}

func handleDocument(agg *BufferAggregator, rec sped.Record, ln lineRef, scope domain.RunScope) bool {
	d, ok := sped.DecodeDocument(rec)
	if !ok {
		return false
	}
	d.RunScope = scope
	d.DocumentKey = ln.stamp.Key
	agg.AddDocument(&d)
	return true
}

func handleItem(agg *BufferAggregator, rec sped.Record, ln lineRef, scope domain.RunScope) bool {
	it, ok := sped.DecodeItem(rec)
	if !ok {
		return false
	}
	it.RunScope = scope
	it.Parent = ln.stamp.Parent
	agg.AddItem(it)
	return true
}
