package sped

import (
	"fmt"

	"spedflow/internal/domain"
)

// c100 layout position of NUM_DOC.
const documentNumberPos = 7

// Stamp is what the tracker derived for one line.
type Stamp struct {
	Tag Tag
	// Key is set for document headers.
	Key domain.DocumentKey
	// Parent is set for line items; zero when no header precedes the item in its file.
	Parent domain.DocumentKey
	// Latched is true on the line that set the run's opening context.
	Latched bool
}

// Tracker follows file order to latch the opening context and to attach
// line items to the header above them. It is not safe for concurrent use and
// runs on the reader goroutine.
type Tracker struct {
	opening     *domain.OpeningContext
	current     domain.DocumentKey
	fileOrdinal int
	fileName    string
	fileOpened  bool
	endSeen     bool
}

// NewTracker creates a tracker for one import run.
func NewTracker() *Tracker {
	return &Tracker{}
}

// StartFile marks a file boundary. Headers never carry over between files.
func (t *Tracker) StartFile(ordinal int, name string) {
	t.fileOrdinal = ordinal
	t.fileName = name
	t.current = domain.DocumentKey{}
	t.fileOpened = false
	t.endSeen = false
}

// EndSeen reports whether the current file reached its 9999 marker.
func (t *Tracker) EndSeen() bool {
	return t.endSeen
}

// Opening returns the latched context, or nil before the first 0000 record.
func (t *Tracker) Opening() *domain.OpeningContext {
	return t.opening
}

// Observe advances the tracker with one raw line.
func (t *Tracker) Observe(line string, lineNo int) (Stamp, error) {
	tag := PeekTag(line)
	if tag == "" {
		return Stamp{}, nil
	}

	if tag == TagOpening {
		return t.observeOpening(line, lineNo)
	}
	if !t.fileOpened {
		return Stamp{}, t.fail(lineNo, domain.ErrMissingOpening)
	}

	st := Stamp{Tag: tag}
	switch tag {
	case TagDocument:
		t.current = domain.DocumentKey{
			FileOrdinal: t.fileOrdinal,
			LineNumber:  lineNo,
			Number:      FieldAt(line, documentNumberPos),
		}
		st.Key = t.current
	case TagItem:
		st.Parent = t.current
	case TagEnd:
		t.endSeen = true
	}
	return st, nil
}

func (t *Tracker) observeOpening(line string, lineNo int) (Stamp, error) {
	ctx, err := ParseOpening(ParseLine(line))
	if err != nil {
		return Stamp{}, t.fail(lineNo, err)
	}
	t.fileOpened = true

	if t.opening == nil {
		t.opening = &ctx
		return Stamp{Tag: TagOpening, Latched: true}, nil
	}
	if ctx.Period != t.opening.Period || ctx.BranchCode != t.opening.BranchCode {
		return Stamp{}, t.fail(lineNo, fmt.Errorf("%w: got %s/%s, run is %s/%s",
			domain.ErrContextMismatch, ctx.Period, ctx.BranchCode, t.opening.Period, t.opening.BranchCode))
	}
	return Stamp{Tag: TagOpening}, nil
}

func (t *Tracker) fail(lineNo int, reason error) error {
	return &domain.ValidationError{File: t.fileName, Line: lineNo, Reason: reason}
}
