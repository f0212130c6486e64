// Package sped decodes the pipe-delimited records of SPED EFD ICMS/IPI files.
package sped

import "strings"

// Tag is the record type found in the first field of every line.
type Tag string

const (
	TagOpening  Tag = "0000"
	TagPartner  Tag = "0150"
	TagProduct  Tag = "0200"
	TagDocument Tag = "C100"
	TagItem     Tag = "C170"
	TagEnd      Tag = "9999"
)

// Record is one decoded line. Fields excludes the tag.
// Records returned by a Parser may share their Fields slice and must not be mutated.
type Record struct {
	Tag    Tag
	Fields []string
}

// Empty reports whether the line produced no record.
func (r Record) Empty() bool {
	return r.Tag == ""
}

// At returns the field at the given layout position, where position 1 is the
// first field after the tag. Missing positions yield "".
func (r Record) At(pos int) string {
	if pos < 1 || pos > len(r.Fields) {
		return ""
	}
	return strings.TrimSpace(r.Fields[pos-1])
}

// Has reports whether the record carries at least pos fields after the tag.
func (r Record) Has(pos int) bool {
	return len(r.Fields) >= pos
}

// ParseLine decodes a single line without caching.
// Malformed or blank lines decode to an empty record.
func ParseLine(line string) Record {
	s := strings.TrimSpace(line)
	if len(s) < 2 || s[0] != '|' {
		return Record{}
	}
	s = s[1:]
	s = strings.TrimSuffix(s, "|")

	parts := strings.Split(s, "|")
	tag := strings.TrimSpace(parts[0])
	if tag == "" {
		return Record{}
	}
	return Record{Tag: Tag(tag), Fields: parts[1:]}
}

// PeekTag extracts the tag of a line without splitting the rest.
func PeekTag(line string) Tag {
	s := strings.TrimLeft(line, " \t\r\n")
	if len(s) < 2 || s[0] != '|' {
		return ""
	}
	s = s[1:]
	if i := strings.IndexByte(s, '|'); i >= 0 {
		s = s[:i]
	}
	return Tag(strings.TrimSpace(s))
}

// FieldAt extracts one field by layout position without allocating the full split.
func FieldAt(line string, pos int) string {
	s := strings.TrimSpace(line)
	if len(s) < 2 || s[0] != '|' {
		return ""
	}
	s = s[1:]
	for i := 0; i < pos; i++ {
		j := strings.IndexByte(s, '|')
		if j < 0 {
			return ""
		}
		s = s[j+1:]
	}
	if j := strings.IndexByte(s, '|'); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}
