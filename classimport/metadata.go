// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classimport

import (
	"strings"
	"unicode"
)

// Item is one element of a tag's argument list: either a bare positional
// value or a key=value pair (spec.md §4.4 mini-grammar).
type Item struct {
	Key      string
	Value    string
	HasKey   bool
}

// Tag is one `[Name(...)]` metadata annotation.
type Tag struct {
	Name  string
	Items []Item
}

// Named returns the value of the first key=value item named key.
func (t Tag) Named(key string) (string, bool) {
	for _, it := range t.Items {
		if it.HasKey && it.Key == key {
			return it.Value, true
		}
	}
	return "", false
}

// Positional returns the value of the i-th positional (unkeyed) item.
func (t Tag) Positional(i int) (string, bool) {
	n := 0
	for _, it := range t.Items {
		if it.HasKey {
			continue
		}
		if n == i {
			return it.Value, true
		}
		n++
	}
	return "", false
}

// Tags is an ordered set of parsed annotations attached to one class or
// member.
type Tags []Tag

// Has reports whether any tag named name is present.
func (ts Tags) Has(name string) bool {
	_, ok := ts.Get(name)
	return ok
}

// Get returns the first tag named name.
func (ts Tags) Get(name string) (Tag, bool) {
	for _, t := range ts {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

const eof = rune(-1)

// scanner is a hand-rolled recursive-descent reader over the metadata
// mini-grammar of spec.md §4.4, in the vein of the teacher's wast scanner:
// no parser-generator, explicit peek/next over a rune buffer.
type scanner struct {
	src []rune
	pos int
}

func (s *scanner) peek() rune {
	if s.pos >= len(s.src) {
		return eof
	}
	return s.src[s.pos]
}

func (s *scanner) next() rune {
	r := s.peek()
	if r != eof {
		s.pos++
	}
	return r
}

func (s *scanner) skipSpace() {
	for unicode.IsSpace(s.peek()) {
		s.next()
	}
}

func isBarewordTerminator(r rune) bool {
	switch r {
	case '(', ')', '[', ']', ',', ';', '\'', '"', '=', '\\', eof:
		return true
	}
	return unicode.IsSpace(r)
}

// ParseTags parses a sequence of zero or more `[Name(...)]` annotations
// from src, per spec.md §4.4's mini-grammar.
func ParseTags(src string) (Tags, error) {
	s := &scanner{src: []rune(src)}
	var tags Tags
	s.skipSpace()
	for s.peek() != eof {
		t, err := s.parseTag()
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
		s.skipSpace()
	}
	return tags, nil
}

func (s *scanner) parseTag() (Tag, error) {
	if s.next() != '[' {
		return Tag{}, errf(KindMalformedTag, "", "expected '[' to start a tag")
	}
	s.skipSpace()
	name, err := s.parseBareword()
	if err != nil {
		return Tag{}, err
	}
	s.skipSpace()

	var items []Item
	if s.peek() == '(' {
		s.next()
		s.skipSpace()
		for s.peek() != ')' {
			if s.peek() == eof {
				return Tag{}, errf(KindMalformedTag, name, "unterminated argument list")
			}
			item, err := s.parseItem()
			if err != nil {
				return Tag{}, err
			}
			items = append(items, item)
			s.skipSpace()
			if s.peek() == ',' || s.peek() == ';' {
				s.next()
				s.skipSpace()
				continue
			}
			break
		}
		if s.next() != ')' {
			return Tag{}, errf(KindMalformedTag, name, "expected ')' to close argument list")
		}
		s.skipSpace()
	}
	if s.next() != ']' {
		return Tag{}, errf(KindMalformedTag, name, "expected ']' to close tag")
	}
	return Tag{Name: name, Items: items}, nil
}

func (s *scanner) parseItem() (Item, error) {
	first, err := s.parseString()
	if err != nil {
		return Item{}, err
	}
	s.skipSpace()
	if s.peek() != '=' {
		return Item{Value: first}, nil
	}
	s.next()
	s.skipSpace()
	second, err := s.parseString()
	if err != nil {
		return Item{}, err
	}
	return Item{Key: first, Value: second, HasKey: true}, nil
}

func (s *scanner) parseString() (string, error) {
	if s.peek() == '\'' || s.peek() == '"' {
		return s.parseQuoted()
	}
	return s.parseBareword()
}

func (s *scanner) parseQuoted() (string, error) {
	quote := s.next()
	var sb strings.Builder
	for {
		r := s.next()
		switch {
		case r == eof:
			return "", errf(KindMalformedTag, "", "unterminated quoted string")
		case r == quote:
			return sb.String(), nil
		case r == '\\':
			nxt := s.peek()
			if nxt == '\\' || nxt == '\'' || nxt == '"' {
				s.next()
				sb.WriteRune(nxt)
			} else {
				// Any other backslash is literal, per spec.md §4.4's escape rules.
				sb.WriteRune('\\')
			}
		default:
			sb.WriteRune(r)
		}
	}
}

func (s *scanner) parseBareword() (string, error) {
	var sb strings.Builder
	for !isBarewordTerminator(s.peek()) {
		sb.WriteRune(s.next())
	}
	if sb.Len() == 0 {
		return "", errf(KindMalformedTag, "", "expected a name at position %d", s.pos)
	}
	return sb.String(), nil
}
