// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classimport

import "testing"

func TestParseTagsBareAndQuoted(t *testing.T) {
	tags, err := ParseTags(`[Event(name="click", bubbles=true)][Deprecated]`)
	if err != nil {
		t.Fatalf("ParseTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("got %d tags, want 2", len(tags))
	}
	ev, ok := tags.Get("Event")
	if !ok {
		t.Fatalf("expected an Event tag")
	}
	name, ok := ev.Named("name")
	if !ok || name != "click" {
		t.Fatalf("name = %q, ok=%v, want \"click\"", name, ok)
	}
	bubbles, ok := ev.Named("bubbles")
	if !ok || bubbles != "true" {
		t.Fatalf("bubbles = %q, ok=%v, want \"true\"", bubbles, ok)
	}
	if !tags.Has("Deprecated") {
		t.Fatalf("expected a Deprecated tag")
	}
}

func TestParseTagsPositionalItems(t *testing.T) {
	tags, err := ParseTags(`[Optional(0)]`)
	if err != nil {
		t.Fatalf("ParseTags: %v", err)
	}
	opt, ok := tags.Get("Optional")
	if !ok {
		t.Fatalf("expected an Optional tag")
	}
	v, ok := opt.Positional(0)
	if !ok || v != "0" {
		t.Fatalf("positional(0) = %q, ok=%v, want \"0\"", v, ok)
	}
}

func TestParseTagsEscapes(t *testing.T) {
	tags, err := ParseTags(`[Foo(bar='it\'s \\here\\ and "quoted"')]`)
	if err != nil {
		t.Fatalf("ParseTags: %v", err)
	}
	foo, _ := tags.Get("Foo")
	v, ok := foo.Named("bar")
	if !ok {
		t.Fatalf("expected bar key")
	}
	want := `it's \here\ and "quoted"`
	if v != want {
		t.Fatalf("bar = %q, want %q", v, want)
	}
}

func TestParseTagsSemicolonSeparator(t *testing.T) {
	tags, err := ParseTags(`[Pair(a=1; b=2)]`)
	if err != nil {
		t.Fatalf("ParseTags: %v", err)
	}
	p, _ := tags.Get("Pair")
	if len(p.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(p.Items))
	}
}

func TestParseTagsMalformedMissingBracket(t *testing.T) {
	if _, err := ParseTags(`[Foo(a=1)`); err == nil {
		t.Fatalf("expected an error for a missing closing ']'")
	}
}

func TestParseTagsMalformedUnterminatedQuote(t *testing.T) {
	if _, err := ParseTags(`[Foo(a="unterminated)]`); err == nil {
		t.Fatalf("expected an error for an unterminated quoted string")
	}
}

func TestParseTagsIgnoresWhitespace(t *testing.T) {
	tags, err := ParseTags("  [ Foo ( a = 1 , b = 2 ) ]  ")
	if err != nil {
		t.Fatalf("ParseTags: %v", err)
	}
	f, ok := tags.Get("Foo")
	if !ok {
		t.Fatalf("expected a Foo tag")
	}
	if v, _ := f.Named("a"); v != "1" {
		t.Fatalf("a = %q, want \"1\"", v)
	}
	if v, _ := f.Named("b"); v != "2" {
		t.Fatalf("b = %q, want \"2\"", v)
	}
}
