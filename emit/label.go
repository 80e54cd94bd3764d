// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

// Label is a deferred branch target, created unbound and later fixed to a
// byte offset by MarkLabel. Labels are only meaningful to the Emitter that
// created them; using one against a different Emitter has unspecified
// behavior (spec.md §3's lifecycle note).
type Label struct {
	id int
}

type labelState struct {
	bound bool
	pos   int

	// hasDepth/depth record the required evaluation-stack depth at this
	// label. The depth is recorded at emission time by whichever arrives
	// first: the MarkLabel call, or the first branch that targets the
	// label. Later observations at the same label are neither compared
	// with the recorded depth nor recorded.
	hasDepth bool
	depth    int

	// referenced is not set or read by any emitter path; every created
	// label must be marked before finalize whether or not a branch names
	// it (spec.md §9, "treat this as strict").
	referenced bool
}
