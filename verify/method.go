// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package verify

import "github.com/abcnative/abccompile/emit"

// ExceptionRegion is one ABC exception-region table entry: spec.md §3's
// data model entry `{try_start, try_end, handler_start, catch_type,
// variable_name}`, carrying a Kind and no variable name. The end of the
// handler body is not stored (real ABC files do not store it either);
// translate.go derives it in groupChains/chainHandlerEnd from the layout
// of neighboring regions and the method's code length.
type ExceptionRegion struct {
	TryStart, TryEnd, HandlerStart int
	Kind                           emit.RegionKind
	CatchType                      string // qualified name text; "" for catch-all/fault/finally
}

// MethodBody is the ABC-side input to translation: spec.md §3's "ABC
// method body (input)" — instruction stream, locals, exception regions,
// and the signature TR/TP need to seed parameter and `this` typing.
type MethodBody struct {
	Code       []byte
	LocalCount int
	Regions    []ExceptionRegion

	// ThisType is "" for a static method; otherwise the qualified name
	// of the bearer class, occupying local slot 0.
	ThisType string
	// ParamTypes are the declared parameter qualified type names,
	// occupying local slots starting at 1 if ThisType != "", else 0.
	ParamTypes []string
	ReturnType string
}
