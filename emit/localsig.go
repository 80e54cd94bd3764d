// Copyright 2024 The abccompile Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"encoding/binary"

	"github.com/abcnative/abccompile/token"
)

// buildLocalSignature serializes the declared-local signature table of
// spec.md §6: a length-prefixed list of per-local (pinned, type-handle)
// tuples in declaration order. The encoding mode is selected by the
// token provider (spec.md §4.1, "Local signature"). In both modes every
// local's handle comes from HandleForSignature. With UseSignatureHelper
// false the encoded bytes are returned with a zero handle; with true the
// bytes are also passed to LocalSignatureHandle for a standalone
// signature handle. Neither mode checks whether a local's signature is
// backed by a host type, so no local is rejected on that ground.
func (e *Emitter) buildLocalSignature() ([]byte, token.StandaloneSignatureHandle, error) {
	if len(e.locals) == 0 {
		return nil, 0, nil
	}
	if e.tp == nil {
		return nil, 0, token.ErrNoProvider{Op: "local_signature"}
	}

	buf := make([]byte, 0, 2+5*len(e.locals))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.locals)))
	for _, slot := range e.locals {
		h, err := e.tp.HandleForSignature(slot.sig)
		if err != nil {
			return nil, 0, err
		}
		pinned := byte(0)
		if slot.pinned {
			pinned = 1
		}
		buf = append(buf, pinned)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(h))
	}

	if !e.tp.UseSignatureHelper() {
		return buf, 0, nil
	}
	h, err := e.tp.LocalSignatureHandle(buf)
	if err != nil {
		return nil, 0, err
	}
	return buf, h, nil
}
