/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package argmap computes where the arguments of a call live on x86, x64
// (Windows and Unix), ARM and ARM64, and builds the GC ref maps the runtime
// uses to find the references among them.
package argmap

import (
	"github.com/cloudwego/argmap/internal/abi"
	"github.com/cloudwego/argmap/internal/arch"
	"github.com/cloudwego/argmap/internal/defs"
	"github.com/cloudwego/argmap/internal/gcmap"
)

type (
	Arch       = arch.Arch
	Tag        = defs.Tag
	TypeHandle = defs.TypeHandle
	Type       = defs.Type
	Field      = defs.Field
	Signature  = defs.Signature
	Method     = defs.Method
	Location   = abi.Location
	RefMap     = gcmap.RefMap
	Slot       = gcmap.Slot
	Token      = gcmap.Token
)

const (
	X86          = arch.X86
	AMD64Windows = arch.AMD64Windows
	AMD64Unix    = arch.AMD64Unix
	ARM          = arch.ARM
	ARM64        = arch.ARM64
)

// MaxArgStackSize is the largest argument stack a method may have.
const MaxArgStackSize = defs.MaxArgStackSize

// ArgInfo is the placement of one argument. Implicit arguments have an
// Index of -1 and a non-empty Implicit name.
type ArgInfo struct {
	Index    int
	Implicit string
	Type     TypeHandle
	Offset   int
	Size     int
	ByRef    bool
	Location Location
}

// Locate places every argument of sig on the target architecture, implicit
// arguments first.
func Locate(a Arch, sig *Signature, options ...Option) ([]ArgInfo, error) {
	tb, err := arch.ForArch(a)
	if err != nil {
		return nil, err
	}

	/* create the iterator */
	it, err := abi.NewIterator(tb, sig, buildOptions(options))
	if err != nil {
		return nil, err
	}

	/* implicit arguments */
	ret := make([]ArgInfo, 0, it.NumArgs()+4)
	ret = appendImplicit(ret, tb, arch.S_this, it.HasThis(), it.ThisOffset())
	ret = appendImplicit(ret, tb, arch.S_retbuf, it.HasRetBufArg(), it.RetBufArgOffset())
	ret = appendImplicit(ret, tb, arch.S_paramtype, it.HasParamType(), it.ParamTypeArgOffset())
	ret = appendImplicit(ret, tb, arch.S_vasig, it.IsVarArg(), it.VASigCookieOffset())

	/* explicit arguments */
	for {
		if ofs, err := it.Next(); err != nil {
			return nil, err
		} else if ofs == arch.InvalidOffset {
			return ret, nil
		} else {
			ret = append(ret, ArgInfo{
				Index:    it.Index(),
				Type:     it.ArgType(),
				Offset:   ofs,
				Size:     it.ArgSize(),
				ByRef:    it.IsArgPassedByRef(),
				Location: it.Location(),
			})
		}
	}
}

func appendImplicit(ret []ArgInfo, tb arch.TransitionBlock, kind arch.SlotKind, ok bool, ofs int) []ArgInfo {
	if !ok {
		return ret
	}
	return append(ret, ArgInfo{
		Index:    -1,
		Implicit: kind.String(),
		Type:     defs.Prim(defs.T_i),
		Offset:   ofs,
		Size:     tb.PointerSize(),
		Location: abi.SlotLocation(tb, ofs),
	})
}

// SizeOfArgStack returns the size of the stack arguments of sig, and the
// number of bytes an x86 callee pops off the stack.
func SizeOfArgStack(a Arch, sig *Signature, options ...Option) (int, int, error) {
	if tb, err := arch.ForArch(a); err != nil {
		return 0, 0, err
	} else if it, err := abi.NewIterator(tb, sig, buildOptions(options)); err != nil {
		return 0, 0, err
	} else {
		return it.SizeOfArgStack(), it.CbStackPop(), nil
	}
}

// BuildRefMap builds the GC ref map of m on the target architecture.
func BuildRefMap(a Arch, m *Method, options ...Option) (*RefMap, error) {
	if tb, err := arch.ForArch(a); err != nil {
		return nil, err
	} else {
		return gcmap.Build(tb, m, buildOptions(options))
	}
}

// DecodeRefMap decodes a ref map built for the target architecture.
func DecodeRefMap(a Arch, data []byte) (*RefMap, error) {
	if _, err := arch.ForArch(a); err != nil {
		return nil, err
	}

	/* decode the slots */
	pop, slots, err := gcmap.Decode(data, a == arch.X86)
	if err != nil {
		return nil, err
	}

	/* keep a copy of the data */
	return &RefMap{
		Arch:     a,
		Data:     append([]byte(nil), data...),
		Slots:    slots,
		StackPop: pop,
	}, nil
}
