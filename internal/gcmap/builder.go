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

package gcmap

import (
	"fmt"
	"strings"

	"github.com/oleiade/lane"

	"github.com/cloudwego/argmap/internal/abi"
	"github.com/cloudwego/argmap/internal/arch"
	"github.com/cloudwego/argmap/internal/defs"
	"github.com/cloudwego/argmap/internal/opts"
	"github.com/cloudwego/argmap/internal/utils"
)

// RefMap is the GC ref map of one method. It is immutable once built.
type RefMap struct {
	Arch     arch.Arch
	Data     []byte
	Slots    []Slot
	StackPop int
}

func (self *RefMap) String() string {
	ss := make([]string, len(self.Slots))
	for i, v := range self.Slots {
		ss[i] = v.String()
	}
	if self.Arch == arch.X86 {
		return fmt.Sprintf("{%s,pop=%d,[%s],% x}", self.Arch, self.StackPop, strings.Join(ss, " "), self.Data)
	} else {
		return fmt.Sprintf("{%s,[%s],% x}", self.Arch, strings.Join(ss, " "), self.Data)
	}
}

// Builder marks the argument slots of one method in a fake transition block
// frame, indexed by byte offset, and encodes the result.
type Builder struct {
	tb    arch.TransitionBlock
	opts  opts.Options
	frame []Token
	marks int
}

func NewBuilder(tb arch.TransitionBlock, o opts.Options) *Builder {
	return &Builder{tb: tb, opts: o}
}

// Build builds the ref map of m. Any argument shape that cannot be described
// exactly is an error, the method must not be compiled then.
func (self *Builder) Build(m *defs.Method) (ret *RefMap, err error) {
	ret, err = self.build(m)
	record(dataOf(ret), err)
	return
}

// Build is a shorthand for NewBuilder(tb, o).Build(m).
func Build(tb arch.TransitionBlock, m *defs.Method, o opts.Options) (*RefMap, error) {
	return NewBuilder(tb, o).Build(m)
}

func dataOf(rm *RefMap) []byte {
	if rm == nil {
		return nil
	} else {
		return rm.Data
	}
}

func (self *Builder) build(m *defs.Method) (*RefMap, error) {
	if m == nil || m.Sig == nil {
		return nil, utils.EUnsupported(self.tb.Arch(), "method without a signature")
	}

	/* variable sized constructors allocate the object themselves, there is no `this` yet */
	sig := m.Sig
	if m.VariableSizedCtor {
		sig = new(defs.Signature)
		*sig = *m.Sig
		sig.Flags &^= defs.F_instance
	}

	/* size the frame */
	it, err := abi.NewIterator(self.tb, sig, self.opts)
	if err != nil {
		return nil, err
	}

	/* fake frame covering the transition block and the stack arguments */
	nb := it.SizeOfFrameArgumentArray()
	self.marks = 0
	self.frame = make([]Token, self.tb.SizeOfTransitionBlock()+nb)

	/* mark the implicit arguments, then the explicit ones */
	if err = self.markSpecial(it, m); err != nil {
		return nil, err
	} else if err = self.markArgs(it); err != nil {
		return nil, err
	} else {
		return self.emit(it)
	}
}

func (self *Builder) markSpecial(it *abi.ArgIterator, m *defs.Method) error {
	if it.HasThis() {
		tok := Ref
		if m.OwnerIsValueType && !m.UnboxingStub {
			tok = Interior
		}
		if err := self.mark(it.ThisOffset(), tok); err != nil {
			return err
		}
	}

	/* the return buffer may point into the middle of an object */
	if it.HasRetBufArg() {
		if err := self.mark(it.RetBufArgOffset(), Interior); err != nil {
			return err
		}
	}

	/* unboxing stubs get the instantiation from the boxed `this` */
	if it.HasParamType() && !m.UnboxingStub {
		var tok Token
		switch m.Dict {
		case defs.D_method:
			tok = MethodParam
		case defs.D_type:
			tok = TypeParam
		default:
			return utils.EUnsupportedf(self.tb.Arch(), "generic context", "method has a generic context but no dictionary kind")
		}
		if err := self.mark(it.ParamTypeArgOffset(), tok); err != nil {
			return err
		}
	}

	/* vararg arguments are reported through the cookie */
	if it.IsVarArg() {
		return self.mark(it.VASigCookieOffset(), VASigCookie)
	} else {
		return nil
	}
}

func (self *Builder) markArgs(it *abi.ArgIterator) error {
	if it.IsVarArg() {
		return nil
	}

	/* walk every explicit argument */
	for {
		ofs, err := it.Next()
		if err != nil {
			return err
		} else if ofs == arch.InvalidOffset {
			return nil
		}

		/* value types passed by reference are a single interior pointer */
		if it.IsArgPassedByRef() {
			if err = self.mark(ofs, Interior); err != nil {
				return err
			}
			continue
		}

		/* classify every pointer-sized slot of the argument */
		buf, err := self.scan(it.ArgType())
		if err != nil {
			return err
		} else if err = self.place(it, ofs, buf); err != nil {
			return err
		}
	}
}

func (self *Builder) place(it *abi.ArgIterator, ofs int, buf []Token) error {
	ps := self.tb.PointerSize()
	loc := it.Location()

	/* value types in System V registers are scattered by eightbyte */
	if loc.Eightbytes != nil {
		for i, tok := range buf {
			if tok == Skip {
				continue
			} else if loc.Eightbytes[i] != abi.C_integer {
				return utils.EUnsupportedf(self.tb.Arch(), "value type", "%s has a reference in a float register", it.ArgType())
			} else if err := self.mark(self.tb.ArgumentRegisterOffset(loc.GenRegFor(i)), tok); err != nil {
				return err
			}
		}
		return nil
	}

	/* value types squeezed into fewer slots than their size must not lose a reference */
	for i, tok := range buf {
		if tok != Skip && i >= loc.NumGenRegs+loc.NumStackSlots {
			return utils.EUnsupportedf(self.tb.Arch(), "value type", "%s has references outside of its %s location", it.ArgType(), loc)
		}
	}

	/* everything else is contiguous */
	for i, tok := range buf {
		if tok != Skip {
			if err := self.mark(ofs+i*ps, tok); err != nil {
				return err
			}
		}
	}
	return nil
}

type _Item struct {
	t   defs.TypeHandle
	ofs int
}

// scan classifies every pointer-sized slot of a value. A slot holding a
// reference must not share any byte with a non-reference field.
func (self *Builder) scan(vt defs.TypeHandle) ([]Token, error) {
	ps := self.tb.PointerSize()
	st := lane.NewStack()
	buf := make([]Token, (vt.Size(ps)+ps-1)/ps)
	raw := make([]bool, len(buf))

	/* walk the value, expanding nested value types */
	for st.Push(_Item{vt, 0}); !st.Empty(); {
		var tok Token
		var item = st.Pop().(_Item)

		/* check the element kind */
		switch tag := item.t.Tag(); {
		case tag.IsGCRef():
			tok = Ref
		case tag.IsByRef():
			tok = Interior
		case tag == defs.T_valuetype:
			if err := self.expand(st, vt, item); err != nil {
				return nil, err
			}
			continue
		case tag.IsValid() && tag != defs.T_void:
			if err := self.scalar(vt, buf, raw, item.ofs, tag.ElemSize(ps)); err != nil {
				return nil, err
			}
			continue
		default:
			return nil, utils.EUnsupportedf(self.tb.Arch(), "field", "%s has a field of element kind %s", vt, tag)
		}

		/* references must be pointer aligned and inside the value */
		if item.ofs%ps != 0 || item.ofs < 0 || item.ofs/ps >= len(buf) {
			return nil, utils.EUnsupportedf(self.tb.Arch(), "value type", "%s has a misaligned reference at %d", vt, item.ofs)
		} else if raw[item.ofs/ps] {
			return nil, utils.EUnsupportedf(self.tb.Arch(), "value type", "%s has a reference overlapping a non-reference field at %d", vt, item.ofs)
		} else if old := buf[item.ofs/ps]; old != Skip && old != tok {
			return nil, utils.EUnsupportedf(self.tb.Arch(), "value type", "%s has overlapping references at %d", vt, item.ofs)
		} else {
			buf[item.ofs/ps] = tok
		}
	}
	return buf, nil
}

// scalar records the slots covered by a non-reference field.
func (self *Builder) scalar(vt defs.TypeHandle, buf []Token, raw []bool, ofs int, size int) error {
	ps := self.tb.PointerSize()
	if size <= 0 {
		return nil
	}

	/* every slot the field touches, clipped to the value */
	for i := ofs / ps; i <= (ofs+size-1)/ps && i < len(buf); i++ {
		if i < 0 {
			continue
		} else if buf[i] != Skip {
			return utils.EUnsupportedf(self.tb.Arch(), "value type", "%s has a non-reference field overlapping a reference at %d", vt, ofs)
		} else {
			raw[i] = true
		}
	}
	return nil
}

func (self *Builder) expand(st *lane.Stack, vt defs.TypeHandle, item _Item) error {
	for _, f := range item.t.Fields(self.tb.PointerSize()) {
		if f.Type == nil {
			return utils.EUnsupportedf(self.tb.Arch(), "field", "%s has a field without a type", vt)
		} else if f.Type.Tag().IsByRef() && !item.t.IsByRefLike() {
			return utils.EUnsupportedf(self.tb.Arch(), "field", "%s is not by-ref-like but has a by-ref field", item.t)
		} else {
			st.Push(_Item{f.Type, item.ofs + f.Offset})
		}
	}
	return nil
}

func (self *Builder) mark(ofs int, tok Token) error {
	ps := self.tb.PointerSize()

	/* the slot must be within the frame */
	if ofs < 0 || ofs%ps != 0 || ofs >= len(self.frame) {
		return utils.EUnsupportedf(self.tb.Arch(), "ref map", "%s slot at offset %d is outside of the frame", tok, ofs)
	}

	/* a slot can only hold one kind of value */
	if old := self.frame[ofs]; old != Skip {
		return utils.EUnsupportedf(self.tb.Arch(), "ref map", "slot at offset %d is both %s and %s", ofs, old, tok)
	}

	/* mark the slot */
	self.frame[ofs] = tok
	self.marks++
	return nil
}

func (self *Builder) emit(it *abi.ArgIterator) (*RefMap, error) {
	var enc Encoder
	var ret RefMap

	/* x86 starts with the stack pop size */
	if ret.Arch = self.tb.Arch(); ret.Arch == arch.X86 {
		ret.StackPop = it.CbStackPop() / self.tb.PointerSize()
		enc.WriteStackPop(ret.StackPop)
	}

	/* visit the slots in position order */
	n := self.tb.NumGCRefMapSlots(it.SizeOfFrameArgumentArray())
	for pos := 0; pos < n; pos++ {
		if tok := self.frame[self.tb.OffsetFromGCRefMapPos(pos)]; tok != Skip {
			enc.WriteToken(pos, tok)
			ret.Slots = append(ret.Slots, Slot{pos, tok})
		}
	}

	/* every mark must have been reachable */
	if len(ret.Slots) != self.marks {
		return nil, utils.EUnsupportedf(self.tb.Arch(), "ref map", "%d marked slots are not covered by the ref map", self.marks-len(ret.Slots))
	}

	/* encode the map */
	ret.Data = enc.Flush()
	return &ret, nil
}
