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

package abi

import (
	"log"

	"github.com/davecgh/go-spew/spew"

	"github.com/cloudwego/argmap/internal/arch"
	"github.com/cloudwego/argmap/internal/defs"
	"github.com/cloudwego/argmap/internal/opts"
	"github.com/cloudwego/argmap/internal/utils"
)

// State is the iteration state of an ArgIterator.
type State uint8

const (
	NotStarted State = iota
	Iterating
	Exhausted
)

func (self State) String() string {
	switch self {
	case NotStarted:
		return "NotStarted"
	case Iterating:
		return "Iterating"
	case Exhausted:
		return "Exhausted"
	default:
		return "???"
	}
}

// ArgIterator walks the arguments of a signature, returning the transition
// block offset of each of them. It is not safe for concurrent use.
type ArgIterator struct {
	tb      arch.TransitionBlock
	sig     *defs.Signature
	opts    opts.Options
	state   State
	retbuf  bool
	special arch.SpecialSlots
	nstack  int
	ptofs   int
	idx     int
	cur     cursor
	arg     argInfo
	loc     Location
}

// NewIterator creates an iterator over sig. The argument stack size is
// computed eagerly, so signatures that are too complex fail here.
func NewIterator(tb arch.TransitionBlock, sig *defs.Signature, o opts.Options) (*ArgIterator, error) {
	if sig == nil {
		return nil, utils.EUnsupported(tb.Arch(), "nil signature")
	} else if sig.IsVarArg() && sig.HasParamType() {
		return nil, utils.EUnsupportedf(tb.Arch(), "signature", "vararg methods cannot take a generic context")
	}

	/* create the iterator */
	it := &ArgIterator{
		tb:   tb,
		sig:  sig,
		opts: o,
	}

	/* the implicit argument shape is fixed from now on */
	it.retbuf = tb.IsRetBufRequired(sig.Return, sig.IsVarArg())
	it.special = tb.Special(arch.SpecialFlags{
		HasThis:      sig.HasThis(),
		HasRetBuf:    it.retbuf,
		HasParamType: sig.HasParamType(),
		IsVarArg:     sig.IsVarArg(),
	})

	/* size the argument stack */
	if err := it.forceSigWalk(); err != nil {
		return nil, err
	} else {
		return it, nil
	}
}

func (self *ArgIterator) sysv() bool {
	return self.opts.SysVStructPassing && self.tb.Arch() == arch.AMD64Unix
}

func (self *ArgIterator) newCursor(top int) cursor {
	return newCursor(cursorConfig{
		tb:     self.tb,
		regs:   self.special.RegsUsed,
		vararg: self.sig.IsVarArg(),
		sysv:   self.sysv(),
		top:    top,
	})
}

// forceSigWalk places every argument once on a scratch cursor, recording the
// extent of the argument stack and where a trailing generic context goes.
func (self *ArgIterator) forceSigWalk() error {
	cc := self.newCursor(0)
	nargs := self.sig.NumArgs()

	/* walk every argument, discarding the offsets */
	for i := 0; i < nargs; i++ {
		if a, err := classify(self.tb, self.sig, i, self.sysv()); err != nil {
			return err
		} else {
			cc.place(&a)
		}
	}

	/* the implicit arguments on the stack */
	self.ptofs = self.special.Offset(arch.S_paramtype)
	self.nstack = self.special.StackBytes + cc.stackBytes()

	/* the generic context may follow the explicit arguments */
	if self.special.Deferred[arch.S_paramtype] {
		ofs, nb := arch.ResolveDeferred(self.tb, cc.genRegs())
		self.ptofs = ofs
		self.nstack += nb
	}

	/* the stack size must fit in the limit on every architecture */
	if self.nstack > defs.MaxArgStackSize {
		return utils.ETooComplex(self.tb.Arch(), self.nstack, defs.MaxArgStackSize)
	} else {
		return nil
	}
}

// Reset rewinds the iterator, the next walk is identical to the first one.
func (self *ArgIterator) Reset() {
	self.idx = 0
	self.cur = nil
	self.arg = argInfo{}
	self.loc = Location{}
	self.state = NotStarted
}

// Next places the next argument and returns its offset, or arch.InvalidOffset
// after the last one. A value type split across register banks returns
// StructInRegsOffset; use Location to find its registers.
func (self *ArgIterator) Next() (int, error) {
	switch self.state {
	case Exhausted:
		return arch.InvalidOffset, nil
	case NotStarted:
		self.cur = self.newCursor(self.tb.OffsetOfArgs() + self.nstack)
		self.state = Iterating
	}

	/* no more arguments */
	if self.idx >= self.sig.NumArgs() {
		self.arg = argInfo{}
		self.loc = Location{}
		self.state = Exhausted
		return arch.InvalidOffset, nil
	}

	/* classify the argument */
	a, err := classify(self.tb, self.sig, self.idx, self.sysv())
	if err != nil {
		return arch.InvalidOffset, err
	}

	/* place it */
	ofs, loc := self.cur.place(&a)
	loc.ByRef = a.byref

	/* dump the placement if needed */
	if self.opts.Trace {
		log.Printf("argmap: %s: arg %d (%s) at %d: %s", self.tb.Arch(), self.idx, a.typ, ofs, spew.Sdump(loc))
	}

	/* advance to the next one */
	self.idx++
	self.arg = a
	self.loc = loc
	return ofs, nil
}

func (self *ArgIterator) State() State { return self.state }
func (self *ArgIterator) Signature() *defs.Signature { return self.sig }
func (self *ArgIterator) TransitionBlock() arch.TransitionBlock { return self.tb }

// Index returns the index of the argument last returned by Next.
func (self *ArgIterator) Index() int {
	return self.idx - 1
}

func (self *ArgIterator) NumArgs() int { return self.sig.NumArgs() }
func (self *ArgIterator) HasThis() bool { return self.sig.HasThis() }
func (self *ArgIterator) IsVarArg() bool { return self.sig.IsVarArg() }
func (self *ArgIterator) HasRetBufArg() bool { return self.retbuf }
func (self *ArgIterator) HasParamType() bool { return self.sig.HasParamType() }

func (self *ArgIterator) ThisOffset() int { return self.special.Offset(arch.S_this) }
func (self *ArgIterator) RetBufArgOffset() int { return self.special.Offset(arch.S_retbuf) }
func (self *ArgIterator) VASigCookieOffset() int { return self.special.Offset(arch.S_vasig) }

// ParamTypeArgOffset returns the offset of the generic context. On x86 it
// follows the explicit arguments, which is resolved by the sizing walk.
func (self *ArgIterator) ParamTypeArgOffset() int {
	return self.ptofs
}

// ArgType returns the type of the argument last returned by Next.
func (self *ArgIterator) ArgType() defs.TypeHandle { return self.arg.typ }
func (self *ArgIterator) ArgTag() defs.Tag { return self.arg.tag }

// ArgSize is the size of the argument, or the pointer size if it is passed by
// reference.
func (self *ArgIterator) ArgSize() int { return self.arg.size }
func (self *ArgIterator) IsArgPassedByRef() bool { return self.arg.byref }
func (self *ArgIterator) Location() Location { return self.loc }

// SizeOfArgStack returns the size of the stack arguments, without the
// register home area on Windows x64.
func (self *ArgIterator) SizeOfArgStack() int {
	return self.nstack
}

// SizeOfFrameArgumentArray returns the size of the stack argument area a
// caller allocates.
func (self *ArgIterator) SizeOfFrameArgumentArray() int {
	if self.tb.Arch() == arch.AMD64Windows {
		return self.nstack + self.tb.NumArgumentRegisters()*self.tb.PointerSize()
	} else {
		return self.nstack
	}
}

// CbStackPop returns the number of bytes the callee pops off the stack. Only
// x86 callees pop their arguments, and never for vararg calls.
func (self *ArgIterator) CbStackPop() int {
	if self.tb.Arch() != arch.X86 || self.sig.IsVarArg() {
		return 0
	} else {
		return self.nstack
	}
}
