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
	"github.com/cloudwego/argmap/internal/arch"
	"github.com/cloudwego/argmap/internal/defs"
)

// armCursor implements the ARM hard-float convention. The 16 single
// precision registers are tracked in a bitmask, since a float may back-fill a
// hole left behind by an aligned double.
type armCursor struct {
	tb     arch.TransitionBlock
	gen    int
	stack  int
	fpregs uint16
	vararg bool
}

func (self *armCursor) genRegs() int { return self.gen }
func (self *armCursor) stackBytes() int { return self.stack * self.tb.PointerSize() }

func (self *armCursor) align64(a *argInfo) bool {
	switch a.tag {
	case defs.T_i8, defs.T_u8, defs.T_r8:
		return true
	case defs.T_valuetype:
		return !a.byref && a.typ.Align(self.tb.PointerSize()) >= 8
	default:
		return false
	}
}

func (self *armCursor) place(a *argInfo) (int, Location) {
	a64 := self.align64(a)
	nb := self.tb.StackElemSize(a.size)
	nslots := nb / self.tb.PointerSize()

	/* float arguments, not for vararg calls */
	if a.isFloat() && !self.vararg {
		if ofs, ok := self.placeFloat(nslots, a64); ok {
			loc := newLocation(arch.ARM)
			loc.Align64 = a64
			loc.setFloat(self.tb.FloatRegisterIndex(ofs), nslots)
			return ofs, loc
		}

		/* once a float goes to the stack, all the float registers are gone */
		self.fpregs = 0xffff
		return self.spill(nslots, a64)
	}

	/* 64-bit values start at an even register */
	nregs := self.tb.NumArgumentRegisters()
	if a64 && self.gen < nregs {
		self.gen = alignUp(self.gen, 2)
	}

	/* general purpose registers */
	if self.gen < nregs {
		idx := self.gen
		rem := nregs - idx
		ofs := self.tb.ArgumentRegisterOffset(idx)

		/* build the location */
		loc := newLocation(arch.ARM)
		loc.Align64 = a64

		/* enough registers for the whole argument */
		if nslots <= rem {
			self.gen += nslots
			loc.setGen(idx, nslots)
			return ofs, loc
		}

		/* split between the registers and the stack, unless a float is already on the stack */
		if self.gen = nregs; self.stack == 0 {
			self.stack = nslots - rem
			loc.setGen(idx, rem)
			loc.setStack(0, nslots-rem)
			return ofs, loc
		}
	}

	/* stack only */
	return self.spill(nslots, a64)
}

// placeFloat looks for the lowest free run of single precision registers,
// double aligned if needed.
func (self *armCursor) placeFloat(nslots int, a64 bool) (int, bool) {
	mask := uint16(1<<nslots - 1)
	steps, shift := 17-nslots, 1

	/* doubles start at even registers */
	if a64 {
		steps, shift = 9-nslots/2, 2
	}

	/* find the first fit */
	for i := 0; i < steps; i++ {
		if self.fpregs&mask == 0 {
			self.fpregs |= mask
			return self.tb.OffsetOfFloatArgumentRegisters() + i*shift*self.tb.FloatRegisterSize(), true
		}
		mask <<= shift
	}
	return 0, false
}

func (self *armCursor) spill(nslots int, a64 bool) (int, Location) {
	if a64 {
		self.stack = alignUp(self.stack, 2)
	}
	ofs := self.tb.OffsetOfArgs() + self.stack*self.tb.PointerSize()
	self.stack += nslots
	loc := stackLocation(self.tb, ofs, nslots*self.tb.PointerSize())
	loc.Align64 = a64
	return ofs, loc
}
