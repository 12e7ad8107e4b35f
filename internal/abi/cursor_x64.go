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
)

// winCursor implements the Windows x64 convention: argument N always takes
// slot N, which is register N for the first four. Floats use the float
// register of the same index.
type winCursor struct {
	tb     arch.TransitionBlock
	slot   int
	vararg bool
}

func (self *winCursor) genRegs() int {
	if n := self.tb.NumArgumentRegisters(); self.slot > n {
		return n
	} else {
		return self.slot
	}
}

func (self *winCursor) stackBytes() int {
	if n := self.tb.NumArgumentRegisters(); self.slot <= n {
		return 0
	} else {
		return (self.slot - n) * self.tb.PointerSize()
	}
}

func (self *winCursor) place(a *argInfo) (int, Location) {
	idx := self.slot
	loc := newLocation(arch.AMD64Windows)
	self.slot++

	/* enregistered arguments */
	if idx < self.tb.NumArgumentRegisters() {
		if a.isFloat() && !self.vararg {
			loc.setFloat(idx, 1)
			return self.tb.OffsetOfFloatArgumentRegisters() + idx*self.tb.FloatRegisterSize(), loc
		} else {
			loc.setGen(idx, 1)
			return self.tb.ArgumentRegisterOffset(idx), loc
		}
	}

	/* every stack argument takes exactly one slot */
	ofs := self.tb.OffsetOfArgs() + idx*self.tb.PointerSize()
	return ofs, stackLocation(self.tb, ofs, self.tb.PointerSize())
}

// sysvCursor implements the System V x64 convention, with independent
// general purpose, float and stack cursors. Unless struct passing is enabled
// a value type is treated as a single pointer-sized integer.
type sysvCursor struct {
	tb      arch.TransitionBlock
	gen     int
	fp      int
	stack   int
	vararg  bool
	structs bool
}

func (self *sysvCursor) genRegs() int { return self.gen }
func (self *sysvCursor) stackBytes() int { return self.stack * self.tb.PointerSize() }

func (self *sysvCursor) place(a *argInfo) (int, Location) {
	loc := newLocation(arch.AMD64Unix)

	/* real struct passing, if enabled */
	if self.structs && a.isStruct() {
		return self.placeStruct(a)
	}

	/* floats never go to general purpose registers, even if the float registers are used up */
	if a.isFloat() && !self.vararg {
		if self.fp < self.tb.NumFloatArgumentRegisters() {
			loc.setFloat(self.fp, 1)
			ofs := self.tb.OffsetOfFloatArgumentRegisters() + self.fp*self.tb.FloatRegisterSize()
			self.fp++
			return ofs, loc
		}
	} else if self.gen < self.tb.NumArgumentRegisters() {
		loc.setGen(self.gen, 1)
		ofs := self.tb.ArgumentRegisterOffset(self.gen)
		self.gen++
		return ofs, loc
	}

	/* everything is pointer-sized on the stack */
	return self.spill(self.tb.PointerSize())
}

func (self *sysvCursor) placeStruct(a *argInfo) (int, Location) {
	ng, nf := 0, 0
	ebs := classifyEightbytes(a.typ, self.tb.PointerSize())

	/* count the registers of each bank */
	for _, c := range ebs {
		if c == C_sse && !self.vararg {
			nf++
		} else {
			ng++
		}
	}

	/* the whole struct goes to the stack if either bank runs out */
	if self.gen+ng > self.tb.NumArgumentRegisters() || self.fp+nf > self.tb.NumFloatArgumentRegisters() {
		return self.spill(a.size)
	}

	/* vararg calls pass every eightbyte in general purpose registers */
	if self.vararg {
		for i := range ebs {
			ebs[i] = C_integer
		}
	}

	/* allocate the registers */
	loc := newLocation(arch.AMD64Unix)
	loc.Eightbytes = ebs
	loc.Split = ng != 0 && nf != 0

	/* record the general purpose registers */
	ofs := StructInRegsOffset
	if ng != 0 {
		loc.setGen(self.gen, ng)
		ofs = self.tb.ArgumentRegisterOffset(self.gen)
		self.gen += ng
	}

	/* and the float registers */
	if nf != 0 {
		loc.setFloat(self.fp, nf)
		if ng == 0 {
			ofs = self.tb.OffsetOfFloatArgumentRegisters() + self.fp*self.tb.FloatRegisterSize()
		}
		self.fp += nf
	}

	/* a split struct has no single offset */
	if loc.Split {
		ofs = StructInRegsOffset
	}
	return ofs, loc
}

func (self *sysvCursor) spill(size int) (int, Location) {
	nb := self.tb.StackElemSize(size)
	ofs := self.tb.OffsetOfArgs() + self.stack*self.tb.PointerSize()
	self.stack += nb / self.tb.PointerSize()
	return ofs, stackLocation(self.tb, ofs, nb)
}
