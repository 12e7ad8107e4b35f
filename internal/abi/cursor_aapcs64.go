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

// arm64Cursor implements AAPCS64. An HFA takes one float register per
// element, and an argument never splits between registers and the stack.
type arm64Cursor struct {
	tb     arch.TransitionBlock
	gen    int
	fp     int
	stack  int
	vararg bool
}

func (self *arm64Cursor) genRegs() int { return self.gen }
func (self *arm64Cursor) stackBytes() int { return self.stack * self.tb.PointerSize() }

func (self *arm64Cursor) place(a *argInfo) (int, Location) {
	loc := newLocation(arch.ARM64)
	nslots := self.tb.StackElemSize(a.size) / self.tb.PointerSize()

	/* floats and HFAs */
	if a.isFloat() && !self.vararg {
		nf := 1
		if a.hfaNum != 0 {
			nf = a.hfaNum
			loc.SinglePrecision = a.hfaTag == defs.T_r4
		}

		/* every float register slot is 8 bytes wide, even for single precision elements */
		if self.fp+nf <= self.tb.NumFloatArgumentRegisters() {
			loc.setFloat(self.fp, nf)
			ofs := self.tb.OffsetOfFloatArgumentRegisters() + self.fp*self.tb.FloatRegisterSize()
			self.fp += nf
			return ofs, loc
		}

		/* no back-filling after the first float went to the stack */
		self.fp = self.tb.NumFloatArgumentRegisters()
	} else {
		if self.gen+nslots <= self.tb.NumArgumentRegisters() {
			loc.setGen(self.gen, nslots)
			ofs := self.tb.ArgumentRegisterOffset(self.gen)
			self.gen += nslots
			return ofs, loc
		}

		/* no back-filling either */
		self.gen = self.tb.NumArgumentRegisters()
	}

	/* stack */
	ofs := self.tb.OffsetOfArgs() + self.stack*self.tb.PointerSize()
	self.stack += nslots
	loc = stackLocation(self.tb, ofs, nslots*self.tb.PointerSize())
	return ofs, loc
}
