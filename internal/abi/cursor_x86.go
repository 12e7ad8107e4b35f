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

// x86Cursor places the arguments left to right into ECX and EDX, and pushes
// the rest, so the first stack argument has the highest address.
type x86Cursor struct {
	tb   arch.TransitionBlock
	regs int
	top  int
	used int
}

func (self *x86Cursor) genRegs() int { return self.regs }
func (self *x86Cursor) stackBytes() int { return self.used }

// inRegister reports whether the argument fits in an argument register. Only
// 32-bit integers, pointers and value types of 1, 2 or 4 bytes do.
func (self *x86Cursor) inRegister(a *argInfo) bool {
	if self.regs >= self.tb.NumArgumentRegisters() {
		return false
	}
	switch a.tag {
	case defs.T_r4, defs.T_r8, defs.T_i8, defs.T_u8:
		return false
	case defs.T_valuetype:
		return a.size == 1 || a.size == 2 || a.size == 4
	default:
		return true
	}
}

func (self *x86Cursor) place(a *argInfo) (int, Location) {
	if self.inRegister(a) {
		loc := newLocation(arch.X86)
		loc.setGen(self.regs, 1)
		ofs := self.tb.ArgumentRegisterOffset(self.regs)
		self.regs++
		return ofs, loc
	}

	/* stack arguments grow downwards from the top of the argument area */
	nb := self.tb.StackElemSize(a.size)
	self.top -= nb
	self.used += nb
	return self.top, stackLocation(self.tb, self.top, nb)
}
