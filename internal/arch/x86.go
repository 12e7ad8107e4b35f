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

package arch

import (
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// x86Block is the 32-bit x86 transition block:
//
//	+0   EDX
//	+4   ECX
//	+8   EDI, ESI, EBX, EBP
//	+24  return address
//	+28  stack arguments, pushed left to right
//
// The argument registers are stored backwards, so the first register (ECX)
// lives in the second slot.
type x86Block struct {
	layout
}

func newX86() *x86Block {
	return &x86Block{layout{
		arch:    X86,
		ps:      4,
		nregs:   2,
		ncallee: 4,
		size:    28,
		argRegs: 0,
		args:    28,
		firstGC: 0,
		maxRet:  8,
		pow2:    true,
		slots:   x86Slots,
		gen:     x86Names(x86asm.ECX, x86asm.EDX),
	}}
}

func x86Names(regs ...x86asm.Reg) []string {
	ret := make([]string, len(regs))
	for i, r := range regs {
		ret[i] = strings.ToLower(r.String())
	}
	return ret
}

func (self *x86Block) ArgumentRegisterOffset(idx int) int {
	return self.argRegs + (self.nregs-1-idx)*self.ps
}

func (self *x86Block) ArgumentRegisterIndex(ofs int) int {
	return self.nregs - 1 - (ofs-self.argRegs)/self.ps
}

func (self *x86Block) ThisOffset() int {
	return self.ArgumentRegisterOffset(0)
}

func (self *x86Block) Special(sf SpecialFlags) SpecialSlots {
	return resolveSpecial(self, self.slots, sf)
}

// NumGCRefMapSlots counts the argument registers, in argument order, followed
// by the stack arguments.
func (self *x86Block) NumGCRefMapSlots(stackBytes int) int {
	return stackBytes/self.ps + self.nregs
}

func (self *x86Block) OffsetFromGCRefMapPos(pos int) int {
	if pos < self.nregs {
		return self.ArgumentRegisterOffset(pos)
	} else {
		return self.args + (pos-self.nregs)*self.ps
	}
}

func (self *x86Block) RegisterName(kind RegKind, idx int, _ int) string {
	if kind == R_gen {
		return self.genName(idx)
	} else {
		return "???"
	}
}
