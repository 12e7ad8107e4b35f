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
	"github.com/cloudwego/argmap/internal/defs"
)

// layout is the constant table shared by every architecture. Architectures
// embed it and override what differs.
type layout struct {
	arch      Arch
	ps        int // pointer size
	nregs     int // integer argument registers
	nfregs    int // float argument registers
	ncallee   int // callee-saved registers
	size      int // size of the transition block
	argRegs   int // offset of the argument registers
	floatRegs int // offset of the float argument registers
	floatSize int // bytes per float register slot
	args      int // offset of the first stack argument
	homeSize  int // register home area at the base of the stack arguments
	firstGC   int // offset of GC ref map position 0
	retBufReg int // offset of the dedicated return buffer register, if any
	maxParam  int // max size of an enregistered value type parameter, 0 if unlimited
	maxRet    int // max size of a value type returned in integer registers
	pow2      bool
	hfa       bool
	slots     []slotRule
	gen       []string
}

func (self *layout) Arch() Arch { return self.arch }
func (self *layout) PointerSize() int { return self.ps }
func (self *layout) NumArgumentRegisters() int { return self.nregs }
func (self *layout) NumFloatArgumentRegisters() int { return self.nfregs }
func (self *layout) NumCalleeSavedRegisters() int { return self.ncallee }
func (self *layout) SizeOfTransitionBlock() int { return self.size }
func (self *layout) OffsetOfArgumentRegisters() int { return self.argRegs }
func (self *layout) OffsetOfFloatArgumentRegisters() int { return self.floatRegs }
func (self *layout) FloatRegisterSize() int { return self.floatSize }
func (self *layout) OffsetOfArgs() int { return self.args }
func (self *layout) OffsetOfFirstGCRefMapSlot() int { return self.firstGC }
func (self *layout) EnregisteredParamTypeMaxSize() int { return self.maxParam }
func (self *layout) EnregisteredReturnTypeIntegerMaxSize() int { return self.maxRet }
func (self *layout) PassesHFA() bool { return self.hfa }
func (self *layout) RetBufPassedAsFirstArg() bool { return self.retBufReg == 0 }

func (self *layout) IsFloatArgumentRegisterOffset(ofs int) bool {
	return self.nfregs != 0 && ofs >= self.floatRegs && ofs < self.floatRegs+self.nfregs*self.floatSize
}

func (self *layout) IsArgumentRegisterOffset(ofs int) bool {
	return ofs >= self.argRegs && ofs < self.argRegs+self.nregs*self.ps
}

func (self *layout) IsStackArgumentOffset(ofs int) bool {
	return ofs >= self.args+self.homeSize
}

func (self *layout) ArgumentRegisterOffset(idx int) int {
	return self.argRegs + idx*self.ps
}

func (self *layout) ArgumentRegisterIndex(ofs int) int {
	return (ofs - self.argRegs) / self.ps
}

func (self *layout) FloatRegisterIndex(ofs int) int {
	return (ofs - self.floatRegs) / self.floatSize
}

func (self *layout) StackSlotIndex(ofs int) int {
	return (ofs - self.args) / self.ps
}

func (self *layout) StackElemSize(size int) int {
	return alignUp(size, self.ps)
}

func (self *layout) IsArgPassedByRef(vt defs.TypeHandle) bool {
	if self.maxParam == 0 || vt.Tag() != defs.T_valuetype {
		return false
	}

	/* HFAs are passed in float registers instead */
	if _, n := vt.HFA(); self.hfa && n != 0 {
		return false
	}

	/* too large, or not a power of 2 on x64 */
	size := vt.Size(self.ps)
	return size > self.maxParam || (self.pow2 && !isPow2(size))
}

func (self *layout) IsRetBufRequired(rt defs.TypeHandle, vararg bool) bool {
	if rt == nil || rt.Tag() != defs.T_valuetype {
		return false
	}

	/* HFAs are returned in float registers, except for vararg calls */
	if _, n := rt.HFA(); self.hfa && n != 0 && !vararg {
		return false
	}

	/* value types of size which are not powers of 2 use a return buffer on x86 and x64 */
	size := rt.Size(self.ps)
	return size > self.maxRet || (self.pow2 && !isPow2(size))
}

// RetBufRegOffset returns the offset of the dedicated return buffer register.
func (self *layout) RetBufRegOffset() int {
	if self.retBufReg == 0 {
		panic("arch: no dedicated return buffer register on " + self.arch.String())
	} else {
		return self.retBufReg
	}
}

func (self *layout) ThisOffset() int {
	return self.ArgumentRegisterOffset(0)
}

func (self *layout) Special(sf SpecialFlags) SpecialSlots {
	return resolveSpecial(self, self.slots, sf)
}

func (self *layout) NumGCRefMapSlots(stackBytes int) int {
	return (self.size + stackBytes - self.firstGC) / self.ps
}

func (self *layout) OffsetFromGCRefMapPos(pos int) int {
	return self.firstGC + pos*self.ps
}

func (self *layout) genName(idx int) string {
	if idx < 0 || idx >= len(self.gen) {
		return "???"
	} else {
		return self.gen[idx]
	}
}

func alignUp(n int, a int) int {
	return (n + a - 1) &^ (a - 1)
}

func isPow2(n int) bool {
	return n != 0 && n&(n-1) == 0
}
