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
	"fmt"
	"strings"

	"github.com/cloudwego/argmap/internal/arch"
)

// Class is the System V class of one eightbyte of a value type.
type Class uint8

const (
	C_integer Class = iota
	C_sse
)

func (self Class) String() string {
	switch self {
	case C_integer:
		return "INTEGER"
	case C_sse:
		return "SSE"
	default:
		return "???"
	}
}

// Location is the resolved placement of one argument. An index of -1 means
// the argument does not use that kind of storage. On ARM the float registers
// are counted in single-precision units, so a double takes two of them.
type Location struct {
	Arch            arch.Arch
	FloatReg        int
	NumFloatRegs    int
	GenReg          int
	NumGenRegs      int
	StackSlot       int
	NumStackSlots   int
	Align64         bool
	SinglePrecision bool
	ByRef           bool

	// Split is set when a value type is passed in both general purpose and
	// float registers. Eightbytes records the register bank of every eightbyte
	// in order, so that the n-th C_integer eightbyte lives in GenReg+n and the
	// n-th C_sse eightbyte lives in FloatReg+n.
	Split      bool
	Eightbytes []Class
}

func newLocation(a arch.Arch) Location {
	return Location{
		Arch:      a,
		FloatReg:  -1,
		GenReg:    -1,
		StackSlot: -1,
	}
}

func (self *Location) setFloat(idx int, n int) {
	self.FloatReg = idx
	self.NumFloatRegs = n
}

func (self *Location) setGen(idx int, n int) {
	self.GenReg = idx
	self.NumGenRegs = n
}

func (self *Location) setStack(idx int, n int) {
	self.StackSlot = idx
	self.NumStackSlots = n
}

// IsValid reports whether the location uses any storage at all.
func (self Location) IsValid() bool {
	return self.NumFloatRegs != 0 || self.NumGenRegs != 0 || self.NumStackSlots != 0
}

// GenRegFor returns the general purpose register holding eightbyte i of a
// value type passed in registers.
func (self Location) GenRegFor(i int) int {
	if self.Eightbytes == nil {
		return self.GenReg + i
	}
	n := 0
	for j := 0; j < i; j++ {
		if self.Eightbytes[j] == C_integer {
			n++
		}
	}
	return self.GenReg + n
}

func (self Location) floatWidth() int {
	switch self.Arch {
	case arch.ARM:
		if self.Align64 {
			return 8
		} else {
			return 4
		}
	case arch.ARM64:
		if self.SinglePrecision {
			return 4
		} else {
			return 8
		}
	default:
		return 16
	}
}

func (self Location) String() string {
	var ss []string
	tb := arch.MustForArch(self.Arch)

	/* float registers */
	step, width := 1, self.floatWidth()
	if self.Arch == arch.ARM && width == 8 {
		step = 2
	}
	for i := 0; i < self.NumFloatRegs; i += step {
		ss = append(ss, "%"+tb.RegisterName(arch.R_float, self.FloatReg+i, width))
	}

	/* general purpose registers */
	for i := 0; i < self.NumGenRegs; i++ {
		ss = append(ss, "%"+tb.RegisterName(arch.R_gen, self.GenReg+i, tb.PointerSize()))
	}

	/* stack slots */
	if self.NumStackSlots != 0 {
		ss = append(ss, fmt.Sprintf("stack[%d:%d]", self.StackSlot, self.StackSlot+self.NumStackSlots))
	}

	/* by-ref values are passed as a pointer */
	if ret := strings.Join(ss, ","); self.ByRef {
		return "&(" + ret + ")"
	} else {
		return ret
	}
}

// SlotLocation describes a pointer-sized implicit argument at ofs.
func SlotLocation(tb arch.TransitionBlock, ofs int) Location {
	loc := newLocation(tb.Arch())
	if tb.IsArgumentRegisterOffset(ofs) {
		loc.setGen(tb.ArgumentRegisterIndex(ofs), 1)
	} else if ofs >= tb.OffsetOfArgs() {
		loc.setStack(tb.StackSlotIndex(ofs), 1)
	}
	return loc
}
