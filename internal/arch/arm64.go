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

	"golang.org/x/arch/arm64/arm64asm"
)

// arm64Block is the ARM64 transition block:
//
//	+0    fp, lr, x19-x28
//	+96   x8, the return buffer register
//	+104  x0-x7
//	+168  stack arguments
//
// d0-d7 are saved below the block. Every float register slot is 8 bytes wide,
// so single-precision HFA elements are copied through the block as doubles.
type arm64Block struct {
	layout
}

func newARM64() *arm64Block {
	return &arm64Block{layout{
		arch:      ARM64,
		ps:        8,
		nregs:     8,
		nfregs:    8,
		ncallee:   12,
		size:      168,
		argRegs:   104,
		floatRegs: -64,
		floatSize: 8,
		args:      168,
		firstGC:   96,
		retBufReg: 96,
		maxParam:  16,
		maxRet:    16,
		hfa:       true,
		slots:     arm64Slots,
		gen: arm64Names(
			arm64asm.X0, arm64asm.X1, arm64asm.X2, arm64asm.X3,
			arm64asm.X4, arm64asm.X5, arm64asm.X6, arm64asm.X7,
		),
	}}
}

func arm64Names(regs ...arm64asm.Reg) []string {
	ret := make([]string, len(regs))
	for i, r := range regs {
		ret[i] = strings.ToLower(r.String())
	}
	return ret
}

// RetBufRegisterName names the dedicated return buffer register.
func (self *arm64Block) RetBufRegisterName() string {
	return strings.ToLower(arm64asm.X8.String())
}

func (self *arm64Block) RegisterName(kind RegKind, idx int, width int) string {
	if kind == R_gen {
		return self.genName(idx)
	} else if idx < 0 || idx >= self.nfregs {
		return "???"
	} else if width == 4 {
		return strings.ToLower((arm64asm.S0 + arm64asm.Reg(idx)).String())
	} else {
		return strings.ToLower((arm64asm.D0 + arm64asm.Reg(idx)).String())
	}
}
