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
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
)

// armBlock is the ARM32 (hard-float) transition block:
//
//	+0   padding
//	+4   r4-r11, lr
//	+40  r0-r3
//	+56  stack arguments
//
// s0-s15 (d0-d7) are saved below the block, 4 bytes per single register.
type armBlock struct {
	layout
}

func newARM() *armBlock {
	return &armBlock{layout{
		arch:      ARM,
		ps:        4,
		nregs:     4,
		nfregs:    16,
		ncallee:   9,
		size:      56,
		argRegs:   40,
		floatRegs: -68,
		floatSize: 4,
		args:      56,
		firstGC:   40,
		maxRet:    4,
		hfa:       true,
		slots:     defaultSlots,
		gen:       armNames(armasm.R0, armasm.R1, armasm.R2, armasm.R3),
	}}
}

func armNames(regs ...armasm.Reg) []string {
	ret := make([]string, len(regs))
	for i, r := range regs {
		ret[i] = strings.ToLower(r.String())
	}
	return ret
}

// RegisterName names float registers by single-precision index; 8-byte wide
// values are named by their double register.
func (self *armBlock) RegisterName(kind RegKind, idx int, width int) string {
	if kind == R_gen {
		return self.genName(idx)
	} else if idx < 0 || idx >= self.nfregs {
		return "???"
	} else if width == 8 {
		return fmt.Sprintf("d%d", idx/2)
	} else {
		return strings.ToLower((armasm.S0 + armasm.Reg(idx)).String())
	}
}
