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

// StructInRegsOffset is returned for a value type split across the general
// purpose and the float registers. Its placement is only described by the
// Location of the argument.
const StructInRegsOffset = -2

// cursor is the per-architecture placement state of an iterator.
type cursor interface {
	place(a *argInfo) (int, Location)
	genRegs() int
	stackBytes() int
}

type cursorConfig struct {
	tb     arch.TransitionBlock
	regs   int
	vararg bool
	sysv   bool
	top    int
}

func newCursor(cc cursorConfig) cursor {
	switch cc.tb.Arch() {
	case arch.X86:
		return &x86Cursor{tb: cc.tb, regs: cc.regs, top: cc.top}
	case arch.AMD64Windows:
		return &winCursor{tb: cc.tb, slot: cc.regs, vararg: cc.vararg}
	case arch.AMD64Unix:
		return &sysvCursor{tb: cc.tb, gen: cc.regs, vararg: cc.vararg, structs: cc.sysv}
	case arch.ARM:
		return &armCursor{tb: cc.tb, gen: cc.regs, vararg: cc.vararg}
	case arch.ARM64:
		return &arm64Cursor{tb: cc.tb, gen: cc.regs, vararg: cc.vararg}
	default:
		panic("abi: no cursor for " + cc.tb.Arch().String())
	}
}

func stackLocation(tb arch.TransitionBlock, ofs int, nb int) Location {
	loc := newLocation(tb.Arch())
	loc.setStack(tb.StackSlotIndex(ofs), nb/tb.PointerSize())
	return loc
}

func alignUp(n int, a int) int {
	return (n + a - 1) &^ (a - 1)
}
