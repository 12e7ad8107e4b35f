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

	"github.com/cloudwego/argmap/internal/defs"
	"github.com/cloudwego/argmap/internal/utils"
)

// Arch is a compilation target. It is selected once per compilation and
// never mixed within one iterator.
type Arch uint8

const (
	X86 Arch = iota
	AMD64Windows
	AMD64Unix
	ARM
	ARM64
	_ArchCount
)

var archNames = [_ArchCount]string{
	X86:          "x86",
	AMD64Windows: "x64-windows",
	AMD64Unix:    "x64-unix",
	ARM:          "arm",
	ARM64:        "arm64",
}

// All lists every supported architecture.
var All = []Arch{X86, AMD64Windows, AMD64Unix, ARM, ARM64}

func (self Arch) String() string {
	if self < _ArchCount {
		return archNames[self]
	} else {
		return fmt.Sprintf("Arch(%d)", self)
	}
}

func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "x86", "i386", "386":
		return X86, nil
	case "x64-windows", "amd64-windows", "win-x64":
		return AMD64Windows, nil
	case "x64-unix", "amd64-unix", "amd64", "x64", "linux-x64":
		return AMD64Unix, nil
	case "arm", "arm32":
		return ARM, nil
	case "arm64", "aarch64":
		return ARM64, nil
	default:
		return 0, fmt.Errorf("unknown architecture: %q", s)
	}
}

// RegKind selects a register bank.
type RegKind uint8

const (
	R_gen RegKind = iota
	R_float
)

// TransitionBlock describes the frame an argument area is addressed relative
// to: callee-saved registers, argument registers and the return address. All
// offsets are byte offsets from the start of the transition block; the float
// argument register area lives at negative offsets.
type TransitionBlock interface {
	Arch() Arch
	PointerSize() int
	NumArgumentRegisters() int
	NumFloatArgumentRegisters() int
	NumCalleeSavedRegisters() int
	SizeOfTransitionBlock() int
	OffsetOfArgumentRegisters() int
	OffsetOfFloatArgumentRegisters() int
	FloatRegisterSize() int
	OffsetOfArgs() int
	OffsetOfFirstGCRefMapSlot() int
	EnregisteredParamTypeMaxSize() int
	EnregisteredReturnTypeIntegerMaxSize() int
	PassesHFA() bool
	RetBufPassedAsFirstArg() bool

	IsFloatArgumentRegisterOffset(ofs int) bool
	IsArgumentRegisterOffset(ofs int) bool
	IsStackArgumentOffset(ofs int) bool
	ArgumentRegisterOffset(idx int) int
	ArgumentRegisterIndex(ofs int) int
	FloatRegisterIndex(ofs int) int
	StackSlotIndex(ofs int) int
	StackElemSize(size int) int

	IsArgPassedByRef(vt defs.TypeHandle) bool
	IsRetBufRequired(rt defs.TypeHandle, vararg bool) bool

	ThisOffset() int
	Special(sf SpecialFlags) SpecialSlots

	NumGCRefMapSlots(stackBytes int) int
	OffsetFromGCRefMapPos(pos int) int

	RegisterName(kind RegKind, idx int, width int) string
}

var blocks = [_ArchCount]TransitionBlock{
	X86:          newX86(),
	AMD64Windows: newAMD64Windows(),
	AMD64Unix:    newAMD64Unix(),
	ARM:          newARM(),
	ARM64:        newARM64(),
}

// ForArch returns the shared, read-only transition block of an architecture.
func ForArch(a Arch) (TransitionBlock, error) {
	if a >= _ArchCount {
		return nil, utils.EUnsupported(a, "architecture")
	} else {
		return blocks[a], nil
	}
}

// MustForArch is like ForArch but panics on unsupported architectures.
func MustForArch(a Arch) TransitionBlock {
	if tb, err := ForArch(a); err != nil {
		panic(err)
	} else {
		return tb
	}
}
