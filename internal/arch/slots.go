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

// InvalidOffset marks an absent argument. Float register offsets are negative
// but always register aligned, so they never collide with it.
const InvalidOffset = -1

// SlotKind is an implicit argument passed ahead of (or after) the explicit
// arguments of a call.
type SlotKind uint8

const (
	S_this SlotKind = iota
	S_retbuf
	S_paramtype
	S_vasig
	_S_count
)

var slotNames = [_S_count]string{
	S_this:      "this",
	S_retbuf:    "retbuf",
	S_paramtype: "paramtype",
	S_vasig:     "vasig",
}

func (self SlotKind) String() string {
	if self < _S_count {
		return slotNames[self]
	} else {
		return "???"
	}
}

// Placement says where an implicit argument goes.
type Placement uint8

const (
	P_nextreg   Placement = iota + 1 // the next general argument register
	P_retreg                         // the dedicated return buffer register
	P_stackbase                      // the lowest stack argument slot
	P_lastarg                        // after every explicit argument
)

type slotRule struct {
	kind     SlotKind
	place    Placement
	claimAll bool // no explicit argument may use a register after this one
}

// Special-slot ordering tables. Implicit arguments are visited in table
// order, and only the ones present in the signature consume a location.
var (
	defaultSlots = []slotRule{
		{S_this, P_nextreg, false},
		{S_retbuf, P_nextreg, false},
		{S_paramtype, P_nextreg, false},
		{S_vasig, P_nextreg, false},
	}
	x86Slots = []slotRule{
		{S_this, P_nextreg, false},
		{S_retbuf, P_nextreg, false},
		{S_vasig, P_stackbase, true},
		{S_paramtype, P_lastarg, false},
	}
	arm64Slots = []slotRule{
		{S_this, P_nextreg, false},
		{S_retbuf, P_retreg, false},
		{S_paramtype, P_nextreg, false},
		{S_vasig, P_nextreg, false},
	}
)

// SpecialFlags selects the implicit arguments of a signature.
type SpecialFlags struct {
	HasThis      bool
	HasRetBuf    bool
	HasParamType bool
	IsVarArg     bool
}

func (self SpecialFlags) has(k SlotKind) bool {
	switch k {
	case S_this:
		return self.HasThis
	case S_retbuf:
		return self.HasRetBuf
	case S_paramtype:
		return self.HasParamType
	case S_vasig:
		return self.IsVarArg
	default:
		return false
	}
}

// SpecialSlots is the resolved implicit argument shape of a signature. It is
// computed once, before the first explicit argument is placed.
type SpecialSlots struct {
	Offsets    [_S_count]int
	Deferred   [_S_count]bool
	RegsUsed   int
	StackBytes int
}

// Offset returns the offset of an implicit argument, or InvalidOffset if it is
// absent or placed after the explicit arguments.
func (self *SpecialSlots) Offset(k SlotKind) int {
	return self.Offsets[k]
}

type slotLayout interface {
	PointerSize() int
	NumArgumentRegisters() int
	ArgumentRegisterOffset(idx int) int
	OffsetOfArgs() int
	RetBufRegOffset() int
}

func resolveSpecial(l slotLayout, rules []slotRule, sf SpecialFlags) (ss SpecialSlots) {
	for i := range ss.Offsets {
		ss.Offsets[i] = InvalidOffset
	}

	/* walk the table in order */
	for _, r := range rules {
		if !sf.has(r.kind) {
			continue
		}

		/* assign the location */
		switch r.place {
		case P_nextreg:
			ss.Offsets[r.kind] = l.ArgumentRegisterOffset(ss.RegsUsed)
			ss.RegsUsed++
		case P_retreg:
			ss.Offsets[r.kind] = l.RetBufRegOffset()
		case P_stackbase:
			ss.Offsets[r.kind] = l.OffsetOfArgs()
			ss.StackBytes += l.PointerSize()
		case P_lastarg:
			ss.Deferred[r.kind] = true
		default:
			panic("arch: invalid special slot placement")
		}

		/* some slots forbid any further register usage */
		if r.claimAll {
			ss.RegsUsed = l.NumArgumentRegisters()
		}
	}
	return
}

// ResolveDeferred places an implicit argument that follows every explicit
// argument, given the number of registers those arguments used. It returns
// the offset and the number of stack bytes it consumed.
func ResolveDeferred(tb TransitionBlock, regsUsed int) (int, int) {
	if regsUsed < tb.NumArgumentRegisters() {
		return tb.ArgumentRegisterOffset(regsUsed), 0
	} else {
		return tb.OffsetOfArgs(), tb.PointerSize()
	}
}
