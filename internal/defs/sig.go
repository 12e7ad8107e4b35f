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

package defs

import (
	"strings"
)

// MaxArgStackSize is the largest argument stack a signature may need, on any
// target. x86 encodes the callee pop size in a 16-bit immediate.
const MaxArgStackSize = 0xffff

type SigFlags uint8

const (
	F_instance SigFlags = 1 << iota // has an implicit `this`
	F_vararg                        // passes a vararg signature cookie
	F_paramtype                     // passes a generic instantiation context
	F_fnptrarg                      // a trailing synthetic function pointer argument
	F_objfirst                      // a leading synthetic object argument
)

// Signature is the shape of a call: the explicit parameters, the return type
// and the implicit argument flags.
type Signature struct {
	Params      []TypeHandle
	Return      TypeHandle
	Flags       SigFlags
	ForcedByRef []bool
}

func (self *Signature) HasThis() bool      { return self.Flags&F_instance != 0 }
func (self *Signature) IsVarArg() bool     { return self.Flags&F_vararg != 0 }
func (self *Signature) HasParamType() bool { return self.Flags&F_paramtype != 0 }
func (self *Signature) HasFnPtrArg() bool  { return self.Flags&F_fnptrarg != 0 }
func (self *Signature) HasObjFirst() bool  { return self.Flags&F_objfirst != 0 }

// NumArgs counts the explicit arguments the iterator walks, including the
// synthetic leading object and trailing function pointer.
func (self *Signature) NumArgs() int {
	n := len(self.Params)
	if self.HasObjFirst() {
		n++
	}
	if self.HasFnPtrArg() {
		n++
	}
	return n
}

// IsForcedByRef reports whether parameter i (an index into Params) must be
// passed by reference regardless of its size.
func (self *Signature) IsForcedByRef(i int) bool {
	return i >= 0 && i < len(self.ForcedByRef) && self.ForcedByRef[i]
}

func (self *Signature) String() string {
	var sb strings.Builder
	if self.HasThis() {
		sb.WriteString("instance ")
	}
	if self.Return == nil {
		sb.WriteString("void")
	} else {
		sb.WriteString(self.Return.String())
	}
	sb.WriteByte('(')
	for i, p := range self.Params {
		if i != 0 {
			sb.WriteString(", ")
		}
		if sb.WriteString(p.String()); self.IsForcedByRef(i) {
			sb.WriteString(" (byref)")
		}
	}
	if self.IsVarArg() {
		if len(self.Params) != 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteByte(')')
	return sb.String()
}

// DictKind selects how a shared generic method receives its instantiation.
type DictKind uint8

const (
	D_none   DictKind = iota
	D_method          // an instantiated method descriptor
	D_type            // the exact method table of the owning type
)

// Method is the compiled method a ref map is built for.
type Method struct {
	Sig               *Signature
	OwnerIsValueType  bool
	Dict              DictKind
	UnboxingStub      bool
	VariableSizedCtor bool
}
