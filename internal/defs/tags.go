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
	"fmt"
)

// Tag is the element kind of an argument, a field or a return value.
type Tag uint8

const (
	T_void Tag = iota
	T_bool
	T_char
	T_i1
	T_u1
	T_i2
	T_u2
	T_i4
	T_u4
	T_i8
	T_u8
	T_r4
	T_r8
	T_i
	T_u
	T_ptr
	T_fnptr
	T_byref
	T_class
	T_string
	T_object
	T_szarray
	T_array
	T_valuetype
	_T_count
)

var tagNames = [_T_count]string{
	T_void:      "void",
	T_bool:      "bool",
	T_char:      "char",
	T_i1:        "i1",
	T_u1:        "u1",
	T_i2:        "i2",
	T_u2:        "u2",
	T_i4:        "i4",
	T_u4:        "u4",
	T_i8:        "i8",
	T_u8:        "u8",
	T_r4:        "r4",
	T_r8:        "r8",
	T_i:         "i",
	T_u:         "u",
	T_ptr:       "ptr",
	T_fnptr:     "fnptr",
	T_byref:     "byref",
	T_class:     "class",
	T_string:    "string",
	T_object:    "object",
	T_szarray:   "szarray",
	T_array:     "array",
	T_valuetype: "valuetype",
}

// primitive sizes, 0 means pointer-sized or variable
var tagSizes = [_T_count]int{
	T_bool: 1,
	T_char: 2,
	T_i1:   1,
	T_u1:   1,
	T_i2:   2,
	T_u2:   2,
	T_i4:   4,
	T_u4:   4,
	T_i8:   8,
	T_u8:   8,
	T_r4:   4,
	T_r8:   8,
}

func ParseTag(s string) (Tag, error) {
	for i, v := range tagNames {
		if v == s {
			return Tag(i), nil
		}
	}
	return T_void, fmt.Errorf("unknown element kind: %q", s)
}

func (self Tag) String() string {
	if self < _T_count {
		return tagNames[self]
	} else {
		return fmt.Sprintf("Tag(%d)", self)
	}
}

func (self Tag) IsValid() bool {
	return self < _T_count
}

func (self Tag) IsValueType() bool {
	return self == T_valuetype
}

func (self Tag) IsFloat() bool {
	return self == T_r4 || self == T_r8
}

// IsPointer reports unmanaged pointers, which are never reported to the GC.
func (self Tag) IsPointer() bool {
	return self == T_ptr || self == T_fnptr
}

func (self Tag) IsByRef() bool {
	return self == T_byref
}

// IsGCRef reports tags holding a reference to the start of a managed object.
func (self Tag) IsGCRef() bool {
	switch self {
	case T_class, T_string, T_object, T_szarray, T_array:
		return true
	default:
		return false
	}
}

// Is64Bit reports primitives that need 8-byte alignment on 32-bit targets.
func (self Tag) Is64Bit() bool {
	return self == T_i8 || self == T_u8 || self == T_r8
}

// ElemSize returns the size of a non-value-type element on a target with
// pointer size ps.
func (self Tag) ElemSize(ps int) int {
	if self == T_void || self == T_valuetype || self >= _T_count {
		return 0
	} else if n := tagSizes[self]; n != 0 {
		return n
	} else {
		return ps
	}
}
