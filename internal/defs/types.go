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
	"strings"

	"github.com/oleiade/lane"
)

// TypeHandle is the capability set the iterator and the ref map builder
// consume from the surrounding type system.
type TypeHandle interface {
	Tag() Tag
	Size(ps int) int
	Align(ps int) int
	Fields(ps int) []Field
	HFA() (Tag, int)
	IsByRefLike() bool
	String() string
}

// Field is an instance field of a value type.
type Field struct {
	Type   TypeHandle
	Offset int
}

// Type is the concrete TypeHandle used by the CLI and the tests.
type Type struct {
	T       Tag
	Name    string
	Elem    *Type
	Members []*Type
	Offsets []int
	Fixed   int
	RefLike bool
}

var primitives [_T_count]*Type

func init() {
	for i := T_bool; i < _T_count; i++ {
		if i != T_valuetype {
			primitives[i] = &Type{T: i}
		}
	}
}

// Prim returns the shared handle of a non-value-type element kind.
func Prim(tag Tag) *Type {
	if tag == T_void || tag == T_valuetype || tag >= _T_count {
		panic("defs: not a primitive tag: " + tag.String())
	}
	return primitives[tag]
}

func Object() *Type {
	return primitives[T_object]
}

func ByRef(elem *Type) *Type {
	return &Type{T: T_byref, Elem: elem}
}

func Pointer(elem *Type) *Type {
	return &Type{T: T_ptr, Elem: elem}
}

func SZArray(elem *Type) *Type {
	return &Type{T: T_szarray, Elem: elem}
}

// NewStruct creates a sequential-layout value type, every member placed at
// its natural alignment.
func NewStruct(name string, members ...*Type) *Type {
	return &Type{
		T:       T_valuetype,
		Name:    name,
		Members: members,
	}
}

// NewExplicit creates a value type with explicit field offsets and size.
func NewExplicit(name string, size int, members []*Type, offsets []int) *Type {
	if len(members) != len(offsets) {
		panic("defs: member and offset count mismatch")
	}
	return &Type{
		T:       T_valuetype,
		Name:    name,
		Members: members,
		Offsets: offsets,
		Fixed:   size,
	}
}

// NewRefLike creates a by-ref-like sequential value type.
func NewRefLike(name string, members ...*Type) *Type {
	t := NewStruct(name, members...)
	t.RefLike = true
	return t
}

func alignUp(n int, a int) int {
	return (n + a - 1) &^ (a - 1)
}

func (self *Type) Tag() Tag {
	return self.T
}

func (self *Type) IsByRefLike() bool {
	return self.RefLike
}

func (self *Type) Size(ps int) int {
	if self.T != T_valuetype {
		return self.T.ElemSize(ps)
	}
	_, size, _ := self.layout(ps)
	return size
}

func (self *Type) Align(ps int) int {
	if self.T != T_valuetype {
		return self.T.ElemSize(ps)
	}
	_, _, align := self.layout(ps)
	return align
}

func (self *Type) Fields(ps int) []Field {
	if self.T != T_valuetype {
		return nil
	}
	fields, _, _ := self.layout(ps)
	return fields
}

func (self *Type) layout(ps int) ([]Field, int, int) {
	ofs := 0
	align := 1
	fields := make([]Field, len(self.Members))

	/* explicit layout */
	if self.Offsets != nil {
		for i, m := range self.Members {
			fields[i] = Field{Type: m, Offset: self.Offsets[i]}
			if a := m.Align(ps); a > align {
				align = a
			}
		}
		return fields, self.Fixed, align
	}

	/* sequential layout, natural alignment */
	for i, m := range self.Members {
		a := m.Align(ps)
		ofs = alignUp(ofs, a)
		fields[i] = Field{Type: m, Offset: ofs}
		ofs += m.Size(ps)
		if a > align {
			align = a
		}
	}

	/* empty structs still occupy one byte */
	if ofs == 0 {
		return fields, 1, 1
	} else if self.Fixed > ofs {
		return fields, self.Fixed, align
	} else {
		return fields, alignUp(ofs, align), align
	}
}

type _Leaf struct {
	t   *Type
	ofs int
}

// HFA reports whether the value type is a homogeneous floating-point
// aggregate, returning the element kind and the element count.
func (self *Type) HFA() (Tag, int) {
	if self.T != T_valuetype || len(self.Members) == 0 {
		return T_void, 0
	}

	n := 0
	et := T_void
	st := lane.NewStack()

	/* HFA-ness does not depend on the pointer size, since every leaf is a float */
	for st.Push(_Leaf{self, 0}); !st.Empty(); {
		lf := st.Pop().(_Leaf)
		tag := lf.t.T

		/* expand nested value types */
		if tag == T_valuetype {
			for _, f := range lf.t.Fields(8) {
				st.Push(_Leaf{f.Type.(*Type), lf.ofs + f.Offset})
			}
			continue
		}

		/* every leaf must be the same float kind, packed back to back */
		if !tag.IsFloat() || (et != T_void && et != tag) {
			return T_void, 0
		} else if et = tag; lf.ofs%tag.ElemSize(8) != 0 {
			return T_void, 0
		}
		n++
	}

	/* 1 to 4 elements with no padding */
	if n > 4 || self.Size(8) != n*et.ElemSize(8) {
		return T_void, 0
	} else {
		return et, n
	}
}

func (self *Type) String() string {
	if self.Elem == nil && self.T != T_valuetype {
		return self.T.String()
	}
	switch self.T {
	case T_byref:
		return self.Elem.String() + "&"
	case T_ptr:
		return self.Elem.String() + "*"
	case T_szarray:
		return self.Elem.String() + "[]"
	case T_valuetype:
		if self.Name != "" {
			return self.Name
		}
		ss := make([]string, len(self.Members))
		for i, m := range self.Members {
			ss[i] = m.String()
		}
		return fmt.Sprintf("struct{%s}", strings.Join(ss, ","))
	default:
		return self.T.String()
	}
}
