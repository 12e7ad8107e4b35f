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

package sigfile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloudwego/argmap/internal/defs"
)

// SyntaxError occurs when a signature file describes a type or a method that
// cannot be resolved.
type SyntaxError struct {
	Src    string
	Reason string
}

func (self SyntaxError) Error() string {
	return fmt.Sprintf("Syntax error in %q: %s", self.Src, self.Reason)
}

func esyntax(src string, format string, args ...interface{}) SyntaxError {
	return SyntaxError{
		Src:    src,
		Reason: fmt.Sprintf(format, args...),
	}
}

// TypeDesc describes a value type. Without Offsets the fields are laid out
// sequentially at their natural alignment.
type TypeDesc struct {
	Fields  []string `yaml:"fields"`
	Offsets []int    `yaml:"offsets,omitempty"`
	Size    int      `yaml:"size,omitempty"`
	RefLike bool     `yaml:"ref_like,omitempty"`
}

// MethodDesc describes a method. Types are written as element kinds (i4, r8,
// object, ...), value type names, and the suffixes &, * and []. Types with a
// suffix must be quoted inside YAML flow lists, as in ["string[]", "i8*"].
type MethodDesc struct {
	Name              string   `yaml:"name"`
	Instance          bool     `yaml:"instance,omitempty"`
	VarArg            bool     `yaml:"vararg,omitempty"`
	ParamType         string   `yaml:"paramtype,omitempty"`
	FnPtrArg          bool     `yaml:"fnptr_arg,omitempty"`
	ObjFirst          bool     `yaml:"obj_first,omitempty"`
	ValueTypeOwner    bool     `yaml:"valuetype_owner,omitempty"`
	UnboxingStub      bool     `yaml:"unboxing_stub,omitempty"`
	VariableSizedCtor bool     `yaml:"variable_sized_ctor,omitempty"`
	Return            string   `yaml:"return,omitempty"`
	Params            []string `yaml:"params"`
	ForcedByRef       []bool   `yaml:"forced_by_ref,omitempty"`
}

// File is the content of a signature file.
type File struct {
	Arch    string              `yaml:"arch,omitempty"`
	Types   map[string]TypeDesc `yaml:"types,omitempty"`
	Methods []MethodDesc        `yaml:"methods"`
}

// Method is a resolved method of a signature file.
type Method struct {
	Name string
	*defs.Method
}

// Set is a resolved signature file.
type Set struct {
	Arch    string
	Methods []Method
}

// Load reads and resolves a signature file.
func Load(path string) (*Set, error) {
	if buf, err := os.ReadFile(path); err != nil {
		return nil, err
	} else {
		return Parse(buf)
	}
}

// Parse resolves the YAML content of a signature file.
func Parse(buf []byte) (*Set, error) {
	var f File
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return nil, err
	} else {
		return f.Resolve()
	}
}

// Resolve creates the type handles and signatures of every method.
func (self *File) Resolve() (*Set, error) {
	rs := newResolver(self.Types)
	ret := &Set{Arch: self.Arch}

	/* resolve every method */
	for i := range self.Methods {
		if m, err := rs.method(&self.Methods[i]); err != nil {
			return nil, err
		} else {
			ret.Methods = append(ret.Methods, Method{Name: self.Methods[i].Name, Method: m})
		}
	}
	return ret, nil
}

type resolver struct {
	descs map[string]TypeDesc
	types map[string]*defs.Type
	stack map[string]bool
}

func newResolver(descs map[string]TypeDesc) *resolver {
	return &resolver{
		descs: descs,
		types: make(map[string]*defs.Type),
		stack: make(map[string]bool),
	}
}

func (self *resolver) method(md *MethodDesc) (*defs.Method, error) {
	var err error
	var sig defs.Signature
	var ret defs.Method

	/* implicit argument flags */
	if md.Instance {
		sig.Flags |= defs.F_instance
	}
	if md.VarArg {
		sig.Flags |= defs.F_vararg
	}
	if md.FnPtrArg {
		sig.Flags |= defs.F_fnptrarg
	}
	if md.ObjFirst {
		sig.Flags |= defs.F_objfirst
	}

	/* generic context */
	switch md.ParamType {
	case "", "none":
	case "method":
		ret.Dict = defs.D_method
		sig.Flags |= defs.F_paramtype
	case "type":
		ret.Dict = defs.D_type
		sig.Flags |= defs.F_paramtype
	default:
		return nil, esyntax(md.ParamType, "method %s: invalid generic context kind", md.Name)
	}

	/* return type, void if not specified */
	if md.Return != "" && md.Return != "void" {
		if sig.Return, err = self.parse(md.Return); err != nil {
			return nil, err
		}
	}

	/* parameters */
	for _, p := range md.Params {
		if vt, err := self.parse(p); err != nil {
			return nil, err
		} else {
			sig.Params = append(sig.Params, vt)
		}
	}

	/* forced by-ref flags must match the parameters */
	if md.ForcedByRef != nil && len(md.ForcedByRef) != len(md.Params) {
		return nil, esyntax(md.Name, "%d forced by-ref flags for %d parameters", len(md.ForcedByRef), len(md.Params))
	}

	/* build the method */
	sig.ForcedByRef = md.ForcedByRef
	ret.Sig = &sig
	ret.OwnerIsValueType = md.ValueTypeOwner
	ret.UnboxingStub = md.UnboxingStub
	ret.VariableSizedCtor = md.VariableSizedCtor
	return &ret, nil
}

// parse resolves a type expression, suffixes bind from the right.
func (self *resolver) parse(src string) (*defs.Type, error) {
	s := strings.TrimSpace(src)
	switch {
	case s == "":
		return nil, esyntax(src, "empty type")
	case strings.HasSuffix(s, "&"):
		return self.wrap(src, strings.TrimSuffix(s, "&"), defs.ByRef)
	case strings.HasSuffix(s, "*"):
		return self.wrap(src, strings.TrimSuffix(s, "*"), defs.Pointer)
	case strings.HasSuffix(s, "[]"):
		return self.wrap(src, strings.TrimSuffix(s, "[]"), defs.SZArray)
	}

	/* element kinds */
	if tag, err := defs.ParseTag(s); err == nil {
		if tag == defs.T_void || tag == defs.T_valuetype {
			return nil, esyntax(src, "%s is not a valid type", s)
		} else {
			return defs.Prim(tag), nil
		}
	}

	/* value types */
	return self.named(src, s)
}

func (self *resolver) wrap(src string, elem string, fn func(*defs.Type) *defs.Type) (*defs.Type, error) {
	if vt, err := self.parse(elem); err != nil {
		return nil, err
	} else if vt.T == defs.T_byref {
		return nil, esyntax(src, "by-ref types cannot be nested")
	} else {
		return fn(vt), nil
	}
}

func (self *resolver) named(src string, name string) (*defs.Type, error) {
	if vt, ok := self.types[name]; ok {
		return vt, nil
	}

	/* must be a known value type */
	desc, ok := self.descs[name]
	if !ok {
		return nil, esyntax(src, "undefined type %s", name)
	} else if self.stack[name] {
		return nil, esyntax(src, "value type %s contains itself", name)
	}

	/* resolve the fields */
	self.stack[name] = true
	defer delete(self.stack, name)
	fields := make([]*defs.Type, 0, len(desc.Fields))

	/* every field is a type expression */
	for _, f := range desc.Fields {
		if vt, err := self.parse(f); err != nil {
			return nil, err
		} else {
			fields = append(fields, vt)
		}
	}

	/* create the type */
	var vt *defs.Type
	switch {
	case desc.Offsets != nil:
		if len(desc.Offsets) != len(fields) || desc.Size <= 0 {
			return nil, esyntax(src, "value type %s needs a size and one offset per field", name)
		}
		vt = defs.NewExplicit(name, desc.Size, fields, desc.Offsets)
	case desc.RefLike:
		vt = defs.NewRefLike(name, fields...)
	default:
		vt = defs.NewStruct(name, fields...)
	}

	/* explicit size of sequential types */
	if desc.Offsets == nil {
		vt.Fixed = desc.Size
	}

	/* by-ref-ness of explicit types */
	vt.RefLike = desc.RefLike
	self.types[name] = vt
	return vt, nil
}
