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
	"github.com/oleiade/lane"

	"github.com/cloudwego/argmap/internal/arch"
	"github.com/cloudwego/argmap/internal/defs"
	"github.com/cloudwego/argmap/internal/utils"
)

// argInfo is the classification of the argument being placed.
type argInfo struct {
	typ    defs.TypeHandle
	tag    defs.Tag
	size   int
	byref  bool
	hfaTag defs.Tag
	hfaNum int
}

// isFloat reports scalars and HFAs that may go to float registers.
func (self *argInfo) isFloat() bool {
	return !self.byref && (self.tag.IsFloat() || self.hfaNum != 0)
}

func (self *argInfo) isStruct() bool {
	return self.tag == defs.T_valuetype && !self.byref
}

// argAt returns the i-th walked argument, counting the synthetic leading
// object and trailing function pointer.
func argAt(sig *defs.Signature, i int) (defs.TypeHandle, bool) {
	if sig.HasObjFirst() {
		if i == 0 {
			return defs.Object(), false
		}
		i--
	}
	if i < len(sig.Params) {
		return sig.Params[i], sig.IsForcedByRef(i)
	} else if sig.HasFnPtrArg() && i == len(sig.Params) {
		return defs.Prim(defs.T_fnptr), false
	} else {
		panic("abi: argument index out of range")
	}
}

func classify(tb arch.TransitionBlock, sig *defs.Signature, i int, sysv bool) (a argInfo, err error) {
	var forced bool
	a.typ, forced = argAt(sig, i)

	/* void and unknown element kinds cannot be passed */
	if a.typ == nil {
		return a, utils.EUnsupportedf(tb.Arch(), "argument", "argument %d has no type", i)
	} else if a.tag = a.typ.Tag(); !a.tag.IsValid() || a.tag == defs.T_void {
		return a, utils.EUnsupportedf(tb.Arch(), "argument", "argument %d has element kind %s", i, a.tag)
	}

	/* resolve the size */
	ps := tb.PointerSize()
	a.size = a.typ.Size(ps)

	/* only value types can be passed by reference */
	if a.tag != defs.T_valuetype {
		return a, nil
	} else if a.size <= 0 {
		return a, utils.EUnsupportedf(tb.Arch(), "value type", "%s has no size", a.typ)
	}

	/* shared generic code forces some value types by reference */
	if forced {
		a.byref = true
	} else if sysv {
		a.byref = a.size > tb.EnregisteredParamTypeMaxSize()
	} else {
		a.byref = tb.IsArgPassedByRef(a.typ)
	}

	/* by-ref values are a single pointer from now on */
	if a.byref {
		a.size = ps
	} else if tb.PassesHFA() {
		a.hfaTag, a.hfaNum = a.typ.HFA()
	}
	return a, nil
}

type _Leaf struct {
	t   defs.TypeHandle
	ofs int
}

// classifyEightbytes assigns a System V class to every eightbyte of a value
// type. An eightbyte is C_sse only if every field overlapping it is a float.
func classifyEightbytes(vt defs.TypeHandle, ps int) []Class {
	n := (vt.Size(ps) + 7) / 8
	ret := make([]Class, n)
	seen := make([]bool, n)
	q := lane.NewQueue()

	/* flatten the fields breadth first */
	for q.Enqueue(_Leaf{vt, 0}); !q.Empty(); {
		lf := q.Dequeue().(_Leaf)
		tag := lf.t.Tag()

		/* expand nested value types */
		if tag == defs.T_valuetype {
			for _, f := range lf.t.Fields(ps) {
				q.Enqueue(_Leaf{f.Type, lf.ofs + f.Offset})
			}
			continue
		}

		/* merge the class of every eightbyte the leaf overlaps */
		size := tag.ElemSize(ps)
		for i := lf.ofs / 8; i <= (lf.ofs+size-1)/8 && i < n; i++ {
			if !tag.IsFloat() {
				ret[i] = C_integer
			} else if !seen[i] {
				ret[i] = C_sse
			}
			seen[i] = true
		}
	}

	/* eightbytes with no fields at all are padding, pass them as integers */
	for i := range ret {
		if !seen[i] {
			ret[i] = C_integer
		}
	}
	return ret
}
