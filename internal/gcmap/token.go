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

package gcmap

import (
	"fmt"
)

// Token is the GC-relevance of one argument slot. The values are part of the
// runtime's ref map format.
type Token uint8

const (
	Skip Token = iota
	Ref
	Interior
	MethodParam
	TypeParam
	VASigCookie
	_TokenCount
)

var tokenNames = [_TokenCount]string{
	Skip:        "skip",
	Ref:         "ref",
	Interior:    "interior",
	MethodParam: "method-param",
	TypeParam:   "type-param",
	VASigCookie: "vasig-cookie",
}

func (self Token) String() string {
	if self < _TokenCount {
		return tokenNames[self]
	} else {
		return fmt.Sprintf("Token(%d)", self)
	}
}

// Slot is one non-skip entry of a ref map.
type Slot struct {
	Pos   int
	Token Token
}

func (self Slot) String() string {
	return fmt.Sprintf("%d:%s", self.Pos, self.Token)
}
