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
	"github.com/chenzhuoyu/iasm/x86_64"
)

// amd64Block covers both x64 calling conventions. On Windows the argument
// registers are homed by the caller right above the return address, so they
// share their offsets with the first four stack argument slots.
type amd64Block struct {
	layout
}

func newAMD64Windows() *amd64Block {
	return &amd64Block{layout{
		arch:      AMD64Windows,
		ps:        8,
		nregs:     4,
		nfregs:    4,
		ncallee:   8,
		size:      72,
		argRegs:   72,
		floatRegs: -64,
		floatSize: 16,
		args:      72,
		homeSize:  32,
		firstGC:   72,
		maxParam:  8,
		maxRet:    8,
		pow2:      true,
		slots:     defaultSlots,
		gen:       amd64Names(x86_64.RCX, x86_64.RDX, x86_64.R8, x86_64.R9),
	}}
}

func newAMD64Unix() *amd64Block {
	return &amd64Block{layout{
		arch:      AMD64Unix,
		ps:        8,
		nregs:     6,
		nfregs:    8,
		ncallee:   6,
		size:      104,
		argRegs:   0,
		floatRegs: -128,
		floatSize: 16,
		args:      104,
		firstGC:   0,
		maxParam:  16,
		maxRet:    16,
		pow2:      true,
		slots:     defaultSlots,
		gen:       amd64Names(x86_64.RDI, x86_64.RSI, x86_64.RDX, x86_64.RCX, x86_64.R8, x86_64.R9),
	}}
}

func amd64Names(regs ...x86_64.Register64) []string {
	ret := make([]string, len(regs))
	for i, r := range regs {
		ret[i] = r.String()
	}
	return ret
}

func (self *amd64Block) RegisterName(kind RegKind, idx int, _ int) string {
	if kind == R_gen {
		return self.genName(idx)
	} else if idx < 0 || idx >= self.nfregs {
		return "???"
	} else {
		return x86_64.XMMRegister(idx).String()
	}
}
