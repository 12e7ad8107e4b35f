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
	"errors"
	"fmt"
)

var errTruncated = errors.New("gcmap: truncated ref map")

// Decoder reads a ref map the way the runtime stack walker does.
type Decoder struct {
	buf  []byte
	pend int
	pos  int
	err  error
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf, pend: 0x80}
}

func (self *Decoder) getBit() int {
	x := self.pend

	/* load the next byte, keeping a marker of its continuation bit */
	if x&0x80 != 0 {
		if len(self.buf) == 0 {
			self.err = errTruncated
			self.pend = 0
			return 0
		}
		x = int(self.buf[0])
		x |= (x & 0x80) << 7
		self.buf = self.buf[1:]
	}

	/* consume one bit */
	self.pend = x >> 1
	return x & 1
}

func (self *Decoder) getTwoBit() int {
	ret := self.getBit()
	ret |= self.getBit() << 1
	return ret
}

func (self *Decoder) getInt() int {
	ret := 0
	bit := 0

	/* 3 bits at a time, until the continuation bit is clear */
	for {
		ret |= self.getBit() << bit
		ret |= self.getBit() << (bit + 1)
		ret |= self.getBit() << (bit + 2)

		/* check for the next group */
		if bit += 3; self.getBit() == 0 || self.err != nil {
			return ret
		}
	}
}

// AtEnd reports whether every token has been read.
func (self *Decoder) AtEnd() bool {
	return self.pend == 0
}

// Err returns the error encountered while decoding, if any.
func (self *Decoder) Err() error {
	return self.err
}

// Pos returns the slot position of the next token.
func (self *Decoder) Pos() int {
	return self.pos
}

// ReadStackPop reads the x86 stack pop size, in pointer-sized slots.
func (self *Decoder) ReadStackPop() int {
	if x := self.getTwoBit(); x == 3 {
		return self.getInt() + 3
	} else {
		return x
	}
}

// ReadToken reads the token at Pos, returning Skip for skipped slots.
func (self *Decoder) ReadToken() Token {
	val := self.getTwoBit()

	/* literal tokens */
	if val != 3 {
		self.pos++
		return Token(val)
	}

	/* the low bit of the extended value tells runs of skips from large tokens */
	if ext := self.getInt(); ext&1 == 0 {
		self.pos += (ext >> 1) + 4
		return Skip
	} else if tok := (ext >> 1) + 3; tok < 3 || tok >= int(_TokenCount) {
		self.err = fmt.Errorf("gcmap: invalid token %d at slot %d", tok, self.pos)
		self.pend = 0
		return Skip
	} else {
		self.pos++
		return Token(tok)
	}
}

// Decode reads a whole ref map. The stack pop size is only present on x86.
func Decode(buf []byte, x86 bool) (stackPop int, slots []Slot, err error) {
	dec := NewDecoder(buf)

	/* x86 ref maps start with the stack pop size */
	if x86 {
		stackPop = dec.ReadStackPop()
	}

	/* read every token */
	for !dec.AtEnd() && dec.Err() == nil {
		pos := dec.Pos()
		tok := dec.ReadToken()

		/* tokens beyond the known set stop the decoder */
		if dec.Err() != nil {
			break
		} else if tok != Skip {
			slots = append(slots, Slot{Pos: pos, Token: tok})
		}
	}
	return stackPop, slots, dec.Err()
}
