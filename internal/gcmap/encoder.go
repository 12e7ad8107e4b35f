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

// Encoder writes the ref map bit stream. Bits are packed LSB first, 7 bits
// per byte; the MSB of a byte is set if more bytes follow.
type Encoder struct {
	buf  []byte
	pend int
	bits int
	pos  int
}

func (self *Encoder) appendBit(bit int) {
	if bit != 0 {
		for self.bits >= 7 {
			self.buf = append(self.buf, byte(self.pend|0x80))
			self.pend = 0
			self.bits -= 7
		}
		self.pend |= 1 << self.bits
	}
	self.bits++
}

func (self *Encoder) appendTwoBit(v int) {
	self.appendBit(v & 1)
	self.appendBit(v >> 1)
}

// appendInt writes v in groups of 3 data bits, each followed by a bit telling
// whether another group follows.
func (self *Encoder) appendInt(v int) {
	for {
		self.appendBit(v & 1)
		self.appendBit((v >> 1) & 1)
		self.appendBit((v >> 2) & 1)

		/* continuation bit */
		if v >>= 3; v != 0 {
			self.appendBit(1)
		} else {
			self.appendBit(0)
			break
		}
	}
}

// WriteStackPop writes the number of pointer-sized slots an x86 callee pops,
// and must come before any token.
func (self *Encoder) WriteStackPop(n int) {
	if n < 0 {
		panic("gcmap: negative stack pop size")
	} else if self.pos != 0 || self.bits != 0 {
		panic("gcmap: stack pop size must be written first")
	} else if n < 3 {
		self.appendTwoBit(n)
	} else {
		self.appendTwoBit(3)
		self.appendInt(n - 3)
	}
}

// WriteToken writes a token at slot pos. Positions must be strictly
// increasing.
func (self *Encoder) WriteToken(pos int, tok Token) {
	if tok == Skip || tok >= _TokenCount {
		panic("gcmap: invalid token: " + tok.String())
	} else if pos < self.pos {
		panic("gcmap: positions must be strictly increasing")
	}

	/* skip the slots in between, one by one if there are only a few */
	if delta := pos - self.pos; delta >= 4 {
		self.appendTwoBit(3)
		self.appendInt((delta - 4) << 1)
	} else {
		for i := 0; i < delta; i++ {
			self.appendTwoBit(0)
		}
	}

	/* small tokens are written directly */
	if self.pos = pos + 1; tok < 3 {
		self.appendTwoBit(int(tok))
	} else {
		self.appendTwoBit(3)
		self.appendInt(((int(tok) - 3) << 1) | 1)
	}
}

// Flush writes the last byte and returns the encoded ref map. A map with no
// tokens is a single zero byte.
func (self *Encoder) Flush() []byte {
	if self.pend&0x7f != 0 || self.pos == 0 {
		self.buf = append(self.buf, byte(self.pend&0x7f))
	}
	ret := self.buf
	self.buf = nil
	self.pend = 0
	self.bits = 0
	self.pos = 0
	return ret
}
