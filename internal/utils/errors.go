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

package utils

import (
	"fmt"
)

// UnsupportedError occurs when a signature shape, a value type layout or an
// architecture feature is not handled. The method must not be compiled.
type UnsupportedError struct {
	Arch string
	What string
	Note string
}

func (self UnsupportedError) Error() string {
	if self.Note != "" {
		return fmt.Sprintf("UnsupportedError(%s): %s: %s", self.Arch, self.What, self.Note)
	} else {
		return fmt.Sprintf("UnsupportedError(%s): %s is not implemented", self.Arch, self.What)
	}
}

// TooComplexError occurs when the argument stack of a signature exceeds the
// fixed maximum size.
type TooComplexError struct {
	Arch  string
	Size  int
	Limit int
}

func (self TooComplexError) Error() string {
	return fmt.Sprintf("TooComplexError(%s): argument stack of %d bytes exceeds the limit of %d bytes", self.Arch, self.Size, self.Limit)
}

func EUnsupported(arch fmt.Stringer, what string) UnsupportedError {
	return UnsupportedError{
		Arch: arch.String(),
		What: what,
	}
}

func EUnsupportedf(arch fmt.Stringer, what string, format string, args ...interface{}) UnsupportedError {
	return UnsupportedError{
		Arch: arch.String(),
		What: what,
		Note: fmt.Sprintf(format, args...),
	}
}

func ETooComplex(arch fmt.Stringer, size int, limit int) TooComplexError {
	return TooComplexError{
		Arch:  arch.String(),
		Size:  size,
		Limit: limit,
	}
}
