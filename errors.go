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

package argmap

import (
	"github.com/cloudwego/argmap/internal/utils"
)

// UnsupportedError occurs when a method has an argument shape, a value type
// layout or an architecture feature that cannot be described exactly. Such a
// method must not be compiled for the target.
type UnsupportedError = utils.UnsupportedError

// TooComplexError occurs when the argument stack of a method is larger than
// MaxArgStackSize.
type TooComplexError = utils.TooComplexError
