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
	"fmt"

	"github.com/cloudwego/argmap/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithSysVStructPassing enables System V struct classification on x64-unix.
//
// When disabled, value types of up to 16 bytes are placed as if they were a
// single pointer-sized integer, which is what the runtime currently expects.
// Methods that would lose a reference this way fail with an UnsupportedError.
//
// The default value of this option is "false".
func WithSysVStructPassing(v bool) Option {
	return func(o *opts.Options) { o.SysVStructPassing = v }
}

// WithMaxWorkers sets the number of methods CompileAll builds in parallel.
//
// The default value of this option is "16".
func WithMaxWorkers(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("argmap: invalid worker count: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxWorkers = n }
	}
}

// WithTrace logs every argument placement.
func WithTrace(v bool) Option {
	return func(o *opts.Options) { o.Trace = v }
}

// SetSysVStructPassing sets the default of WithSysVStructPassing for every
// call from now on.
//
// This value can also be configured with the `ARGMAP_SYSV_STRUCTS`
// environment variable.
//
// Returns the old opts.SysVStructPassing value.
func SetSysVStructPassing(v bool) bool {
	v, opts.SysVStructPassing = opts.SysVStructPassing, v
	return v
}

// SetMaxWorkers sets the default of WithMaxWorkers for every call from now
// on.
//
// This value can also be configured with the `ARGMAP_MAX_WORKERS`
// environment variable.
//
// Returns the old opts.MaxWorkers value.
func SetMaxWorkers(n int) int {
	if n < 1 {
		panic(fmt.Sprintf("argmap: invalid worker count: %d", n))
	}
	n, opts.MaxWorkers = opts.MaxWorkers, n
	return n
}

func buildOptions(options []Option) opts.Options {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}
	return o
}
