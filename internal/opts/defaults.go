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

package opts

import (
	"os"
	"strconv"
)

const (
	_DefaultMaxWorkers = 16 // parallel method compilations in CompileAll
)

var (
	SysVStructPassing = parseBoolOrDefault("ARGMAP_SYSV_STRUCTS", false)
	MaxWorkers        = parseOrDefault("ARGMAP_MAX_WORKERS", _DefaultMaxWorkers, 1)
	Trace             = parseBoolOrDefault("ARGMAP_TRACE", false)
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("argmap: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("argmap: value too small for " + key)
	} else {
		return ret
	}
}

func parseBoolOrDefault(key string, def bool) bool {
	switch os.Getenv(key) {
	case "":
		return def
	case "1", "on", "yes", "true":
		return true
	case "0", "off", "no", "false":
		return false
	default:
		panic("argmap: invalid value for " + key)
	}
}
