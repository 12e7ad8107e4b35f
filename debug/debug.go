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

package debug

import (
	"sync/atomic"

	"github.com/cloudwego/argmap/internal/gcmap"
)

// A Stats records statistics about the ref map builder.
type Stats struct {
	RefMap RefMapStats
}

// A RefMapStats records how many ref maps were built, how large they are in
// total, and how many methods could not be described.
type RefMapStats struct {
	Count    int
	Bytes    int
	Failures int
}

// GetStats returns statistics of the ref map builder.
func GetStats() Stats {
	return Stats{
		RefMap: RefMapStats{
			Count:    int(atomic.LoadUint64(&gcmap.MapCount)),
			Bytes:    int(atomic.LoadUint64(&gcmap.ByteCount)),
			Failures: int(atomic.LoadUint64(&gcmap.FailureCount)),
		},
	}
}
