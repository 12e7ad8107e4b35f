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
	"sync/atomic"
)

var (
	MapCount     uint64
	ByteCount    uint64
	FailureCount uint64
)

func record(data []byte, err error) {
	if err != nil {
		atomic.AddUint64(&FailureCount, 1)
	} else {
		atomic.AddUint64(&MapCount, 1)
		atomic.AddUint64(&ByteCount, uint64(len(data)))
	}
}
