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
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/gopkg/util/gopool"

	"github.com/cloudwego/argmap/internal/arch"
	"github.com/cloudwego/argmap/internal/gcmap"
)

// Result is the outcome of building the ref map of one method.
type Result struct {
	Method *Method
	RefMap *RefMap
	Err    error
}

// CompileAll builds the ref maps of methods in parallel, one result per
// method in the same order. Methods not started when ctx is done are reported
// with the context error.
func CompileAll(ctx context.Context, a Arch, methods []*Method, options ...Option) ([]Result, error) {
	tb, err := arch.ForArch(a)
	if err != nil {
		return nil, err
	}

	/* every call gets its own pool, sized by the options */
	wg := sync.WaitGroup{}
	ret := make([]Result, len(methods))
	opt := buildOptions(options)
	pool := gopool.NewPool("argmap", int32(opt.MaxWorkers), gopool.NewConfig())

	/* build every method on the pool */
	for i, m := range methods {
		m := m
		ret[i].Method = m
		wg.Add(1)
		pool.CtxGo(ctx, compileTask(ctx, &wg, i, &ret[i], func() (*RefMap, error) {
			return gcmap.NewBuilder(tb, opt).Build(m)
		}))
	}

	/* wait for all of them */
	wg.Wait()
	return ret, ctx.Err()
}

func compileTask(ctx context.Context, wg *sync.WaitGroup, idx int, res *Result, fn func() (*RefMap, error)) func() {
	return func() {
		defer wg.Done()
		defer func() {
			if v := recover(); v != nil {
				res.Err = fmt.Errorf("argmap: panic while building the ref map of method %d: %v", idx, v)
			}
		}()

		/* skip the method if cancelled */
		if err := ctx.Err(); err != nil {
			res.Err = err
		} else {
			res.RefMap, res.Err = fn()
		}
	}
}
