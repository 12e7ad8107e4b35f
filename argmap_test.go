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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/argmap/internal/defs"
	"github.com/cloudwego/argmap/internal/opts"
)

var (
	i4  = defs.Prim(defs.T_i4)
	r8  = defs.Prim(defs.T_r8)
	obj = defs.Object()
)

func TestLocate(t *testing.T) {
	sig := &Signature{Params: []TypeHandle{i4, obj, r8}, Flags: defs.F_instance}
	args, err := Locate(AMD64Windows, sig)
	require.NoError(t, err)
	require.Len(t, args, 4)

	/* `this` comes first */
	assert.Equal(t, -1, args[0].Index)
	assert.Equal(t, "this", args[0].Implicit)
	assert.Equal(t, 72, args[0].Offset)
	assert.Equal(t, "%rcx", args[0].Location.String())

	/* then the explicit arguments */
	for i, a := range args[1:] {
		assert.Equal(t, i, a.Index)
		assert.Empty(t, a.Implicit)
	}
	assert.Equal(t, 80, args[1].Offset)
	assert.Equal(t, 88, args[2].Offset)
	assert.Equal(t, -16, args[3].Offset)
	assert.Equal(t, "%xmm3", args[3].Location.String())
}

func TestLocate_Errors(t *testing.T) {
	_, err := Locate(Arch(42), &Signature{})
	require.Error(t, err)
	_, err = Locate(X86, nil)
	require.IsType(t, UnsupportedError{}, err)
}

func TestSizeOfArgStack(t *testing.T) {
	sig := &Signature{Params: []TypeHandle{i4, i4, i4, r8}}
	nb, pop, err := SizeOfArgStack(X86, sig)
	require.NoError(t, err)
	require.Equal(t, 12, nb)
	require.Equal(t, 12, pop)

	/* only x86 callees pop */
	nb, pop, err = SizeOfArgStack(ARM, sig)
	require.NoError(t, err)
	require.Equal(t, 0, nb)
	require.Equal(t, 0, pop)

	/* too many arguments */
	big := defs.NewStruct("Big", r8, r8, r8, r8, r8, r8, r8, r8)
	params := make([]TypeHandle, 1024)
	for i := range params {
		params[i] = big
	}
	_, _, err = SizeOfArgStack(X86, &Signature{Params: params})
	require.IsType(t, TooComplexError{}, err)
}

func TestBuildRefMap(t *testing.T) {
	m := &Method{Sig: &Signature{Params: []TypeHandle{i4, obj}, Flags: defs.F_instance}}
	rm, err := BuildRefMap(ARM64, m)
	require.NoError(t, err)
	require.Equal(t, []Slot{{Pos: 1, Token: 1}, {Pos: 3, Token: 1}}, rm.Slots)

	/* decode it again */
	dm, err := DecodeRefMap(ARM64, rm.Data)
	require.NoError(t, err)
	require.Equal(t, rm.Slots, dm.Slots)
	require.Equal(t, rm.Data, dm.Data)
	require.Equal(t, rm.String(), dm.String())
}

func TestBuildRefMap_SysVStructPassing(t *testing.T) {
	pair := defs.NewStruct("Pair", obj, obj)
	m := &Method{Sig: &Signature{Params: []TypeHandle{pair}}}
	_, err := BuildRefMap(AMD64Unix, m)
	require.IsType(t, UnsupportedError{}, err)
	rm, err := BuildRefMap(AMD64Unix, m, WithSysVStructPassing(true))
	require.NoError(t, err)
	require.Len(t, rm.Slots, 2)

	/* the global default works the same */
	old := SetSysVStructPassing(true)
	defer SetSysVStructPassing(old)
	_, err = BuildRefMap(AMD64Unix, m)
	require.NoError(t, err)
}

func TestDecodeRefMap_Errors(t *testing.T) {
	_, err := DecodeRefMap(Arch(42), []byte{0})
	require.Error(t, err)
	_, err = DecodeRefMap(X86, []byte{0xff})
	require.Error(t, err)
}

func TestOptions(t *testing.T) {
	require.Panics(t, func() { WithMaxWorkers(0) })
	require.Panics(t, func() { SetMaxWorkers(-1) })
	o := buildOptions([]Option{WithMaxWorkers(3), WithTrace(true)})
	require.Equal(t, 3, o.MaxWorkers)
	require.True(t, o.Trace)

	/* global defaults */
	old := SetMaxWorkers(5)
	defer SetMaxWorkers(old)
	require.Equal(t, 5, buildOptions(nil).MaxWorkers)
	require.Equal(t, 5, opts.GetDefaultOptions().MaxWorkers)
}

func compileMethods() []*Method {
	var ret []*Method
	pair := defs.NewStruct("Pair", obj, obj)
	for i := 0; i < 64; i++ {
		params := make([]TypeHandle, i%10)
		for j := range params {
			if j%3 == 0 {
				params[j] = obj
			} else {
				params[j] = i4
			}
		}
		if i%16 == 15 {
			params = append(params, pair)
		}
		ret = append(ret, &Method{Sig: &Signature{Params: params, Flags: defs.F_instance}})
	}
	return ret
}

func TestCompileAll(t *testing.T) {
	methods := compileMethods()
	res, err := CompileAll(context.Background(), AMD64Unix, methods, WithMaxWorkers(4))
	require.NoError(t, err)
	require.Len(t, res, len(methods))

	/* every result matches a sequential build */
	for i, r := range res {
		require.Same(t, methods[i], r.Method)
		rm, err := BuildRefMap(AMD64Unix, methods[i])
		if err != nil {
			require.Error(t, r.Err, "method %d", i)
			require.Nil(t, r.RefMap)
		} else {
			require.NoError(t, r.Err, "method %d", i)
			require.Equal(t, rm, r.RefMap)
		}
	}

	/* the methods with a pair fail without struct passing */
	require.Error(t, res[15].Err)
	require.NoError(t, res[14].Err)
}

func TestCompileAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := CompileAll(ctx, ARM, compileMethods())
	require.Equal(t, context.Canceled, err)
	for _, r := range res {
		require.Equal(t, context.Canceled, r.Err)
	}
}

func TestCompileAll_Panic(t *testing.T) {
	res, err := CompileAll(context.Background(), X86, []*Method{{Sig: &Signature{Params: []TypeHandle{(*defs.Type)(nil)}}}})
	require.NoError(t, err)
	require.Error(t, res[0].Err)
	require.Contains(t, res[0].Err.Error(), "method 0")
}

func TestCompileAll_BadArch(t *testing.T) {
	_, err := CompileAll(context.Background(), Arch(42), nil)
	require.Error(t, err)
}
