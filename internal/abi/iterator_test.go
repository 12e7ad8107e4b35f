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

package abi

import (
	"bytes"
	"log"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/argmap/internal/arch"
	"github.com/cloudwego/argmap/internal/defs"
	"github.com/cloudwego/argmap/internal/opts"
	"github.com/cloudwego/argmap/internal/utils"
)

var (
	i1  = defs.Prim(defs.T_i1)
	i4  = defs.Prim(defs.T_i4)
	i8  = defs.Prim(defs.T_i8)
	r4  = defs.Prim(defs.T_r4)
	r8  = defs.Prim(defs.T_r8)
	obj = defs.Object()
)

type placed struct {
	ofs int
	loc Location
}

func newIterator(t *testing.T, a arch.Arch, sig *defs.Signature, o opts.Options) *ArgIterator {
	it, err := NewIterator(arch.MustForArch(a), sig, o)
	require.NoError(t, err)
	return it
}

func walk(t *testing.T, it *ArgIterator) []placed {
	var ret []placed
	for {
		ofs, err := it.Next()
		require.NoError(t, err)
		if ofs == arch.InvalidOffset {
			require.Equal(t, Exhausted, it.State())
			return ret
		}
		require.Equal(t, Iterating, it.State())
		ret = append(ret, placed{ofs, it.Location()})
	}
}

func TestNewCursor_AllArchitectures(t *testing.T) {
	for _, a := range arch.All {
		tb := arch.MustForArch(a)
		require.NotPanics(t, func() {
			require.NotNil(t, newCursor(cursorConfig{tb: tb}), a.String())
		}, a.String())

		/* every target walks a plain signature */
		sig := &defs.Signature{Params: []defs.TypeHandle{i4, obj, r8}}
		require.Len(t, walk(t, newIterator(t, a, sig, opts.Options{})), 3, a.String())
	}
}

func TestIterator_WindowsScalars(t *testing.T) {
	sig := &defs.Signature{Params: []defs.TypeHandle{i4, obj, r8}}
	it := newIterator(t, arch.AMD64Windows, sig, opts.Options{})
	require.Equal(t, NotStarted, it.State())
	args := walk(t, it)
	require.Len(t, args, 3)

	/* the first two go to rcx and rdx */
	require.Equal(t, 72, args[0].ofs)
	require.Equal(t, 0, args[0].loc.GenReg)
	require.Equal(t, 80, args[1].ofs)
	require.Equal(t, 1, args[1].loc.GenReg)

	/* the float takes the register of its argument slot: the two banks share
	 * one index space on Windows, so the third argument is xmm2, not xmm0 */
	require.True(t, arch.MustForArch(arch.AMD64Windows).IsFloatArgumentRegisterOffset(args[2].ofs))
	require.Equal(t, 2, args[2].loc.FloatReg)
	require.Equal(t, 1, args[2].loc.NumFloatRegs)
	require.Equal(t, -1, args[2].loc.GenReg)
	require.Equal(t, "%xmm2", args[2].loc.String())
	require.Equal(t, 0, it.SizeOfArgStack())
	require.Equal(t, 32, it.SizeOfFrameArgumentArray())
}

func TestIterator_X86InstanceWithStruct(t *testing.T) {
	s12 := defs.NewStruct("S12", i4, obj, i4)
	sig := &defs.Signature{Params: []defs.TypeHandle{obj, s12}, Flags: defs.F_instance}
	it := newIterator(t, arch.X86, sig, opts.Options{})
	require.True(t, it.HasThis())
	require.Equal(t, 4, it.ThisOffset())
	require.Equal(t, 12, it.SizeOfArgStack())
	require.Equal(t, 12, it.CbStackPop())

	/* object in edx, the struct entirely on the stack */
	args := walk(t, it)
	require.Len(t, args, 2)
	require.Equal(t, 0, args[0].ofs)
	require.Equal(t, "%edx", args[0].loc.String())
	require.Equal(t, 28, args[1].ofs)
	require.Equal(t, 0, args[1].loc.StackSlot)
	require.Equal(t, 3, args[1].loc.NumStackSlots)
	require.Equal(t, 0, args[1].loc.NumGenRegs)
}

func TestIterator_X86PushOrder(t *testing.T) {
	sig := &defs.Signature{Params: []defs.TypeHandle{i8, i4, i4, r8, i4}}
	it := newIterator(t, arch.X86, sig, opts.Options{})
	require.Equal(t, 20, it.SizeOfArgStack())
	args := walk(t, it)

	/* the first stack argument has the highest address */
	require.Equal(t, 40, args[0].ofs)
	require.Equal(t, 4, args[1].ofs)
	require.Equal(t, 0, args[2].ofs)
	require.Equal(t, 32, args[3].ofs)
	require.Equal(t, 28, args[4].ofs)
}

func TestIterator_X86VarArg(t *testing.T) {
	sig := &defs.Signature{Params: []defs.TypeHandle{i4, obj}, Flags: defs.F_vararg}
	it := newIterator(t, arch.X86, sig, opts.Options{})
	require.Equal(t, 28, it.VASigCookieOffset())
	require.Equal(t, 12, it.SizeOfArgStack())
	require.Equal(t, 0, it.CbStackPop())
	for _, a := range walk(t, it) {
		require.Equal(t, 0, a.loc.NumGenRegs)
		require.True(t, a.ofs > 28)
	}
}

func TestIterator_X86ParamType(t *testing.T) {
	sig := &defs.Signature{Params: []defs.TypeHandle{i4}, Flags: defs.F_instance | defs.F_paramtype}
	it := newIterator(t, arch.X86, sig, opts.Options{})
	require.Equal(t, arch.InvalidOffset, it.special.Offset(arch.S_paramtype))
	require.Equal(t, 28, it.ParamTypeArgOffset())
	require.Equal(t, 4, it.SizeOfArgStack())

	/* a free register is used if there is one */
	sig = &defs.Signature{Params: []defs.TypeHandle{r8}, Flags: defs.F_instance | defs.F_paramtype}
	it = newIterator(t, arch.X86, sig, opts.Options{})
	require.Equal(t, 0, it.ParamTypeArgOffset())
	require.Equal(t, 8, it.SizeOfArgStack())
}

func TestIterator_ARM64HFA(t *testing.T) {
	f3 := defs.NewStruct("F3", r4, r4, r4)
	sig := &defs.Signature{Params: []defs.TypeHandle{f3, r8}}
	args := walk(t, newIterator(t, arch.ARM64, sig, opts.Options{}))
	require.Equal(t, -64, args[0].ofs)
	require.Equal(t, 0, args[0].loc.FloatReg)
	require.Equal(t, 3, args[0].loc.NumFloatRegs)
	require.True(t, args[0].loc.SinglePrecision)
	require.Equal(t, "%s0,%s1,%s2", args[0].loc.String())

	/* the next float comes right after, in 8-byte slots */
	require.Equal(t, -40, args[1].ofs)
	require.Equal(t, 3, args[1].loc.FloatReg)
	require.False(t, args[1].loc.SinglePrecision)
}

func TestIterator_ARM64Exhaustion(t *testing.T) {
	d4 := defs.NewStruct("D4", r8, r8, r8, r8)
	sig := &defs.Signature{Params: []defs.TypeHandle{r8, r8, r8, r8, r8, r8, d4, r8}}
	args := walk(t, newIterator(t, arch.ARM64, sig, opts.Options{}))
	require.Equal(t, 5, args[5].loc.FloatReg)

	/* the HFA does not fit, and nothing is back-filled after it */
	require.Equal(t, 168, args[6].ofs)
	require.Equal(t, 4, args[6].loc.NumStackSlots)
	require.Equal(t, 200, args[7].ofs)
	require.Equal(t, 4, args[7].loc.StackSlot)
}

func TestIterator_ARM64RetBuf(t *testing.T) {
	big := defs.NewStruct("Big", i8, i8, i8)
	sig := &defs.Signature{Params: []defs.TypeHandle{i4}, Return: big, Flags: defs.F_instance}
	it := newIterator(t, arch.ARM64, sig, opts.Options{})
	require.True(t, it.HasRetBufArg())
	require.Equal(t, 96, it.RetBufArgOffset())
	args := walk(t, it)
	require.Equal(t, 112, args[0].ofs)
	require.Equal(t, 1, args[0].loc.GenReg)
}

func TestIterator_ARMFloatBackfill(t *testing.T) {
	sig := &defs.Signature{Params: []defs.TypeHandle{r4, r8, r4}}
	args := walk(t, newIterator(t, arch.ARM, sig, opts.Options{}))
	require.Equal(t, 0, args[0].loc.FloatReg)
	require.Equal(t, 2, args[1].loc.FloatReg)
	require.Equal(t, 2, args[1].loc.NumFloatRegs)
	require.True(t, args[1].loc.Align64)
	require.Equal(t, "%d1", args[1].loc.String())
	require.Equal(t, 1, args[2].loc.FloatReg)
	require.Equal(t, -64, args[2].ofs)
}

func TestIterator_ARMSplit(t *testing.T) {
	s12 := defs.NewStruct("S12", i4, i4, i4)
	sig := &defs.Signature{Params: []defs.TypeHandle{i4, i4, i4, s12}}
	it := newIterator(t, arch.ARM, sig, opts.Options{})
	require.Equal(t, 8, it.SizeOfArgStack())
	args := walk(t, it)
	require.Equal(t, 52, args[3].ofs)
	require.Equal(t, 3, args[3].loc.GenReg)
	require.Equal(t, 1, args[3].loc.NumGenRegs)
	require.Equal(t, 0, args[3].loc.StackSlot)
	require.Equal(t, 2, args[3].loc.NumStackSlots)
}

func TestIterator_ARMNoSplitAfterFloatOverflow(t *testing.T) {
	var params []defs.TypeHandle
	for i := 0; i < 17; i++ {
		params = append(params, r4)
	}
	params = append(params, i4, i4, i4, defs.NewStruct("S12", i4, i4, i4))
	args := walk(t, newIterator(t, arch.ARM, &defs.Signature{Params: params}, opts.Options{}))
	require.Equal(t, 56, args[16].ofs)
	require.Equal(t, 60, args[20].ofs)
	require.Equal(t, 0, args[20].loc.NumGenRegs)
	require.Equal(t, 3, args[20].loc.NumStackSlots)
}

func TestIterator_ARMAlign64(t *testing.T) {
	sig := &defs.Signature{Params: []defs.TypeHandle{i4, i8, i4, i8}}
	args := walk(t, newIterator(t, arch.ARM, sig, opts.Options{}))
	require.Equal(t, 2, args[1].loc.GenReg)
	require.True(t, args[1].loc.Align64)
	require.Equal(t, 56, args[2].ofs)
	require.Equal(t, 64, args[3].ofs)
	require.Equal(t, 2, args[3].loc.StackSlot)
}

func TestIterator_SysVDefault(t *testing.T) {
	sig := &defs.Signature{Params: []defs.TypeHandle{i8, i8, i8, i8, i8, i8, i8, r8}}
	it := newIterator(t, arch.AMD64Unix, sig, opts.Options{})
	args := walk(t, it)
	require.Equal(t, 5, args[5].loc.GenReg)
	require.Equal(t, 104, args[6].ofs)
	require.Equal(t, -128, args[7].ofs)
	require.Equal(t, 8, it.SizeOfArgStack())

	/* value types take a single general purpose register */
	s16 := defs.NewStruct("S16", i8, r8)
	args = walk(t, newIterator(t, arch.AMD64Unix, &defs.Signature{Params: []defs.TypeHandle{s16, i4}}, opts.Options{}))
	require.Equal(t, 0, args[0].loc.GenReg)
	require.Equal(t, 1, args[0].loc.NumGenRegs)
	require.Equal(t, 1, args[1].loc.GenReg)
}

func TestIterator_SysVStructPassing(t *testing.T) {
	s16 := defs.NewStruct("S16", i8, r8)
	o := opts.Options{SysVStructPassing: true}
	sig := &defs.Signature{Params: []defs.TypeHandle{s16, i4, defs.NewStruct("F2", r8, r8)}}
	args := walk(t, newIterator(t, arch.AMD64Unix, sig, o))

	/* one eightbyte in each bank */
	require.Equal(t, StructInRegsOffset, args[0].ofs)
	require.True(t, args[0].loc.Split)
	require.Equal(t, []Class{C_integer, C_sse}, args[0].loc.Eightbytes)
	require.Equal(t, 0, args[0].loc.GenReg)
	require.Equal(t, 0, args[0].loc.FloatReg)
	require.Equal(t, "%xmm0,%rdi", args[0].loc.String())

	/* scalars continue after it */
	require.Equal(t, 1, args[1].loc.GenReg)
	require.Equal(t, -112, args[2].ofs)
	require.Equal(t, 2, args[2].loc.NumFloatRegs)
	require.False(t, args[2].loc.Split)
}

func TestIterator_MaxEnregisteredSize(t *testing.T) {
	tests := []struct {
		arch arch.Arch
		size int
	}{
		{arch.AMD64Windows, 8},
		{arch.AMD64Unix, 16},
		{arch.ARM64, 16},
	}
	for _, tc := range tests {
		fit := defs.NewExplicit("fit", tc.size, []*defs.Type{i1}, []int{0})
		big := defs.NewExplicit("big", tc.size+1, []*defs.Type{i1}, []int{0})
		it := newIterator(t, tc.arch, &defs.Signature{Params: []defs.TypeHandle{fit, big}}, opts.Options{})
		_, err := it.Next()
		require.NoError(t, err)
		require.False(t, it.IsArgPassedByRef(), tc.arch.String())
		require.Equal(t, tc.size, it.ArgSize(), tc.arch.String())
		_, err = it.Next()
		require.NoError(t, err)
		require.True(t, it.IsArgPassedByRef(), tc.arch.String())
		require.Equal(t, 8, it.ArgSize(), tc.arch.String())
		require.True(t, it.Location().ByRef, tc.arch.String())
	}
}

func TestIterator_ForcedByRef(t *testing.T) {
	s8 := defs.NewStruct("S8", i4, i4)
	sig := &defs.Signature{Params: []defs.TypeHandle{s8, s8}, ForcedByRef: []bool{false, true}}
	it := newIterator(t, arch.ARM, sig, opts.Options{})
	_, err := it.Next()
	require.NoError(t, err)
	require.False(t, it.IsArgPassedByRef())
	require.Equal(t, 8, it.ArgSize())
	ofs, err := it.Next()
	require.NoError(t, err)
	require.True(t, it.IsArgPassedByRef())
	require.Equal(t, 4, it.ArgSize())
	require.Equal(t, 48, ofs)
}

func TestIterator_SyntheticArgs(t *testing.T) {
	sig := &defs.Signature{Params: []defs.TypeHandle{i4}, Flags: defs.F_objfirst | defs.F_fnptrarg}
	it := newIterator(t, arch.AMD64Unix, sig, opts.Options{})
	require.Equal(t, 3, it.NumArgs())
	walk(t, it)
	it.Reset()
	_, _ = it.Next()
	require.Equal(t, defs.T_object, it.ArgTag())
	_, _ = it.Next()
	require.Equal(t, defs.T_i4, it.ArgTag())
	_, _ = it.Next()
	require.Equal(t, defs.T_fnptr, it.ArgTag())
	require.Equal(t, 2, it.Index())
}

func TestIterator_Errors(t *testing.T) {
	tb := arch.MustForArch(arch.AMD64Windows)
	_, err := NewIterator(tb, nil, opts.Options{})
	require.IsType(t, utils.UnsupportedError{}, err)
	_, err = NewIterator(tb, &defs.Signature{Flags: defs.F_vararg | defs.F_paramtype}, opts.Options{})
	require.IsType(t, utils.UnsupportedError{}, err)
	_, err = NewIterator(tb, &defs.Signature{Params: []defs.TypeHandle{&defs.Type{T: defs.T_void}}}, opts.Options{})
	require.IsType(t, utils.UnsupportedError{}, err)
}

func TestIterator_TooComplex(t *testing.T) {
	big := defs.NewStruct("Big", i8, i8, i8, i8, i8)
	params := make([]defs.TypeHandle, 2000)
	for i := range params {
		params[i] = big
	}
	_, err := NewIterator(arch.MustForArch(arch.X86), &defs.Signature{Params: params}, opts.Options{})
	require.Error(t, err)
	e, ok := err.(utils.TooComplexError)
	require.True(t, ok)
	require.Equal(t, 80000, e.Size)
	require.Equal(t, defs.MaxArgStackSize, e.Limit)
}

func TestIterator_Trace(t *testing.T) {
	out := log.Writer()
	buf := bytes.NewBuffer(nil)
	log.SetOutput(buf)
	defer log.SetOutput(out)
	it := newIterator(t, arch.ARM64, &defs.Signature{Params: []defs.TypeHandle{i4}}, opts.Options{Trace: true})
	walk(t, it)
	require.Contains(t, buf.String(), "argmap: arm64: arg 0 (i4) at 104")
}

/* randomly generated signatures */

var (
	fakeStructs = []*defs.Type{
		defs.NewStruct("S1", defs.Prim(defs.T_u1)),
		defs.NewStruct("S3", i1, i1, i1),
		defs.NewStruct("S8", i4, i4),
		defs.NewStruct("SRef", obj, i4),
		defs.NewStruct("S12", i4, obj, i4),
		defs.NewStruct("S16", obj, obj),
		defs.NewStruct("F3", r4, r4, r4),
		defs.NewStruct("D2", r8, r8),
		defs.NewStruct("D4", r8, r8, r8, r8),
		defs.NewStruct("Big", i8, i8, i8, i8, i8),
	}
	fakeScalars = []*defs.Type{
		defs.Prim(defs.T_bool), defs.Prim(defs.T_char), i1, i4, i8, r4, r8, obj,
		defs.Prim(defs.T_string), defs.Prim(defs.T_i), defs.ByRef(i4), defs.Pointer(i8),
	}
)

func fakeType(f *gofakeit.Faker) *defs.Type {
	if f.Bool() {
		return fakeStructs[f.Number(0, len(fakeStructs)-1)]
	} else {
		return fakeScalars[f.Number(0, len(fakeScalars)-1)]
	}
}

func fakeSignature(f *gofakeit.Faker) *defs.Signature {
	sig := new(defs.Signature)
	n := f.Number(0, 14)

	/* explicit parameters */
	for i := 0; i < n; i++ {
		sig.Params = append(sig.Params, fakeType(f))
		sig.ForcedByRef = append(sig.ForcedByRef, f.Number(0, 9) == 0)
	}

	/* return type */
	if f.Bool() {
		sig.Return = fakeType(f)
	}

	/* implicit arguments */
	if f.Bool() {
		sig.Flags |= defs.F_instance
	}
	switch f.Number(0, 3) {
	case 0:
		sig.Flags |= defs.F_vararg
	case 1:
		sig.Flags |= defs.F_paramtype
	}
	return sig
}

type resource struct {
	kind string
	idx  int
}

func claim(t *testing.T, used map[resource]int, kind string, idx int, n int, owner int, sig *defs.Signature) {
	for i := idx; i < idx+n; i++ {
		r := resource{kind, i}
		if prev, ok := used[r]; ok {
			require.Failf(t, "overlapping locations", "%s%d is used by both %d and %d\n%s", kind, i, prev, owner, spew.Sdump(sig))
		}
		used[r] = owner
	}
}

func checkLocations(t *testing.T, tb arch.TransitionBlock, sig *defs.Signature, o opts.Options) {
	it, err := NewIterator(tb, sig, o)
	require.NoError(t, err, spew.Sdump(sig))
	used := make(map[resource]int)
	limit := it.SizeOfFrameArgumentArray() / tb.PointerSize()

	/* implicit arguments */
	for k, ofs := range []int{it.ThisOffset(), it.RetBufArgOffset(), it.ParamTypeArgOffset(), it.VASigCookieOffset()} {
		if ofs == arch.InvalidOffset || (tb.Arch() == arch.ARM64 && k == 1) {
			continue
		}
		loc := SlotLocation(tb, ofs)
		require.True(t, loc.IsValid(), "implicit %d at %d", k, ofs)
		claim(t, used, "r", loc.GenReg, loc.NumGenRegs, -1-k, sig)
		claim(t, used, "s", loc.StackSlot, loc.NumStackSlots, -1-k, sig)
	}

	/* explicit arguments */
	first := walk(t, it)
	require.Len(t, first, sig.NumArgs())
	for i, a := range first {
		require.True(t, a.loc.IsValid())
		require.True(t, a.loc.GenReg+a.loc.NumGenRegs <= tb.NumArgumentRegisters())
		require.True(t, a.loc.FloatReg+a.loc.NumFloatRegs <= tb.NumFloatArgumentRegisters())
		require.True(t, a.loc.StackSlot+a.loc.NumStackSlots <= limit, "arg %d: %+v, limit %d\n%s", i, a.loc, limit, spew.Sdump(sig))
		claim(t, used, "r", a.loc.GenReg, a.loc.NumGenRegs, i, sig)
		claim(t, used, "f", a.loc.FloatReg, a.loc.NumFloatRegs, i, sig)
		claim(t, used, "s", a.loc.StackSlot, a.loc.NumStackSlots, i, sig)
	}

	/* walking again gives the same result */
	it.Reset()
	require.Equal(t, NotStarted, it.State())
	require.Equal(t, first, walk(t, it))
}

func TestIterator_GeneratedSignatures(t *testing.T) {
	f := gofakeit.New(12345)
	for i := 0; i < 500; i++ {
		sig := fakeSignature(f)
		for _, a := range arch.All {
			checkLocations(t, arch.MustForArch(a), sig, opts.Options{})
		}
		checkLocations(t, arch.MustForArch(arch.AMD64Unix), sig, opts.Options{SysVStructPassing: true})
	}
}
