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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMethods = `
methods:
  - name: Load
    instance: true
    params: [object, i8]
  - name: Pair
    params: [Pair]
types:
  Pair:
    fields: [object, object]
`

func writeFile(t *testing.T, arch string) string {
	fn := filepath.Join(t.TempDir(), "methods.yaml")
	src := testMethods
	if arch != "" {
		src = "arch: " + arch + "\n" + src
	}
	require.NoError(t, os.WriteFile(fn, []byte(src), 0644))
	return fn
}

func execute(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	require.NotEmpty(t, version)
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	for _, name := range []string{"arch", "sysv-structs", "trace"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestLocate(t *testing.T) {
	out, errOut, err := execute("locate", writeFile(t, "x86"))
	require.NoError(t, err)
	require.Contains(t, out, "Load: instance void(object, i8)")
	require.Contains(t, out, "%ecx")
	require.Contains(t, out, "%edx")
	require.Contains(t, out, "stack[0:2]")
	require.Contains(t, out, "stack=8 pop=8")

	/* the by-value pair does not fit in a register */
	require.Contains(t, out, "Pair: void(Pair)")
	require.Contains(t, out, "stack=8 pop=8\nPair")
	require.Empty(t, errOut)
}

func TestLocate_ArchFlag(t *testing.T) {
	out, _, err := execute("locate", "--arch", "arm64", writeFile(t, "x86"))
	require.NoError(t, err)
	require.Contains(t, out, "%x0")
	require.Contains(t, out, "%x0,%x1\n")
	require.NotContains(t, out, "pop=")
}

func TestLocate_NoArch(t *testing.T) {
	_, _, err := execute("locate", writeFile(t, ""))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no target architecture")
}

func TestRefMap(t *testing.T) {
	out, errOut, err := execute("refmap", "-j", "2", writeFile(t, "x86"))
	require.NoError(t, err)
	require.Contains(t, out, "Load: {x86,pop=2,[0:ref 1:ref],16}")
	require.Contains(t, out, "Pair: {x86,pop=2,[2:ref 3:ref],")
	require.Empty(t, errOut)
}

func TestRefMap_Failures(t *testing.T) {
	out, errOut, err := execute("refmap", "--arch", "x64-unix", writeFile(t, ""))
	require.Error(t, err)
	require.Contains(t, err.Error(), "1 of 2 methods")
	require.Contains(t, out, "Load: {x64-unix,[0:ref 1:ref],")
	require.Contains(t, errOut, "argmap: Pair: ")

	/* struct passing keeps both references */
	out, _, err = execute("refmap", "--arch", "x64-unix", "--sysv-structs", writeFile(t, ""))
	require.NoError(t, err)
	require.Contains(t, out, "Pair: {x64-unix,[0:ref 1:ref],")
}

func TestRefMap_SysVWarning(t *testing.T) {
	_, errOut, err := execute("refmap", "--arch", "arm", "--sysv-structs", writeFile(t, ""))
	require.NoError(t, err)
	require.Contains(t, errOut, "--sysv-structs has no effect on arm")
}

func TestDecode(t *testing.T) {
	out, _, err := execute("decode", "--arch", "x86", "16")
	require.NoError(t, err)
	require.Equal(t, "pop 2\n0 ref\n1 ref\n", out)

	/* spaces between the bytes are fine */
	out, _, err = execute("decode", "-a", "x86", "c3 22")
	require.NoError(t, err)
	require.Equal(t, "pop 3\n0 ref\n1 ref\n3 ref\n", out)
}

func TestDecode_Errors(t *testing.T) {
	_, _, err := execute("decode", "16")
	require.Error(t, err)
	_, _, err = execute("decode", "--arch", "x86", "zz")
	require.Error(t, err)
	_, _, err = execute("decode", "--arch", "mips", "16")
	require.Error(t, err)
}
