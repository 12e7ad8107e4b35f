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
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudwego/argmap"
	"github.com/cloudwego/argmap/internal/arch"
	"github.com/cloudwego/argmap/internal/sigfile"
)

var version = "0.1.0"

// Target and placement flags
var (
	archName    string
	sysvStructs bool
	trace       bool
	workers     int
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "argmap: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "argmap",
		Short: "argmap places call arguments and builds GC ref maps",
		Long: `argmap reads method signatures from a YAML file, and prints where
every argument lives on the target architecture, or the GC ref map
the runtime uses to find the references among the arguments.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	/* flags shared by every command */
	rootCmd.PersistentFlags().StringVarP(&archName, "arch", "a", "", "target architecture (x86, x64-windows, x64-unix, arm, arm64)")
	rootCmd.PersistentFlags().BoolVar(&sysvStructs, "sysv-structs", false, "classify value types into eightbytes on x64-unix")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "log every argument placement")

	/* add the sub-commands */
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.AddCommand(newLocateCmd(out, errOut))
	rootCmd.AddCommand(newRefMapCmd(out, errOut))
	rootCmd.AddCommand(newDecodeCmd(out))
	return rootCmd
}

func newLocateCmd(out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <file>",
		Short: "print the location of every argument",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, target, err := loadFile(args[0])
			if err != nil {
				return err
			}

			/* place every method */
			opt := options(target, errLogger(errOut))
			for _, m := range set.Methods {
				fmt.Fprintf(out, "%s: %s\n", m.Name, m.Sig)
				if err := printArgs(out, target, m, opt); err != nil {
					fmt.Fprintf(errOut, "argmap: %s: %v\n", m.Name, err)
				}
			}
			return nil
		},
	}
}

func printArgs(out io.Writer, target arch.Arch, m sigfile.Method, opt []argmap.Option) error {
	args, err := argmap.Locate(target, m.Sig, opt...)
	if err != nil {
		return err
	}

	/* dump every argument */
	for _, a := range args {
		name := a.Implicit
		if name == "" {
			name = fmt.Sprintf("arg%d", a.Index)
		}
		if a.Location.IsValid() {
			fmt.Fprintf(out, "  %-10s %-12s ofs=%-5d %s\n", name, a.Type, a.Offset, a.Location)
		} else {
			fmt.Fprintf(out, "  %-10s %-12s ofs=%d\n", name, a.Type, a.Offset)
		}
	}

	/* and the stack size */
	if nb, pop, err := argmap.SizeOfArgStack(target, m.Sig, opt...); err != nil {
		return err
	} else if target == arch.X86 {
		fmt.Fprintf(out, "  stack=%d pop=%d\n", nb, pop)
	} else {
		fmt.Fprintf(out, "  stack=%d\n", nb)
	}
	return nil
}

func newRefMapCmd(out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refmap <file>",
		Short: "print the GC ref map of every method",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, target, err := loadFile(args[0])
			if err != nil {
				return err
			}

			/* collect the methods */
			methods := make([]*argmap.Method, len(set.Methods))
			for i, m := range set.Methods {
				methods[i] = m.Method
			}

			/* build all of them in parallel */
			res, err := argmap.CompileAll(cmd.Context(), target, methods, options(target, errLogger(errOut))...)
			if err != nil {
				return err
			}

			/* print the results in order */
			failed := 0
			for i, r := range res {
				if r.Err != nil {
					failed++
					fmt.Fprintf(errOut, "argmap: %s: %v\n", set.Methods[i].Name, r.Err)
				} else {
					fmt.Fprintf(out, "%s: %s\n", set.Methods[i].Name, r.RefMap)
				}
			}

			/* report failures through the exit code */
			if failed != 0 {
				return fmt.Errorf("%d of %d methods cannot be compiled", failed, len(res))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "number of methods built in parallel")
	return cmd
}

func newDecodeCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "decode a GC ref map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseArch("")
			if err != nil {
				return err
			}

			/* parse the hex bytes, spaces allowed */
			buf, err := hex.DecodeString(strings.Join(strings.Fields(args[0]), ""))
			if err != nil {
				return err
			}

			/* decode the ref map */
			rm, err := argmap.DecodeRefMap(target, buf)
			if err != nil {
				return err
			}

			/* dump the slots */
			if target == arch.X86 {
				fmt.Fprintf(out, "pop %d\n", rm.StackPop)
			}
			for _, s := range rm.Slots {
				fmt.Fprintf(out, "%d %s\n", s.Pos, s.Token)
			}
			return nil
		},
	}
}

func loadFile(path string) (*sigfile.Set, arch.Arch, error) {
	set, err := sigfile.Load(path)
	if err != nil {
		return nil, 0, err
	}
	target, err := parseArch(set.Arch)
	if err != nil {
		return nil, 0, err
	}
	return set, target, nil
}

// parseArch prefers the --arch flag over the architecture of the file.
func parseArch(def string) (arch.Arch, error) {
	name := archName
	if name == "" {
		name = def
	}
	if name == "" {
		return 0, fmt.Errorf("no target architecture, use --arch")
	}
	return arch.ParseArch(name)
}

func errLogger(w io.Writer) *log.Logger {
	return log.New(w, "argmap: ", 0)
}

func options(target arch.Arch, logger *log.Logger) []argmap.Option {
	ret := []argmap.Option{
		argmap.WithSysVStructPassing(sysvStructs),
		argmap.WithTrace(trace),
	}
	if workers > 0 {
		ret = append(ret, argmap.WithMaxWorkers(workers))
	}
	if sysvStructs && target != arch.AMD64Unix {
		logger.Printf("--sysv-structs has no effect on %s", target)
	}
	return ret
}
