package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vmc/pkg/asmgen"
	"vmc/pkg/diag"
	"vmc/pkg/ir"
	"vmc/pkg/irbuilder"
	"vmc/pkg/optimizer"
	"vmc/pkg/regalloc"
)

func newASMDumpCmd() *cobra.Command {
	var noOptimize bool
	var noAlloc bool
	cmd := &cobra.Command{
		Use: "asm-dump <typed-ast-file>",
		Short: "run the full pipeline up to register allocation and print the virtual-assembly listing",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging()
			tm, err := loadModule(args[0])
			if err != nil {
				return err
			}

			ctx := ir.NewContext()
			sink := diag.NewSink()
			b := irbuilder.New(ctx, sink)
			modID, berr := b.BuildModule(tm)
			if berr != nil {
				return berr
			}
			mod := ctx.Module(modID)

			if !noOptimize {
				mgr := optimizer.DefaultPipeline(1, false)
				if perr := mgr.Run(ctx, mod, sink); perr != nil {
					return perr
				}
			}

			asmMod, aerr := asmgen.BuildModule(ctx, mod)
			if aerr != nil {
				return aerr
			}

			if !noAlloc {
				for _, fn := range asmMod.Functions {
					if rerr := regalloc.Allocate(fn, 4); rerr != nil {
						return rerr
					}
				}
			}

			fmt.Print(asmMod.Dump())
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "skip the optimizer pass manager")
	cmd.Flags().BoolVar(&noAlloc, "no-alloc", false, "skip register allocation, printing virtual registers")
	return cmd
}
