package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vmc/pkg/diag"
	"vmc/pkg/ir"
	"vmc/pkg/irbuilder"
)

func newIRDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use: "ir-dump <typed-ast-file>",
		Short: "lower a typed-AST module to IR and print it",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging()
			mod, err := loadModule(args[0])
			if err != nil {
				return err
			}

			ctx := ir.NewContext()
			b := irbuilder.New(ctx, diag.NewSink())
			modID, berr := b.BuildModule(mod)
			if berr != nil {
				return berr
			}
			fmt.Print(ir.DumpModule(ctx, modID))
			return nil
		},
	}
}
