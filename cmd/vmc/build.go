package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vmc/pkg/config"
	"vmc/pkg/driver"
)

func newBuildCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use: "build <typed-ast-file>",
		Short: "compile a typed-AST module into a bytecode image",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configureLogging()
			cfg, err := config.Load(flagEnv)
			if err != nil {
				return err
			}

			mod, err := loadModule(args[0])
			if err != nil {
				return err
			}

			res, derr := driver.Compile(&driver.Package{Name: mod.Name, AST: mod}, driver.Options{
					OptimizeLevel: cfg.Optimizer.Level,
					DebugProfile: cfg.Optimizer.DebugProfile,
					MaxSpillRounds: cfg.Optimizer.MaxSpillRounds,
				})
			if derr != nil {
				return derr
			}

			if out == "" {
				out = mod.Name + ".bin"
			}
			if err := os.WriteFile(out, res.Image.Bytes, 0o644); err != nil {
				return err
			}
			if !flagSilent {
				fmt.Printf("wrote %s (%d bytes)\n", out, len(res.Image.Bytes))
			}

			if res.ABI != nil {
				abiPath := trimExt(out) + ".abi.json"
				abiBytes, err := json.MarshalIndent(res.ABI, "", " ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(abiPath, abiBytes, 0o644); err != nil {
					return err
				}
				if !flagSilent {
					fmt.Printf("wrote %s\n", abiPath)
				}
			}

			for _, e := range res.Sink.Entries() {
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n", e.Severity, e.Function, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output bytecode image path")
	return cmd
}

func trimExt(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)]
}
