// Command vmc is the thin CLI driver: it reads a typed-AST
// file, runs it through pkg/driver's pipeline, and writes the resulting
// bytecode image (and, for contracts, the JSON ABI) to disk. Everything
// past typed-AST ingestion belongs to the core; vmc never lexes, parses,
// resolves names, or infers types itself.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagEnv string
	flagSilent bool
	flagOffline bool
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use: "vmc",
		Short: "mid-end-to-backend compiler core driver",
	}
	root.PersistentFlags().StringVar(&flagEnv, "env", "", "config environment overlay (VMC_ENV)")
	root.PersistentFlags().BoolVar(&flagSilent, "silent", false, "suppress progress logging")
	root.PersistentFlags().BoolVar(&flagOffline, "offline", false, "placeholder: the core never does I/O of its own beyond reading the input file and writing artifacts")

	root.AddCommand(newBuildCmd(), newIRDumpCmd(), newASMDumpCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configureLogging() {
	if flagSilent {
		logrus.SetLevel(logrus.ErrorLevel)
	}
}
