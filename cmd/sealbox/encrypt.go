package main

import (
	"github.com/spf13/cobra"

	"github.com/akiel/sealbox/internal/engine"
)

func newEncryptCmd() *cobra.Command {
	var f batchFlags

	cmd := &cobra.Command{
		Use:     "encrypt [flags] <file>...",
		Aliases: []string{"seal"},
		Short:   "Encrypt files into .sealed containers",
		Long: `Encrypt each input file into an authenticated container written
alongside the input (or under --output). The key is derived from a
password with PBKDF2; files above --stream-threshold are processed in
chunks with bounded memory.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("files") || cmd.Flags().Changed("directory") {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, &f, engine.OpEncrypt)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVarP(&f.compress, "compress", "z", false, "LZ4-compress before encryption (whole-file mode only)")
	cmd.Flags().IntVar(&f.iterations, "iterations", 0, "PBKDF2 iteration count (default 600000)")

	return cmd
}
