package main

import (
	"github.com/spf13/cobra"

	"github.com/akiel/sealbox/internal/engine"
)

func newDecryptCmd() *cobra.Command {
	var f batchFlags

	cmd := &cobra.Command{
		Use:     "decrypt [flags] <file>...",
		Aliases: []string{"open"},
		Short:   "Decrypt .sealed containers",
		Long: `Decrypt each container back to its original content. The container
records whether it was written whole or in chunks; the mode is detected
automatically. A wrong password or any tampering fails the file without
affecting the rest of the batch.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("files") || cmd.Flags().Changed("directory") {
				return nil
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Directory collection defaults to containers only.
			if !cmd.Flags().Changed("pattern") {
				f.patterns = []string{"**/*" + engine.SealSuffix}
			}
			return runBatch(cmd, args, &f, engine.OpDecrypt)
		},
	}

	f.register(cmd)

	return cmd
}
