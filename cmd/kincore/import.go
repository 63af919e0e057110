package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"kincore/internal/seed"
)

func newImportCmd(flags *rootFlags) *cobra.Command {
	var vf viewerFlags
	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create persons from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.ParseFile(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), appOptions{stderr: cmd.ErrOrStderr(), traceFile: flags.traceFile})
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := seed.Import(cmd.Context(), a.svc, vf.viewer(), f)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(res.IDs))
			for k := range res.IDs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			out := cmd.OutOrStdout()
			for _, k := range keys {
				fmt.Fprintf(out, "%s\t%s\n", k, res.IDs[k])
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning %s: %s\n", w.Rule, w.Message)
			}
			return nil
		},
	}
	vf.register(cmd)
	return cmd
}
