package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"kincore/internal/blob"
)

func newExportCmd(flags *rootFlags) *cobra.Command {
	var (
		vf        viewerFlags
		reference string
	)
	cmd := &cobra.Command{
		Use:   "export <root-id>",
		Short: "Build the tree rooted at a person and store it in blob storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{stderr: cmd.ErrOrStderr(), traceFile: flags.traceFile, withBlob: true})
			if err != nil {
				return err
			}
			defer a.Close()
			viewer := vf.viewer()
			tree, err := a.svc.BuildTree(cmd.Context(), viewer, args[0], reference)
			if err != nil {
				return err
			}
			rec, err := a.exporter.Export(cmd.Context(), viewer, tree)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d nodes\n", rec.Key, rec.Nodes)
			url, err := a.exporter.URL(cmd.Context(), viewer, rec.Key, blob.DefaultURLExpiry)
			switch {
			case err == nil:
				fmt.Fprintln(cmd.OutOrStdout(), url)
			case !errors.Is(err, blob.ErrUnsupported):
				return err
			}
			return nil
		},
	}
	vf.register(cmd)
	cmd.Flags().StringVar(&reference, "reference", "", "person labels are relative to (defaults to the root)")
	return cmd
}
