package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"kincore/internal/kinship"
)

func newTreeCmd(flags *rootFlags) *cobra.Command {
	var (
		vf        viewerFlags
		reference string
		format    string
	)
	cmd := &cobra.Command{
		Use:   "tree <root-id>",
		Short: "Build and print the tree rooted at a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "text" {
				return fmt.Errorf("unknown format %q (want json or text)", format)
			}
			a, err := newApp(cmd.Context(), appOptions{stderr: cmd.ErrOrStderr(), traceFile: flags.traceFile})
			if err != nil {
				return err
			}
			defer a.Close()
			tree, err := a.svc.BuildTree(cmd.Context(), vf.viewer(), args[0], reference)
			if err != nil {
				return err
			}
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tree)
			}
			return writeTreeText(cmd.OutOrStdout(), tree)
		},
	}
	vf.register(cmd)
	cmd.Flags().StringVar(&reference, "reference", "", "person labels are relative to (defaults to the root)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: json or text")
	return cmd
}

// writeTreeText prints one line per generation group followed by region counts.
func writeTreeText(w io.Writer, tree kinship.Tree) error {
	if tree.Empty() {
		_, err := fmt.Fprintf(w, "tree %s is unavailable\n", tree.RootID)
		return err
	}
	ref := tree.Nodes[tree.ReferenceID]
	if _, err := fmt.Fprintf(w, "root %s, labels relative to %s\n", tree.Nodes[tree.RootID].Name, ref.Name); err != nil {
		return err
	}
	for _, row := range tree.Levels {
		for _, group := range row.Groups {
			names := make([]string, 0, len(group.Members))
			for _, id := range group.Members {
				p := tree.Nodes[id]
				names = append(names, fmt.Sprintf("%s (%s, %s)", p.Name, p.RelationDisplay, p.Age))
			}
			if _, err := fmt.Fprintf(w, "%+d %-8s %s\n", row.Level, group.Kind, strings.Join(names, " + ")); err != nil {
				return err
			}
		}
	}
	for _, rc := range tree.Regions {
		if _, err := fmt.Fprintf(w, "region %s: %d\n", rc.Region, rc.Count); err != nil {
			return err
		}
	}
	for _, warning := range tree.Warnings {
		if _, err := fmt.Fprintf(w, "warning %s: %s\n", warning.Code, warning.Message); err != nil {
			return err
		}
	}
	return nil
}
