package main

import (
	"github.com/spf13/cobra"

	"kincore/pkg/domain"
)

// --- Global flags ---
type rootFlags struct {
	envFile   string
	traceFile string
}

// viewerFlags are shared by commands acting on behalf of an owner.
type viewerFlags struct {
	owner string
	admin bool
}

func (v *viewerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.owner, "owner", "", "owner id the command acts as")
	cmd.Flags().BoolVar(&v.admin, "admin", false, "act as an administrator who sees every record")
	_ = cmd.MarkFlagRequired("owner")
}

func (v *viewerFlags) viewer() domain.Viewer {
	return domain.Viewer{OwnerID: v.owner, IsAdmin: v.admin}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "kincore",
		Short: "Family tree storage and kinship classification",
		Long: `kincore stores persons with parent and spouse links, builds
viewer-scoped family trees labelled relative to a reference person,
and exports them to blob storage.

Configuration comes from KINCORE_* environment variables, optionally
loaded from a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(flags.envFile, cmd.Flags().Changed("env-file"))
		},
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file applied before reading configuration")
	root.PersistentFlags().StringVar(&flags.traceFile, "trace-file", "", "append JSON-lines operation traces to this file")

	root.AddCommand(
		newServeCmd(flags),
		newTreeCmd(flags),
		newImportCmd(flags),
		newExportCmd(flags),
	)
	return root
}
