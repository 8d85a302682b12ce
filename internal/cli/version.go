package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stolostron/installer-dev-tools-sub000/internal/version"
)

func newVersionCommand() *cobra.Command {
	var (
		jsonOutput bool
		short      bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display the version, git commit, build date, Go version, and platform.",
		Args:  cobra.NoArgs,
		// Version needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetInfo()

			out := info.String()

			switch {
			case jsonOutput:
				j, err := info.JSON()
				if err != nil {
					return err
				}

				out = j
			case short:
				out = info.Version
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), out)

			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output version info as JSON")
	cmd.Flags().BoolVar(&short, "short", false, "print the version number only")
	cmd.MarkFlagsMutuallyExclusive("json", "short")

	return cmd
}
