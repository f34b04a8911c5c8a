package commands

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/serpscope/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, closeOutput, err := openOutput()
		if err != nil {
			return err
		}
		if err := w.Write(version.Get()); err != nil {
			_ = closeOutput()
			return err
		}
		return closeOutput()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version.String()
}
