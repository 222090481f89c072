// Package man generates roff manual pages from the cobra command tree.
package man

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

// NewManCmd returns a hidden command that prints the manual page to stdout.
func NewManCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "man",
		Short:                 "Generates fuzic's command line manpages",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Hidden:                true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manPage, err := mcobra.NewManPage(1, cmd.Root())
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), manPage.Build(roff.NewDocument()))
			return err
		},
	}
}
