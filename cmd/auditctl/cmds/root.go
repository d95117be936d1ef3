package cmds

import "github.com/spf13/cobra"

func AddCommands(root *cobra.Command) error {
	root.AddCommand(newTailCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newReplayCmd())
	return nil
}
