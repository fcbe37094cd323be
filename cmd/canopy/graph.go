package main

import (
	"fmt"

	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <scenario>",
	Short: "Export the tree visualization",
	Long: `Builds the scenario's tree and outputs a Mermaid diagram (graph TD) of it.
With --apply the scenario's operations run first and every resulting root
is drawn.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apply, _ := cmd.Flags().GetBool("apply")
		highlight, _ := cmd.Flags().GetString("highlight")

		s, err := openSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer s.close()

		if apply {
			err = s.run(cmd.Context())
		} else {
			err = s.build()
		}
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if highlight != "" {
			overlay = &graph.GraphOverlay{CurrentNode: highlight}
			for _, d := range s.debuggers {
				if path, err := d.Index.Path(highlight); err == nil {
					overlay.Path = path
					break
				}
			}
			if overlay.Path == nil {
				return fmt.Errorf("node %q is not in any indexed tree", highlight)
			}
		}

		out := cmd.OutOrStdout()
		for _, root := range s.tree.Roots() {
			fmt.Fprint(out, graph.GenerateMermaid(root.View(), overlay))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("apply", false, "Apply the scenario's operations before drawing")
	graphCmd.Flags().String("highlight", "", "Highlight the path from the root to this node id")
}
