package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:     "recompute [card-id]",
	Short:   "Recompute completion scores",
	GroupID: "catalog",
	Long: `Recompute the completion score of one card, or of every card when no
ID is given. Scores normally track mutations automatically; a sweep is only
needed after changing the scoring rules.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		if len(args) == 1 {
			resp, err := catalog.RecomputeCard(ctx, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				data, _ := json.Marshal(resp)
				fmt.Println(string(data))
				return nil
			}
			fmt.Printf("%s: completion %.1f (changed: %v)\n", resp.ID, resp.Completion, resp.Changed)
			return nil
		}

		resp, err := catalog.RecomputeAll(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			data, _ := json.Marshal(resp)
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("recomputed %d cards, %d changed\n", resp.Recomputed, resp.Changed)
		return nil
	},
}
