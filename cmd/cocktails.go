package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mixbot/core/availability"
	"github.com/kilianp07/mixbot/core/recipe"
)

var cocktailsCmd = &cobra.Command{
	Use:   "cocktails",
	Short: "List cocktails and whether they can be made",
	RunE:  runCocktails,
}

func init() {
	rootCmd.AddCommand(cocktailsCmd)
}

func runCocktails(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	inv, _, err := openInventory(ctx)
	if err != nil {
		return err
	}
	defer inv.Close()
	res := recipe.NewResolver(inv.Book, inv.Store, recipe.DefaultInstructions())
	eval := availability.NewEvaluator(inv.Store)
	recs, err := res.Recipes(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tALCOHOLIC\tLIQUID ML\tSTATUS")
	for _, rec := range recs {
		plan, err := res.Plan(ctx, rec)
		if err != nil {
			return err
		}
		short, err := eval.Shortages(ctx, plan)
		if err != nil {
			return err
		}
		status := "available"
		if len(short) > 0 {
			status = fmt.Sprintf("missing %s (%g/%gml)", short[0].Name, short[0].AvailableML, short[0].RequiredML)
		}
		fmt.Fprintf(w, "%d\t%s\t%t\t%g\t%s\n", plan.CocktailID, plan.Name, plan.Alcoholic, plan.TotalLiquidML(), status)
	}
	return w.Flush()
}
