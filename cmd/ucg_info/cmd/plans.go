package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ucg-engine/internal/engine"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/plan"
	"github.com/ucg-engine/pkg/topology"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Dump the plan catalog for a singleton group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printPlans()
	},
}

func init() {
	rootCmd.AddCommand(plansCmd)
}

// printPlans builds a one-member singleton group purely to read back
// its plans container; it never touches a real transport, matching
// "dump plan catalog for a singleton group" (§6).
func printPlans() error {
	ctx, status := engine.Init(context.Background(), engine.Params{
		VersionMajor: engine.APIVersionMajor,
		VersionMinor: engine.APIVersionMinor,
		Size:         1,
		MyRank:       0,
		OOB:          singletonOOB,
		Locate:       func(int) topology.Location { return topology.Location{} },
	})
	if status.Failed() {
		return fmt.Errorf("context init: %s", status.Message)
	}
	defer ctx.Cleanup()

	g, status := ctx.CreateGroup(engine.CreateParams{
		Size: 1, MyRank: 0, RankMap: topology.NewFull(1),
	})
	if status.Failed() {
		return fmt.Errorf("group create: %s", status.Message)
	}
	defer g.Destroy()

	for coll := plan.Bcast; coll <= plan.Allgatherv; coll++ {
		entries := g.Plans().List(coll, plan.Host)
		if len(entries) == 0 {
			continue
		}
		fmt.Printf("%s:\n", coll.String())
		for _, p := range entries {
			printPlan(p, 1)
		}
	}
	return nil
}

func printPlan(p *plan.Plan, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Printf("%s[%d,%d) score=%d id=%s\n", indent, p.Range.Start, p.Range.End, p.Score, p.ID)
	for _, fb := range p.Fallbacks {
		printPlan(fb, depth+1)
	}
}

// singletonOOB trivially echoes the one rank's own payload back,
// exactly what a real allgather over a single member would produce.
func singletonOOB(_ context.Context, local []byte) ([][]byte, *errors.Status) {
	return [][]byte{local}, errors.Ok()
}
