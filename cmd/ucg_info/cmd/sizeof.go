package cmd

import (
	"fmt"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/ucg-engine/pkg/datatype"
	"github.com/ucg-engine/pkg/errors"
	"github.com/ucg-engine/pkg/plan"
	"github.com/ucg-engine/pkg/request"
	"github.com/ucg-engine/pkg/topology"
)

// sizeofCmd reports sizeof of the structures whose on-the-wire or
// per-request footprint a caller tuning the system would care about;
// none of it is ABI-stable, it is purely a debug aid (§6: "sizeof of
// core structures (debug)").
var sizeofCmd = &cobra.Command{
	Use:   "sizeof",
	Short: "Print sizeof of core structures (debug)",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%-24s %d bytes\n", "errors.Status", unsafe.Sizeof(errors.Status{}))
		fmt.Printf("%-24s %d bytes\n", "datatype.Datatype", unsafe.Sizeof(datatype.Datatype{}))
		fmt.Printf("%-24s %d bytes\n", "plan.Attr", unsafe.Sizeof(plan.Attr{}))
		fmt.Printf("%-24s %d bytes\n", "plan.Range", unsafe.Sizeof(plan.Range{}))
		fmt.Printf("%-24s %d bytes\n", "request.Base", unsafe.Sizeof(request.Base{}))
		fmt.Printf("%-24s %d bytes\n", "topology.Subgroup", unsafe.Sizeof(topology.Subgroup{}))
		fmt.Printf("%-24s %d bytes\n", "topology.Location", unsafe.Sizeof(topology.Location{}))
	},
}

func init() {
	rootCmd.AddCommand(sizeofCmd)
}
