// Command lanternprobe loads the registry catalogs and dumps the compiled
// block palette: ids, shapes, state bit layouts and resolved materials.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/stonelantern/stonelantern/engine/block"
)

func main() {
	materials := flag.String("materials", "assets/materials.toml", "path to the materials catalog")
	blocks := flag.String("blocks", "assets/blocks.toml", "path to the block catalog")
	flag.Parse()

	reg, err := block.LoadRegistry(*materials, *blocks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lanternprobe: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("registry generation %s, %d block slots, %d materials\n",
		reg.Generation, reg.Len(), reg.Materials.Len()-1)

	names := make([]string, 0, reg.Len())
	for id := uint16(0); int(id) < reg.Len(); id++ {
		if ty, ok := reg.Get(id); ok {
			names = append(names, ty.Name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		id, _ := reg.IDByName(name)
		ty, _ := reg.Get(id)
		fmt.Printf("%4d %-20s shape=%v solid=%v sky=%v prop=%v em=%d\n",
			ty.ID, ty.Name, ty.Shape.Kind, ty.Solid, ty.BlocksSkylight, ty.PropagatesLight, ty.Emission)
		for _, f := range ty.StateFields() {
			fmt.Printf("       state %-12s bits=%d offset=%d values=%v\n", f.Name, f.Bits, f.Offset, f.Values)
		}
		for _, role := range []block.FaceRole{block.RoleTop, block.RoleBottom, block.RoleSide} {
			if mid := ty.MaterialFor(role, 0); mid != 0 {
				if m, ok := reg.Materials.Get(mid); ok {
					fmt.Printf("       material %v -> %s\n", role, m.Key)
				}
			}
		}
	}
}
