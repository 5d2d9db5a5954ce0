package regalloc

import "github.com/x64cc/x64cc/internal/mir"

// colorResult is one pass's outcome: every successfully colored vreg, and
// the vregs that could not be given a color and must be spilled to the
// stack before allocation is retried.
type colorResult struct {
	colors map[mir.VReg]PhysReg
	spills []mir.VReg
}

// colorGraph implements Chaitin-style simplify/spill/select: repeatedly
// remove a node with fewer than k live neighbours (always colorable once
// its neighbours are), and when no such node remains, optimistically
// remove the highest-degree node anyway on the bet that its neighbours
// won't all end up with distinct colors. Colors are assigned popping the
// stack in reverse, skipping neighbour colors and this vreg's forbidden
// set; a vreg that runs out of choices is an actual spill.
func colorGraph(g *igraph, pool []PhysReg) colorResult {
	k := len(pool)
	removed := make(vset)
	var order []mir.VReg
	remaining := make([]mir.VReg, 0, len(g.adj))
	for r := range g.adj {
		remaining = append(remaining, r)
	}

	for len(order) < len(remaining) {
		progressed := false
		for _, r := range remaining {
			if removed.has(r) {
				continue
			}
			if g.degree(r, removed) < k {
				removed.add(r)
				order = append(order, r)
				progressed = true
			}
		}
		if progressed {
			continue
		}

		// No safe node: pick the highest-degree remaining node as an
		// optimistic spill candidate and keep going. Whether it truly
		// spills is decided at coloring time, not here.
		var best mir.VReg
		bestDeg := -1
		found := false
		for _, r := range remaining {
			if removed.has(r) {
				continue
			}
			d := g.degree(r, removed)
			if d > bestDeg {
				bestDeg, best, found = d, r, true
			}
		}
		if !found {
			break
		}
		removed.add(best)
		order = append(order, best)
	}

	colors := make(map[mir.VReg]PhysReg, len(order))
	var spills []mir.VReg
	for i := len(order) - 1; i >= 0; i-- {
		r := order[i]
		used := make(map[PhysReg]struct{})
		for n := range g.adj[r] {
			if c, ok := colors[n]; ok {
				used[c] = struct{}{}
			}
		}
		forbidden := g.forbidden[r]

		chosen := PhysReg(0)
		ok := false
		for _, p := range pool {
			if _, bad := used[p]; bad {
				continue
			}
			if forbidden != nil {
				if _, bad := forbidden[p]; bad {
					continue
				}
			}
			chosen, ok = p, true
			break
		}
		if !ok {
			spills = append(spills, r)
			continue
		}
		colors[r] = chosen
	}

	return colorResult{colors: colors, spills: spills}
}
