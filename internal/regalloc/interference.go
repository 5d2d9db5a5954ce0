package regalloc

import "github.com/x64cc/x64cc/internal/mir"

// igraph is a virtual-register interference graph: two vregs are adjacent
// if some program point has both live at once. forbidden records physical
// registers a vreg may never be colored with, because some instruction
// reads or writes that physical register directly while the vreg is
// simultaneously live — the "forbidden color set" alternative to giving
// every physical register its own precolored graph node, cheaper to
// maintain for a calling convention with only a handful of fixed-register
// instructions (div, shift-by-cl, call argument setup).
type igraph struct {
	adj       map[mir.VReg]map[mir.VReg]struct{}
	forbidden map[mir.VReg]map[PhysReg]struct{}
}

func newIGraph() *igraph {
	return &igraph{adj: make(map[mir.VReg]map[mir.VReg]struct{}), forbidden: make(map[mir.VReg]map[PhysReg]struct{})}
}

func (g *igraph) node(r mir.VReg) {
	if _, ok := g.adj[r]; !ok {
		g.adj[r] = make(map[mir.VReg]struct{})
	}
}

func (g *igraph) addEdge(a, b mir.VReg) {
	if a == b {
		return
	}
	g.node(a)
	g.node(b)
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

func (g *igraph) forbid(r mir.VReg, p PhysReg) {
	g.node(r)
	if g.forbidden[r] == nil {
		g.forbidden[r] = make(map[PhysReg]struct{})
	}
	g.forbidden[r][p] = struct{}{}
}

func (g *igraph) degree(r mir.VReg, removed vset) int {
	n := 0
	for other := range g.adj[r] {
		if !removed.has(other) {
			n++
		}
	}
	return n
}

// buildInterference walks each block backward from its live-out set,
// exactly the classic liveness-driven construction: at a definition,
// every vreg simultaneously live interferes with it; at any point a
// physical register is named directly, every vreg live at that point is
// forbidden that color.
func buildInterference(mf *mir.MIRFunction, lv *liveness) *igraph {
	g := newIGraph()

	for _, b := range mf.Blocks {
		live := lv.out[b].clone()
		for j := len(b.Insts) - 1; j >= 0; j-- {
			inst := &b.Insts[j]
			def, hasDef, uses := defUse(inst)

			for _, p := range inst.Clobbers {
				for r := range live {
					g.forbid(r, p)
				}
				if hasDef {
					g.forbid(def, p)
				}
			}
			for _, o := range inst.Operands {
				if o.Kind == mir.OperandReg && !o.Reg.IsVirtual() {
					for r := range live {
						g.forbid(r, o.Reg)
					}
					for _, u := range uses {
						g.forbid(u, o.Reg)
					}
				}
			}

			if hasDef {
				g.node(def)
				for r := range live {
					g.addEdge(def, r)
				}
				delete(live, def)
			}
			for _, u := range uses {
				g.node(u)
				live.add(u)
			}
		}
	}
	return g
}
