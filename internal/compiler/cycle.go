package compiler

import (
	"sort"
	"strings"

	"github.com/roach88/relayout/internal/ir"
)

// dependencyGraph maps an instruction ID to the IDs of the instructions
// consuming its results.
type dependencyGraph map[int][]int

// FindCycles returns the operand cycles of f: groups of instructions that
// transitively consume their own results, ordered along the cycle.
// Well-formed SSA has none; a graph description with forward references
// can.
//
// Cycles are found as the strongly connected components of the def-use
// graph (Tarjan). Components of one instruction count only when it
// consumes its own result.
func FindCycles(f *ir.Func) [][]*ir.Instruction {
	byID := make(map[int]*ir.Instruction)
	graph := make(dependencyGraph)
	f.Walk(func(inst *ir.Instruction) {
		byID[inst.ID()] = inst
		if graph[inst.ID()] == nil {
			graph[inst.ID()] = []int{}
		}
		for _, r := range inst.Results() {
			for _, user := range r.Users() {
				graph[inst.ID()] = append(graph[inst.ID()], user.ID())
			}
		}
	})

	var cycles [][]*ir.Instruction
	for _, scc := range tarjanSCC(graph) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		path := reconstructCyclePath(scc, graph)
		cycle := make([]*ir.Instruction, 0, len(path))
		for _, id := range path {
			cycle = append(cycle, byID[id])
		}
		cycles = append(cycles, cycle)
	}
	return cycles
}

// describeCycle renders a cycle as "a#1 -> b#2 -> a#1".
func describeCycle(cycle []*ir.Instruction) string {
	names := make([]string, len(cycle))
	for idx, inst := range cycle {
		names[idx] = inst.String()
	}
	return strings.Join(names, " -> ")
}

func hasSelfLoop(node int, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components. Nodes are visited in
// ascending ID order so the result is deterministic.
func tarjanSCC(graph dependencyGraph) [][]int {
	var (
		index   = 0
		stack   []int
		indices = make(map[int]int)
		lowlink = make(map[int]int)
		onStack = make(map[int]bool)
		sccs    [][]int
	)

	var strongConnect func(int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Ints(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]int, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Ints(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside scc from its smallest member
// until it returns there. A self-loop yields [n, n].
func reconstructCyclePath(scc []int, graph dependencyGraph) []int {
	if len(scc) == 0 {
		return nil
	}
	members := make(map[int]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []int{current}
	visited := make(map[int]bool)
	for {
		visited[current] = true
		next, found := 0, false
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next, found = neighbor, true
				break
			}
		}
		if !found {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
