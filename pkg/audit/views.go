package audit

import "sort"

// BuildTree resolves the flat node list into roots with children. Nodes whose
// parent is unknown become roots. Siblings keep their order in the list.
func BuildTree(t *AgentTree) []*TreeNode {
	if t == nil || len(t.Nodes) == 0 {
		return nil
	}
	byAgent := make(map[string]*TreeNode, len(t.Nodes))
	ordered := make([]*TreeNode, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		tn := &TreeNode{AgentNode: n}
		ordered = append(ordered, tn)
		if n.AgentID != "" {
			byAgent[n.AgentID] = tn
		}
	}

	var roots []*TreeNode
	for _, tn := range ordered {
		parent, ok := byAgent[tn.ParentAgentID]
		if tn.ParentAgentID == "" || !ok || parent == tn {
			roots = append(roots, tn)
			continue
		}
		parent.Children = append(parent.Children, tn)
	}
	if t.RootAgentID != "" {
		sort.SliceStable(roots, func(i, j int) bool {
			return roots[i].AgentID == t.RootAgentID && roots[j].AgentID != t.RootAgentID
		})
	}
	return roots
}

// Walk visits nodes depth first.
func Walk(nodes []*TreeNode, fn func(n *TreeNode, depth int)) {
	var visit func(n *TreeNode, depth int, seen map[*TreeNode]bool)
	visit = func(n *TreeNode, depth int, seen map[*TreeNode]bool) {
		if seen[n] {
			return
		}
		seen[n] = true
		fn(n, depth)
		for _, c := range n.Children {
			visit(c, depth+1, seen)
		}
	}
	seen := map[*TreeNode]bool{}
	for _, n := range nodes {
		visit(n, 0, seen)
	}
}

// FindNode returns the node with the given agent id.
func FindNode(nodes []*TreeNode, agentID string) *TreeNode {
	var found *TreeNode
	Walk(nodes, func(n *TreeNode, _ int) {
		if found == nil && n.AgentID == agentID {
			found = n
		}
	})
	return found
}

// agentNames returns the names and ids of agentID and all its descendants.
func agentNames(nodes []*TreeNode, agentID string) map[string]struct{} {
	out := map[string]struct{}{agentID: {}}
	root := FindNode(nodes, agentID)
	if root == nil {
		return out
	}
	Walk([]*TreeNode{root}, func(n *TreeNode, _ int) {
		if n.AgentName != "" {
			out[n.AgentName] = struct{}{}
		}
		if n.AgentID != "" {
			out[n.AgentID] = struct{}{}
		}
	})
	return out
}

// FilterLogs returns the logs visible under scope.
func FilterLogs(logs []LogItem, nodes []*TreeNode, scope LogScope) []LogItem {
	if scope.Unfiltered() {
		return logs
	}
	names := agentNames(nodes, scope.AgentID())
	out := make([]LogItem, 0, len(logs))
	for _, l := range logs {
		if _, ok := names[l.AgentName]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Stats are counters shown in the viewer header.
type Stats struct {
	Logs         int
	ToolCalls    int
	RunningTools int
	Findings     int
	Errors       int
}

func ComputeStats(s State) Stats {
	st := Stats{Logs: len(s.Logs), Findings: len(s.Findings)}
	for _, l := range s.Logs {
		switch l.Type {
		case LogTool:
			st.ToolCalls++
			if l.Tool != nil && l.Tool.Status == ToolRunning {
				st.RunningTools++
			}
		case LogError:
			st.Errors++
		}
	}
	return st
}

func (s State) IsRunning() bool {
	return s.Task != nil && isActiveStatus(s.Task.Status)
}

func (s State) IsComplete() bool {
	return s.Task != nil && isTerminalStatus(s.Task.Status)
}
