package store

import "sort"

// buildHierarchy assembles the nested section tree from flat rows. The
// adjacency list cannot rule out cycles, so traversal carries a visited
// set: a parent reference that is unknown or would re-enter a visited
// node demotes the section to top level instead of looping.
func buildHierarchy(sections []Section, alternatives map[string][]Alternative) []SectionNode {
	byID := make(map[string]Section, len(sections))
	children := make(map[string][]Section)
	var roots []Section

	for _, sec := range sections {
		byID[sec.ID] = sec
	}
	for _, sec := range sections {
		if sec.ParentID == nil {
			roots = append(roots, sec)
			continue
		}
		if _, ok := byID[*sec.ParentID]; !ok {
			roots = append(roots, sec)
			continue
		}
		children[*sec.ParentID] = append(children[*sec.ParentID], sec)
	}

	visited := make(map[string]bool, len(sections))
	var build func(sec Section) SectionNode
	build = func(sec Section) SectionNode {
		visited[sec.ID] = true
		node := SectionNode{Section: sec, Alternatives: alternatives[sec.ID]}
		kids := children[sec.ID]
		sortSections(kids)
		for _, kid := range kids {
			if visited[kid.ID] {
				continue
			}
			node.Subsections = append(node.Subsections, build(kid))
		}
		return node
	}

	sortSections(roots)
	var out []SectionNode
	for _, root := range roots {
		if visited[root.ID] {
			continue
		}
		out = append(out, build(root))
	}

	// Members of a parent cycle are reachable from no root; surface them
	// as top-level rather than dropping them.
	var stranded []Section
	for _, sec := range sections {
		if !visited[sec.ID] {
			stranded = append(stranded, sec)
		}
	}
	sortSections(stranded)
	for _, sec := range stranded {
		if visited[sec.ID] {
			continue
		}
		out = append(out, build(sec))
	}
	return out
}

func sortSections(secs []Section) {
	sort.SliceStable(secs, func(i, j int) bool {
		return secs[i].SortOrder < secs[j].SortOrder
	})
}
