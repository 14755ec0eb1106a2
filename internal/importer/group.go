package importer

import "github.com/fyrsmithlabs/contactimport/internal/contact"

// identityGroups partitions row indexes so that rows sharing an email or a
// phone value land in the same group. Groups and the rows inside them keep
// input order.
func identityGroups(attrs []*contact.Attributes) [][]int {
	parent := make([]int, len(attrs))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	owner := make(map[string]int)
	for i, a := range attrs {
		if a == nil {
			continue
		}
		for _, key := range identityKeys(a) {
			if j, ok := owner[key]; ok {
				union(i, j)
			} else {
				owner[key] = i
			}
		}
	}

	index := make(map[int]int)
	var groups [][]int
	for i := range attrs {
		root := find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func identityKeys(a *contact.Attributes) []string {
	var keys []string
	if v, ok := a.Core.Get(contact.Email); ok {
		keys = append(keys, "email\x00"+v)
	}
	if v, ok := a.Core.Get(contact.Phone); ok {
		keys = append(keys, "phone\x00"+v)
	}
	return keys
}
