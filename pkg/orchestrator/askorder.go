// SPDX-License-Identifier: Apache-2.0
package orchestrator

import (
	"sort"

	"github.com/praxis-ai/praxis/pkg/capability"
	"github.com/praxis-ai/praxis/pkg/resolve"
)

// askRank orders missing fields for prompting. Lower ranks are asked first:
// fields whose dependencies are already satisfied come before dependent
// ones, plain fields before fields with a backend lookup (those tend to
// self-resolve next turn), and identity-style fields last of all since they
// are usually injected rather than asked.
func askRank(f *capability.FieldSpec, collected map[string]interface{}) int {
	rank := 0
	if !resolve.DependenciesMet(f, collected) {
		rank += 10
	}
	switch {
	case f.Lookup.IsIdentity():
		rank += 2
	case f.Lookup != nil && f.Lookup.Action != "":
		rank += 1
	}
	return rank
}

// orderForAsking sorts missing by ask rank, breaking ties by declaration
// order within the descriptor.
func orderForAsking(d *capability.Descriptor, missing []*capability.FieldSpec, collected map[string]interface{}) []*capability.FieldSpec {
	position := make(map[string]int, len(d.Fields))
	for i, f := range d.Fields {
		position[f.Name] = i
	}

	ordered := append([]*capability.FieldSpec(nil), missing...)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := askRank(ordered[i], collected), askRank(ordered[j], collected)
		if ri != rj {
			return ri < rj
		}
		return position[ordered[i].Name] < position[ordered[j].Name]
	})
	return ordered
}
