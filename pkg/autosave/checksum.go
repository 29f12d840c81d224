package autosave

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/patchbay-dev/patchbay/pkg/models"
)

// Checksum computes a 32-bit rolling hash over a normalized snapshot of
// the canvas. Coordinates are rounded to whole pixels so sub-pixel drag
// noise does not count as a change, and connections are hashed in id
// order so insertion order does not matter. Non-cryptographic, change
// detection only.
func Checksum(nodes []*models.Node, connections []*models.Connection, transform models.CanvasTransform, mode models.DesignerMode) uint32 {
	var b strings.Builder

	b.WriteString(string(mode))
	fmt.Fprintf(&b, "|%d,%d,%d", round(transform.X), round(transform.Y), round(transform.K*1000))

	sortedNodes := make([]*models.Node, len(nodes))
	copy(sortedNodes, nodes)
	sort.Slice(sortedNodes, func(i, j int) bool { return sortedNodes[i].ID < sortedNodes[j].ID })

	for _, n := range sortedNodes {
		fmt.Fprintf(&b, "|n:%s:%s:%s:%s:%d:%d", n.ID, n.Type, n.Label, n.Status, round(n.X), round(n.Y))

		for _, pair := range normalizedPairs(n.Config) {
			b.WriteString(":")
			b.WriteString(pair)
		}

		for _, pair := range normalizedPairs(n.Metadata) {
			b.WriteString(";")
			b.WriteString(pair)
		}
	}

	sortedConns := make([]*models.Connection, len(connections))
	copy(sortedConns, connections)
	sort.Slice(sortedConns, func(i, j int) bool { return sortedConns[i].ID < sortedConns[j].ID })

	for _, c := range sortedConns {
		fmt.Fprintf(&b, "|c:%s:%s:%s:%s:%s", c.ID, c.SourceNodeID, c.SourcePortID, c.TargetNodeID, c.TargetPortID)
	}

	return rollingHash(b.String())
}

func rollingHash(s string) uint32 {
	var h uint32

	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}

	return h
}

func round(f float64) int64 {
	return int64(math.Round(f))
}

// normalizedPairs flattens a node's config or metadata into sorted
// key=value pairs so map iteration order never changes the hash.
func normalizedPairs(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}

	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}

	sort.Strings(pairs)

	return pairs
}
