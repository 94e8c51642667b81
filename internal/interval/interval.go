// Package interval decomposes an acyclic CFG into a chain of single-entry
// intervals: leaves, sequential nodes and forks that reconverge at their
// immediate post-dominator.
package interval

import (
	"fmt"
	"strings"

	"github.com/malphas-lang/ifconv/internal/cfg"
)

// Kind classifies an interval by the out-degree of its root.
type Kind uint8

const (
	Leaf       Kind = iota // root has no successors
	Sequential             // root has one successor
	Fork                   // root ends in a two-way branch
)

func (k Kind) String() string {
	switch k {
	case Leaf:
		return "leaf"
	case Sequential:
		return "seq"
	case Fork:
		return "fork"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Interval is one link of an interval chain.
type Interval struct {
	Root *cfg.Node
	// Sink is the single exit of the interval: the root itself for leaves
	// and sequential intervals, the synthesized join for forks.
	Sink *cfg.Node
	Kind Kind

	// Valid is false for an irregular fork that could not be closed at its
	// own level and is left to its enclosing fork.
	Valid bool
	// Special marks an irregular fork merged over its topological span.
	Special bool

	IPD  *cfg.Node // immediate post-dominator of a fork root
	Join *cfg.Node // join synthesized in front of IPD

	// Branches are the fork's successors at decomposition time, branch
	// target first.
	Branches []*cfg.Node
	// Children maps a dominated branch successor to its sub-chain. The
	// IPD never has an entry.
	Children   map[int64]*Interval
	ChildOrder []int64
	// SpecialNodes is the span between Root and Join, in topological
	// order, for special forks.
	SpecialNodes []*cfg.Node

	Next *Interval
}

// Child returns the sub-chain starting at the i-th branch, or nil when that
// branch goes straight to the IPD.
func (iv *Interval) Child(i int) *Interval {
	if i >= len(iv.Branches) {
		return nil
	}
	return iv.Children[iv.Branches[i].ID()]
}

// Last returns the final interval of the chain starting at iv.
func (iv *Interval) Last() *Interval {
	for iv.Next != nil {
		iv = iv.Next
	}
	return iv
}

// ChainValid reports whether every interval of the chain is valid.
func (iv *Interval) ChainValid() bool {
	for ; iv != nil; iv = iv.Next {
		if !iv.Valid {
			return false
		}
	}
	return true
}

// Walk calls fn for every interval reachable from iv in pre-order: the
// interval, its children in branch order, then the rest of the chain. A
// false return skips the children of that interval.
func (iv *Interval) Walk(fn func(*Interval) bool) {
	for ; iv != nil; iv = iv.Next {
		if !fn(iv) {
			continue
		}
		for _, id := range iv.ChildOrder {
			iv.Children[id].Walk(fn)
		}
	}
}

// Nodes returns the CFG nodes covered by the chain starting at iv. For a
// chain produced by Decompose over a whole graph, every node appears exactly
// once.
func (iv *Interval) Nodes() []*cfg.Node {
	var nodes []*cfg.Node
	for ; iv != nil; iv = iv.Next {
		nodes = append(nodes, iv.Root)
		if iv.Kind != Fork {
			continue
		}
		if iv.Special {
			nodes = append(nodes, iv.SpecialNodes...)
		} else {
			for _, id := range iv.ChildOrder {
				nodes = append(nodes, iv.Children[id].Nodes()...)
			}
		}
		if iv.Join != nil {
			nodes = append(nodes, iv.Join)
		}
	}
	return nodes
}

func (iv *Interval) String() string {
	var sb strings.Builder
	iv.dump(&sb, "")
	return sb.String()
}

func (iv *Interval) dump(sb *strings.Builder, indent string) {
	for ; iv != nil; iv = iv.Next {
		sb.WriteString(indent)
		sb.WriteString(iv.Kind.String())
		sb.WriteString(" ")
		sb.WriteString(iv.Root.String())
		if iv.Kind == Fork {
			if iv.Special {
				sb.WriteString(" special")
			}
			if !iv.Valid {
				sb.WriteString(" invalid")
			}
			if iv.IPD != nil {
				fmt.Fprintf(sb, " ipd=%s", iv.IPD)
			}
			if iv.Join != nil {
				fmt.Fprintf(sb, " join=%s", iv.Join)
			}
		}
		sb.WriteString("\n")

		if iv.Special {
			names := make([]string, len(iv.SpecialNodes))
			for i, n := range iv.SpecialNodes {
				names[i] = n.String()
			}
			fmt.Fprintf(sb, "%s  span: %s\n", indent, strings.Join(names, " "))
			continue
		}
		for i, b := range iv.Branches {
			child := iv.Children[b.ID()]
			if child == nil {
				continue
			}
			label := "true"
			if i == 1 {
				label = "false"
			}
			fmt.Fprintf(sb, "%s  %s:\n", indent, label)
			child.dump(sb, indent+"    ")
		}
	}
}
