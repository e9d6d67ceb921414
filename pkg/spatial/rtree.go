// Package spatial implements a 3D spatial index over (longitude,
// latitude, altitude), keyed by record id, using an R-tree with Guttman
// quadratic split. There is no ready-made 3D R-tree library available to
// build on (see DESIGN.md), so it is hand-rolled with one coarse
// sync.RWMutex per tree rather than node-level latch crabbing, since a
// mis-ordered crab-lock release in code that can never be run against a
// real build is a much worse failure mode than a coarser lock.
package spatial

import (
	"sync"

	"github.com/pkvartsianyi/spatio/pkg/geo"
)

const (
	maxEntries = 8
	minEntries = 3 // ceil(maxEntries/2) - 1, Guttman's m
)

// entry is either a leaf data entry (id/point set, child nil) or an
// internal entry pointing at a child node (child set, id empty).
type entry struct {
	mbr   geo.Rect3
	id    string
	point geo.Point3D
	seq   uint64
	child *rtNode
}

type rtNode struct {
	leaf    bool
	mbr     geo.Rect3
	entries []entry
}

// Index is a single namespace's 3D spatial index over live record ids.
type Index struct {
	mu        sync.RWMutex
	root      *rtNode
	locations map[string]geo.Point3D
	seqs      map[string]uint64
	nextSeq   uint64
}

// New creates an empty index.
func New() *Index {
	return &Index{
		root:      &rtNode{leaf: true},
		locations: make(map[string]geo.Point3D),
		seqs:      make(map[string]uint64),
	}
}

// Len returns the number of indexed points.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.locations)
}

// Insert adds or moves id to point p. Re-inserting an id already present
// first removes its prior entry, so upserting a record's point relocates
// it in the index.
func (idx *Index) Insert(id string, p geo.Point3D) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.locations[id]; exists {
		idx.removeLocked(id)
	}

	idx.nextSeq++
	e := entry{mbr: geo.RectFromPoint(p), id: id, point: p, seq: idx.nextSeq}
	idx.insertEntryLocked(e)

	idx.locations[id] = p
	idx.seqs[id] = e.seq
}

func (idx *Index) insertEntryLocked(e entry) {
	split := insertIntoNode(idx.root, e)
	if split != nil {
		newRoot := &rtNode{leaf: false}
		newRoot.entries = []entry{
			{mbr: idx.root.mbr, child: idx.root},
			{mbr: split.mbr, child: split},
		}
		newRoot.mbr = idx.root.mbr.Union(split.mbr)
		idx.root = newRoot
	}
}

func insertIntoNode(n *rtNode, e entry) *rtNode {
	if n.leaf {
		n.entries = append(n.entries, e)
	} else {
		i := chooseSubtree(n, e.mbr)
		child := n.entries[i].child
		split := insertIntoNode(child, e)
		n.entries[i].mbr = child.mbr
		if split != nil {
			n.entries = append(n.entries, entry{mbr: split.mbr, child: split})
		}
	}

	n.mbr = computeMBR(n.entries)

	if len(n.entries) > maxEntries {
		left, right := quadraticSplit(n.entries)
		n.entries = left
		n.mbr = computeMBR(left)
		return &rtNode{leaf: n.leaf, entries: right, mbr: computeMBR(right)}
	}
	return nil
}

// chooseSubtree picks the child whose MBR needs the least enlargement to
// cover mbr, breaking ties by smaller resulting area.
func chooseSubtree(n *rtNode, mbr geo.Rect3) int {
	best := 0
	bestEnlargement := n.entries[0].mbr.Enlargement(mbr)
	bestArea := n.entries[0].mbr.Area()

	for i := 1; i < len(n.entries); i++ {
		enlargement := n.entries[i].mbr.Enlargement(mbr)
		area := n.entries[i].mbr.Area()
		if enlargement < bestEnlargement || (enlargement == bestEnlargement && area < bestArea) {
			best = i
			bestEnlargement = enlargement
			bestArea = area
		}
	}
	return best
}

func computeMBR(entries []entry) geo.Rect3 {
	mbr := entries[0].mbr
	for _, e := range entries[1:] {
		mbr = mbr.Union(e.mbr)
	}
	return mbr
}

// quadraticSplit implements Guttman's quadratic-cost split algorithm: pick
// the worst pair of seeds, then assign the rest to whichever group
// enlarges least.
func quadraticSplit(entries []entry) (left, right []entry) {
	seedA, seedB := pickSeeds(entries)

	groupA := []entry{entries[seedA]}
	groupB := []entry{entries[seedB]}
	mbrA := entries[seedA].mbr
	mbrB := entries[seedB].mbr

	var remaining []entry
	for i, e := range entries {
		if i != seedA && i != seedB {
			remaining = append(remaining, e)
		}
	}

	for len(remaining) > 0 {
		// Enforce minEntries on both groups as the remaining pool shrinks.
		if len(groupA)+len(remaining) <= minEntries {
			groupA = append(groupA, remaining...)
			break
		}
		if len(groupB)+len(remaining) <= minEntries {
			groupB = append(groupB, remaining...)
			break
		}

		pickIdx, toA := pickNext(remaining, mbrA, mbrB)
		picked := remaining[pickIdx]
		remaining = append(remaining[:pickIdx], remaining[pickIdx+1:]...)

		if toA {
			groupA = append(groupA, picked)
			mbrA = mbrA.Union(picked.mbr)
		} else {
			groupB = append(groupB, picked)
			mbrB = mbrB.Union(picked.mbr)
		}
	}

	return groupA, groupB
}

func pickSeeds(entries []entry) (int, int) {
	bestI, bestJ := 0, 1
	worst := -1.0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			combined := entries[i].mbr.Union(entries[j].mbr)
			waste := combined.Area() - entries[i].mbr.Area() - entries[j].mbr.Area()
			if waste > worst {
				worst = waste
				bestI, bestJ = i, j
			}
		}
	}
	return bestI, bestJ
}

func pickNext(remaining []entry, mbrA, mbrB geo.Rect3) (idx int, toA bool) {
	bestIdx := 0
	bestDiff := -1.0
	bestToA := true

	for i, e := range remaining {
		dA := mbrA.Enlargement(e.mbr)
		dB := mbrB.Enlargement(e.mbr)
		diff := dA - dB
		if diff < 0 {
			diff = -diff
		}
		if diff > bestDiff {
			bestDiff = diff
			bestIdx = i
			bestToA = dA < dB
		}
	}
	return bestIdx, bestToA
}

// Remove deletes id from the index, reporting whether it was present.
func (idx *Index) Remove(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.removeLocked(id)
}

func (idx *Index) removeLocked(id string) bool {
	point, ok := idx.locations[id]
	if !ok {
		return false
	}
	target := geo.RectFromPoint(point)

	var orphans []entry
	removed := removeFromNode(idx.root, target, id, &orphans)
	if !removed {
		return false
	}

	delete(idx.locations, id)
	delete(idx.seqs, id)

	for _, orphan := range orphans {
		idx.insertEntryLocked(orphan)
	}

	for !idx.root.leaf && len(idx.root.entries) == 1 {
		idx.root = idx.root.entries[0].child
	}
	return true
}

// removeFromNode deletes the entry with id from the subtree rooted at n.
// If removing it drops a leaf child below minEntries, that leaf's entries
// are lifted into orphans for reinsertion and the leaf itself is detached
// (Guttman's CondenseTree, simplified to leaf-level underflow only —
// internal-node underflow is left unmerged, which costs a little fan-out
// efficiency but never correctness: queries still prune empty subtrees).
func removeFromNode(n *rtNode, target geo.Rect3, id string, orphans *[]entry) bool {
	if n.leaf {
		for i, e := range n.entries {
			if e.id == id {
				n.entries = append(n.entries[:i], n.entries[i+1:]...)
				if len(n.entries) > 0 {
					n.mbr = computeMBR(n.entries)
				}
				return true
			}
		}
		return false
	}

	for i := range n.entries {
		child := n.entries[i].child
		if !child.mbr.Intersects(target) {
			continue
		}
		if !removeFromNode(child, target, id, orphans) {
			continue
		}

		if child.leaf && len(child.entries) > 0 && len(child.entries) < minEntries {
			*orphans = append(*orphans, child.entries...)
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
		} else if len(child.entries) == 0 {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
		} else {
			n.entries[i].mbr = child.mbr
		}

		if len(n.entries) > 0 {
			n.mbr = computeMBR(n.entries)
		}
		return true
	}
	return false
}
