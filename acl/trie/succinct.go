package trie

import "math/bits"

// succinctSet is a static set of byte strings encoded as a LOUDS trie.
//
// labelBitmap describes the tree shape in BFS order: a 0 bit per outgoing
// edge of a node followed by a 1 bit closing the node. labels holds the
// edge bytes in the same order, and leaves marks which node ids complete a
// stored key. ranks/selects are precomputed over labelBitmap so both
// "count zeros up to i" (edge index -> child node id) and "position of the
// k-th one" (node id -> first edge index) are O(1).
type succinctSet struct {
	leaves      []uint64
	labelBitmap []uint64
	labels      []byte
	ranks       []int32
	selects     []int32
}

// newSuccinctSet builds the trie from sorted, deduplicated keys by BFS:
// each queue element is a (start, end, column) slice of the key range
// sharing a prefix of length column.
func newSuccinctSet(keys []string) *succinctSet {
	ss := &succinctSet{}
	if len(keys) == 0 {
		return ss
	}

	lIdx := 0
	type queueElt struct{ s, e, col int }
	queue := []queueElt{{0, len(keys), 0}}
	for i := 0; i < len(queue); i++ {
		elt := queue[i]
		if elt.col == len(keys[elt.s]) {
			// A key terminates at this node; sorted order puts it first
			// in the range.
			elt.s++
			setBit(&ss.leaves, i, 1)
		}
		for j := elt.s; j < elt.e; {
			frm := j
			for ; j < elt.e && keys[j][elt.col] == keys[frm][elt.col]; j++ {
			}
			queue = append(queue, queueElt{frm, j, elt.col + 1})
			ss.labels = append(ss.labels, keys[frm][elt.col])
			setBit(&ss.labelBitmap, lIdx, 0)
			lIdx++
		}
		setBit(&ss.labelBitmap, lIdx, 1)
		lIdx++
	}

	ss.buildIndex()
	return ss
}

// has walks the trie over a reversed domain key. Marker labels short-cut
// the walk: prefixLabel accepts any remaining input, rootLabel accepts
// when the walk sits on a label boundary ('.') or the input is spent.
func (ss *succinctSet) has(key string) bool {
	var nodeID, bmIdx int
	for i := 0; i < len(key); i++ {
		c := key[i]
		for ; ; bmIdx++ {
			if getBit(ss.labelBitmap, bmIdx) != 0 {
				// Node closed without an edge for c.
				return false
			}
			label := ss.labels[bmIdx-nodeID]
			if label == prefixLabel {
				return true
			}
			if label == rootLabel && c == '.' {
				next := countZeros(ss.labelBitmap, ss.ranks, bmIdx+1)
				if getBit(ss.leaves, next) != 0 {
					return true
				}
			}
			if label == c {
				break
			}
		}
		nodeID = countZeros(ss.labelBitmap, ss.ranks, bmIdx+1)
		bmIdx = selectIthOne(ss.selects, nodeID-1) + 1
	}
	if getBit(ss.leaves, nodeID) != 0 {
		return true
	}
	// Input spent mid-node: a marker edge still means acceptance.
	for ; ; bmIdx++ {
		if getBit(ss.labelBitmap, bmIdx) != 0 {
			return false
		}
		label := ss.labels[bmIdx-nodeID]
		if label == prefixLabel || label == rootLabel {
			return true
		}
	}
}

func (ss *succinctSet) buildIndex() {
	ss.ranks = make([]int32, 1, len(ss.labelBitmap)+1)
	var total int32
	for _, word := range ss.labelBitmap {
		total += int32(bits.OnesCount64(word))
		ss.ranks = append(ss.ranks, total)
	}
	ss.selects = make([]int32, 0, total)
	for wordIdx, word := range ss.labelBitmap {
		for word != 0 {
			ss.selects = append(ss.selects, int32(wordIdx<<6+bits.TrailingZeros64(word)))
			word &= word - 1
		}
	}
}

func setBit(bm *[]uint64, i int, v uint64) {
	for i>>6 >= len(*bm) {
		*bm = append(*bm, 0)
	}
	(*bm)[i>>6] |= v << uint(i&63)
}

func getBit(bm []uint64, i int) uint64 {
	if i>>6 >= len(bm) {
		return 0
	}
	return bm[i>>6] & (1 << uint(i&63))
}

// countZeros counts 0 bits in bm[0:i] via the rank table.
func countZeros(bm []uint64, ranks []int32, i int) int {
	ones := int(ranks[i>>6])
	if off := uint(i & 63); off != 0 {
		ones += bits.OnesCount64(bm[i>>6] & (1<<off - 1))
	}
	return i - ones
}

// selectIthOne returns the position of the i-th (0-based) 1 bit.
func selectIthOne(selects []int32, i int) int {
	return int(selects[i])
}
