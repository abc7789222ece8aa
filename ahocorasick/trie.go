package ahocorasick

import "slices"

type nodeID uint32

const (
	// noNode marks a missing edge or link. Slot 0 of the arena is never
	// entered.
	noNode   nodeID = 0
	rootNode nodeID = 1
)

type node struct {
	next  edges
	fail  nodeID
	depth int
	// keys end exactly here. They all have length depth.
	keys []int
	// out is the nearest node on the fail chain that ends a key.
	out nodeID
	// report is the first node to report from when the automaton lands
	// here: the node itself if it ends a key, out otherwise.
	report nodeID
}

type trie struct {
	nodes      []node
	denseDepth int
	keyCount   int
	maxKeyLen  int
	skipper    *startSkipper
}

func newTrie(denseDepth int, keys [][]byte) *trie {
	total := 0
	for _, k := range keys {
		total += len(k)
	}
	t := &trie{denseDepth: denseDepth, nodes: make([]node, 0, 2+total)}
	t.add(0)
	t.add(0)
	return t
}

func (t *trie) add(depth int) nodeID {
	n := node{fail: rootNode, depth: depth}
	if depth < t.denseDepth {
		n.next.dense = make([]nodeID, 256)
	}
	t.nodes = append(t.nodes, n)
	return nodeID(len(t.nodes) - 1)
}

func (t *trie) insert(key int, k []byte) {
	if len(k) == 0 {
		return
	}
	t.keyCount++
	t.maxKeyLen = max(t.maxKeyLen, len(k))
	cur := rootNode
	for i, b := range k {
		nx := t.nodes[cur].next.get(b)
		if nx == noNode {
			nx = t.add(i + 1)
			t.nodes[cur].next.set(b, nx)
		}
		cur = nx
	}
	t.nodes[cur].keys = append(t.nodes[cur].keys, key)
}

// step follows fail links until an edge on b exists. The root has an edge
// for every byte once linked, so step always ends.
func (t *trie) step(cur nodeID, b byte) nodeID {
	for {
		if nx := t.nodes[cur].next.get(b); nx != noNode {
			return nx
		}
		cur = t.nodes[cur].fail
	}
}

// link computes fail and output links in breadth-first order, so the fail
// target of a node is always complete before the node is visited. The
// trie is a tree, so every node is queued exactly once through its parent.
func (t *trie) link() {
	queue := make([]nodeID, 0, len(t.nodes))
	root := &t.nodes[rootNode]
	root.next.each(func(_ byte, child nodeID) {
		queue = append(queue, child)
	})
	for b := range 256 {
		if root.next.get(byte(b)) == noNode {
			root.next.set(byte(b), rootNode)
		}
	}
	for _, child := range queue {
		t.finish(child)
	}

	for head := 0; head < len(queue); head++ {
		parent := queue[head]
		t.nodes[parent].next.each(func(b byte, child nodeID) {
			t.nodes[child].fail = t.step(t.nodes[parent].fail, b)
			t.finish(child)
			queue = append(queue, child)
		})
	}
}

func (t *trie) finish(id nodeID) {
	n := &t.nodes[id]
	f := &t.nodes[n.fail]
	if len(f.keys) > 0 {
		n.out = n.fail
	} else {
		n.out = f.out
	}
	n.report = n.out
	if len(n.keys) > 0 {
		n.report = id
	}
}

// edges is a full 256-entry table for shallow nodes, where branching is
// high, and a sorted label list below that.
type edges struct {
	dense   []nodeID
	labels  []byte
	targets []nodeID
}

func (e *edges) get(b byte) nodeID {
	if e.dense != nil {
		return e.dense[b]
	}
	if i, ok := slices.BinarySearch(e.labels, b); ok {
		return e.targets[i]
	}
	return noNode
}

func (e *edges) set(b byte, to nodeID) {
	if e.dense != nil {
		e.dense[b] = to
		return
	}
	i, ok := slices.BinarySearch(e.labels, b)
	if ok {
		e.targets[i] = to
		return
	}
	e.labels = slices.Insert(e.labels, i, b)
	e.targets = slices.Insert(e.targets, i, to)
}

// each calls fn for every edge in byte order.
func (e *edges) each(fn func(b byte, to nodeID)) {
	if e.dense == nil {
		for i, b := range e.labels {
			fn(b, e.targets[i])
		}
		return
	}
	for b, to := range e.dense {
		if to != noNode {
			fn(byte(b), to)
		}
	}
}
