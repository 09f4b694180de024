package pathfind

import "container/heap"

// openNode is a cell waiting in the open set.
type openNode struct {
	cell     int
	priority int // distance + heuristic
	seq      int // insertion order, breaks priority ties
	index    int // position in the heap
}

// openSet is a min-heap of cells by (priority, seq). queued maps a cell to
// its node while the cell is queued.
type openSet struct {
	nodes  []*openNode
	queued map[int]*openNode
	seq    int
}

func (s *openSet) reset(n int) {
	s.nodes = s.nodes[:0]
	if s.queued == nil {
		s.queued = make(map[int]*openNode, n)
	} else {
		clear(s.queued)
	}
	s.seq = 0
}

func (s *openSet) push(cell, priority int) {
	heap.Push(s, &openNode{cell: cell, priority: priority, seq: s.seq})
	s.seq++
}

// update queues cell or lowers its priority in place. A requeued cell keeps
// its original insertion order.
func (s *openSet) update(cell, priority int) {
	if n, ok := s.queued[cell]; ok {
		n.priority = priority
		heap.Fix(s, n.index)
		return
	}
	s.push(cell, priority)
}

func (s *openSet) Len() int { return len(s.nodes) }

func (s *openSet) Less(i, j int) bool {
	a, b := s.nodes[i], s.nodes[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

func (s *openSet) Swap(i, j int) {
	s.nodes[i], s.nodes[j] = s.nodes[j], s.nodes[i]
	s.nodes[i].index = i
	s.nodes[j].index = j
}

func (s *openSet) Push(x any) {
	n := x.(*openNode)
	n.index = len(s.nodes)
	s.nodes = append(s.nodes, n)
	s.queued[n.cell] = n
}

func (s *openSet) Pop() any {
	last := len(s.nodes) - 1
	n := s.nodes[last]
	s.nodes[last] = nil
	s.nodes = s.nodes[:last]
	delete(s.queued, n.cell)
	return n
}
