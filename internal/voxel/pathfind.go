package voxel

import (
	"container/heap"
	"math"
)

// ShortestPath finds the shortest 8-connected path from start to end whose
// voxels all belong to allowed (start and end are always allowed). Steps cost
// 1 (axial) or √2 (diagonal). It uses A* with a Euclidean heuristic and breaks
// ties by raster order, so the result is deterministic.
// Returns the path including both endpoints and true, or nil and false if end
// is unreachable.
func ShortestPath(allowed Set, start, end Voxel) ([]Voxel, bool) {
	if start == end {
		return []Voxel{start}, true
	}

	passable := func(v Voxel) bool {
		return v == end || v == start || allowed.Has(v)
	}

	// g-score: cost from start to this node
	gScore := map[Voxel]float64{start: 0}

	// came-from: for path reconstruction
	cameFrom := make(map[Voxel]Voxel)

	pq := &pathQueue{}
	heap.Init(pq)
	heap.Push(pq, &pathItem{v: start, f: euclidean(start, end)})

	visited := make(map[Voxel]bool)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pathItem)
		cur := item.v

		if cur == end {
			var path []Voxel
			n := end
			for {
				path = append(path, n)
				prev, ok := cameFrom[n]
				if !ok {
					break
				}
				n = prev
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path, true
		}

		if visited[cur] {
			continue
		}
		visited[cur] = true

		curG := gScore[cur]

		for _, nb := range Neighbors(cur) {
			if visited[nb] || !passable(nb) {
				continue
			}
			tentativeG := curG + StepCost(cur, nb)
			prevG, exists := gScore[nb]
			if !exists || tentativeG < prevG-1e-12 {
				gScore[nb] = tentativeG
				cameFrom[nb] = cur
				heap.Push(pq, &pathItem{v: nb, f: tentativeG + euclidean(nb, end)})
			}
		}
	}

	return nil, false
}

func euclidean(a, b Voxel) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// pathItem is a node in the A* priority queue.
type pathItem struct {
	v     Voxel
	f     float64
	index int
}

// pathQueue implements heap.Interface for A* search.
type pathQueue []*pathItem

func (pq pathQueue) Len() int { return len(pq) }
func (pq pathQueue) Less(i, j int) bool {
	if math.Abs(pq[i].f-pq[j].f) > 1e-12 {
		return pq[i].f < pq[j].f
	}
	return Less(pq[i].v, pq[j].v)
}
func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*pathItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}
