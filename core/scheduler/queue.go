package scheduler

import "container/heap"

// readyQueue is a min-heap of node indices, so ready nodes are dispatched in
// insertion order regardless of when they became ready.
type readyQueue []int

func (queue readyQueue) Len() int           { return len(queue) }
func (queue readyQueue) Less(i, j int) bool { return queue[i] < queue[j] }
func (queue readyQueue) Swap(i, j int)      { queue[i], queue[j] = queue[j], queue[i] }

func (queue *readyQueue) Push(value any) { *queue = append(*queue, value.(int)) }

func (queue *readyQueue) Pop() any {
	old := *queue
	last := old[len(old)-1]
	*queue = old[:len(old)-1]
	return last
}

func (queue *readyQueue) push(index int) { heap.Push(queue, index) }

func (queue *readyQueue) pop() int { return heap.Pop(queue).(int) }
