package queue

import (
	"container/heap"
	"time"
)

// pendingItem — элемент очереди ожидания.
type pendingItem struct {
	jobID    string
	priority int
	readyAt  time.Time
	seq      uint64
}

// pendingHeap упорядочивает jobs: приоритет по убыванию,
// затем readyAt, затем порядок постановки (FIFO при равенстве).
type pendingHeap []*pendingItem

func (h pendingHeap) Len() int { return len(h) }

func (h pendingHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	if !h[i].readyAt.Equal(h[j].readyAt) {
		return h[i].readyAt.Before(h[j].readyAt)
	}
	return h[i].seq < h[j].seq
}

func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap) Push(x any) {
	*h = append(*h, x.(*pendingItem))
}

func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// popReady извлекает готовый к выдаче элемент с наивысшим приоритетом.
// Элементы с readyAt в будущем (delay, retry backoff) пропускаются
// и возвращаются в кучу. nil — ничего не готово.
func (h *pendingHeap) popReady(now time.Time) *pendingItem {
	var skipped []*pendingItem
	var found *pendingItem

	for h.Len() > 0 {
		item := heap.Pop(h).(*pendingItem)
		if !item.readyAt.After(now) {
			found = item
			break
		}
		skipped = append(skipped, item)
	}

	for _, item := range skipped {
		heap.Push(h, item)
	}
	return found
}

// remove удаляет job из кучи (например, при отмене до lease).
func (h *pendingHeap) remove(jobID string) bool {
	for i, item := range *h {
		if item.jobID == jobID {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}
