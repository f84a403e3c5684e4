package datagen

import "iter"

// Batches returns a lazy sequence of batches holding count items in total,
// each batch at most size long. build receives a 1-based sequence number.
// A count of zero yields no batches. The yielded slice is reused between
// iterations; callers that keep a batch must copy it.
func Batches[T any](count, size int, build func(seq int) T) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		if count <= 0 {
			return
		}
		if size < 1 {
			size = 1
		}

		batch := make([]T, 0, min(size, count))
		for seq := 1; seq <= count; seq++ {
			batch = append(batch, build(seq))
			if len(batch) == size || seq == count {
				if !yield(batch) {
					return
				}
				batch = batch[:0]
			}
		}
	}
}

// Batcher accumulates items into fixed-size batches when items cannot be
// produced by a pure builder.
type Batcher[T any] struct {
	size  int
	items []T
}

// NewBatcher creates a Batcher that reports full at size items.
func NewBatcher[T any](size int) *Batcher[T] {
	if size < 1 {
		size = 1
	}
	return &Batcher[T]{
		size:  size,
		items: make([]T, 0, size),
	}
}

// Add appends an item and reports whether the batch is full.
func (b *Batcher[T]) Add(item T) bool {
	b.items = append(b.items, item)
	return len(b.items) >= b.size
}

// Len returns the number of pending items.
func (b *Batcher[T]) Len() int {
	return len(b.items)
}

// Take returns the pending items and starts a new batch.
func (b *Batcher[T]) Take() []T {
	items := b.items
	b.items = make([]T, 0, b.size)
	return items
}
