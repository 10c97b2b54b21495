package ingest

import (
	"iter"
	"slices"
)

// NumBatches reports how many batches a chunk sequence of length n splits
// into at the given batch size.
func NumBatches(n, batchSize int) int {
	if n <= 0 {
		return 0
	}
	return (n + batchSize - 1) / batchSize
}

// Plan lazily partitions chunks into contiguous batches of at most
// batchSize, then groups consecutive batches into windows of at most
// windowWidth. Windows are materialized one at a time; batches alias the
// input slice, so no chunk text is copied. Zero chunks yields zero windows.
//
// batchSize and windowWidth must be positive; config validation enforces
// this before an orchestrator is built.
func Plan(chunks []Chunk, batchSize, windowWidth int) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		window := make(Window, 0, windowWidth)
		index := 0
		for part := range slices.Chunk(chunks, batchSize) {
			window = append(window, Batch{Index: index, Chunks: part})
			index++
			if len(window) == windowWidth {
				if !yield(window) {
					return
				}
				window = make(Window, 0, windowWidth)
			}
		}
		if len(window) > 0 {
			yield(window)
		}
	}
}
