// Package perworker provides a value replicated one per worker.
//
// A Storage hands every worker of a loop its own record, indexed by the
// explicit worker identifier that the loop drivers thread through the
// substrate. At any moment at most the owning worker mutates its record
// without synchronization; cross-worker access is only legal during the
// merge step after all workers have quiesced.
package perworker

import "fmt"

// cacheLine separates adjacent records so that workers incrementing their
// own counters do not invalidate each other's cache lines.
const cacheLine = 64

type record[T any] struct {
	value T
	_     [cacheLine]byte
}

// A Storage replicates one value of type T per worker.
//
// The mapping from worker identifier to record is stable for the lifetime
// of the Storage.
type Storage[T any] struct {
	records []record[T]
	merge   func(left, right *T)
}

// New returns a Storage with workers records, all zero values of T.
//
// The merge function, which may be nil, is invoked by Merge over pairs of
// records after the workers have stopped; it allows cross-worker cleanup
// such as flushing pending chunks or resetting cursors.
//
// New panics if workers < 1.
func New[T any](workers int, merge func(left, right *T)) *Storage[T] {
	if workers < 1 {
		panic(fmt.Sprintf("invalid number of workers: %v", workers))
	}
	return &Storage[T]{
		records: make([]record[T], workers),
		merge:   merge,
	}
}

// Get returns the record of the given worker. No two workers ever observe
// the same record.
func (s *Storage[T]) Get(worker int) *T {
	return &s.records[worker].value
}

// Workers returns the number of records.
func (s *Storage[T]) Workers() int {
	return len(s.records)
}

// Merge folds the merge function over all records, pairing record 0 with
// each of the others in turn; a Storage with a single record has it
// passed as both arguments. It must only be called after all workers
// have quiesced; accessing records through Get afterwards is undefined.
//
// Merge is a no-op when the Storage was constructed without a merge
// function.
func (s *Storage[T]) Merge() {
	if s.merge == nil {
		return
	}
	if len(s.records) == 1 {
		s.merge(&s.records[0].value, &s.records[0].value)
		return
	}
	for i := 1; i < len(s.records); i++ {
		s.merge(&s.records[0].value, &s.records[i].value)
	}
}
