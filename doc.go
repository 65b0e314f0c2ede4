// Package amorph provides a parallel runtime for amorphous data-parallel
// computation on irregular graphs. While Go is primarily designed for
// concurrent programming, it is also usable to some extent for parallel
// programming, and this library provides the work-distribution substrate
// needed to turn otherwise sequential graph algorithms into parallel
// algorithms: a family of composable thread-safe worklists, per-worker
// storage, and loop drivers that deliver work items to a fixed pool of
// workers while preserving application-supplied ordering heuristics and
// supporting speculative abort and retry.
//
// Amorph provides the following subpackages:
//
// amorph/worklists provides the worklist abstraction and its concrete
// implementations: spinlocked LIFO, FIFO, and priority-queue adaptors,
// a chunked FIFO with per-worker staging, a priority-bucketed worklist
// ordered by an integer metric, and a small per-worker cache that can be
// placed in front of any other worklist.
//
// amorph/speculative provides the ForEach loop driver. Operators run
// speculatively: pushes issued through the supplied context become visible
// only when the operator returns normally, and an aborted operator has its
// item re-queued for retry.
//
// amorph/parallel provides non-speculative bulk operators, most notably
// DoAll, which maps an operator over a set of items exactly once with
// optional work stealing between workers.
//
// amorph/sequential provides sequential implementations of the loop
// drivers, for testing and debugging purposes.
//
// amorph/perworker provides a value replicated one-per-worker with an
// optional cross-worker merge on teardown.
//
// amorph/spinlock provides the one-word spin lock used throughout the
// worklist implementations, together with a no-op specialization that lets
// the same generic container code serve as the single-threaded chunk of
// the chunked FIFO.
//
// amorph/statistic collects per-loop execution statistics, and amorph/bag
// provides an unordered concurrent insert bag.
//
// amorph/spanning, amorph/maxflow, and amorph/sta are applications written
// against the substrate: spanning-forest construction, preflow-push
// maximum flow, and static timing analysis.
//
// Amorph has been influenced by ideas from Cilk, Threading Building
// Blocks, and the Galois system for amorphous data-parallelism. See
// http://iss.ices.utexas.edu/?p=projects/galois for background on the
// programming model.
package amorph
