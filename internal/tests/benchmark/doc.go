// Package benchmark provides performance benchmarks for syncmesh.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Run with specific subscriber counts:
//
//	go test -bench=BenchmarkCommitFanOut -benchmem -benchtime=10s ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
