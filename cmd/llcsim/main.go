// Package main provides the llcsim command, a trace-driven simulator of a
// shared, inclusive last-level cache with MESI coherence and tree-PLRU
// replacement.
package main

func main() {
	Execute()
}
