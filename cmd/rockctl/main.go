// Command rockctl administers a Rock of Ages data directory directly,
// without going through the HTTP API.
//
// Usage:
//
//	rockctl seed
//	rockctl inspect --json
//	rockctl types add Fossil
//	rockctl --db-driver badger reindex
//
// Commands open the store themselves, so stop the server before running
// reindex against the same data path; the search index is single-writer.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
