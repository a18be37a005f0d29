// Command names-loader ingests the yearly first-name files and the census
// surname file into PostgreSQL (or a local SQLite file), assigning per-year
// and cumulative ranks.
//
// Usage:
//
//	names-loader firstnames   load data/firstnames/*.csv plus cumulative year-0 rows
//	names-loader surnames     rebuild the surnames table from the census file
//	names-loader migrate      apply schema migrations only
//	names-loader version      print build information
//
// Exit codes: 0 = success (skipped rows included), 1 = fatal error.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
