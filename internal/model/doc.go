// Package model defines the data structures shared by the mirror packages.
//
// This package contains the following main types:
//   - WorkItem: One unit of crawl work (URL plus internal/external depth)
//   - Response: The classified result of one fetch
//   - PageRecord: What happened to one URL during a run (journal row)
//   - RunSummary: Counters and timing for a whole run
package model
