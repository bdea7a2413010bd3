// Package crawler is the mirror engine.
//
// # Architecture
//
// Engine owns a pool of workers that pull WorkItems from one Queue. For
// each item a worker:
//
//  1. fetches the URL through a Fetcher,
//  2. for HTML, resolves the charset and decodes the body to UTF-8,
//  3. walks every src/href (and CSS url()) link, resolving it against the
//     page URL or its <base>, recording it in the PathTable, and
//     enqueueing it when the depth limits and the visit filter allow,
//  4. rewrites every link to the relative path of its target,
//  5. writes the result through a Writer when the download filter allows.
//
// # Deduplication
//
// PathTable.InsertIfAbsent is the only place that decides whether a URL is
// new. A URL is inserted before it is enqueued, so two workers that find
// the same link at the same time cannot both enqueue it. The first insert
// also fixes the URL's depth: a URL first seen too deep to follow is not
// reconsidered when a shallower page links to it later.
//
// # Termination
//
// Queue counts queued plus in-flight items. Children are pushed before the
// parent is marked done, so the count only reaches zero when the crawl is
// complete. Workers then return and Run reports the Stats.
//
// # Failure
//
// A download that fails after all retries stops the run unless
// Policy.ContinueOnError is set. A link that cannot be resolved and a file
// that cannot be written always stop the run. Charset and markup problems
// never do.
package crawler
