// Package ingest implements raw capture and loading of canonical events.
//
// Every record from any source is captured exactly as received before
// anything else happens, and a captured record is never retracted. The
// loader then cleans the transformer's output and inserts it keyed by
// url: the first write for a url wins and later ones are reported as
// duplicates.
//
// Each record is loaded in its own transaction, so one bad record never
// rolls back its siblings. Raw rows whose load did not finish stay marked
// unprocessed and are replayed by the next batch run.
//
// The service layer depends on the Repository interface defined in
// repository.go. It never imports database/sql directly.
package ingest
