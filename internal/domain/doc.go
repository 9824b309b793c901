// Package domain defines the core types shared by the event ETL pipeline.
//
// Types in this package are pure value objects with no behavior beyond
// small pure helpers, no database dependencies, and no HTTP concerns. They
// are the shared language between extractors, the transformer, the loader,
// the orchestrator, and the query service.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB tags are allowed (they're metadata, not behavior)
//   - Constants and enums belong here
package domain
