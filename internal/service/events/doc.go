// Package events implements the read side of the pipeline: filtered,
// paginated, full-text search over stored events plus the facet lists
// (distinct sources and categories) that drive the filter controls.
//
// Facets are computed over the whole table and are not narrowed by the
// active filters. Query never fails: when the store is unreachable or the
// events table does not exist yet, it returns an empty result.
package events
