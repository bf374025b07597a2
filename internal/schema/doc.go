// Package schema holds the immutable table schema snapshots the query adapter
// compiles against.
//
// A Table is an ordered set of Column descriptors plus its primary-key subset.
// Tables are loaded from CUE definitions (LoadCUEDir, ParseCUE) or from store
// introspection, and served through a Catalog. Refresh replaces the whole
// snapshot atomically, so concurrent readers never observe a partial update.
//
// Column lookups are case-insensitive and match either the column name or its
// alias.
package schema
