// Package filter compiles SQL-flavored filter strings into native query
// fragments with positional placeholders.
//
// A filter such as
//
//	(age >= 21) AND (name STARTS WITH 'Jo' OR id IN (:a, :b))
//
// is tokenized, parsed into a Node tree and rendered back in source order.
// Every comparison value is converted to its column's native type by the
// marshaller and bound as a parameter; the rendered text only ever carries
// field references, operators, grouping and '?' placeholders.
//
// Field names resolve case-insensitively against a table's columns. Unknown
// fields, malformed operators, unbalanced parentheses and trailing text are
// COMPILE_ERRORs.
//
// Server-side filters (authorization constraints) are rendered to filter text
// by RenderServerFilter and always conjoined with the client filter.
package filter
