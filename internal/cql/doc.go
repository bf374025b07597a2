// Package cql renders native statements for the wide-column store.
//
// Statements are built from pre-compiled WHERE fragments and argument lists;
// values are always bound through ? placeholders and never interpolated.
// Identifiers are left bare when CQL would read them unchanged and
// double-quoted otherwise.
package cql
