// Package types defines the core data types shared across the scopedb
// storage system: samples, aggregate buckets, and time spans.
//
// Types in this package are plain data carriers with no storage behavior;
// the series package owns the zoom-level pyramid built from them.
package types
