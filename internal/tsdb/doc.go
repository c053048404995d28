// Package tsdb implements the scopedb store: per-channel time-series with
// precomputed zoom levels, answering bounded-size range queries over
// unbounded sample history.
//
// Architecture:
//
//	┌──────────┐     ┌──────────┐     ┌──────────┐
//	│ Registry │────▶│  Series  │◀────│ Planner  │
//	│ (names)  │     │ (pyramid)│     │ (query)  │
//	└──────────┘     └──────────┘     └──────────┘
//
// The DB facade ties these together behind the in-process call interface:
// append, range query, summary, channel listing. Producers append through
// the write path (channels created on first use); consumers query through
// the read path (unknown channels fail instead of springing into
// existence). Memory growth is unbounded here; retention is the concern
// of an external trimmer consuming the snapshot enumeration.
package tsdb
