// Package ir provides the shared value types for animlist.
//
// This package contains type definitions and their serialization only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// the list model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - KeyedItem values are never mutated by the engine, only reordered or copied
//   - Item values must be comparable; equality drives change detection
//   - Frames carry a logical sequence number (Seq), never wall-clock timestamps
//   - All JSON tags use snake_case
package ir
