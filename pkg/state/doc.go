// Package state persists document snapshots and rebuilds documents from
// them.
//
// Responsibilities:
//   - Store loads/saves one encoded snapshot for a single Ref.
//   - Codec turns a layerdoc.Chunk into bytes and back. Every store goes
//     through a codec, so a saved snapshot never aliases the caller's chunk.
//   - Repository opens documents from a Store and commits them back with an
//     optimistic ETag check.
//
// Data flow:
//
//	Document.Write -> Codec.Marshal -> Store.Save
//	Store.Load -> Codec.Unmarshal -> Document.Read
//
// Backends:
//
//	MemoryStore  in-process map, intended for tests and examples
//	RedisStore   one key per document (go-redis)
//	GormStore    one row per document (gorm, any dialector)
package state
