// Package settings models the bounded per-user settings map.
//
// A settings map holds at most [MaxEntries] values. Keys are canonical [Index]
// strings so that the integer 2 and the string "2" name the same entry. Values
// are a tagged union of structured JSON kinds; scalars are rejected at the
// boundary.
//
// The package is storage-agnostic. Credential stores persist [Value.Kind] and
// [Value.JSON] and rebuild values with [FromStored].
package settings
