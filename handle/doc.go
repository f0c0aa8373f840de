// Package handle maps opaque integer handles to bridge objects.
//
// Hosts that cannot hold Go pointers, such as WASM guests, refer to values,
// layouts, struct buffers, modules, and functions through uint32 handles:
//
//	table := handle.NewTable()
//
//	h := table.Insert(handle.KindValue, v)
//
//	v, err := handle.Get[*value.Value](table, h, handle.KindValue)
//
//	table.Remove(h) // releases v
//
// Handle 0 is never issued, so guests can use it as "no object". Removed
// handles are reused. Objects implementing Dropper are dropped when their
// handle is removed or when the table is closed; Value references are
// released this way.
//
// A handle may be borrowed for the duration of a native call. A borrowed
// handle cannot be removed until every borrow is returned.
package handle
