// Package cortex shares one fixed-size value between processes on the same
// host through a System V shared memory segment guarded by a pluggable
// cross-process lock.
//
// A process creates the segment with New (or a Builder) and publishes the
// key; other processes join with Attach. Reads and writes copy the whole
// value inside the lock's exclusive section. The creating handle is the
// owner and removes the segment on Close; a process recovering from a
// crashed owner calls New with the same key and forceOwnership set to take
// the segment over.
//
// Example usage:
//
//	type Counter struct{ Hits, Misses uint64 }
//
//	seg, err := cortex.New(ctx, cortex.Key(4242), Counter{}, false, semaphore.New(semaphore.Settings{}), nil)
//	if err != nil {
//		return err
//	}
//	defer seg.Close()
//	_ = seg.Update(func(c *Counter) { c.Hits++ })
//
// The value type must not contain pointers, slices, strings, maps,
// interfaces, channels or funcs.
package cortex
