// Package session keeps the server-side view of each thread: its durable
// messages, the latest state document and run bookkeeping.
//
// A Registry sits on top of a Store. MemoryStore serves a single process;
// RedisStore lets several servers share threads. The registry serializes
// work per thread, so two runs on the same thread never interleave:
//
//	reg, err := session.NewRegistry(session.NewMemoryStore())
//	if err != nil {
//		return err
//	}
//	reg.StartCleanup(ctx)
//
//	lease, err := reg.Acquire(ctx, threadID)
//	if err != nil {
//		return err
//	}
//	defer lease.Release()
//	lease.Session().Runs++
//	return lease.Save(ctx)
package session
