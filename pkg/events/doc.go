/*
Package events implements the Event Bus: one in-memory Bus per job,
fanning out output chunks to every live stream subscriber without ever
blocking the job runner.

A Registry holds one Bus per in-flight (or recently terminal) job. Publish
appends a chunk to the bus's buffer and forwards it to subscribers; a
subscriber whose channel is full is dropped rather than stalling the
publisher. Subscribe returns a buffered snapshot plus a live channel,
built under the same lock so the two never overlap or gap. Close ends
every subscriber's live stream once a job reaches a terminal state; the
buffer itself survives Close so late Subscribe calls still see full
history.

	bus := registry.GetOrCreate(job.ID)
	snapshot, live, cancel := bus.Subscribe()
	defer cancel()

The persisted copy of a job's output lives in the Topology Store
(AppendJobOutput); the bus is a best-effort live-streaming layer on top of
that durable record, not a replacement for it.
*/
package events
