/*
Package action implements long-running operations with streaming feedback and
cooperative cancellation. A Client submits goals on {channel}/goal and gets a
Handle per goal; the Server runs each goal's handler in its own goroutine,
streams progress on {channel}/fb/{goal_id}, honors cancel requests from
{channel}/cancel through the handler's context, and terminates every goal
with exactly one result on {channel}/res/{goal_id}.

A goal moves Accepted -> Executing -> one of Succeeded, Aborted or Canceled,
and never leaves a terminal state.
*/
package action
