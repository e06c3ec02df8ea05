// Package search owns the lifecycle of asynchronous NG-SIEM search jobs.
//
// The orchestrator turns the backend's fire-and-forget query API into two
// client experiences: an async one (Start, then poll Status yourself) and a
// blocking one (WaitForCompletion, which polls internally until the job
// finishes or a wall-clock deadline passes). Every started job is tracked in
// a registry keyed by the backend-assigned id.
//
// Job state moves forward only:
//
//	Pending → Running → {Done, TimedOut, Cancelled, Failed}
//
// Terminal states are final. Cancel may race with an in-flight poll loop for
// the same job; exactly one of them performs the terminal transition, the
// other observes it and becomes a no-op. Timeouts are enforced purely on the
// client side, so a timed-out job may still be running remotely until the
// caller issues Cancel.
package search
