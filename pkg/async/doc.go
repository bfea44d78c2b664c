// Package async runs background work without letting it crash the process.
//
// SafeGo starts a goroutine with a timeout and panic recovery. WorkerPool
// bounds concurrency for submitted tasks. Scheduler implements the delayed
// job contract used to decouple notifications from the mutation that
// triggered them:
//
//	sched := async.NewScheduler(ctx, 4, 30*time.Second)
//	defer sched.Drain(10 * time.Second)
//
//	sched.RunAfter(0, "invite email", func(ctx context.Context) error {
//		return notifier.Send(ctx, msg)
//	})
//
// Job errors are logged and dropped. Callers must never depend on a job
// having run.
package async
