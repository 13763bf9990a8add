// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package scheduler re-invokes the mission machine when timers come due.

# Queue

[Queue] keeps one row per (post, timer kind) in scheduled_job. The timer
coordinator calls ScheduleAt when a timer starts or resumes and Cancel when it
pauses or ends. Rescheduling an id moves its deadline and resets its attempts.

# Worker

[Worker] polls for due jobs, leases them, and calls Expire on the machine.
Expire is a no-op when the timer was paused, ended or moved, so duplicate and
late deliveries are harmless. Failed jobs are retried with a doubling delay up
to MaxAttempts, then dropped.

# Sweep

[Sweeper] reads next_deadline from the mission records directly. It is the
fallback when a job was lost, and backs POST /internal/sweep and the sweep
CLI command.
*/
package scheduler
