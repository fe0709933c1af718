// Package scheduler runs the two long-lived workers: the Refresher, which
// rebuilds the schedule registry from VM metadata, and the Scheduler, which
// executes the power actions that fall due in each time window.
package scheduler
