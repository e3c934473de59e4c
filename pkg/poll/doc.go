// Package poll checks the status of submitted tasks and collects the results
// of those that are ready.
//
// A task moves through three states:
//
//	submitted -> ready    status code 0 or 3; its result is collected
//	submitted -> dropped  any other code, a failed status check, or a failed
//	                      result fetch on the final sweep
//
// By default the poller makes a single sweep over the pending set: every
// task is removed after its status check, whatever the outcome. With
// Config.MaxSweeps above one, tasks that are not ready are put back and
// checked again after Config.SweepInterval.
package poll
