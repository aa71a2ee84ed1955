// Package overview tracks model usage across one workflow run or task. The
// gateway finds the active Overview in the request context and records every
// call; the scheduler reports the totals in the run summary.
package overview
