// Package report computes summary statistics over batch log records. It
// backs the `multisend report` command and the summary API endpoint.
package report
