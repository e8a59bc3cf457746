// Package batch runs one tool operation over several inputs and reports
// per-input results, so a partial failure does not hide the successes.
package batch
