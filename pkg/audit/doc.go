// Package audit records who changed what in mediagate.
//
// Services emit an AuditEvent after every successful mutation that touches
// authorization state: access grants, workflow transitions, role and
// permission edits, completed and refunded orders, shares and invites.
// Audit delivery never fails the business operation; a Logger error is the
// caller's to log and drop.
//
// Two implementations ship with the package: LogrusLogger writes one
// structured log line per event, and MemoryLogger keeps events in memory for
// tests and the development server. MultiLogger fans an event out to several.
package audit
