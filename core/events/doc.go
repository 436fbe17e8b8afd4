// Package events defines the dispatcher notifications emitted on the event bus.
//
// Available event types:
//   - TransferMultiSent: summary of a committed batch
//   - TransferFailed: one recipient failed in a best-effort batch
//   - TransfersReverted: a revert-on-fail batch was rolled back
//   - ConfigChanged: an owner changed the dispatcher configuration
package events
