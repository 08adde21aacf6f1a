// Package events defines the mixing related events emitted on the event bus.
//
// Available event types:
//   - ChannelEvent: a channel was switched on, switched off or failed
//   - JobEvent: a mix job changed state
//   - InventoryEvent: an ingredient level changed
package events
