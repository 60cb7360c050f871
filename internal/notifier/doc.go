// Package notifier delivers chat notifications on a best-effort basis.
//
// A notification is a short text sent to the single configured chat. Delivery
// is rate limited and retried with jittered exponential backoff; a final
// failure is logged and counted but never returned to the caller, so a broken
// chat transport cannot stall the poll loop.
//
// The chat is addressed by numeric id or by public @username. A single send
// attempt is bounded by the transport's HTTP client timeout; ctx is checked
// between attempts and between message chunks.
package notifier
