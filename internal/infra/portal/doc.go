// Package portal drives the Moodle web interface: logging in, finding the
// attendance session that is currently open and recording presence on it.
//
// All markup knowledge lives behind Contract and the small extraction helpers
// in this package, so a change in the portal's HTML is fixed in one place.
// Failures are wrapped with the markers from the attendance domain package so
// the orchestrator can classify them without inspecting messages.
package portal
