// Package serialdmx drives a DMX/RDM bus through a plain USB RS485
// serial adapter.
//
// The adapter's UART runs at the DMX line settings (250kbaud 8N2) and
// the break is generated with the UART's own break signalling. Timing
// above the byte level (mark-after-break, inter-frame gap, response
// windows) is software-paced, so USB latency sets the floor on
// response timeouts — configure the controller's response timeout
// well above the 2.8ms line minimum.
//
// Auto-direction RS485 transceivers are assumed: the hardware flips
// between drive and listen on its own, and SetMode only clears stale
// input on turnaround. Enttec Pro widgets are NOT plain adapters; use
// the enttec package for those.
package serialdmx
