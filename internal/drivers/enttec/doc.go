// Package enttec drives a DMX/RDM bus through an Enttec DMX USB Pro
// widget.
//
// Unlike a plain RS485 adapter, the widget is an active device: it
// generates all line timing (break, mark-after-break, 250kbaud pacing),
// turns the bus around for RDM responses, and exchanges framed messages
// with the host over USB serial:
//
//	0x7E <label> <length LE16> <payload> 0xE7
//
// The driver maps dmx.Transport onto those messages. RDM discovery
// requests take a dedicated label so the widget captures the unframed
// EUID response; everything the widget hears comes back in receive
// reports with a status byte prepended.
//
// The RDM firmware is required. OpenDMX hardware is a bare FTDI with
// no widget protocol — use serialdmx for that.
package enttec
