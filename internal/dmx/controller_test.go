package dmx

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strandlab/dmx-rdm-core/internal/rdm"
)

// busTransport emulates a DMX/RDM bus at the byte level: frames written to
// it are decoded, responders react with real wire bytes, and overlapping
// discovery responses are ORed together the way an idle-high line garbles
// them.
type busTransport struct {
	mode    Mode
	frames  [][]byte
	pending []byte

	responders map[rdm.UID]*busResponder

	modeErr error
	sendErr error
	closed  bool
}

type busResponder struct {
	muted bool
}

func newBusTransport(uids ...rdm.UID) *busTransport {
	bt := &busTransport{responders: make(map[rdm.UID]*busResponder)}
	for _, u := range uids {
		bt.responders[u] = &busResponder{}
	}
	return bt
}

func (b *busTransport) SetMode(mode Mode) error {
	if b.modeErr != nil {
		return b.modeErr
	}
	b.mode = mode
	return nil
}

func (b *busTransport) SendFrame(data []byte) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.frames = append(b.frames, append([]byte{}, data...))

	if len(data) == 0 || data[0] != rdm.StartCode {
		return nil
	}
	req, err := rdm.Decode(data)
	if err != nil {
		return nil
	}
	b.react(req)
	return nil
}

// react produces the bus reaction to an RDM request.
func (b *busTransport) react(req rdm.Packet) {
	switch {
	case req.CommandClass == rdm.DiscoveryCommand && req.ParameterID == rdm.ParamDiscUniqueBranch:
		lower, _ := rdm.UIDFromBytes(req.ParameterData[0:6])
		upper, _ := rdm.UIDFromBytes(req.ParameterData[6:12])
		var replies [][]byte
		for uid, r := range b.responders {
			if !r.muted && uid >= lower && uid <= upper {
				replies = append(replies, rdm.EncodeDiscoveryResponse(uid))
			}
		}
		if len(replies) == 0 {
			return
		}
		merged := make([]byte, len(replies[0]))
		copy(merged, replies[0])
		for _, r := range replies[1:] {
			for i := range merged {
				merged[i] |= r[i]
			}
		}
		b.pending = merged

	case req.CommandClass == rdm.DiscoveryCommand && req.ParameterID == rdm.ParamDiscUnMute:
		for _, r := range b.responders {
			r.muted = false
		}
		// Broadcast: no reply.

	case req.CommandClass == rdm.DiscoveryCommand && req.ParameterID == rdm.ParamDiscMute:
		r, ok := b.responders[req.Destination]
		if !ok {
			return
		}
		r.muted = true
		b.reply(rdm.Packet{
			Destination:       req.Source,
			Source:            req.Destination,
			TransactionNumber: req.TransactionNumber,
			PortID:            rdm.ResponseAck,
			CommandClass:      rdm.DiscoveryCommandResponse,
			ParameterID:       rdm.ParamDiscMute,
			ParameterData:     []byte{0x00, 0x00},
		})

	case req.CommandClass == rdm.GetCommand:
		if _, ok := b.responders[req.Destination]; !ok {
			return
		}
		b.reply(rdm.Packet{
			Destination:       req.Source,
			Source:            req.Destination,
			TransactionNumber: req.TransactionNumber,
			PortID:            rdm.ResponseAck,
			CommandClass:      rdm.GetCommandResponse,
			ParameterID:       req.ParameterID,
			ParameterData:     []byte{0x01, 0x90},
		})
	}
}

func (b *busTransport) reply(p rdm.Packet) {
	encoded, err := p.Encode()
	if err != nil {
		panic(err)
	}
	b.pending = encoded
}

func (b *busTransport) Receive(_ time.Duration) ([]byte, error) {
	if len(b.pending) == 0 {
		return nil, ErrTimeout
	}
	out := b.pending
	b.pending = nil
	return out, nil
}

func (b *busTransport) Flush() error { return nil }

func (b *busTransport) Close() error {
	b.closed = true
	return nil
}

// newTestController wires a controller over bt with sleeps recorded
// instead of slept.
func newTestController(bt *busTransport) (*Controller, *[]time.Duration) {
	c := NewController(bt, Config{SourceUID: rdm.NewUID(0x7FF0, 0x00000001)})
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return c, &sleeps
}

func TestSendUniverse(t *testing.T) {
	bt := newBusTransport()
	c, _ := newTestController(bt)

	frame, err := NewFrame([]byte{0xFF, 0x00, 0x80})
	if err != nil {
		t.Fatalf("NewFrame() error: %v", err)
	}
	if err := c.SendUniverse(context.Background(), frame); err != nil {
		t.Fatalf("SendUniverse() error: %v", err)
	}

	if len(bt.frames) != 1 {
		t.Fatalf("frames sent = %d, want 1", len(bt.frames))
	}
	if !bytes.Equal(bt.frames[0], []byte{0x00, 0xFF, 0x00, 0x80}) {
		t.Errorf("frame bytes = %x", bt.frames[0])
	}
	if bt.mode != Transmit {
		t.Errorf("mode = %v, want Transmit", bt.mode)
	}
}

// Back-to-back sends must be separated by the inter-frame gap.
func TestSendUniverseInterFrameGap(t *testing.T) {
	bt := newBusTransport()
	c, sleeps := newTestController(bt)

	frame, _ := NewFrame([]byte{0x01})
	for i := 0; i < 2; i++ {
		if err := c.SendUniverse(context.Background(), frame); err != nil {
			t.Fatalf("SendUniverse() error: %v", err)
		}
	}

	var gapWait time.Duration
	for _, d := range *sleeps {
		gapWait += d
	}
	if gapWait == 0 {
		t.Error("no gap enforced between consecutive frames")
	}
	if gapWait > MinBreakToBreak {
		t.Errorf("gap wait %v exceeds the configured gap %v", gapWait, MinBreakToBreak)
	}
}

func TestSendUniverseModeFailure(t *testing.T) {
	bt := newBusTransport()
	bt.modeErr = ErrModeNotSupported
	c, _ := newTestController(bt)

	frame, _ := NewFrame([]byte{0x01})
	if err := c.SendUniverse(context.Background(), frame); !errors.Is(err, ErrModeNotSupported) {
		t.Fatalf("SendUniverse() error = %v, want ErrModeNotSupported", err)
	}
}

func TestSendRDMRequestRoundTrip(t *testing.T) {
	target := rdm.NewUID(0x02B0, 0x17)
	bt := newBusTransport(target)
	c, _ := newTestController(bt)

	resp, err := c.SendRDMRequest(context.Background(), rdm.Packet{
		Destination:  target,
		CommandClass: rdm.GetCommand,
		ParameterID:  rdm.ParamDeviceInfo,
	})
	if err != nil {
		t.Fatalf("SendRDMRequest() error: %v", err)
	}
	if resp.Source != target {
		t.Errorf("response source = %s, want %s", resp.Source, target)
	}
	if resp.CommandClass != rdm.GetCommandResponse {
		t.Errorf("response class = %#02x, want GetCommandResponse", byte(resp.CommandClass))
	}
	if bt.mode != Receive {
		t.Errorf("mode after request = %v, want Receive", bt.mode)
	}
}

// Silence within the timeout is the ErrNoResponse outcome, not a decode
// error or transport failure.
func TestSendRDMRequestNoResponder(t *testing.T) {
	bt := newBusTransport() // empty bus
	c, _ := newTestController(bt)

	_, err := c.SendRDMRequest(context.Background(), rdm.Packet{
		Destination:  rdm.NewUID(0x02B0, 0x17),
		CommandClass: rdm.GetCommand,
		ParameterID:  rdm.ParamDeviceInfo,
	})
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("SendRDMRequest() error = %v, want ErrNoResponse", err)
	}
}

// A present-but-garbled reply surfaces the decode error, distinct from
// ErrNoResponse.
func TestSendRDMRequestMalformedReply(t *testing.T) {
	target := rdm.NewUID(0x02B0, 0x17)
	bt := newBusTransport() // nobody home, but noise on the line
	c, _ := newTestController(bt)

	// Plant a truncated reply so the receive window returns a corrupted
	// packet instead of silence.
	bt.pending = []byte{rdm.StartCode, rdm.SubStartCode, 0xFF, 0x00}

	_, err := c.SendRDMRequest(context.Background(), rdm.Packet{
		Destination:  target,
		CommandClass: rdm.GetCommand,
		ParameterID:  rdm.ParamDeviceInfo,
	})
	if errors.Is(err, ErrNoResponse) || err == nil {
		t.Fatalf("SendRDMRequest() error = %v, want a decode error", err)
	}
	if !errors.Is(err, rdm.ErrLengthMismatch) && !errors.Is(err, rdm.ErrTruncated) &&
		!errors.Is(err, rdm.ErrChecksumMismatch) {
		t.Errorf("SendRDMRequest() error = %v, want an rdm decode error", err)
	}
}

// Broadcast requests are never answered; they complete with ErrNoResponse
// after the turnaround wait without switching to receive.
func TestSendRDMRequestBroadcast(t *testing.T) {
	bt := newBusTransport(rdm.NewUID(0x02B0, 0x17))
	c, sleeps := newTestController(bt)

	_, err := c.SendRDMRequest(context.Background(), rdm.Packet{
		Destination:  rdm.BroadcastAll,
		CommandClass: rdm.SetCommand,
		ParameterID:  rdm.ParamIdentifyDevice,
		ParameterData: []byte{
			0x01,
		},
	})
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("broadcast error = %v, want ErrNoResponse", err)
	}
	if bt.mode != Transmit {
		t.Errorf("mode = %v, want Transmit (no listen on broadcast)", bt.mode)
	}

	var total time.Duration
	for _, d := range *sleeps {
		total += d
	}
	if total < BroadcastTurnaround {
		t.Errorf("turnaround wait = %v, want at least %v", total, BroadcastTurnaround)
	}
}

// Full end-to-end discovery through the controller and the byte-level
// simulated bus: every responder found exactly once, all muted afterwards.
func TestControllerDiscover(t *testing.T) {
	uids := []rdm.UID{
		rdm.NewUID(0x02B0, 0x00000017),
		rdm.NewUID(0x02B0, 0x00fa1afe),
		rdm.NewUID(0x7FF0, 0x00000001),
	}
	bt := newBusTransport(uids...)
	c, _ := newTestController(bt)

	report, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	seen := make(map[rdm.UID]int)
	for _, u := range report.UIDs {
		seen[u]++
	}
	for _, want := range uids {
		if seen[want] != 1 {
			t.Errorf("UID %s discovered %d times, want exactly once", want, seen[want])
		}
	}
	if len(report.UIDs) != len(uids) {
		t.Errorf("Discover() = %v, want %d UIDs", report.UIDs, len(uids))
	}
	if report.Probes == 0 {
		t.Error("report.Probes = 0, want probe count from a populated bus")
	}

	for uid, r := range bt.responders {
		if !r.muted {
			t.Errorf("responder %s left unmuted after discovery", uid)
		}
	}
}

func TestControllerDiscoverEmptyBus(t *testing.T) {
	bt := newBusTransport()
	c, _ := newTestController(bt)

	report, err := c.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(report.UIDs) != 0 {
		t.Errorf("Discover() = %v, want none", report.UIDs)
	}
}

func TestControllerClose(t *testing.T) {
	bt := newBusTransport()
	c, _ := newTestController(bt)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !bt.closed {
		t.Error("transport not closed")
	}
}
