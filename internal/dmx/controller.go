package dmx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/strandlab/dmx-rdm-core/internal/rdm"
)

// Logger is the optional structured logger interface accepted by the
// controller. Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds controller policy. The zero value of every field except
// SourceUID selects a documented default.
type Config struct {
	// SourceUID is this controller's own UID, stamped into every RDM
	// request. Required for RDM operation.
	SourceUID rdm.UID

	// PortID identifies the controller port in requests (1-based).
	// Default: 1.
	PortID uint8

	// ResponseTimeout is how long to wait for the first byte of an RDM
	// response. Default: DefaultResponseTimeout.
	ResponseTimeout time.Duration

	// InterFrameGap is the minimum spacing between successive frame
	// transmissions. Values below MinBreakToBreak are raised to it.
	InterFrameGap time.Duration

	// Discovery is the discovery engine policy.
	Discovery rdm.Config
}

func (c Config) withDefaults() Config {
	if c.PortID == 0 {
		c.PortID = 1
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.InterFrameGap < MinBreakToBreak {
		c.InterFrameGap = MinBreakToBreak
	}
	return c
}

// Controller is the facade applications drive a DMX/RDM bus through. It
// composes the frame and packet codecs, the timing model and the discovery
// engine over one Transport.
//
// Thread Safety: all methods are safe for concurrent use. The bus is half
// duplex, so operations are strictly serialized; Discover holds the bus
// for its entire run.
type Controller struct {
	transport Transport
	cfg       Config

	// mu is the scoped-acquisition guard over the transport: exactly one
	// bus operation at any instant, released on every exit path.
	mu        sync.Mutex
	lastBreak time.Time
	tn        uint8

	// sleep is time.Sleep in production; tests inject a recorder.
	sleep WaitFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// NewController creates a controller over the given transport.
func NewController(transport Transport, cfg Config) *Controller {
	return &Controller{
		transport: transport,
		cfg:       cfg.withDefaults(),
		sleep:     time.Sleep,
	}
}

// SetLogger sets an optional logger for bus-level diagnostics.
func (c *Controller) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// SendUniverse transmits one DMX frame: direction to transmit, break,
// mark-after-break, start code and slots. It enforces the inter-frame gap
// against the previous transmission before touching the wire, so a tight
// refresh loop can call it back to back and stay within spec.
func (c *Controller) SendUniverse(ctx context.Context, frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return c.sendFrameLocked(frame.Encode())
}

// SendRDMRequest sends one RDM request and waits for the reply.
//
// Outcomes are distinguished exactly as the bus distinguishes them:
//
//   - a decoded reply: (packet, nil)
//   - silence within the timeout: ErrNoResponse, a valid "no device
//     present" result, also returned for broadcasts, which never have a
//     reply to wait for
//   - a present but garbled reply: the rdm decode error, surfaced
//
// Source UID, port ID and transaction number are stamped in from
// controller state; the caller fills the rest of the request.
func (c *Controller) SendRDMRequest(ctx context.Context, req rdm.Packet) (rdm.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return rdm.Packet{}, err
	}
	return c.requestLocked(req)
}

// DiscoveryReport summarises one discovery run.
type DiscoveryReport struct {
	// UIDs are the responders found, each exactly once.
	UIDs []rdm.UID

	// Probes is the number of branch and mute probes issued.
	Probes int

	// Duration is the wall-clock time the run held the bus.
	Duration time.Duration
}

// Discover enumerates every responder on the bus via the rdm discovery
// engine, holding exclusive bus ownership for the whole run: no DMX frame
// can interleave with the probes, as the protocol requires. Cancellation
// is checked between probes. On budget exhaustion the report carries the
// partial UID set along with the error.
func (c *Controller) Discover(ctx context.Context) (DiscoveryReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := rdm.NewDiscoverer(proberFor(c), c.cfg.Discovery)
	if l := c.getLogger(); l != nil {
		d.SetLogger(l)
	}

	start := time.Now()
	uids, err := d.Discover(ctx)
	report := DiscoveryReport{
		UIDs:     uids,
		Probes:   d.Probes(),
		Duration: time.Since(start),
	}
	if l := c.getLogger(); l != nil {
		l.Info("discovery finished",
			"found", len(uids),
			"probes", report.Probes,
			"duration", report.Duration,
			"error", err,
		)
	}
	return report, err
}

// Close flushes and closes the underlying transport.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transport.Flush(); err != nil && !errors.Is(err, ErrClosed) {
		c.logWarn("flush on close", "error", err)
	}
	return c.transport.Close()
}

// sendFrameLocked puts one break-delimited frame on the wire, enforcing
// the inter-frame gap first. Callers hold mu.
func (c *Controller) sendFrameLocked(encoded []byte) error {
	c.waitGapLocked()

	if err := c.transport.SetMode(Transmit); err != nil {
		return fmt.Errorf("switching to transmit: %w", err)
	}
	c.lastBreak = time.Now()
	if err := c.transport.SendFrame(encoded); err != nil {
		return fmt.Errorf("sending frame: %w", err)
	}
	return nil
}

// requestLocked encodes and sends req, then listens for the reply.
// Callers hold mu.
func (c *Controller) requestLocked(req rdm.Packet) (rdm.Packet, error) {
	c.stampLocked(&req)

	encoded, err := req.Encode()
	if err != nil {
		return rdm.Packet{}, err
	}
	if err := c.sendFrameLocked(encoded); err != nil {
		return rdm.Packet{}, err
	}
	if err := c.transport.Flush(); err != nil {
		return rdm.Packet{}, fmt.Errorf("flushing request: %w", err)
	}

	if req.Destination.IsBroadcast() && req.ParameterID != rdm.ParamDiscUniqueBranch {
		// Broadcasts are never answered; hold the bus quiet through the
		// turnaround window instead so responders can settle.
		c.sleep(BroadcastTurnaround)
		return rdm.Packet{}, ErrNoResponse
	}

	if err := c.transport.SetMode(Receive); err != nil {
		return rdm.Packet{}, fmt.Errorf("switching to receive: %w", err)
	}

	raw, err := c.receiveLocked(c.cfg.ResponseTimeout, packetComplete)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return rdm.Packet{}, ErrNoResponse
		}
		return rdm.Packet{}, err
	}

	resp, err := rdm.Decode(raw)
	if err != nil {
		// Device present but reply malformed: surfaced, never ignored.
		return rdm.Packet{}, fmt.Errorf("decoding response: %w", err)
	}
	return resp, nil
}

// stampLocked fills the controller-owned request fields.
func (c *Controller) stampLocked(req *rdm.Packet) {
	if req.Source == 0 {
		req.Source = c.cfg.SourceUID
	}
	if req.PortID == 0 {
		req.PortID = c.cfg.PortID
	}
	c.tn++
	req.TransactionNumber = c.tn
}

// receiveLocked accumulates response bytes. The first byte must arrive
// within timeout; after that, reads continue until done reports the
// accumulated bytes form a complete message, or the line stalls for
// MaxInterSlot. A stall with data in hand is a successful (possibly
// malformed) reception; a stall with nothing is ErrTimeout.
func (c *Controller) receiveLocked(timeout time.Duration, done func([]byte) bool) ([]byte, error) {
	var buf []byte
	wait := timeout
	for {
		chunk, err := c.transport.Receive(wait)
		if errors.Is(err, ErrTimeout) {
			if len(buf) == 0 {
				return nil, err
			}
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
		if done != nil && done(buf) {
			return buf, nil
		}
		wait = MaxInterSlot
	}
}

// packetComplete reports whether buf holds a full RDM packet per its
// declared message length. Non-RDM leading bytes never complete, so a
// garbled reply falls through to the stall path and then to Decode.
func packetComplete(buf []byte) bool {
	if len(buf) < 3 || buf[0] != rdm.StartCode {
		return false
	}
	return len(buf) >= int(buf[2])+2
}

// waitGapLocked blocks until the inter-frame gap since the previous break
// has elapsed.
func (c *Controller) waitGapLocked() {
	if c.lastBreak.IsZero() {
		return
	}
	if elapsed := time.Since(c.lastBreak); elapsed < c.cfg.InterFrameGap {
		c.sleep(c.cfg.InterFrameGap - elapsed)
	}
}

func (c *Controller) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Controller) logWarn(msg string, args ...any) {
	if l := c.getLogger(); l != nil {
		l.Warn(msg, args...)
	}
}
