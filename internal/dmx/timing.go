package dmx

import "time"

// Protocol timing from ANSI E1.11 and E1.20. These are line-level
// requirements every transport must honour; drivers with hardware break
// generation may meet them internally, drivers without use
// SendBreakSequence.
const (
	// Baud is the DMX512 line rate. Framing is 8 data bits, no parity,
	// 2 stop bits.
	Baud = 250000

	// SlotTime is the on-wire duration of one slot: 11 bit times
	// (start + 8 data + 2 stop) at 250 kbaud.
	SlotTime = 44 * time.Microsecond

	// MinBreak is the minimum break a transmitter may emit.
	MinBreak = 88 * time.Microsecond

	// TypicalBreak is the break duration this package emits by default.
	// Comfortably above MinBreak for slow responder UARTs.
	TypicalBreak = 176 * time.Microsecond

	// MinMarkAfterBreak is the minimum mark between break release and the
	// first slot.
	MinMarkAfterBreak = 8 * time.Microsecond

	// TypicalMarkAfterBreak is the mark-after-break emitted by default.
	TypicalMarkAfterBreak = 48 * time.Microsecond

	// MaxInterSlot is the longest a transmitter may idle between slots of
	// one frame before receivers may treat the frame as ended.
	MaxInterSlot = 2 * time.Millisecond

	// MinBreakToBreak is the minimum spacing between the starts of two
	// consecutive frames. The controller enforces it as the inter-frame
	// gap; slower responder hardware depends on it.
	MinBreakToBreak = 1204 * time.Microsecond

	// ResponderDelayMin is the earliest a responder may begin its reply
	// after an RDM request.
	ResponderDelayMin = 176 * time.Microsecond

	// ResponderTurnaround is the window in which a responder must begin
	// its reply. Silence past this window means "no device at this
	// address", never an error.
	ResponderTurnaround = 2 * time.Millisecond

	// ResponseTimeoutLine is the protocol listen window measured at the
	// line: turnaround plus the longest reply in flight.
	ResponseTimeoutLine = 2800 * time.Microsecond

	// DefaultResponseTimeout is the default controller-level response
	// timeout. USB transports add multi-millisecond buffering latency the
	// line-level window cannot see, so the default is deliberately
	// generous; microcontroller UART deployments should configure
	// something near ResponseTimeoutLine.
	DefaultResponseTimeout = 50 * time.Millisecond

	// BroadcastTurnaround is how long the bus must stay quiet after a
	// broadcast request before the next packet, since no reply delimits
	// the transaction.
	BroadcastTurnaround = ResponderTurnaround
)

// BreakLine is the minimal signalling capability a driver exposes when its
// hardware cannot time a break on its own: assert the line low, release it
// to mark.
type BreakLine interface {
	AssertBreak() error
	ReleaseBreak() error
}

// WaitFunc waits at least d. Drivers supply whatever primitive their
// platform has: time.Sleep on a host OS, a hardware countdown on a
// microcontroller.
type WaitFunc func(d time.Duration)

// SendBreakSequence performs the protocol-mandated start-of-frame
// signalling on line: assert break, hold at least breakTime, release to
// mark, hold at least mab. Durations below the protocol minimums are
// raised to them. After it returns, the first slot may be transmitted
// immediately.
func SendBreakSequence(line BreakLine, wait WaitFunc, breakTime, mab time.Duration) error {
	if breakTime < MinBreak {
		breakTime = MinBreak
	}
	if mab < MinMarkAfterBreak {
		mab = MinMarkAfterBreak
	}

	if err := line.AssertBreak(); err != nil {
		return err
	}
	wait(breakTime)
	if err := line.ReleaseBreak(); err != nil {
		// Attempting slot data with break still asserted would corrupt
		// the whole frame; surface immediately.
		return err
	}
	wait(mab)
	return nil
}

// FrameAirtime returns how long an encoded frame of n slots (plus start
// code) occupies the wire, excluding break and mark-after-break.
func FrameAirtime(n int) time.Duration {
	return time.Duration(n+1) * SlotTime
}
