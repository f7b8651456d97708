package rdm

import (
	"context"
	"fmt"
)

// Default discovery budgets. The protocol does not pin these down, so they
// are policy: see Config.
const (
	// defaultCollisionRetries is how often a range that should hold a
	// single responder may keep colliding before it is declared
	// unreachable. Transient bus noise clears well within this.
	defaultCollisionRetries = 3

	// defaultProbeBudget caps DISC_UNIQUE_BRANCH and mute probes per
	// discovery run. Worst case for U responders is on the order of
	// U*log2(2^48/U) probes; 2048 comfortably covers a full 512-fixture
	// universe while bounding runtime on a pathologically noisy bus.
	defaultProbeBudget = 2048
)

// BranchResult classifies the bus reaction to a DISC_UNIQUE_BRANCH probe.
type BranchResult int

const (
	// BranchNoResponse means no responder claimed the range.
	BranchNoResponse BranchResult = iota

	// BranchFound means a single well-formed response was received.
	BranchFound

	// BranchCollision means the observed signal cannot be one valid
	// response: two or more responders answered, or the bus was noisy.
	BranchCollision
)

// Prober is the bus surface the discovery engine needs. It is implemented
// by dmx.Controller for real transports and by simulated buses in tests.
//
// All three calls own the bus exclusively for their duration; the engine
// never interleaves them.
type Prober interface {
	// DiscoveryBranch probes [lower, upper] with DISC_UNIQUE_BRANCH and
	// classifies the reply. The returned UID is meaningful only for
	// BranchFound.
	DiscoveryBranch(ctx context.Context, lower, upper UID) (BranchResult, UID, error)

	// Mute sends DISC_MUTE to uid. It reports whether the responder
	// acknowledged; a garbled or absent acknowledgement is false, nil.
	Mute(ctx context.Context, uid UID) (bool, error)

	// UnmuteAll broadcasts DISC_UN_MUTE so a fresh run sees every
	// responder, including ones muted by a previous run.
	UnmuteAll(ctx context.Context) error
}

// Config holds discovery policy. The zero value selects the documented
// defaults.
type Config struct {
	// CollisionRetries bounds re-probes of a range that keeps colliding
	// after it can no longer be split, and retries of an unacknowledged
	// mute. Default: 3.
	CollisionRetries int

	// ProbeBudget caps the total number of probes (branch + mute) in one
	// run. When exhausted, Discover returns the partial UID set together
	// with ErrProbeBudgetExhausted. Default: 2048.
	ProbeBudget int
}

func (c Config) withDefaults() Config {
	if c.CollisionRetries <= 0 {
		c.CollisionRetries = defaultCollisionRetries
	}
	if c.ProbeBudget <= 0 {
		c.ProbeBudget = defaultProbeBudget
	}
	return c
}

// Logger is the optional structured logger interface accepted by the
// engine. Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// uidRange is one pending partition of the UID space. attempts counts
// collisions observed on an unsplittable range.
type uidRange struct {
	lower, upper UID
	attempts     int
}

// Discoverer enumerates responder UIDs on a shared half-duplex bus by
// binary search over the UID address space.
//
// The pending-range worklist lives only for the duration of one Discover
// call; between calls the Discoverer carries only policy and the probe
// count of the most recent run. It is reusable but not goroutine-safe.
type Discoverer struct {
	prober Prober
	cfg    Config
	logger Logger
	probes int
}

// NewDiscoverer creates a discovery engine over the given prober.
func NewDiscoverer(prober Prober, cfg Config) *Discoverer {
	return &Discoverer{
		prober: prober,
		cfg:    cfg.withDefaults(),
	}
}

// SetLogger sets an optional logger for probe-level diagnostics.
func (d *Discoverer) SetLogger(logger Logger) {
	d.logger = logger
}

// Probes reports how many branch and mute probes the most recent
// Discover call issued. Zero before the first call.
func (d *Discoverer) Probes() int {
	return d.probes
}

// Discover runs one full discovery and returns every responder UID found,
// each exactly once.
//
// The bus must be quiescent for the whole run: the caller guarantees no
// interleaved DMX transmission. Cancellation is honoured between probes,
// never mid-probe, so the bus is never left in a mid-mute state. On probe
// budget exhaustion or a transport failure the UIDs found so far are
// returned along with the error.
func (d *Discoverer) Discover(ctx context.Context) ([]UID, error) {
	found := make([]UID, 0)
	d.probes = 0

	probe := func() bool {
		d.probes++
		return d.probes <= d.cfg.ProbeBudget
	}

	if err := d.prober.UnmuteAll(ctx); err != nil {
		return found, fmt.Errorf("unmuting responders: %w", err)
	}

	// Worklist of pending ranges, seeded with the whole addressable
	// space. Reserved broadcast UIDs sit above MaxDeviceUID and are
	// excluded from the search by construction.
	pending := []uidRange{{lower: 0, upper: MaxDeviceUID}}
	var unreachable error

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if !probe() {
			return found, fmt.Errorf("%w: %d probes, %d ranges unresolved",
				ErrProbeBudgetExhausted, d.probes-1, len(pending))
		}

		r := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		result, uid, err := d.prober.DiscoveryBranch(ctx, r.lower, r.upper)
		if err != nil {
			return found, fmt.Errorf("branch probe %s..%s: %w", r.lower, r.upper, err)
		}

		switch result {
		case BranchNoResponse:
			// Range is empty.

		case BranchFound:
			if uid < r.lower || uid > r.upper {
				// A UID outside the probed range cannot be a real
				// answer to this probe. Treat like a collision.
				d.warn("discovery response outside probed range",
					"uid", uid.String(), "lower", r.lower.String(), "upper", r.upper.String())
				pending = d.requeue(pending, r)
				continue
			}
			if !probe() {
				return found, fmt.Errorf("%w: %d probes, mute of %s outstanding",
					ErrProbeBudgetExhausted, d.probes-1, uid)
			}
			muted, err := d.prober.Mute(ctx, uid)
			if err != nil {
				return found, fmt.Errorf("muting %s: %w", uid, err)
			}
			if !muted {
				// Without a mute acknowledgement the responder would
				// keep answering sibling probes, so re-probe the same
				// range rather than recording the UID.
				d.warn("mute not acknowledged", "uid", uid.String())
				pending = d.requeue(pending, r)
				continue
			}
			found = append(found, uid)
			d.debug("responder discovered", "uid", uid.String(), "probes", d.probes)
			// Other responders may have been drowned out by this one;
			// re-probe the range until it reads empty.
			if r.lower != r.upper {
				pending = append(pending, uidRange{lower: r.lower, upper: r.upper})
			}

		case BranchCollision:
			if r.lower == r.upper {
				// Cannot split further. Retry a bounded number of
				// times, then give up on this address.
				r.attempts++
				if r.attempts > d.cfg.CollisionRetries {
					d.warn("responder unreachable", "uid", r.lower.String(), "attempts", r.attempts-1)
					unreachable = fmt.Errorf("%w: %s", ErrUnreachableResponder, r.lower)
					continue
				}
				pending = append(pending, r)
				continue
			}
			mid := r.lower + (r.upper-r.lower)/2
			pending = append(pending,
				uidRange{lower: mid + 1, upper: r.upper},
				uidRange{lower: r.lower, upper: mid},
			)
		}
	}

	return found, unreachable
}

// requeue puts a range back on the worklist with its attempt counter
// bumped, dropping it once the retry budget is spent.
func (d *Discoverer) requeue(pending []uidRange, r uidRange) []uidRange {
	r.attempts++
	if r.attempts > d.cfg.CollisionRetries {
		d.warn("range dropped after retries",
			"lower", r.lower.String(), "upper", r.upper.String())
		return pending
	}
	return append(pending, r)
}

func (d *Discoverer) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Discoverer) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
