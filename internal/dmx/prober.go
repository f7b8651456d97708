package dmx

import (
	"context"
	"errors"
	"fmt"

	"github.com/strandlab/dmx-rdm-core/internal/rdm"
)

// prober adapts a locked Controller to the rdm.Prober interface. It exists
// only inside a Discover call, where the controller mutex is already held,
// so every method uses the *Locked internals directly.
type prober struct {
	c *Controller
}

func proberFor(c *Controller) rdm.Prober {
	return prober{c: c}
}

var _ rdm.Prober = prober{}

// DiscoveryBranch probes [lower, upper] with DISC_UNIQUE_BRANCH. The
// response does not use normal packet framing, so the raw window is
// classified: silence, one decodable EUID, or the collision signature.
func (p prober) DiscoveryBranch(ctx context.Context, lower, upper rdm.UID) (rdm.BranchResult, rdm.UID, error) {
	if err := ctx.Err(); err != nil {
		return rdm.BranchNoResponse, 0, err
	}

	lo := lower.Bytes()
	hi := upper.Bytes()
	req := rdm.Packet{
		Destination:   rdm.BroadcastAll,
		CommandClass:  rdm.DiscoveryCommand,
		ParameterID:   rdm.ParamDiscUniqueBranch,
		SubDevice:     0,
		ParameterData: append(append([]byte{}, lo[:]...), hi[:]...),
	}
	p.c.stampLocked(&req)

	encoded, err := req.Encode()
	if err != nil {
		return rdm.BranchNoResponse, 0, err
	}
	if err := p.c.sendFrameLocked(encoded); err != nil {
		return rdm.BranchNoResponse, 0, err
	}
	if err := p.c.transport.Flush(); err != nil {
		return rdm.BranchNoResponse, 0, fmt.Errorf("flushing branch probe: %w", err)
	}
	if err := p.c.transport.SetMode(Receive); err != nil {
		return rdm.BranchNoResponse, 0, fmt.Errorf("switching to receive: %w", err)
	}

	raw, err := p.c.receiveLocked(p.c.cfg.ResponseTimeout, nil)
	if errors.Is(err, ErrTimeout) {
		return rdm.BranchNoResponse, 0, nil
	}
	if err != nil {
		return rdm.BranchNoResponse, 0, err
	}

	uid, err := rdm.DecodeDiscoveryResponse(raw)
	if err != nil {
		// Undecodable responses are the collision signature, not a
		// failure: the engine resolves them by splitting the range.
		return rdm.BranchCollision, 0, nil
	}
	return rdm.BranchFound, uid, nil
}

// Mute silences uid's branch responses. A missing or garbled
// acknowledgement reports false so the engine re-probes; only transport
// failures are errors.
func (p prober) Mute(ctx context.Context, uid rdm.UID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	resp, err := p.c.requestLocked(rdm.Packet{
		Destination:  uid,
		CommandClass: rdm.DiscoveryCommand,
		ParameterID:  rdm.ParamDiscMute,
	})
	switch {
	case errors.Is(err, ErrNoResponse):
		return false, nil
	case isDecodeError(err):
		return false, nil
	case err != nil:
		return false, err
	}

	acked := resp.CommandClass == rdm.DiscoveryCommandResponse &&
		resp.ParameterID == rdm.ParamDiscMute &&
		resp.Source == uid
	return acked, nil
}

// UnmuteAll broadcasts DISC_UN_MUTE. Broadcasts are unanswered, so the
// controller's ErrNoResponse outcome is the success path.
func (p prober) UnmuteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.c.requestLocked(rdm.Packet{
		Destination:  rdm.BroadcastAll,
		CommandClass: rdm.DiscoveryCommand,
		ParameterID:  rdm.ParamDiscUnMute,
	})
	if err != nil && !errors.Is(err, ErrNoResponse) {
		return err
	}
	return nil
}

// isDecodeError reports whether err is a packet-validation failure from
// the rdm codec, as opposed to a transport fault.
func isDecodeError(err error) bool {
	return errors.Is(err, rdm.ErrChecksumMismatch) ||
		errors.Is(err, rdm.ErrLengthMismatch) ||
		errors.Is(err, rdm.ErrTruncated) ||
		errors.Is(err, rdm.ErrInvalidStartCode) ||
		errors.Is(err, rdm.ErrInvalidUID)
}
