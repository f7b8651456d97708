package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/strandlab/dmx-rdm-core/internal/dmx"
	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/mqtt"
)

// universeFromTopic extracts the universe number from a
// dmx/universe/{n}/... topic.
func universeFromTopic(topic string) (int, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 || parts[1] != "universe" {
		return 0, fmt.Errorf("%w: topic %q", ErrInvalidPayload, topic)
	}
	universe, err := strconv.Atoi(parts[2])
	if err != nil || universe < 1 {
		return 0, fmt.Errorf("%w: universe %q", ErrInvalidPayload, parts[2])
	}
	return universe, nil
}

// handleUniverseSet applies a level change and retransmits the frame.
func (b *Bridge) handleUniverseSet(topic string, payload []byte) error {
	universe, err := universeFromTopic(topic)
	if err != nil {
		b.errorCount.Add(1)
		return err
	}
	if universe != b.universe {
		// Another bridge's universe on a shared broker.
		b.logDebug("ignoring set for foreign universe", "universe", universe)
		return nil
	}

	var msg SetMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.errorCount.Add(1)
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	frame, err := b.applySet(msg)
	if err != nil {
		b.errorCount.Add(1)
		return err
	}
	return b.transmit(frame)
}

// handleBlackout zeroes every channel and retransmits.
func (b *Bridge) handleBlackout(topic string, _ []byte) error {
	universe, err := universeFromTopic(topic)
	if err != nil {
		b.errorCount.Add(1)
		return err
	}
	if universe != b.universe {
		b.logDebug("ignoring blackout for foreign universe", "universe", universe)
		return nil
	}

	b.slotsMu.Lock()
	clear(b.slots[:])
	frame, err := dmx.NewFrame(b.slots[:])
	b.slotsMu.Unlock()
	if err != nil {
		return err
	}

	b.logInfo("blackout", "universe", universe)
	return b.transmit(frame)
}

// applySet merges a SetMessage into the frame buffer and returns the
// resulting full frame.
func (b *Bridge) applySet(msg SetMessage) (dmx.Frame, error) {
	b.slotsMu.Lock()
	defer b.slotsMu.Unlock()

	switch {
	case msg.Levels != nil:
		if len(msg.Levels) > dmx.MaxSlots {
			return dmx.Frame{}, fmt.Errorf("%w: %d levels exceeds %d slots",
				ErrInvalidPayload, len(msg.Levels), dmx.MaxSlots)
		}
		for i, level := range msg.Levels {
			if level < 0 || level > 255 {
				return dmx.Frame{}, fmt.Errorf("%w: level %d out of range at slot %d",
					ErrInvalidPayload, level, i+1)
			}
			b.slots[i] = byte(level)
		}
		clear(b.slots[len(msg.Levels):])

	case len(msg.Channels) > 0:
		for key, level := range msg.Channels {
			channel, err := strconv.Atoi(key)
			if err != nil || channel < 1 || channel > dmx.MaxSlots {
				return dmx.Frame{}, fmt.Errorf("%w: channel %q", ErrInvalidPayload, key)
			}
			if level < 0 || level > 255 {
				return dmx.Frame{}, fmt.Errorf("%w: level %d out of range on channel %d",
					ErrInvalidPayload, level, channel)
			}
			b.slots[channel-1] = byte(level)
		}

	default:
		return dmx.Frame{}, fmt.Errorf("%w: set message names no levels or channels",
			ErrInvalidPayload)
	}

	return dmx.NewFrame(b.slots[:])
}

// transmit sends a frame to the bus and publishes the retained state.
func (b *Bridge) transmit(frame dmx.Frame) error {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := b.bus.SendUniverse(ctx, frame); err != nil {
		b.frameErrors.Add(1)
		b.errorCount.Add(1)
		b.writeFrameStats()
		return fmt.Errorf("sending universe %d: %w", b.universe, err)
	}
	b.framesSent.Add(1)
	b.writeFrameStats()

	if err := b.publishState(); err != nil {
		b.logWarn("failed to publish universe state", "error", err)
	}
	return nil
}

// publishState publishes the retained level snapshot for this universe.
func (b *Bridge) publishState() error {
	b.slotsMu.Lock()
	levels := make([]int, len(b.slots))
	for i, v := range b.slots {
		levels[i] = int(v)
	}
	b.slotsMu.Unlock()

	msg := StateMessage{
		Universe:  b.universe,
		Timestamp: time.Now().UTC(),
		Levels:    levels,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.mqtt.Publish(mqtt.Topics{}.UniverseState(b.universe), payload, b.qos(), true)
}

// writeFrameStats records cumulative frame counters, if telemetry is wired.
func (b *Bridge) writeFrameStats() {
	if b.telemetry == nil {
		return
	}
	b.telemetry.WriteFrameStats(b.universe, b.framesSent.Load(), b.frameErrors.Load())
}
