package bridge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strandlab/dmx-rdm-core/internal/dmx"
	"github.com/strandlab/dmx-rdm-core/internal/infrastructure/mqtt"
	"github.com/strandlab/dmx-rdm-core/internal/rdm"
)

// handleRDMRequest executes an ad-hoc RDM get or set and publishes the
// result on the per-request response topic.
func (b *Bridge) handleRDMRequest(_ string, payload []byte) error {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		b.errorCount.Add(1)
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	pkt, err := buildPacket(req)
	if err != nil {
		b.errorCount.Add(1)
		b.publishResponse(Response{
			RequestID: req.RequestID,
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})
		return err
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	b.rdmRequests.Add(1)
	start := time.Now()
	resp, err := b.bus.SendRDMRequest(ctx, pkt)
	latency := time.Since(start)

	result := Response{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
	}
	outcome := "ack"
	switch {
	case err != nil:
		outcome = "error"
		if errors.Is(err, dmx.ErrNoResponse) || errors.Is(err, dmx.ErrTimeout) {
			outcome = "timeout"
		}
		b.errorCount.Add(1)
		result.Error = err.Error()

	default:
		result.Success = resp.PortID == rdm.ResponseAck
		result.ResponseType = responseTypeName(resp.PortID)
		result.UID = resp.Source.String()
		result.Data = hex.EncodeToString(resp.ParameterData)
		if !result.Success {
			outcome = result.ResponseType
		}
	}

	if b.telemetry != nil {
		b.telemetry.WriteRDMRequest(req.UID, outcome, latency)
	}
	b.publishResponse(result)
	return err
}

// buildPacket translates a Request into a wire packet. The controller
// stamps source UID, transaction number and port on send.
func buildPacket(req Request) (rdm.Packet, error) {
	uid, err := rdm.ParseUID(req.UID)
	if err != nil {
		return rdm.Packet{}, fmt.Errorf("%w: uid %q: %v", ErrInvalidPayload, req.UID, err)
	}

	var cc rdm.CommandClass
	switch req.CommandClass {
	case "get":
		cc = rdm.GetCommand
	case "set":
		cc = rdm.SetCommand
	default:
		return rdm.Packet{}, fmt.Errorf("%w: command_class %q (get, set)",
			ErrInvalidPayload, req.CommandClass)
	}

	var data []byte
	if req.Data != "" {
		data, err = hex.DecodeString(req.Data)
		if err != nil {
			return rdm.Packet{}, fmt.Errorf("%w: data is not hex: %v", ErrInvalidPayload, err)
		}
	}

	return rdm.Packet{
		Destination:   uid,
		SubDevice:     req.SubDevice,
		CommandClass:  cc,
		ParameterID:   rdm.ParameterID(req.ParameterID),
		ParameterData: data,
	}, nil
}

// responseTypeName maps a response type slot value to its wire name.
func responseTypeName(rt uint8) string {
	switch rt {
	case rdm.ResponseAck:
		return "ack"
	case rdm.ResponseAckTimer:
		return "ack_timer"
	case rdm.ResponseNackReason:
		return "nack"
	case rdm.ResponseAckOverflow:
		return "ack_overflow"
	default:
		return fmt.Sprintf("unknown_%#02x", rt)
	}
}

// publishResponse publishes a Response on its per-request topic.
func (b *Bridge) publishResponse(result Response) {
	payload, err := json.Marshal(result)
	if err != nil {
		b.logError("failed to marshal rdm response", "error", err)
		return
	}
	topic := mqtt.Topics{}.RDMResponse(result.RequestID)
	if err := b.mqtt.Publish(topic, payload, b.qos(), false); err != nil {
		b.logWarn("failed to publish rdm response", "request_id", result.RequestID, "error", err)
	}
}
