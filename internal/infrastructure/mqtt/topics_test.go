package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"universe set", topics.UniverseSet(1), "dmx/universe/1/set"},
		{"universe blackout", topics.UniverseBlackout(2), "dmx/universe/2/blackout"},
		{"universe state", topics.UniverseState(1), "dmx/universe/1/state"},
		{"discovery run", topics.DiscoveryRun(), "dmx/rdm/discovery/run"},
		{"discovery result", topics.DiscoveryResult(), "dmx/rdm/discovery/result"},
		{"devices", topics.Devices(), "dmx/rdm/devices"},
		{"rdm request", topics.RDMRequest(), "dmx/rdm/request"},
		{"rdm response", topics.RDMResponse("req-abc123"), "dmx/rdm/response/req-abc123"},
		{"bridge health", topics.BridgeHealth(), "dmx/bridge/health"},
		{"bridge status", topics.BridgeStatus(), "dmx/bridge/status"},
		{"all universe sets", topics.AllUniverseSets(), "dmx/universe/+/set"},
		{"all universe blackouts", topics.AllUniverseBlackouts(), "dmx/universe/+/blackout"},
		{"all topics", topics.AllTopics(), "dmx/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
