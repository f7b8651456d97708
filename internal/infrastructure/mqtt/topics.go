package mqtt

import "fmt"

// Topic prefixes for the DMX bridge.
//
// All topics use the scheme: dmx/{category}/... with universe-scoped
// commands carrying the universe number as a path segment.
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "dmx"

	// TopicPrefixRDM is the base for RDM discovery and request topics.
	TopicPrefixRDM = "dmx/rdm"

	// TopicPrefixBridge is the base for bridge lifecycle topics.
	TopicPrefixBridge = "dmx/bridge"
)

// Topics provides builders for DMX bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	setTopic := topics.UniverseSet(1)
//	// Returns: "dmx/universe/1/set"
type Topics struct{}

// UniverseSet returns the command topic for setting slot levels on a universe.
//
// Example: dmx/universe/1/set
func (Topics) UniverseSet(universe int) string {
	return fmt.Sprintf("%s/universe/%d/set", TopicPrefix, universe)
}

// UniverseBlackout returns the command topic for blacking out a universe.
//
// Example: dmx/universe/1/blackout
func (Topics) UniverseBlackout(universe int) string {
	return fmt.Sprintf("%s/universe/%d/blackout", TopicPrefix, universe)
}

// UniverseState returns the topic the bridge publishes current levels on.
//
// Example: dmx/universe/1/state
func (Topics) UniverseState(universe int) string {
	return fmt.Sprintf("%s/universe/%d/state", TopicPrefix, universe)
}

// DiscoveryRun returns the command topic that triggers a discovery run.
//
// Example: dmx/rdm/discovery/run
func (Topics) DiscoveryRun() string {
	return fmt.Sprintf("%s/discovery/run", TopicPrefixRDM)
}

// DiscoveryResult returns the topic discovery run results are published on.
//
// Example: dmx/rdm/discovery/result
func (Topics) DiscoveryResult() string {
	return fmt.Sprintf("%s/discovery/result", TopicPrefixRDM)
}

// Devices returns the retained topic carrying the registry device list.
//
// Example: dmx/rdm/devices
func (Topics) Devices() string {
	return fmt.Sprintf("%s/devices", TopicPrefixRDM)
}

// RDMRequest returns the command topic for ad-hoc RDM requests.
//
// Example: dmx/rdm/request
func (Topics) RDMRequest() string {
	return fmt.Sprintf("%s/request", TopicPrefixRDM)
}

// RDMResponse returns the topic an RDM request result is published on.
//
// Example: dmx/rdm/response/req-abc123
func (Topics) RDMResponse(requestID string) string {
	return fmt.Sprintf("%s/response/%s", TopicPrefixRDM, requestID)
}

// BridgeHealth returns the topic for periodic bridge health reports.
//
// Example: dmx/bridge/health
func (Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health", TopicPrefixBridge)
}

// BridgeStatus returns the retained online/offline status topic.
// This is also the Last Will topic for crash detection.
//
// Example: dmx/bridge/status
func (Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixBridge)
}

// AllUniverseSets returns a pattern matching set commands for any universe.
//
// Pattern: dmx/universe/+/set
func (Topics) AllUniverseSets() string {
	return fmt.Sprintf("%s/universe/+/set", TopicPrefix)
}

// AllUniverseBlackouts returns a pattern matching blackout commands for any universe.
//
// Pattern: dmx/universe/+/blackout
func (Topics) AllUniverseBlackouts() string {
	return fmt.Sprintf("%s/universe/+/blackout", TopicPrefix)
}

// AllTopics returns a pattern matching all bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: dmx/#
func (Topics) AllTopics() string {
	return "dmx/#"
}
