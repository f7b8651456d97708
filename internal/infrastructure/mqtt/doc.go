// Package mqtt provides MQTT client connectivity for the DMX bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge exposes the DMX/RDM bus over MQTT: consoles and automation
// publish universe and discovery commands, the bridge publishes device
// lists, RDM results and health. The broker decouples the bus from its
// consumers.
//
//	Consoles / automation ↔ MQTT Broker ↔ DMX bridge ↔ RS485 bus
//
// # Topic scheme
//
//	dmx/universe/{n}/set       — slot level commands (inbound)
//	dmx/universe/{n}/blackout  — blackout command (inbound)
//	dmx/rdm/discovery/run      — trigger a discovery run (inbound)
//	dmx/rdm/devices            — retained registry device list (outbound)
//	dmx/rdm/request            — ad-hoc RDM request (inbound)
//	dmx/rdm/response/{id}      — RDM request result (outbound)
//	dmx/bridge/status          — retained online/offline + LWT
//	dmx/bridge/health          — periodic health report
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllUniverseSets(), 1,
//	    func(topic string, payload []byte) error {
//	        return applyLevels(topic, payload)
//	    })
package mqtt
