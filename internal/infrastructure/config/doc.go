// Package config loads and validates the DMX bridge configuration.
//
// Configuration comes from a YAML file with environment variable
// overrides for deployment-specific values and secrets. Defaults are
// chosen so a bridge with one RS485 adapter on /dev/ttyUSB0 and a local
// MQTT broker runs with a nearly empty file.
//
// Example config.yaml:
//
//	bridge:
//	  id: dmx-bridge-01
//	transport:
//	  type: serial
//	  device: /dev/ttyUSB0
//	  source_uid: "7ff0:00000001"
//	discovery:
//	  interval_seconds: 300
//	mqtt:
//	  broker:
//	    host: mqtt.local
package config
