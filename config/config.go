// Package config loads the locator's configuration inputs (spec § 6)
// from environment variables, in the style of the retrieval pack's
// internal/util/env.go — the corpus carries no third-party flags or
// config-file library, so this one ambient concern stays on
// os.Getenv/strconv (see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every input named by spec § 6.
type Config struct {
	UUID           string
	Hostname       string
	LocatorPort    uint16
	MulticastGroup string // empty: federation (C3/C4) is inactive
	PortPoolMin    uint16
	PortPoolMax    uint16 // PortPoolMax == 0: no port pool, Attach always uses port 0
	EtcdEndpoints  []string
	GatewayType    string // empty: gateway.Null
}

// Load reads every field from its LOCATOR_-prefixed environment
// variable, applying the same defaults a development single-node
// deployment would want.
func Load() (Config, error) {
	c := Config{
		UUID:           env("LOCATOR_UUID", ""),
		Hostname:       env("LOCATOR_HOSTNAME", "127.0.0.1"),
		MulticastGroup: env("LOCATOR_MULTICAST_GROUP", ""),
		GatewayType:    env("LOCATOR_GATEWAY", ""),
	}
	if c.UUID == "" {
		return Config{}, fmt.Errorf("config: LOCATOR_UUID is required")
	}

	port, err := envUint16("LOCATOR_PORT", 10053)
	if err != nil {
		return Config{}, err
	}
	c.LocatorPort = port

	poolMin, err := envUint16("LOCATOR_PORT_POOL_MIN", 0)
	if err != nil {
		return Config{}, err
	}
	poolMax, err := envUint16("LOCATOR_PORT_POOL_MAX", 0)
	if err != nil {
		return Config{}, err
	}
	c.PortPoolMin, c.PortPoolMax = poolMin, poolMax

	if endpoints := env("LOCATOR_ETCD_ENDPOINTS", ""); endpoints != "" {
		c.EtcdEndpoints = strings.Split(endpoints, ",")
	}

	return c, nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envUint16(key string, def uint16) (uint16, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return uint16(n), nil
}
