// Package config loads the server's environment-based configuration,
// mirroring the original's dotenv + env::var startup sequence.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	defaultControlAddr      = "0.0.0.0:30423"
	defaultDataAddr         = "0.0.0.0:30423"
	defaultDNSAddr          = "0.0.0.0:5533"
	defaultDNSUpstream      = "1.1.1.1:53"
	defaultDNSObfuscation   = "example world!"
	defaultTUNName          = "tun0"
	defaultTUNAddress       = "10.8.0.1"
	defaultTUNNetmask       = "255.255.0.0"
	defaultTUNMTU           = 1450
	controlChannelReadDelay = 10 // seconds, see Config.ControlReadTimeoutS
)

// Config holds every externally supplied setting the server needs at
// startup. Missing required values are a fatal misconfiguration
// (spec.md §7): main() is expected to exit the process on Load's error.
type Config struct {
	MySQLDSN            string
	JWTSharedSecret     string
	DNSObfuscationKey   []byte
	ControlAddr         string
	DataAddr            string
	DNSAddr             string
	DNSUpstream         string
	TUNName             string
	TUNAddress          string
	TUNNetmask          string
	TUNMTU              int
	ControlReadTimeoutS int
}

// Load reads an optional .env file (if present in the working
// directory) and then the process environment, applying defaults for
// everything spec.md §6 doesn't mark required.
func Load() (*Config, error) {
	// A missing .env file is not an error: production deployments are
	// expected to set the environment directly.
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, fmt.Errorf("config: MYSQL_DSN is required")
	}

	jwtSecret := os.Getenv("JWT_SHARED_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("config: JWT_SHARED_SECRET is required")
	}

	dnsKey := os.Getenv("DNS_OBFUSCATION_KEY")
	if dnsKey == "" {
		dnsKey = defaultDNSObfuscation
	}

	return &Config{
		MySQLDSN:            mysqlDSN,
		JWTSharedSecret:     jwtSecret,
		DNSObfuscationKey:   []byte(dnsKey),
		ControlAddr:         envOr("CONTROL_ADDR", defaultControlAddr),
		DataAddr:            envOr("DATA_ADDR", defaultDataAddr),
		DNSAddr:             envOr("DNS_ADDR", defaultDNSAddr),
		DNSUpstream:         envOr("DNS_UPSTREAM", defaultDNSUpstream),
		TUNName:             envOr("TUN_NAME", defaultTUNName),
		TUNAddress:          defaultTUNAddress,
		TUNNetmask:          defaultTUNNetmask,
		TUNMTU:              defaultTUNMTU,
		ControlReadTimeoutS: controlChannelReadDelay,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
