package web

import (
	"fmt"
	"net"
)

type Config struct {
	Port      uint32
	AccessKey string
	// RateLimit is the number of requests per second allowed to each client
	// ip, 0 disables it.
	RateLimit     float64
	SentryEnabled bool
}

func (c Config) Validate() error {
	if c.AccessKey == "" {
		return fmt.Errorf("missing access key")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	lis, err := net.Listen("tcp", c.address())
	if err != nil {
		return fmt.Errorf("invalid http port: %s", err)
	}
	// nolint:all
	lis.Close()
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}
