package instance

import (
	"os"

	"github.com/sweetdrop/storefront-api/pkg/env"
)

// GetID names this process in log lines: INSTANCE_ID, then the platform dyno
// name, then the hostname.
func GetID() string {
	if id, ok := env.First("INSTANCE_ID", "DYNO"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
