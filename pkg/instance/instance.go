package instance

import (
	"os"

	"github.com/angelmondragon/packfinderz-inventory/pkg/env"
)

// ID names this process in logs: the dyno name, an explicit WORKER_ID, or
// the hostname.
func ID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := env.Get(key, ""); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
