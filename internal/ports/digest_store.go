package ports

import (
	"github.com/mikey/mail-priority/internal/core"
)

// DigestStore is a core.DigestStore that owns background resources
type DigestStore interface {
	core.DigestStore

	// Stop releases connections and stops background cleanup
	Stop()
}
