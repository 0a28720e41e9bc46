package channel

import "time"

// Prefix is the fixed channel-name prefix. The decimal process id of the
// target server instance is appended, so one endpoint exists per server
// process and multiple server generations never collide.
const Prefix = "hotc-"

// Timeout tiers used by callers. An existing server should already be
// listening, so a long wait there signals something wrong; a freshly
// launched server needs time to start up.
const (
	ExistingProcessTimeout = 2 * time.Second
	NewProcessTimeout      = 60 * time.Second
)

// pollInterval paces the dial retry loop while nothing is listening yet.
const pollInterval = 50 * time.Millisecond
