package tracker

import "time"

// Config holds every tunable named in spec section 6's configuration
// table. A plain struct, not a functional-options builder, matching the
// teacher's preference for direct struct literals (e.g. AnnounceRequest,
// TrackerManager) over builder patterns.
type Config struct {
	ConnectTimeout   time.Duration
	TransferTimeout  time.Duration
	FollowRedirects  bool
	UDPTimeout       time.Duration
	UDPMaxAttempts   int
	UDPBackoffStart  time.Duration
	UDPConnectionTTL time.Duration
	MinIntervalFloor time.Duration
	IntervalCeiling  time.Duration
	DisableThreshold uint32
}

// DefaultConfig returns the configuration defaults spec section 6 names.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   8 * time.Second,
		TransferTimeout:  10 * time.Second,
		FollowRedirects:  true,
		UDPTimeout:       1500 * time.Millisecond,
		UDPMaxAttempts:   8,
		UDPBackoffStart:  1500 * time.Millisecond,
		UDPConnectionTTL: 60 * time.Second,
		MinIntervalFloor: 30 * time.Second,
		IntervalCeiling:  3600 * time.Second,
		DisableThreshold: 7,
	}
}
