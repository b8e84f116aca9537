package common

import (
	"testing"
	"time"
)

// TestConfigFallbacks tests that unset limits and intervals fall back to their defaults
func TestConfigFallbacks(t *testing.T) {
	var push PushConfig
	if got := push.RecoverInterval(); got != DefaultRecoverIntervalMillisecond*time.Millisecond {
		t.Errorf("RecoverInterval() of an empty config = %v", got)
	}
	push.RecoverIntervalMillisecond = -1
	if got := push.RecoverInterval(); got != DefaultRecoverIntervalMillisecond*time.Millisecond {
		t.Errorf("RecoverInterval() of a negative interval = %v", got)
	}
	push.RecoverIntervalMillisecond = 250
	if got := push.RecoverInterval(); got != 250*time.Millisecond {
		t.Errorf("RecoverInterval() = %v; expected 250ms", got)
	}

	var shard ShardConfig
	if got := shard.FrameSizeLimit(); got != DefaultMaxFrameSize {
		t.Errorf("FrameSizeLimit() of an empty config = %d", got)
	}
	shard.MaxFrameSize = 4096
	if got := shard.FrameSizeLimit(); got != 4096 {
		t.Errorf("FrameSizeLimit() = %d; expected 4096", got)
	}
}
