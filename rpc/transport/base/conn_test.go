package base

import (
	"github.com/ValentinKolb/netbus/rpc/common"
	"testing"
)

// TestConnFrameSizeLimit tests that a connection without a configured frame limit uses the default limit
func TestConnFrameSizeLimit(t *testing.T) {
	g := newTestGateway(t)

	tests := []struct {
		name     string
		maxSize  uint32
		expected uint32
	}{
		{"Unset", 0, common.DefaultMaxFrameSize},
		{"Configured", 1024, 1024},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := testShardConfig(1, g.addr())
			config.MaxFrameSize = test.maxSize

			conn := newClientConn(&testConnector{}, config)
			if err := conn.connect(); err != nil {
				t.Fatalf("connect failed: %v", err)
			}
			defer conn.close()

			_, reader := conn.current()
			if reader == nil {
				t.Fatal("Expected a frame reader after connect")
			}
			if reader.maxSize != test.expected {
				t.Errorf("Expected frame limit %d, got %d", test.expected, reader.maxSize)
			}
		})
	}
}
