package listen

import (
	"github.com/ValentinKolb/netbus/rpc/common"
	"testing"
)

func TestParseEvents(t *testing.T) {
	tests := []struct {
		value    string
		expected common.Event
	}{
		{"open", common.EventOnOpen},
		{"message, close", common.EventOnMessage | common.EventOnClose},
		{"open,message,close", common.EventAll},
		{"close,,open", common.EventOnOpen | common.EventOnClose},
	}

	for _, test := range tests {
		events, err := ParseEvents(test.value)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", test.value, err)
			continue
		}
		if events != test.expected {
			t.Errorf("%q: expected %03b, got %03b", test.value, test.expected, events)
		}
	}

	for _, value := range []string{"", ",", "open,typo"} {
		if _, err := ParseEvents(value); err == nil {
			t.Errorf("%q: expected an error", value)
		}
	}
}
