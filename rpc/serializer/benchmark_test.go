package serializer

import (
	"github.com/ValentinKolb/netbus/rpc/common"
	"strconv"
	"testing"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]testMessage {
	ids := make([]string, 100)
	data := make([][]byte, 100)
	for i := range ids {
		ids[i] = "01" + strconv.Itoa(100000+i)
		data[i] = []byte("payload-" + strconv.Itoa(i))
	}

	members := make(map[string][]string)
	for i := 0; i < 10; i++ {
		members["topic-"+strconv.Itoa(i)] = ids[i*10 : i*10+10]
	}

	return map[string]testMessage{
		"SmallSingleCast": {
			msg:   &common.SingleCast{UniqId: "01abc", Data: []byte("v")},
			empty: func() common.Message { return &common.SingleCast{} },
		},
		"LargeBroadcast": {
			msg:   &common.Broadcast{Data: make([]byte, 16*1024)}, // 16KB of data
			empty: func() common.Message { return &common.Broadcast{} },
		},
		"SingleCastBulk100": {
			msg:   &common.SingleCastBulk{UniqIds: ids, Data: data},
			empty: func() common.Message { return &common.SingleCastBulk{} },
		},
		"TopicMembers": {
			msg:   &common.TopicMembersResp{Items: members},
			empty: func() common.Message { return &common.TopicMembersResp{} },
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, tm := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if _, err := serializer.Serialize(tm.msg); err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, tm := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data, err := serializer.Serialize(tm.msg)
				if err != nil {
					b.Fatalf("Failed to serialize %s: %v", msgName, err)
				}
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					if err := serializer.Deserialize(data, tm.empty()); err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each message type
func BenchmarkSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		serializer := factory()

		for msgName, tm := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				data, err := serializer.Serialize(tm.msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
