package client_test

import (
	"github.com/ValentinKolb/netbus/lib/scheduler"
	"github.com/ValentinKolb/netbus/lib/shard"
	"github.com/ValentinKolb/netbus/rpc/client"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"github.com/ValentinKolb/netbus/rpc/server"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"github.com/ValentinKolb/netbus/rpc/transport/base"
	"github.com/ValentinKolb/netbus/rpc/transport/tcp"
	"github.com/gorilla/websocket"
	"reflect"
	"sort"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Cluster fixture
// --------------------------------------------------------------------------

// cluster is a set of in-process gateway shards with a NetBus connected to all of them
type cluster struct {
	t        *testing.T
	gateways map[uint64]*server.GatewayServer
	shards   []common.ShardConfig
	tasks    *base.Pool[transport.ITaskConn]
	bus      *client.NetBus
}

func newCluster(t *testing.T, ser serializer.IRPCSerializer, shardIds ...uint64) *cluster {
	t.Helper()

	c := &cluster{t: t, gateways: make(map[uint64]*server.GatewayServer)}
	router := shard.NewHexPrefixRouter(0)

	for _, id := range shardIds {
		g := server.NewGatewayServer(common.DefaultGatewayConfig(id), router, ser)
		if err := g.Start(); err != nil {
			t.Fatalf("Failed to start shard %d: %v", id, err)
		}
		t.Cleanup(func() { _ = g.Close() })

		c.gateways[id] = g
		c.shards = append(c.shards, common.DefaultShardConfig(id, g.WorkerAddr()))
	}

	tasks, err := base.NewTaskPool(tcp.NewTCPConnector(), c.shards, scheduler.NewManualScheduler())
	if err != nil {
		t.Fatalf("NewTaskPool failed: %v", err)
	}
	t.Cleanup(func() { _ = tasks.Close() })

	c.tasks = tasks
	c.bus = client.NewNetBus(tasks, router, ser)
	return c
}

// wsClient is a websocket client connected to one shard
type wsClient struct {
	conn   *websocket.Conn
	uniqId string
}

func (c *cluster) connect(shardId uint64) *wsClient {
	c.t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(c.gateways[shardId].WebsocketURL(), nil)
	if err != nil {
		c.t.Fatalf("Dial shard %d failed: %v", shardId, err)
	}
	c.t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, hello, err := conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("Failed to read uniqId: %v", err)
	}
	return &wsClient{conn: conn, uniqId: string(hello)}
}

func (w *wsClient) expect(t *testing.T, data string) {
	t.Helper()

	_ = w.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := w.conn.ReadMessage()
	if err != nil {
		t.Fatalf("Client %s: expected %q, got error %v", w.uniqId, data, err)
	}
	if string(got) != data {
		t.Errorf("Client %s: expected %q, got %q", w.uniqId, data, got)
	}
}

// requests returns the recorded commands of every shard
func (c *cluster) requests(cmd common.Cmd) int {
	n := 0
	for _, g := range c.gateways {
		for _, req := range g.Requests() {
			if req.Cmd == cmd {
				n++
			}
		}
	}
	return n
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestGatewayRoundTrip runs the bus against two gateway shards with three clients each
func TestGatewayRoundTrip(t *testing.T) {
	for name, ser := range map[string]serializer.IRPCSerializer{
		"proto": serializer.NewProtoSerializer(),
		"json":  serializer.NewJSONSerializer(),
	} {
		t.Run(name, func(t *testing.T) {
			c := newCluster(t, ser, 1, 2)

			var clients []*wsClient
			for _, id := range []uint64{1, 1, 1, 2, 2, 2} {
				clients = append(clients, c.connect(id))
			}
			var uniqIds []string
			for _, w := range clients {
				uniqIds = append(uniqIds, w.uniqId)
			}

			t.Run("Broadcast", func(t *testing.T) {
				if err := c.bus.Broadcast([]byte("everyone")); err != nil {
					t.Fatalf("Broadcast failed: %v", err)
				}
				for _, w := range clients {
					w.expect(t, "everyone")
				}
			})

			t.Run("SingleCastBulk", func(t *testing.T) {
				ids := []string{uniqIds[0], uniqIds[3], uniqIds[1], uniqIds[4], uniqIds[2]}
				data := [][]byte{[]byte("p0"), []byte("p3"), []byte("p1"), []byte("p4"), []byte("p2")}

				before := c.requests(common.CmdSingleCastBulk)
				if err := c.bus.SingleCastBulk(ids, data); err != nil {
					t.Fatalf("SingleCastBulk failed: %v", err)
				}
				for i, w := range clients[:5] {
					w.expect(t, "p"+string(rune('0'+i)))
				}
				if got := c.requests(common.CmdSingleCastBulk) - before; got != 2 {
					t.Errorf("Expected one request per shard, got %d", got)
				}
			})

			t.Run("Topics", func(t *testing.T) {
				for _, id := range uniqIds {
					if err := c.bus.TopicSubscribe(id, []string{"room"}, nil); err != nil {
						t.Fatalf("TopicSubscribe failed: %v", err)
					}
				}

				counts, err := c.bus.TopicUniqIdCount([]string{"room"}, false)
				if err != nil {
					t.Fatalf("TopicUniqIdCount failed: %v", err)
				}
				if counts["room"] != 6 {
					t.Errorf("Expected 6 subscribers, got %v", counts)
				}

				members, err := c.bus.TopicUniqIdList([]string{"room"})
				if err != nil {
					t.Fatalf("TopicUniqIdList failed: %v", err)
				}
				got := append([]string(nil), members["room"]...)
				sort.Strings(got)
				want := append([]string(nil), uniqIds...)
				sort.Strings(want)
				if !reflect.DeepEqual(got, want) {
					t.Errorf("Expected members %v, got %v", want, got)
				}

				if err := c.bus.TopicPublish([]string{"room"}, []byte("news")); err != nil {
					t.Fatalf("TopicPublish failed: %v", err)
				}
				for _, w := range clients {
					w.expect(t, "news")
				}

				topics, err := c.bus.TopicList()
				if err != nil {
					t.Fatalf("TopicList failed: %v", err)
				}
				if !reflect.DeepEqual(topics, []string{"room"}) {
					t.Errorf("Expected [room], got %v", topics)
				}
			})

			t.Run("Customers", func(t *testing.T) {
				for _, id := range []string{uniqIds[0], uniqIds[5]} {
					if err := c.bus.ConnInfoUpdate(&common.ConnInfoUpdate{UniqId: id, NewCustomerId: "alice"}); err != nil {
						t.Fatalf("ConnInfoUpdate failed: %v", err)
					}
				}

				customers, err := c.bus.CustomerIdList()
				if err != nil {
					t.Fatalf("CustomerIdList failed: %v", err)
				}
				if !reflect.DeepEqual(customers, []string{"alice"}) {
					t.Errorf("Expected [alice], got %v", customers)
				}

				infos, err := c.bus.ConnInfoByCustomerId(common.ConnInfoByCustomerIdReq{CustomerIds: []string{"alice"}, ReqUniqId: true})
				if err != nil {
					t.Fatalf("ConnInfoByCustomerId failed: %v", err)
				}
				if len(infos["alice"]) != 2 {
					t.Errorf("Expected 2 connections of alice, got %+v", infos)
				}

				if err := c.bus.SingleCastByCustomerId("alice", []byte("hi alice")); err != nil {
					t.Fatalf("SingleCastByCustomerId failed: %v", err)
				}
				clients[0].expect(t, "hi alice")
				clients[5].expect(t, "hi alice")
			})

			t.Run("Reads", func(t *testing.T) {
				count, err := c.bus.UniqIdCount()
				if err != nil {
					t.Fatalf("UniqIdCount failed: %v", err)
				}
				if count != 6 {
					t.Errorf("Expected 6 clients, got %d", count)
				}

				online, err := c.bus.CheckOnline([]string{uniqIds[4], "01ffffffff", uniqIds[1]})
				if err != nil {
					t.Fatalf("CheckOnline failed: %v", err)
				}
				sort.Strings(online)
				want := []string{uniqIds[1], uniqIds[4]}
				sort.Strings(want)
				if !reflect.DeepEqual(online, want) {
					t.Errorf("Expected %v, got %v", want, online)
				}

				metrics, err := c.bus.Metrics()
				if err != nil {
					t.Fatalf("Metrics failed: %v", err)
				}
				if len(metrics) != 2 {
					t.Errorf("Expected metrics of 2 shards, got %d", len(metrics))
				}
			})

			t.Run("ForceOffline", func(t *testing.T) {
				if err := c.bus.ForceOffline([]string{uniqIds[2], uniqIds[3]}, []byte("bye")); err != nil {
					t.Fatalf("ForceOffline failed: %v", err)
				}
				clients[2].expect(t, "bye")
				clients[3].expect(t, "bye")

				deadline := time.Now().Add(3 * time.Second)
				for {
					count, err := c.bus.UniqIdCount()
					if err != nil {
						t.Fatalf("UniqIdCount failed: %v", err)
					}
					if count == 4 {
						break
					}
					if time.Now().After(deadline) {
						t.Fatalf("Expected 4 clients after ForceOffline, got %d", count)
					}
					time.Sleep(10 * time.Millisecond)
				}
			})
		})
	}
}

// TestGatewayPushEvents tests that events of all shards reach the push connections
func TestGatewayPushEvents(t *testing.T) {
	ser := serializer.NewProtoSerializer()
	c := newCluster(t, ser, 1, 2)

	type event struct {
		kind    string
		shardId uint64
		uniqId  string
	}
	events := make(chan event, 16)
	handler := transport.EventHandlerFuncs{
		Open: func(shardId uint64, msg *common.ConnOpen) {
			events <- event{kind: "open", shardId: shardId, uniqId: msg.UniqId}
		},
		Message: func(shardId uint64, msg *common.Transfer) {
			events <- event{kind: "message", shardId: shardId, uniqId: msg.UniqId}
		},
		Close: func(shardId uint64, msg *common.ConnClose) {
			events <- event{kind: "close", shardId: shardId, uniqId: msg.UniqId}
		},
	}

	pool := base.NewPushPool(tcp.NewTCPConnector(), c.shards, common.DefaultPushConfig(), ser, handler, c.tasks, scheduler.NewManualScheduler())
	manager := base.NewPushManager(pool)
	if err := manager.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = manager.Close() })

	expect := func(expected event) {
		t.Helper()
		select {
		case got := <-events:
			if got != expected {
				t.Errorf("Expected event %+v, got %+v", expected, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timeout waiting for %+v", expected)
		}
	}

	w := c.connect(2)
	expect(event{kind: "open", shardId: 2, uniqId: w.uniqId})

	if err := w.conn.WriteMessage(websocket.TextMessage, []byte("ping from client")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	expect(event{kind: "message", shardId: 2, uniqId: w.uniqId})

	_ = w.conn.Close()
	expect(event{kind: "close", shardId: 2, uniqId: w.uniqId})

	if err := manager.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	for id, g := range c.gateways {
		if n := g.State().PushCount(); n != 0 {
			t.Errorf("Shard %d: expected no push connection after Close, got %d", id, n)
		}
	}
}
