package server

import (
	"fmt"
	"github.com/ValentinKolb/netbus/lib/queue"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"github.com/ValentinKolb/netbus/rpc/transport/base"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"sync"
	"sync/atomic"
)

// Request is one worker command received by the gateway
type Request struct {
	Cmd     common.Cmd
	Payload []byte
	// Conn is the worker connection the command arrived on
	Conn *base.ServerConn

	serializer serializer.IRPCSerializer
}

// Decode deserializes the payload of the request into msg
func (r *Request) Decode(msg common.Message) error {
	if err := r.serializer.Deserialize(r.Payload, msg); err != nil {
		return fmt.Errorf("invalid %s payload: %w", r.Cmd, err)
	}
	return nil
}

// Reply writes msg to the worker connection with the opcode of the request
func (r *Request) Reply(msg common.Message) error {
	payload, err := r.serializer.Serialize(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s reply: %w", r.Cmd, err)
	}
	return r.Conn.Write(common.PackBody(r.Cmd, payload))
}

// --------------------------------------------------------------------------
// Push targets
// --------------------------------------------------------------------------

// pushTarget is a registered push connection of a business process.
// Events are queued in outbox and written by a single goroutine.
type pushTarget struct {
	connId string
	events common.Event
	conn   *base.ServerConn
	outbox *queue.MPSC[[]byte]
}

func newPushTarget(connId string, events common.Event, conn *base.ServerConn) *pushTarget {
	t := &pushTarget{
		connId: connId,
		events: events,
		conn:   conn,
		outbox: queue.NewMPSC[[]byte](),
	}
	go t.drain()
	return t
}

func (t *pushTarget) drain() {
	for body := range t.outbox.Recv() {
		if err := t.conn.Write(body); err != nil {
			Logger.Warningf("Failed to push event to %s: %v", t.connId, err)
		}
	}
}

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// State holds the clients, topics and push connections of one gateway shard
type State struct {
	shardId    uint64
	serializer serializer.IRPCSerializer

	sessions *xsync.MapOf[string, *session]
	pushes   *xsync.MapOf[string, *pushTarget]
	pushSeq  atomic.Uint64
	pushNext atomic.Uint64

	meters *meters

	limitMu sync.Mutex
	limit   common.Limit
}

func newState(shardId uint64, serializer serializer.IRPCSerializer) *State {
	return &State{
		shardId:    shardId,
		serializer: serializer,
		sessions:   xsync.NewMapOf[string, *session](),
		pushes:     xsync.NewMapOf[string, *pushTarget](),
		meters:     newMeters(),
	}
}

// ClientCount returns the number of connected clients
func (st *State) ClientCount() int {
	return st.sessions.Size()
}

// PushCount returns the number of registered push connections
func (st *State) PushCount() int {
	return st.pushes.Size()
}

// session returns the client with the given uniqId
func (st *State) session(uniqId string) (*session, bool) {
	return st.sessions.Load(uniqId)
}

// sessionsOf returns the connected clients among uniqIds, in the order of uniqIds
func (st *State) sessionsOf(uniqIds []string) []*session {
	result := make([]*session, 0, len(uniqIds))
	for _, uniqId := range uniqIds {
		if s, ok := st.sessions.Load(uniqId); ok {
			result = append(result, s)
		}
	}
	return result
}

// sessionsWhere returns the clients matching fn ordered by uniqId
func (st *State) sessionsWhere(fn func(s *session) bool) []*session {
	var result []*session
	st.sessions.Range(func(_ string, s *session) bool {
		if fn(s) {
			result = append(result, s)
		}
		return true
	})
	sort.Slice(result, func(i, j int) bool { return result[i].uniqId < result[j].uniqId })
	return result
}

// sessionsOfCustomers returns the clients of the given customers
func (st *State) sessionsOfCustomers(customerIds []string) []*session {
	wanted := make(map[string]struct{}, len(customerIds))
	for _, id := range customerIds {
		wanted[id] = struct{}{}
	}
	return st.sessionsWhere(func(s *session) bool {
		customerId := s.customer()
		if customerId == "" {
			return false
		}
		_, ok := wanted[customerId]
		return ok
	})
}

// registerPush adds a push connection and returns its id. ack is called with the new id
// before the connection receives events, if it fails the connection is not added.
func (st *State) registerPush(conn *base.ServerConn, events common.Event, ack func(connId string) error) (string, error) {
	connId := fmt.Sprintf("%d-%d", st.shardId, st.pushSeq.Add(1))
	if err := ack(connId); err != nil {
		return "", err
	}
	st.pushes.Store(connId, newPushTarget(connId, events, conn))
	Logger.Infof("Shard %d: registered push connection %s (events %03b)", st.shardId, connId, uint32(events))
	return connId, nil
}

// unregisterPush removes a push connection, it returns false if the id is unknown
func (st *State) unregisterPush(connId string) bool {
	target, ok := st.pushes.LoadAndDelete(connId)
	if !ok {
		return false
	}
	target.outbox.Close()
	Logger.Infof("Shard %d: unregistered push connection %s", st.shardId, connId)
	return true
}

// dropPushes removes every push connection registered over the worker connection connID
func (st *State) dropPushes(connID uint64) {
	st.pushes.Range(func(connId string, target *pushTarget) bool {
		if target.conn.ID() == connID {
			st.unregisterPush(connId)
		}
		return true
	})
}

// emit forwards an event to one push connection subscribed to it.
// The connections take turns, events without subscriber are dropped.
func (st *State) emit(cmd common.Cmd, event common.Event, msg common.Message) {
	var targets []*pushTarget
	st.pushes.Range(func(_ string, target *pushTarget) bool {
		if target.events.Has(event) {
			targets = append(targets, target)
		}
		return true
	})
	if len(targets) == 0 {
		Logger.Debugf("Shard %d: no push connection for %s", st.shardId, cmd)
		return
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].connId < targets[j].connId })

	payload, err := st.serializer.Serialize(msg)
	if err != nil {
		Logger.Errorf("Shard %d: failed to encode %s: %v", st.shardId, cmd, err)
		return
	}

	target := targets[st.pushNext.Add(1)%uint64(len(targets))]
	if !target.outbox.Push(common.PackBody(cmd, payload)) {
		Logger.Debugf("Shard %d: push connection %s is gone, dropped %s", st.shardId, target.connId, cmd)
	}
}

// setLimit updates the non zero fields of limit and returns the current limits
func (st *State) setLimit(limit common.Limit) common.Limit {
	st.limitMu.Lock()
	defer st.limitMu.Unlock()

	if limit.OnMessage > 0 {
		st.limit.OnMessage = limit.OnMessage
	}
	if limit.OnOpen > 0 {
		st.limit.OnOpen = limit.OnOpen
	}
	return st.limit
}

// close releases the push connections and the meters
func (st *State) close() {
	st.pushes.Range(func(connId string, _ *pushTarget) bool {
		st.unregisterPush(connId)
		return true
	})
	st.meters.stop()
}
