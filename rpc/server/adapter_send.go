package server

import (
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/common"
	"time"
)

// NewSendServerAdapter creates the adapter for all commands that deliver data to clients
// or change their connection info. None of them is answered.
func NewSendServerAdapter() IGatewayAdapter {
	return &sendServerAdapterImpl{}
}

type sendServerAdapterImpl struct{}

func (adapter *sendServerAdapterImpl) Commands() []common.Cmd {
	return []common.Cmd{
		common.CmdBroadcast,
		common.CmdMulticast,
		common.CmdMulticastByCustomerId,
		common.CmdSingleCast,
		common.CmdSingleCastByCustomerId,
		common.CmdSingleCastBulk,
		common.CmdSingleCastBulkByCustomerId,
		common.CmdTopicSubscribe,
		common.CmdTopicUnsubscribe,
		common.CmdTopicDelete,
		common.CmdTopicPublish,
		common.CmdTopicPublishBulk,
		common.CmdForceOffline,
		common.CmdForceOfflineGuest,
		common.CmdForceOfflineByCustomerId,
		common.CmdConnInfoUpdate,
		common.CmdConnInfoDelete,
	}
}

func (adapter *sendServerAdapterImpl) Handle(req *Request, state *State) (common.Message, error) {
	switch req.Cmd {
	case common.CmdBroadcast:
		var msg common.Broadcast
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		sendAll(state.sessionsWhere(func(*session) bool { return true }), msg.Data)

	case common.CmdMulticast:
		var msg common.Multicast
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		sendAll(state.sessionsOf(msg.UniqIds), msg.Data)

	case common.CmdMulticastByCustomerId:
		var msg common.MulticastByCustomerId
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		sendAll(state.sessionsOfCustomers(msg.CustomerIds), msg.Data)

	case common.CmdSingleCast:
		var msg common.SingleCast
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		if s, ok := state.session(msg.UniqId); ok {
			s.send(msg.Data)
		}

	case common.CmdSingleCastByCustomerId:
		var msg common.SingleCastByCustomerId
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		sendAll(state.sessionsOfCustomers([]string{msg.CustomerId}), msg.Data)

	case common.CmdSingleCastBulk:
		var msg common.SingleCastBulk
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		pairwise(msg.UniqIds, msg.Data, func(uniqId string, data []byte) {
			if s, ok := state.session(uniqId); ok {
				s.send(data)
			}
		})

	case common.CmdSingleCastBulkByCustomerId:
		var msg common.SingleCastBulkByCustomerId
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		pairwise(msg.CustomerIds, msg.Data, func(customerId string, data []byte) {
			sendAll(state.sessionsOfCustomers([]string{customerId}), data)
		})

	case common.CmdTopicSubscribe:
		var msg common.TopicSubscribe
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		if s, ok := state.session(msg.UniqId); ok {
			s.subscribe(msg.Topics)
			s.send(msg.Data)
		}

	case common.CmdTopicUnsubscribe:
		var msg common.TopicUnsubscribe
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		if s, ok := state.session(msg.UniqId); ok {
			s.unsubscribe(msg.Topics)
			s.send(msg.Data)
		}

	case common.CmdTopicDelete:
		var msg common.TopicDelete
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		// every former subscriber is notified once
		for _, s := range state.sessionsWhere(func(*session) bool { return true }) {
			if s.unsubscribe(msg.Topics) {
				s.send(msg.Data)
			}
		}

	case common.CmdTopicPublish:
		var msg common.TopicPublish
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		sendAll(state.sessionsWhere(func(s *session) bool { return s.subscribedAny(msg.Topics) }), msg.Data)

	case common.CmdTopicPublishBulk:
		var msg common.TopicPublishBulk
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		pairwise(msg.Topics, msg.Data, func(topic string, data []byte) {
			sendAll(state.sessionsWhere(func(s *session) bool { return s.subscribed(topic) }), data)
		})

	case common.CmdForceOffline:
		var msg common.ForceOffline
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		kickAll(state.sessionsOf(msg.UniqIds), msg.Data, msg.Delay)

	case common.CmdForceOfflineGuest:
		var msg common.ForceOfflineGuest
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		var guests []*session
		for _, s := range state.sessionsOf(msg.UniqIds) {
			if s.isGuest() {
				guests = append(guests, s)
			}
		}
		kickAll(guests, msg.Data, msg.Delay)

	case common.CmdForceOfflineByCustomerId:
		var msg common.ForceOfflineByCustomerId
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		kickAll(state.sessionsOfCustomers(msg.CustomerIds), msg.Data, 0)

	case common.CmdConnInfoUpdate:
		var msg common.ConnInfoUpdate
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		if s, ok := state.session(msg.UniqId); ok {
			s.update(&msg)
			s.send(msg.Data)
		}

	case common.CmdConnInfoDelete:
		var msg common.ConnInfoDelete
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		if s, ok := state.session(msg.UniqId); ok {
			s.delete(&msg)
			s.send(msg.Data)
		}

	default:
		return nil, fmt.Errorf("send adapter: unsupported command %s", req.Cmd)
	}

	return nil, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func sendAll(sessions []*session, data []byte) {
	for _, s := range sessions {
		s.send(data)
	}
}

// pairwise calls fn for every key with its payload. A single key receives every payload in order,
// otherwise keys and payloads are matched by position and surplus entries are ignored.
func pairwise(keys []string, data [][]byte, fn func(key string, data []byte)) {
	if len(keys) == 1 {
		for _, d := range data {
			fn(keys[0], d)
		}
		return
	}
	for i := 0; i < len(keys) && i < len(data); i++ {
		fn(keys[i], data[i])
	}
}

// kickAll disconnects the sessions, after delay seconds if delay is positive
func kickAll(sessions []*session, data []byte, delay int32) {
	if len(sessions) == 0 {
		return
	}
	kick := func() {
		for _, s := range sessions {
			s.kick(data)
		}
	}
	if delay > 0 {
		time.AfterFunc(time.Duration(delay)*time.Second, kick)
		return
	}
	kick()
}
