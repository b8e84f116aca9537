package server

import (
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/common"
	"sort"
)

// NewQueryServerAdapter creates the adapter for all read commands.
// Every command is answered with the state of this shard only.
func NewQueryServerAdapter() IGatewayAdapter {
	return &queryServerAdapterImpl{}
}

type queryServerAdapterImpl struct{}

func (adapter *queryServerAdapterImpl) Commands() []common.Cmd {
	return []common.Cmd{
		common.CmdCheckOnline,
		common.CmdUniqIdList,
		common.CmdUniqIdCount,
		common.CmdConnInfo,
		common.CmdConnInfoByCustomerId,
		common.CmdCustomerIdList,
		common.CmdCustomerIdCount,
		common.CmdTopicList,
		common.CmdTopicCount,
		common.CmdTopicUniqIdList,
		common.CmdTopicUniqIdCount,
		common.CmdTopicCustomerIdList,
		common.CmdTopicCustomerIdCount,
		common.CmdMetrics,
		common.CmdLimit,
	}
}

func (adapter *queryServerAdapterImpl) Handle(req *Request, state *State) (common.Message, error) {
	switch req.Cmd {
	case common.CmdCheckOnline:
		var msg common.UniqIds
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		online := make([]string, 0, len(msg.UniqIds))
		for _, s := range state.sessionsOf(msg.UniqIds) {
			online = append(online, s.uniqId)
		}
		return &common.UniqIds{UniqIds: online}, nil

	case common.CmdUniqIdList:
		uniqIds := []string{}
		for _, s := range state.sessionsWhere(func(*session) bool { return true }) {
			uniqIds = append(uniqIds, s.uniqId)
		}
		return &common.UniqIds{UniqIds: uniqIds}, nil

	case common.CmdUniqIdCount:
		return &common.Count{Count: int32(state.ClientCount())}, nil

	case common.CmdConnInfo:
		var msg common.ConnInfoReq
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		items := make(map[string]common.ConnInfo)
		for _, s := range state.sessionsOf(msg.UniqIds) {
			info := s.info()
			items[s.uniqId] = common.ConnInfo{
				CustomerId: pickString(msg.ReqCustomerId, info.CustomerId),
				Session:    pickString(msg.ReqSession, info.Session),
				Topics:     pickStrings(msg.ReqTopic, info.Topics),
			}
		}
		return &common.ConnInfoResp{Items: items}, nil

	case common.CmdConnInfoByCustomerId:
		var msg common.ConnInfoByCustomerIdReq
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		items := make(map[string][]common.ConnInfo)
		for _, s := range state.sessionsOfCustomers(msg.CustomerIds) {
			info := s.info()
			items[info.CustomerId] = append(items[info.CustomerId], common.ConnInfo{
				UniqId:  pickString(msg.ReqUniqId, info.UniqId),
				Session: pickString(msg.ReqSession, info.Session),
				Topics:  pickStrings(msg.ReqTopic, info.Topics),
			})
		}
		return &common.ConnInfoByCustomerIdResp{Items: items}, nil

	case common.CmdCustomerIdList:
		return &common.Strings{Items: customerIds(state)}, nil

	case common.CmdCustomerIdCount:
		return &common.Count{Count: int32(len(customerIds(state)))}, nil

	case common.CmdTopicList:
		return &common.Strings{Items: sortedKeys(topicIndex(state, nil))}, nil

	case common.CmdTopicCount:
		return &common.Count{Count: int32(len(topicIndex(state, nil)))}, nil

	case common.CmdTopicUniqIdList:
		var msg common.TopicsReq
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		items := make(map[string][]string)
		for topic, sessions := range topicIndex(state, msg.Topics) {
			for _, s := range sessions {
				items[topic] = append(items[topic], s.uniqId)
			}
		}
		return &common.TopicMembersResp{Items: items}, nil

	case common.CmdTopicUniqIdCount:
		var msg common.TopicCountReq
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		items := make(map[string]int32)
		for topic, sessions := range topicIndex(state, countFilter(msg)) {
			items[topic] = int32(len(sessions))
		}
		return &common.TopicCountResp{Items: items}, nil

	case common.CmdTopicCustomerIdList:
		var msg common.TopicsReq
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		items := make(map[string][]string)
		for topic, sessions := range topicIndex(state, msg.Topics) {
			if ids := distinctCustomers(sessions); len(ids) > 0 {
				items[topic] = ids
			}
		}
		return &common.TopicMembersResp{Items: items}, nil

	case common.CmdTopicCustomerIdCount:
		var msg common.TopicCountReq
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		items := make(map[string]int32)
		for topic, sessions := range topicIndex(state, countFilter(msg)) {
			items[topic] = int32(len(distinctCustomers(sessions)))
		}
		return &common.TopicCountResp{Items: items}, nil

	case common.CmdMetrics:
		return &common.MetricsResp{Items: state.meters.items()}, nil

	case common.CmdLimit:
		var msg common.Limit
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		current := state.setLimit(msg)
		return &current, nil

	default:
		return nil, fmt.Errorf("query adapter: unsupported command %s", req.Cmd)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// topicIndex maps every topic to its subscribers ordered by uniqId.
// With a non nil filter only the listed topics are included, topics without subscribers are omitted.
func topicIndex(state *State, filter []string) map[string][]*session {
	var wanted map[string]struct{}
	if filter != nil {
		wanted = make(map[string]struct{}, len(filter))
		for _, topic := range filter {
			wanted[topic] = struct{}{}
		}
	}

	index := make(map[string][]*session)
	for _, s := range state.sessionsWhere(func(*session) bool { return true }) {
		for _, topic := range s.info().Topics {
			if wanted != nil {
				if _, ok := wanted[topic]; !ok {
					continue
				}
			}
			index[topic] = append(index[topic], s)
		}
	}
	return index
}

// countFilter returns the topics a count request asks for, nil means all topics
func countFilter(msg common.TopicCountReq) []string {
	if msg.CountAll {
		return nil
	}
	if msg.Topics == nil {
		return []string{}
	}
	return msg.Topics
}

// customerIds returns the distinct customer ids of all clients, sorted
func customerIds(state *State) []string {
	return distinctCustomers(state.sessionsWhere(func(*session) bool { return true }))
}

func distinctCustomers(sessions []*session) []string {
	seen := make(map[string]struct{})
	for _, s := range sessions {
		if customerId := s.customer(); customerId != "" {
			seen[customerId] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pickString(requested bool, v string) string {
	if requested {
		return v
	}
	return ""
}

func pickStrings(requested bool, v []string) []string {
	if requested {
		return v
	}
	return nil
}
