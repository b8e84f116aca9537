package common

// --------------------------------------------------------------------------
// Message Interface
// --------------------------------------------------------------------------

// Message is implemented by every payload exchanged with a gateway shard.
// The payload follows the opcode in the frame body (see PackBody).
type Message interface {
	// MarshalProto appends the protobuf wire encoding of the message to b
	MarshalProto(b []byte) []byte
	// UnmarshalProto decodes the protobuf wire encoding into the message.
	// Unknown fields are skipped.
	UnmarshalProto(b []byte) error
}

// --------------------------------------------------------------------------
// Push Connection Management
// --------------------------------------------------------------------------

// RegisterReq registers a push connection for the events in Events
type RegisterReq struct {
	Events                 Event  `json:"events"`
	ProcessCmdGoroutineNum uint32 `json:"processCmdGoroutineNum"`
}

func (m *RegisterReq) MarshalProto(b []byte) []byte {
	b = appendVarint(b, 1, uint64(m.Events))
	return appendVarint(b, 2, uint64(m.ProcessCmdGoroutineNum))
}

func (m *RegisterReq) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.Events = Event(r.varint())
		case 2:
			m.ProcessCmdGoroutineNum = uint32(r.varint())
		default:
			r.skip()
		}
	}
	return r.err
}

// RegisterResp answers a RegisterReq. Code 0 means success.
type RegisterResp struct {
	Code    int32  `json:"code"`
	Message string `json:"message,omitempty"`
	ConnId  string `json:"connId,omitempty"`
}

func (m *RegisterResp) MarshalProto(b []byte) []byte {
	b = appendInt32(b, 1, m.Code)
	b = appendString(b, 2, m.Message)
	return appendString(b, 3, m.ConnId)
}

func (m *RegisterResp) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.Code = r.int32()
		case 2:
			m.Message = r.string()
		case 3:
			m.ConnId = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

// UnRegisterReq removes the push connection with the given id
type UnRegisterReq struct {
	ConnId string `json:"connId"`
}

func (m *UnRegisterReq) MarshalProto(b []byte) []byte {
	return appendString(b, 1, m.ConnId)
}

func (m *UnRegisterReq) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.ConnId = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

// UnRegisterResp acknowledges an UnRegisterReq, it carries no fields
type UnRegisterResp = Empty

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// Transfer carries a message a client sent to the gateway
type Transfer struct {
	UniqId     string   `json:"uniqId"`
	Data       []byte   `json:"data,omitempty"`
	Session    string   `json:"session,omitempty"`
	CustomerId string   `json:"customerId,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

func (m *Transfer) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.UniqId)
	b = appendBytes(b, 2, m.Data)
	b = appendString(b, 3, m.Session)
	b = appendString(b, 4, m.CustomerId)
	return appendStrings(b, 5, m.Topics)
}

func (m *Transfer) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqId = r.string()
		case 2:
			m.Data = r.bytes()
		case 3:
			m.Session = r.string()
		case 4:
			m.CustomerId = r.string()
		case 5:
			m.Topics = append(m.Topics, r.string())
		default:
			r.skip()
		}
	}
	return r.err
}

// ConnOpen is pushed when a client connected
type ConnOpen struct {
	UniqId        string   `json:"uniqId"`
	RawQuery      string   `json:"rawQuery,omitempty"`
	SubProtocol   []string `json:"subProtocol,omitempty"`
	XForwardedFor string   `json:"xForwardedFor,omitempty"`
	RemoteAddr    string   `json:"remoteAddr,omitempty"`
}

func (m *ConnOpen) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.UniqId)
	b = appendString(b, 2, m.RawQuery)
	b = appendStrings(b, 3, m.SubProtocol)
	b = appendString(b, 4, m.XForwardedFor)
	return appendString(b, 5, m.RemoteAddr)
}

func (m *ConnOpen) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqId = r.string()
		case 2:
			m.RawQuery = r.string()
		case 3:
			m.SubProtocol = append(m.SubProtocol, r.string())
		case 4:
			m.XForwardedFor = r.string()
		case 5:
			m.RemoteAddr = r.string()
		default:
			r.skip()
		}
	}
	return r.err
}

// ConnClose is pushed when a client disconnected
type ConnClose struct {
	UniqId     string   `json:"uniqId"`
	CustomerId string   `json:"customerId,omitempty"`
	Session    string   `json:"session,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

func (m *ConnClose) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.UniqId)
	b = appendString(b, 2, m.CustomerId)
	b = appendString(b, 3, m.Session)
	return appendStrings(b, 4, m.Topics)
}

func (m *ConnClose) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqId = r.string()
		case 2:
			m.CustomerId = r.string()
		case 3:
			m.Session = r.string()
		case 4:
			m.Topics = append(m.Topics, r.string())
		default:
			r.skip()
		}
	}
	return r.err
}

// --------------------------------------------------------------------------
// Delivery
// --------------------------------------------------------------------------

// Broadcast sends Data to every client of a shard
type Broadcast struct {
	Data []byte `json:"data"`
}

func (m *Broadcast) MarshalProto(b []byte) []byte {
	return appendBytes(b, 1, m.Data)
}

func (m *Broadcast) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// Multicast sends Data to every listed uniqId
type Multicast struct {
	UniqIds []string `json:"uniqIds"`
	Data    []byte   `json:"data"`
}

func (m *Multicast) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.UniqIds)
	return appendBytes(b, 2, m.Data)
}

func (m *Multicast) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqIds = append(m.UniqIds, r.string())
		case 2:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// MulticastByCustomerId sends Data to every connection of the listed customers
type MulticastByCustomerId struct {
	CustomerIds []string `json:"customerIds"`
	Data        []byte   `json:"data"`
}

func (m *MulticastByCustomerId) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.CustomerIds)
	return appendBytes(b, 2, m.Data)
}

func (m *MulticastByCustomerId) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.CustomerIds = append(m.CustomerIds, r.string())
		case 2:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// SingleCast sends Data to one uniqId
type SingleCast struct {
	UniqId string `json:"uniqId"`
	Data   []byte `json:"data"`
}

func (m *SingleCast) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.UniqId)
	return appendBytes(b, 2, m.Data)
}

func (m *SingleCast) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqId = r.string()
		case 2:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// SingleCastByCustomerId sends Data to every connection of one customer
type SingleCastByCustomerId struct {
	CustomerId string `json:"customerId"`
	Data       []byte `json:"data"`
}

func (m *SingleCastByCustomerId) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.CustomerId)
	return appendBytes(b, 2, m.Data)
}

func (m *SingleCastByCustomerId) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.CustomerId = r.string()
		case 2:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// SingleCastBulk sends Data[i] to UniqIds[i]
type SingleCastBulk struct {
	UniqIds []string `json:"uniqIds"`
	Data    [][]byte `json:"data"`
}

func (m *SingleCastBulk) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.UniqIds)
	return appendBytesList(b, 2, m.Data)
}

func (m *SingleCastBulk) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqIds = append(m.UniqIds, r.string())
		case 2:
			m.Data = append(m.Data, r.bytes())
		default:
			r.skip()
		}
	}
	return r.err
}

// SingleCastBulkByCustomerId sends Data[i] to every connection of CustomerIds[i]
type SingleCastBulkByCustomerId struct {
	CustomerIds []string `json:"customerIds"`
	Data        [][]byte `json:"data"`
}

func (m *SingleCastBulkByCustomerId) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.CustomerIds)
	return appendBytesList(b, 2, m.Data)
}

func (m *SingleCastBulkByCustomerId) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.CustomerIds = append(m.CustomerIds, r.string())
		case 2:
			m.Data = append(m.Data, r.bytes())
		default:
			r.skip()
		}
	}
	return r.err
}

// --------------------------------------------------------------------------
// Topics
// --------------------------------------------------------------------------

// TopicSubscribe subscribes UniqId to Topics, Data is sent to the client afterwards if set.
// The same layout is used for CmdTopicUnsubscribe.
type TopicSubscribe struct {
	UniqId string   `json:"uniqId"`
	Topics []string `json:"topics"`
	Data   []byte   `json:"data,omitempty"`
}

func (m *TopicSubscribe) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.UniqId)
	b = appendStrings(b, 2, m.Topics)
	return appendBytes(b, 3, m.Data)
}

func (m *TopicSubscribe) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqId = r.string()
		case 2:
			m.Topics = append(m.Topics, r.string())
		case 3:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// TopicUnsubscribe has the same layout as TopicSubscribe
type TopicUnsubscribe = TopicSubscribe

// TopicPublish sends Data to every member of Topics.
// The same layout is used for CmdTopicDelete, where Data is sent to the members before the topic is removed.
type TopicPublish struct {
	Topics []string `json:"topics"`
	Data   []byte   `json:"data,omitempty"`
}

func (m *TopicPublish) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.Topics)
	return appendBytes(b, 2, m.Data)
}

func (m *TopicPublish) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.Topics = append(m.Topics, r.string())
		case 2:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// TopicDelete has the same layout as TopicPublish
type TopicDelete = TopicPublish

// TopicPublishBulk sends Data[i] to Topics[i]. A single topic receives every entry of Data.
type TopicPublishBulk struct {
	Topics []string `json:"topics"`
	Data   [][]byte `json:"data"`
}

func (m *TopicPublishBulk) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.Topics)
	return appendBytesList(b, 2, m.Data)
}

func (m *TopicPublishBulk) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.Topics = append(m.Topics, r.string())
		case 2:
			m.Data = append(m.Data, r.bytes())
		default:
			r.skip()
		}
	}
	return r.err
}

// TopicsReq is the request of CmdTopicUniqIdList and CmdTopicCustomerIdList
type TopicsReq struct {
	Topics []string `json:"topics"`
}

func (m *TopicsReq) MarshalProto(b []byte) []byte {
	return appendStrings(b, 1, m.Topics)
}

func (m *TopicsReq) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.Topics = append(m.Topics, r.string())
		default:
			r.skip()
		}
	}
	return r.err
}

// TopicCountReq is the request of CmdTopicUniqIdCount and CmdTopicCustomerIdCount.
// If CountAll is set, Topics is ignored and every topic is counted.
type TopicCountReq struct {
	Topics   []string `json:"topics,omitempty"`
	CountAll bool     `json:"countAll,omitempty"`
}

func (m *TopicCountReq) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.Topics)
	return appendBool(b, 2, m.CountAll)
}

func (m *TopicCountReq) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.Topics = append(m.Topics, r.string())
		case 2:
			m.CountAll = r.bool()
		default:
			r.skip()
		}
	}
	return r.err
}

// TopicMembersResp maps a topic to its members (uniqIds or customer ids)
type TopicMembersResp struct {
	Items map[string][]string `json:"items"`
}

func (m *TopicMembersResp) MarshalProto(b []byte) []byte {
	return appendMap(b, 1, m.Items, func(e []byte, v []string) []byte {
		return appendEmbedded(e, 2, func(s []byte) []byte {
			return appendStrings(s, 1, v)
		})
	})
}

func (m *TopicMembersResp) UnmarshalProto(b []byte) error {
	m.Items = make(map[string][]string)
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			var members []string
			key := r.mapEntry(func(sub *fieldReader) {
				sub.embedded(func(list *fieldReader) {
					for list.next() {
						if list.num == 1 {
							members = append(members, list.string())
						} else {
							list.skip()
						}
					}
				})
			})
			m.Items[key] = members
		default:
			r.skip()
		}
	}
	return r.err
}

// TopicCountResp maps a topic to a number of members
type TopicCountResp struct {
	Items map[string]int32 `json:"items"`
}

func (m *TopicCountResp) MarshalProto(b []byte) []byte {
	return appendMap(b, 1, m.Items, func(e []byte, v int32) []byte {
		return appendInt32(e, 2, v)
	})
}

func (m *TopicCountResp) UnmarshalProto(b []byte) error {
	m.Items = make(map[string]int32)
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			var count int32
			key := r.mapEntry(func(sub *fieldReader) {
				count = sub.int32()
			})
			m.Items[key] = count
		default:
			r.skip()
		}
	}
	return r.err
}

// --------------------------------------------------------------------------
// Connection Management
// --------------------------------------------------------------------------

// ForceOffline disconnects UniqIds after sending Data.
// For CmdForceOfflineGuest only connections without customer id and session are affected,
// Delay is the number of seconds to wait before closing.
type ForceOffline struct {
	UniqIds []string `json:"uniqIds"`
	Data    []byte   `json:"data,omitempty"`
	Delay   int32    `json:"delay,omitempty"`
}

func (m *ForceOffline) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.UniqIds)
	b = appendBytes(b, 2, m.Data)
	return appendInt32(b, 3, m.Delay)
}

func (m *ForceOffline) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqIds = append(m.UniqIds, r.string())
		case 2:
			m.Data = r.bytes()
		case 3:
			m.Delay = r.int32()
		default:
			r.skip()
		}
	}
	return r.err
}

// ForceOfflineGuest has the same layout as ForceOffline
type ForceOfflineGuest = ForceOffline

// ForceOfflineByCustomerId disconnects every connection of the listed customers
type ForceOfflineByCustomerId struct {
	CustomerIds []string `json:"customerIds"`
	Data        []byte   `json:"data,omitempty"`
}

func (m *ForceOfflineByCustomerId) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.CustomerIds)
	return appendBytes(b, 2, m.Data)
}

func (m *ForceOfflineByCustomerId) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.CustomerIds = append(m.CustomerIds, r.string())
		case 2:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// ConnInfoUpdate replaces session, topics or customer id of a connection. Empty fields are left untouched.
type ConnInfoUpdate struct {
	UniqId        string   `json:"uniqId"`
	NewSession    string   `json:"newSession,omitempty"`
	NewTopics     []string `json:"newTopics,omitempty"`
	NewCustomerId string   `json:"newCustomerId,omitempty"`
	Data          []byte   `json:"data,omitempty"`
}

func (m *ConnInfoUpdate) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.UniqId)
	b = appendString(b, 2, m.NewSession)
	b = appendStrings(b, 3, m.NewTopics)
	b = appendString(b, 4, m.NewCustomerId)
	return appendBytes(b, 5, m.Data)
}

func (m *ConnInfoUpdate) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqId = r.string()
		case 2:
			m.NewSession = r.string()
		case 3:
			m.NewTopics = append(m.NewTopics, r.string())
		case 4:
			m.NewCustomerId = r.string()
		case 5:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// ConnInfoDelete removes session, topics or customer id of a connection
type ConnInfoDelete struct {
	UniqId        string `json:"uniqId"`
	DelSession    bool   `json:"delSession,omitempty"`
	DelTopic      bool   `json:"delTopic,omitempty"`
	DelCustomerId bool   `json:"delCustomerId,omitempty"`
	Data          []byte `json:"data,omitempty"`
}

func (m *ConnInfoDelete) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.UniqId)
	b = appendBool(b, 2, m.DelSession)
	b = appendBool(b, 3, m.DelTopic)
	b = appendBool(b, 4, m.DelCustomerId)
	return appendBytes(b, 5, m.Data)
}

func (m *ConnInfoDelete) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqId = r.string()
		case 2:
			m.DelSession = r.bool()
		case 3:
			m.DelTopic = r.bool()
		case 4:
			m.DelCustomerId = r.bool()
		case 5:
			m.Data = r.bytes()
		default:
			r.skip()
		}
	}
	return r.err
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// UniqIds is a plain list of uniqIds. It is the request and response of CmdCheckOnline
// and the response of CmdUniqIdList.
type UniqIds struct {
	UniqIds []string `json:"uniqIds"`
}

func (m *UniqIds) MarshalProto(b []byte) []byte {
	return appendStrings(b, 1, m.UniqIds)
}

func (m *UniqIds) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqIds = append(m.UniqIds, r.string())
		default:
			r.skip()
		}
	}
	return r.err
}

// Strings is a plain list of names, the response of CmdCustomerIdList and CmdTopicList
type Strings struct {
	Items []string `json:"items"`
}

func (m *Strings) MarshalProto(b []byte) []byte {
	return appendStrings(b, 1, m.Items)
}

func (m *Strings) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.Items = append(m.Items, r.string())
		default:
			r.skip()
		}
	}
	return r.err
}

// Count is the response of CmdUniqIdCount, CmdCustomerIdCount and CmdTopicCount
type Count struct {
	Count int32 `json:"count"`
}

func (m *Count) MarshalProto(b []byte) []byte {
	return appendInt32(b, 1, m.Count)
}

func (m *Count) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.Count = r.int32()
		default:
			r.skip()
		}
	}
	return r.err
}

// ConnInfoReq asks for the connection info of UniqIds. The Req* flags select the returned fields.
type ConnInfoReq struct {
	UniqIds       []string `json:"uniqIds"`
	ReqCustomerId bool     `json:"reqCustomerId,omitempty"`
	ReqSession    bool     `json:"reqSession,omitempty"`
	ReqTopic      bool     `json:"reqTopic,omitempty"`
}

func (m *ConnInfoReq) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.UniqIds)
	b = appendBool(b, 2, m.ReqCustomerId)
	b = appendBool(b, 3, m.ReqSession)
	return appendBool(b, 4, m.ReqTopic)
}

func (m *ConnInfoReq) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UniqIds = append(m.UniqIds, r.string())
		case 2:
			m.ReqCustomerId = r.bool()
		case 3:
			m.ReqSession = r.bool()
		case 4:
			m.ReqTopic = r.bool()
		default:
			r.skip()
		}
	}
	return r.err
}

// ConnInfo is the info of one connection
type ConnInfo struct {
	UniqId     string   `json:"uniqId,omitempty"`
	CustomerId string   `json:"customerId,omitempty"`
	Session    string   `json:"session,omitempty"`
	Topics     []string `json:"topics,omitempty"`
}

func (m *ConnInfo) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.UniqId)
	b = appendString(b, 2, m.CustomerId)
	b = appendString(b, 3, m.Session)
	return appendStrings(b, 4, m.Topics)
}

func (m *ConnInfo) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	m.read(r)
	return r.err
}

func (m *ConnInfo) read(r *fieldReader) {
	for r.next() {
		switch r.num {
		case 1:
			m.UniqId = r.string()
		case 2:
			m.CustomerId = r.string()
		case 3:
			m.Session = r.string()
		case 4:
			m.Topics = append(m.Topics, r.string())
		default:
			r.skip()
		}
	}
}

// ConnInfoResp maps a uniqId to its connection info
type ConnInfoResp struct {
	Items map[string]ConnInfo `json:"items"`
}

func (m *ConnInfoResp) MarshalProto(b []byte) []byte {
	return appendMap(b, 1, m.Items, func(e []byte, v ConnInfo) []byte {
		return appendEmbedded(e, 2, v.MarshalProto)
	})
}

func (m *ConnInfoResp) UnmarshalProto(b []byte) error {
	m.Items = make(map[string]ConnInfo)
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			var info ConnInfo
			key := r.mapEntry(func(sub *fieldReader) {
				sub.embedded(info.read)
			})
			m.Items[key] = info
		default:
			r.skip()
		}
	}
	return r.err
}

// ConnInfoByCustomerIdReq asks for the connections of CustomerIds
type ConnInfoByCustomerIdReq struct {
	CustomerIds []string `json:"customerIds"`
	ReqUniqId   bool     `json:"reqUniqId,omitempty"`
	ReqSession  bool     `json:"reqSession,omitempty"`
	ReqTopic    bool     `json:"reqTopic,omitempty"`
}

func (m *ConnInfoByCustomerIdReq) MarshalProto(b []byte) []byte {
	b = appendStrings(b, 1, m.CustomerIds)
	b = appendBool(b, 2, m.ReqUniqId)
	b = appendBool(b, 3, m.ReqSession)
	return appendBool(b, 4, m.ReqTopic)
}

func (m *ConnInfoByCustomerIdReq) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.CustomerIds = append(m.CustomerIds, r.string())
		case 2:
			m.ReqUniqId = r.bool()
		case 3:
			m.ReqSession = r.bool()
		case 4:
			m.ReqTopic = r.bool()
		default:
			r.skip()
		}
	}
	return r.err
}

// ConnInfoByCustomerIdResp maps a customer id to all of its connections
type ConnInfoByCustomerIdResp struct {
	Items map[string][]ConnInfo `json:"items"`
}

func (m *ConnInfoByCustomerIdResp) MarshalProto(b []byte) []byte {
	return appendMap(b, 1, m.Items, func(e []byte, v []ConnInfo) []byte {
		return appendEmbedded(e, 2, func(s []byte) []byte {
			for i := range v {
				s = appendEmbedded(s, 1, v[i].MarshalProto)
			}
			return s
		})
	})
}

func (m *ConnInfoByCustomerIdResp) UnmarshalProto(b []byte) error {
	m.Items = make(map[string][]ConnInfo)
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			var infos []ConnInfo
			key := r.mapEntry(func(sub *fieldReader) {
				sub.embedded(func(list *fieldReader) {
					for list.next() {
						if list.num != 1 {
							list.skip()
							continue
						}
						var info ConnInfo
						list.embedded(info.read)
						infos = append(infos, info)
					}
				})
			})
			m.Items[key] = infos
		default:
			r.skip()
		}
	}
	return r.err
}

// MetricsItem holds the rates of one gateway metric
type MetricsItem struct {
	Item        string  `json:"item"`
	Count       int64   `json:"count"`
	MeanRate    float64 `json:"meanRate"`
	MeanRateMax float64 `json:"meanRateMax"`
	Rate1       float64 `json:"rate1"`
	Rate1Max    float64 `json:"rate1Max"`
	Rate5       float64 `json:"rate5"`
	Rate5Max    float64 `json:"rate5Max"`
	Rate15      float64 `json:"rate15"`
	Rate15Max   float64 `json:"rate15Max"`
}

func (m *MetricsItem) MarshalProto(b []byte) []byte {
	b = appendString(b, 1, m.Item)
	b = appendVarint(b, 2, uint64(m.Count))
	b = appendDouble(b, 3, m.MeanRate)
	b = appendDouble(b, 4, m.MeanRateMax)
	b = appendDouble(b, 5, m.Rate1)
	b = appendDouble(b, 6, m.Rate1Max)
	b = appendDouble(b, 7, m.Rate5)
	b = appendDouble(b, 8, m.Rate5Max)
	b = appendDouble(b, 9, m.Rate15)
	return appendDouble(b, 10, m.Rate15Max)
}

func (m *MetricsItem) read(r *fieldReader) {
	for r.next() {
		switch r.num {
		case 1:
			m.Item = r.string()
		case 2:
			m.Count = int64(r.varint())
		case 3:
			m.MeanRate = r.double()
		case 4:
			m.MeanRateMax = r.double()
		case 5:
			m.Rate1 = r.double()
		case 6:
			m.Rate1Max = r.double()
		case 7:
			m.Rate5 = r.double()
		case 8:
			m.Rate5Max = r.double()
		case 9:
			m.Rate15 = r.double()
		case 10:
			m.Rate15Max = r.double()
		default:
			r.skip()
		}
	}
}

// MetricsResp is the response of CmdMetrics
type MetricsResp struct {
	Items []MetricsItem `json:"items"`
}

func (m *MetricsResp) MarshalProto(b []byte) []byte {
	for i := range m.Items {
		b = appendEmbedded(b, 1, m.Items[i].MarshalProto)
	}
	return b
}

func (m *MetricsResp) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			var item MetricsItem
			r.embedded(item.read)
			m.Items = append(m.Items, item)
		default:
			r.skip()
		}
	}
	return r.err
}

// Limit is the request and response of CmdLimit. A request with zero values only reads the limits.
type Limit struct {
	OnMessage int32 `json:"onMessage"`
	OnOpen    int32 `json:"onOpen"`
}

func (m *Limit) MarshalProto(b []byte) []byte {
	b = appendInt32(b, 1, m.OnMessage)
	return appendInt32(b, 2, m.OnOpen)
}

func (m *Limit) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.OnMessage = r.int32()
		case 2:
			m.OnOpen = r.int32()
		default:
			r.skip()
		}
	}
	return r.err
}

// Empty is the payload of requests without arguments (CmdUniqIdList, CmdMetrics, ...)
type Empty struct{}

func (m *Empty) MarshalProto(b []byte) []byte { return b }

func (m *Empty) UnmarshalProto(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		r.skip()
	}
	return r.err
}
