package common

import (
	"encoding/binary"
	"fmt"
)

// --------------------------------------------------------------------------
// Command Opcodes
// --------------------------------------------------------------------------

// Cmd is the opcode in front of every frame body exchanged with a gateway shard.
// The numeric values are part of the gateway contract and must not be reordered.
type Cmd uint32

const (
	CmdPlaceholder Cmd = iota

	// Events pushed by the gateway over a registered push connection

	CmdConnOpen  // A client connected to the gateway
	CmdConnClose // A client disconnected from the gateway
	CmdTransfer  // A client sent a message

	// Push connection management

	CmdRegister   // Register a push connection
	CmdUnregister // Unregister a push connection

	// Delivery

	CmdBroadcast                  // Send data to every client
	CmdMulticast                  // Send data to a list of uniqIds
	CmdMulticastByCustomerId      // Send data to a list of customer ids
	CmdSingleCast                 // Send data to one uniqId
	CmdSingleCastByCustomerId     // Send data to one customer id
	CmdSingleCastBulk             // Send different data to different uniqIds
	CmdSingleCastBulkByCustomerId // Send different data to different customer ids

	// Topics

	CmdTopicSubscribe       // Subscribe a uniqId to topics
	CmdTopicUnsubscribe     // Unsubscribe a uniqId from topics
	CmdTopicDelete          // Delete topics
	CmdTopicPublish         // Publish data to topics
	CmdTopicPublishBulk     // Publish different data to different topics
	CmdTopicList            // List all topics
	CmdTopicCount           // Count all topics
	CmdTopicUniqIdList      // List the uniqIds of topics
	CmdTopicUniqIdCount     // Count the uniqIds of topics
	CmdTopicCustomerIdList  // List the customer ids of topics
	CmdTopicCustomerIdCount // Count the customer ids of topics

	// Connection management

	CmdForceOffline             // Disconnect uniqIds
	CmdForceOfflineByCustomerId // Disconnect customer ids
	CmdForceOfflineGuest        // Disconnect uniqIds without customer id and session
	CmdConnInfoUpdate           // Update session, topics or customer id of a uniqId
	CmdConnInfoDelete           // Delete session, topics or customer id of a uniqId

	// Queries

	CmdCheckOnline          // Check which uniqIds are online
	CmdUniqIdList           // List all uniqIds
	CmdUniqIdCount          // Count all uniqIds
	CmdConnInfo             // Connection info by uniqId
	CmdConnInfoByCustomerId // Connection info by customer id
	CmdCustomerIdList       // List all customer ids
	CmdCustomerIdCount      // Count all customer ids
	CmdMetrics              // Gateway metrics
	CmdLimit                // Read or update the gateway concurrency limits
)

var cmdNames = map[Cmd]string{
	CmdPlaceholder:                "placeholder",
	CmdConnOpen:                   "connOpen",
	CmdConnClose:                  "connClose",
	CmdTransfer:                   "transfer",
	CmdRegister:                   "register",
	CmdUnregister:                 "unregister",
	CmdBroadcast:                  "broadcast",
	CmdMulticast:                  "multicast",
	CmdMulticastByCustomerId:      "multicastByCustomerId",
	CmdSingleCast:                 "singleCast",
	CmdSingleCastByCustomerId:     "singleCastByCustomerId",
	CmdSingleCastBulk:             "singleCastBulk",
	CmdSingleCastBulkByCustomerId: "singleCastBulkByCustomerId",
	CmdTopicSubscribe:             "topicSubscribe",
	CmdTopicUnsubscribe:           "topicUnsubscribe",
	CmdTopicDelete:                "topicDelete",
	CmdTopicPublish:               "topicPublish",
	CmdTopicPublishBulk:           "topicPublishBulk",
	CmdTopicList:                  "topicList",
	CmdTopicCount:                 "topicCount",
	CmdTopicUniqIdList:            "topicUniqIdList",
	CmdTopicUniqIdCount:           "topicUniqIdCount",
	CmdTopicCustomerIdList:        "topicCustomerIdList",
	CmdTopicCustomerIdCount:       "topicCustomerIdCount",
	CmdForceOffline:               "forceOffline",
	CmdForceOfflineByCustomerId:   "forceOfflineByCustomerId",
	CmdForceOfflineGuest:          "forceOfflineGuest",
	CmdConnInfoUpdate:             "connInfoUpdate",
	CmdConnInfoDelete:             "connInfoDelete",
	CmdCheckOnline:                "checkOnline",
	CmdUniqIdList:                 "uniqIdList",
	CmdUniqIdCount:                "uniqIdCount",
	CmdConnInfo:                   "connInfo",
	CmdConnInfoByCustomerId:       "connInfoByCustomerId",
	CmdCustomerIdList:             "customerIdList",
	CmdCustomerIdCount:            "customerIdCount",
	CmdMetrics:                    "metrics",
	CmdLimit:                      "limit",
}

// String returns the string representation of a Cmd.
func (c Cmd) String() string {
	if name, ok := cmdNames[c]; ok {
		return name
	}
	return fmt.Sprintf("cmd(%d)", uint32(c))
}

// MarshalText implements encoding.TextMarshaler so a Cmd is serialized by its name.
func (c Cmd) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for Cmd.
func (c *Cmd) UnmarshalText(data []byte) error {
	for cmd, name := range cmdNames {
		if name == string(data) {
			*c = cmd
			return nil
		}
	}
	return fmt.Errorf("unknown cmd: %s", data)
}

// --------------------------------------------------------------------------
// Event Subscription Mask
// --------------------------------------------------------------------------

// Event is the bitmask a push connection uses to subscribe to gateway events
type Event uint32

const (
	EventOnOpen    Event = 1 << 0
	EventOnClose   Event = 1 << 1
	EventOnMessage Event = 1 << 2

	EventAll = EventOnOpen | EventOnClose | EventOnMessage
)

// Has reports whether all bits of o are set in e
func (e Event) Has(o Event) bool {
	return e&o == o
}

// --------------------------------------------------------------------------
// Body Layout
// --------------------------------------------------------------------------

// CmdSize is the size of the opcode in front of every body
const CmdSize = 4

// PackBody prepends the opcode to the payload
func PackBody(cmd Cmd, payload []byte) []byte {
	body := make([]byte, CmdSize+len(payload))
	binary.BigEndian.PutUint32(body[:CmdSize], uint32(cmd))
	copy(body[CmdSize:], payload)
	return body
}

// UnpackBody splits a body into opcode and payload. The payload shares memory with the body.
func UnpackBody(body []byte) (Cmd, []byte, error) {
	if len(body) < CmdSize {
		return 0, nil, fmt.Errorf("%w: body of %d bytes is shorter than the opcode", ErrProtocol, len(body))
	}
	return Cmd(binary.BigEndian.Uint32(body[:CmdSize])), body[CmdSize:], nil
}
