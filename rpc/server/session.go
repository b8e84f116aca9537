package server

import (
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/gorilla/websocket"
	"sort"
	"sync"
	"time"
)

const sessionWriteTimeout = 10 * time.Second

// session is a websocket client connected to the gateway
type session struct {
	uniqId string
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu         sync.RWMutex
	customerId string
	data       string
	topics     map[string]struct{}
}

func newSession(uniqId string, conn *websocket.Conn) *session {
	return &session{
		uniqId: uniqId,
		conn:   conn,
		topics: make(map[string]struct{}),
	}
}

// write delivers a payload to the client as a binary message
func (s *session) write(data []byte) error {
	return s.writeMessage(websocket.BinaryMessage, data)
}

func (s *session) writeMessage(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(sessionWriteTimeout))
	return s.conn.WriteMessage(messageType, data)
}

// send writes data if it is not empty, failures are logged
func (s *session) send(data []byte) {
	if len(data) == 0 {
		return
	}
	if err := s.write(data); err != nil {
		Logger.Debugf("Failed to write to %s: %v", s.uniqId, err)
	}
}

// kick sends data and closes the connection, the read loop of the client cleans up
func (s *session) kick(data []byte) {
	s.send(data)
	_ = s.conn.Close()
}

func (s *session) customer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customerId
}

// isGuest reports whether the client has neither a customer id nor a session
func (s *session) isGuest() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customerId == "" && s.data == ""
}

func (s *session) subscribe(topics []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, topic := range topics {
		s.topics[topic] = struct{}{}
	}
}

// unsubscribe removes topics and returns true if the client was subscribed to any of them
func (s *session) unsubscribe(topics []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for _, topic := range topics {
		if _, ok := s.topics[topic]; ok {
			delete(s.topics, topic)
			removed = true
		}
	}
	return removed
}

// subscribed reports whether the client is subscribed to topic
func (s *session) subscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.topics[topic]
	return ok
}

// subscribedAny reports whether the client is subscribed to any of topics
func (s *session) subscribedAny(topics []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, topic := range topics {
		if _, ok := s.topics[topic]; ok {
			return true
		}
	}
	return false
}

func (s *session) update(msg *common.ConnInfoUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.NewSession != "" {
		s.data = msg.NewSession
	}
	if msg.NewCustomerId != "" {
		s.customerId = msg.NewCustomerId
	}
	for _, topic := range msg.NewTopics {
		s.topics[topic] = struct{}{}
	}
}

func (s *session) delete(msg *common.ConnInfoDelete) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.DelSession {
		s.data = ""
	}
	if msg.DelCustomerId {
		s.customerId = ""
	}
	if msg.DelTopic {
		s.topics = make(map[string]struct{})
	}
}

// info returns a snapshot of the stored client info, topics are sorted
func (s *session) info() common.ConnInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	return common.ConnInfo{
		UniqId:     s.uniqId,
		CustomerId: s.customerId,
		Session:    s.data,
		Topics:     topics,
	}
}
