package base

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/ValentinKolb/netbus/lib/scheduler"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"math/rand"
	"sync"
	"time"
)

const (
	// maxStrayFrames is the number of heartbeat pongs skipped while waiting for a reply
	maxStrayFrames = 3

	// defaultBackoff is the wait before the first retry of a failed send, it doubles per retry
	defaultBackoff = 50 * time.Millisecond
)

// taskConn implements transport.ITaskConn
type taskConn struct {
	conn      *clientConn
	config    common.ShardConfig
	scheduler scheduler.IScheduler
	ping      []byte
	pong      []byte

	mu      sync.Mutex // One request in flight
	lastUse time.Time

	heartbeatMu     sync.Mutex
	cancelHeartbeat scheduler.CancelFunc

	now     func() time.Time
	backoff time.Duration
}

// NewTaskConn creates a task connection to a shard. It does not connect,
// the first Send (or an explicit Connect) does.
func NewTaskConn(connector IClientConnector, config common.ShardConfig, s scheduler.IScheduler) transport.ITaskConn {
	return newTaskConn(connector, config, s)
}

func newTaskConn(connector IClientConnector, config common.ShardConfig, s scheduler.IScheduler) *taskConn {
	ping, pong := sentinels(config)
	return &taskConn{
		conn:      newClientConn(connector, config),
		config:    config,
		scheduler: s,
		ping:      ping,
		pong:      pong,
		now:       time.Now,
		backoff:   defaultBackoff,
	}
}

// sentinels returns the heartbeat messages of a shard, falling back to the defaults
func sentinels(config common.ShardConfig) (ping, pong []byte) {
	ping = []byte(config.HeartbeatMessage)
	if len(ping) == 0 {
		ping = []byte(common.DefaultHeartbeatMessage)
	}
	pong = []byte(config.PongMessage)
	if len(pong) == 0 {
		pong = []byte(common.DefaultPongMessage)
	}
	return ping, pong
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ITaskConn)
// --------------------------------------------------------------------------

func (c *taskConn) ShardID() uint64 {
	return c.config.ShardID
}

func (c *taskConn) Endpoint() string {
	return c.config.Endpoint
}

func (c *taskConn) IsConnected() bool {
	return c.conn.isConnected()
}

func (c *taskConn) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.connect(); err != nil {
		return err
	}
	c.lastUse = c.now()
	return nil
}

func (c *taskConn) Send(body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(body)
}

func (c *taskConn) Receive() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiveLocked()
}

func (c *taskConn) Request(body []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendLocked(body); err != nil {
		return nil, err
	}

	for i := 0; i <= maxStrayFrames; i++ {
		resp, err := c.receiveLocked()
		if errors.Is(err, common.ErrNoData) {
			continue
		}
		if errors.Is(err, common.ErrReceiveTimeout) {
			// a late reply would be taken as the reply of the next request
			c.dropLocked("reply timed out")
		}
		return resp, err
	}

	c.dropLocked("too many heartbeat frames")
	return nil, fmt.Errorf("%w: shard %d answered only with heartbeats", common.ErrProtocol, c.config.ShardID)
}

func (c *taskConn) Heartbeat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendLocked(c.ping); err != nil {
		return err
	}

	body, err := c.receiveLocked()
	switch {
	case errors.Is(err, common.ErrNoData):
		return nil
	case err != nil:
		return err
	default:
		c.dropLocked("unexpected heartbeat reply")
		return fmt.Errorf("%w: shard %d answered the heartbeat with a %d byte frame", common.ErrProtocol, c.config.ShardID, len(body))
	}
}

func (c *taskConn) StartHeartbeat() {
	c.heartbeatMu.Lock()
	defer c.heartbeatMu.Unlock()

	if c.cancelHeartbeat != nil {
		return
	}

	c.cancelHeartbeat = c.scheduler.Every(c.config.HeartbeatInterval(), func() {
		if !c.IsConnected() {
			return
		}
		err := c.Heartbeat()
		switch {
		case err == nil:
		case common.IsSoft(err):
			Logger.Debugf("Heartbeat of shard %d got no pong: %v", c.config.ShardID, err)
		default:
			Logger.Warningf("Heartbeat of shard %d failed: %v", c.config.ShardID, err)
		}
	})
}

func (c *taskConn) Close() error {
	c.stopHeartbeat()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *taskConn) stopHeartbeat() {
	c.heartbeatMu.Lock()
	defer c.heartbeatMu.Unlock()

	if c.cancelHeartbeat != nil {
		c.cancelHeartbeat()
		c.cancelHeartbeat = nil
	}
}

// idle returns true if the socket was unused for longer than the max idle time
func (c *taskConn) idle() bool {
	maxIdle := c.config.MaxIdle()
	return maxIdle > 0 && c.now().Sub(c.lastUse) > maxIdle
}

// sendLocked writes body, reconnecting idle or broken sockets first.
// A failed write is retried with exponential backoff (with jitter).
func (c *taskConn) sendLocked(body []byte) error {
	if c.conn.isConnected() && c.idle() {
		Logger.Debugf("Connection to shard %d idle since %s, reconnecting", c.config.ShardID, c.lastUse.Format(time.RFC3339))
		_ = c.conn.close()
	}

	attempts := c.config.Transport.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			// Add jitter (±10%) to prevent thundering herd
			jitter := 0.9 + 0.2*rand.Float64()
			time.Sleep(time.Duration(float64(backoff) * jitter))
			backoff *= 2
		}

		if !c.conn.isConnected() {
			if err := c.conn.connect(); err != nil {
				lastErr = err
				Logger.Debugf("Reconnect to shard %d failed (attempt %d/%d): %v", c.config.ShardID, attempt+1, attempts, err)
				continue
			}
		}

		if err := c.conn.send(body); err != nil {
			lastErr = err
			Logger.Debugf("Send to shard %d failed (attempt %d/%d): %v", c.config.ShardID, attempt+1, attempts, err)
			continue
		}

		c.lastUse = c.now()
		return nil
	}

	Logger.Warningf("Giving up sending to shard %d after %d attempts: %v", c.config.ShardID, attempts, lastErr)
	return fmt.Errorf("%w: shard %d after %d attempts: %w", common.ErrSend, c.config.ShardID, attempts, lastErr)
}

// receiveLocked reads one frame and maps the pong to common.ErrNoData
func (c *taskConn) receiveLocked() ([]byte, error) {
	body, err := c.conn.receive()
	if err != nil {
		return nil, err
	}

	c.lastUse = c.now()
	if bytes.Equal(body, c.pong) {
		return nil, common.ErrNoData
	}
	return body, nil
}

// dropLocked closes the socket, the next send reconnects
func (c *taskConn) dropLocked(reason string) {
	Logger.Debugf("Dropping connection to shard %d: %s", c.config.ShardID, reason)
	_ = c.conn.close()
}
