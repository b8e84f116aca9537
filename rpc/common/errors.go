package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

var (
	// ErrConnect is returned if a connection to a gateway shard could not be established
	ErrConnect = errors.New("connect failed")
	// ErrSend is returned if a frame could not be written. The connection is dead afterwards.
	ErrSend = errors.New("send failed")
	// ErrReceiveTimeout is a soft error: no byte of a new frame arrived within the receive timeout
	ErrReceiveTimeout = errors.New("receive timed out")
	// ErrNoData is a soft error: the received frame was the heartbeat pong and carries no application data
	ErrNoData = errors.New("no application data")
	// ErrConnectionClosed is returned if the peer closed the connection or a frame was cut off
	ErrConnectionClosed = errors.New("connection closed")
	// ErrNotConnected is returned if an operation needs a connected socket
	ErrNotConnected = errors.New("not connected")
	// ErrProtocol is returned for malformed frames or unexpected responses
	ErrProtocol = errors.New("protocol error")
	// ErrShardUnavailable is returned if the pool holds no connection for a shard
	ErrShardUnavailable = errors.New("shard unavailable")
	// ErrInvalidArgument is returned for inconsistent call arguments (e.g. bulk length mismatch)
	ErrInvalidArgument = errors.New("invalid argument")
)

// RegistrationError is returned if a gateway shard rejected the registration of a push connection.
// It is not retried automatically.
type RegistrationError struct {
	ShardID uint64
	Code    int32
	Message string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration on shard %d rejected (code=%d): %s", e.ShardID, e.Code, e.Message)
}

// IsSoft reports whether err only signals "no data yet" and the connection is still usable
func IsSoft(err error) bool {
	return errors.Is(err, ErrReceiveTimeout) || errors.Is(err, ErrNoData)
}
