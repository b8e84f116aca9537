package server

import (
	"github.com/ValentinKolb/netbus/rpc/common"
)

// IGatewayAdapter is the interface for all command adapters of the gateway.
// Each adapter handles a group of worker commands against the state of the shard.
type IGatewayAdapter interface {
	// Commands returns the commands the adapter handles
	Commands() []common.Cmd
	// Handle executes one command. The returned message is sent back with the opcode
	// of the request, a nil message means the command is not answered.
	// If an error occurs, it is logged and the command is not answered.
	Handle(req *Request, state *State) (resp common.Message, err error)
}
