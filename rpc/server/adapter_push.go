package server

import (
	"fmt"
	"github.com/ValentinKolb/netbus/rpc/common"
)

// Registration result codes
const (
	RegisterCodeOK          int32 = 0
	RegisterCodeNoEvents    int32 = 1
	RegisterCodeInvalidBody int32 = 2
)

// NewPushServerAdapter creates the adapter for the registration of push connections
func NewPushServerAdapter() IGatewayAdapter {
	return &pushServerAdapterImpl{}
}

type pushServerAdapterImpl struct{}

func (adapter *pushServerAdapterImpl) Commands() []common.Cmd {
	return []common.Cmd{common.CmdRegister, common.CmdUnregister}
}

func (adapter *pushServerAdapterImpl) Handle(req *Request, state *State) (common.Message, error) {
	switch req.Cmd {
	case common.CmdRegister:
		var msg common.RegisterReq
		if err := req.Decode(&msg); err != nil {
			return &common.RegisterResp{Code: RegisterCodeInvalidBody, Message: err.Error()}, nil
		}
		if msg.Events&common.EventAll == 0 {
			return &common.RegisterResp{Code: RegisterCodeNoEvents, Message: "no events subscribed"}, nil
		}

		// the reply is written before the connection is added, so it always precedes the first event
		_, err := state.registerPush(req.Conn, msg.Events, func(connId string) error {
			return req.Reply(&common.RegisterResp{Code: RegisterCodeOK, ConnId: connId})
		})
		return nil, err

	case common.CmdUnregister:
		var msg common.UnRegisterReq
		if err := req.Decode(&msg); err != nil {
			return nil, err
		}
		if !state.unregisterPush(msg.ConnId) {
			Logger.Debugf("Shard %d: unregister of unknown push connection %q", state.shardId, msg.ConnId)
		}
		return &common.UnRegisterResp{}, nil

	default:
		return nil, fmt.Errorf("push adapter: unsupported command %s", req.Cmd)
	}
}
