package listen

import (
	"fmt"
	"github.com/ValentinKolb/netbus/cmd/util"
	"github.com/ValentinKolb/netbus/lib/scheduler"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"github.com/ValentinKolb/netbus/rpc/transport/base"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

var (
	// ListenCmd registers push connections at every shard and prints the client events
	ListenCmd = &cobra.Command{
		Use:   "listen",
		Short: "Print the client events of all gateway shards",
		Long:  `Register a push connection at every configured gateway shard and print every client event (open, message, close) as one JSON line until interrupted.`,
		Args:  cobra.NoArgs,
		RunE:  run,
	}
)

// eventLine is the printed form of an event
type eventLine struct {
	Time    time.Time `json:"time"`
	Event   string    `json:"event"`
	ShardID uint64    `json:"shardId"`
	Payload any       `json:"payload"`
}

func init() {
	cobra.OnInitialize(util.InitClientConfig)
	util.SetupClientFlags(ListenCmd)

	key := "events"
	ListenCmd.Flags().String(key, "open,message,close", util.WrapString("Comma-separated list of events to subscribe to (open, message, close)"))

	key = "goroutines"
	ListenCmd.Flags().Uint32(key, 1, util.WrapString("Number of goroutines the gateway uses for the commands of the push connection"))

	key = "recover-interval"
	ListenCmd.Flags().Int(key, 3_000, util.WrapString("Interval of reconnect attempts after a push connection was lost (in milliseconds)"))
}

// ParseEvents converts a list of event names into the subscription mask
func ParseEvents(value string) (common.Event, error) {
	var events common.Event
	for _, name := range strings.Split(value, ",") {
		switch strings.TrimSpace(name) {
		case "open":
			events |= common.EventOnOpen
		case "message":
			events |= common.EventOnMessage
		case "close":
			events |= common.EventOnClose
		case "":
		default:
			return 0, fmt.Errorf("invalid event %s (expected one of: open, message, close)", name)
		}
	}
	if events == 0 {
		return 0, fmt.Errorf("no events selected")
	}
	return events, nil
}

func run(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	if config.Push.Events, err = ParseEvents(viper.GetString("events")); err != nil {
		return err
	}
	config.Push.ProcessCmdGoroutineNum = viper.GetUint32("goroutines")
	config.Push.RecoverIntervalMillisecond = viper.GetInt("recover-interval")

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	connector, err := util.GetConnector()
	if err != nil {
		return err
	}

	util.ServeMetrics()

	// the task connections are needed to unregister on shutdown
	tasks, err := util.GetTaskPool(config)
	if err != nil {
		return err
	}
	defer tasks.Close()

	printEvent := func(event string, shardId uint64, payload any) {
		_ = util.PrintJSONLine(eventLine{Time: time.Now(), Event: event, ShardID: shardId, Payload: payload})
	}
	handler := transport.EventHandlerFuncs{
		Open:    func(shardId uint64, msg *common.ConnOpen) { printEvent("open", shardId, msg) },
		Message: func(shardId uint64, msg *common.Transfer) { printEvent("message", shardId, msg) },
		Close:   func(shardId uint64, msg *common.ConnClose) { printEvent("close", shardId, msg) },
	}

	pool := base.NewPushPool(connector, config.Shards, config.Push, s, handler, tasks, scheduler.NewTickerScheduler())
	manager := base.NewPushManager(pool)
	if err := manager.Start(); err != nil {
		return err
	}

	util.Logger.Infof("Listening on %d shards, press Ctrl+C to stop", pool.Count())
	util.WaitForSignal()

	return manager.Close()
}
