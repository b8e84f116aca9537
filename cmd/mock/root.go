package mock

import (
	"fmt"
	"github.com/ValentinKolb/netbus/cmd/util"
	"github.com/ValentinKolb/netbus/lib/shard"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"sort"
)

var (
	// MockCmd starts in-process gateway shards
	MockCmd = &cobra.Command{
		Use:   "mock",
		Short: "Start a local gateway for testing",
		Long:  `Start one in-process gateway shard per configured shard. Business processes connect to the worker endpoints, websocket clients to ws://<websocket endpoint>/ws. The configuration can be set via command line flags or environment variables (e.g. NETBUS_SHARDS=1=127.0.0.1:6061)`,
		Args:  cobra.NoArgs,
		RunE:  run,
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	key := "shards"
	MockCmd.Flags().String(key, "1=127.0.0.1:6061", util.WrapString("Comma-separated list of shards to serve. Format: ID=ENDPOINT where ENDPOINT is the worker address (host:port, or a socket path with --transport unix)"))

	key = "websocket-endpoints"
	MockCmd.Flags().String(key, "", util.WrapString("Comma-separated list of websocket addresses per shard. Format: ID=HOST:PORT, shards without an entry listen on a random local port"))

	key = "prefix-width"
	MockCmd.Flags().Int(key, shard.DefaultPrefixWidth, util.WrapString("Number of hex characters of a uniqId encoding the shard id"))

	key = "read-timeout"
	MockCmd.Flags().Int(key, 0, util.WrapString("Closes worker connections without a frame for this time (in milliseconds, 0 disables it)"))
}

func run(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	workers, err := util.ParseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	websockets := map[uint64]string{}
	if value := viper.GetString("websocket-endpoints"); value != "" {
		if websockets, err = util.ParseShards(value); err != nil {
			return err
		}
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	router := shard.NewHexPrefixRouter(viper.GetInt("prefix-width"))

	ids := make([]uint64, 0, len(workers))
	for id := range workers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var gateways []*server.GatewayServer
	defer func() {
		for _, g := range gateways {
			_ = g.Close()
		}
	}()

	for _, id := range ids {
		config := common.DefaultGatewayConfig(id)
		config.Transport = viper.GetString("transport")
		config.WorkerEndpoint = workers[id]
		if endpoint, ok := websockets[id]; ok {
			config.WebsocketEndpoint = endpoint
		}
		config.ReadTimeoutMillisecond = viper.GetInt("read-timeout")

		g := server.NewGatewayServer(config, router, s)
		if err := g.Start(); err != nil {
			return err
		}
		gateways = append(gateways, g)
	}

	rows := make([]map[string]any, 0, len(gateways))
	for _, g := range gateways {
		rows = append(rows, map[string]any{
			"shardId":   g.ShardID(),
			"prefix":    router.Prefix(g.ShardID()),
			"worker":    g.WorkerAddr(),
			"websocket": g.WebsocketURL(),
		})
	}
	if err := util.PrintJSON(rows); err != nil {
		return err
	}

	fmt.Println("gateway running, press Ctrl+C to stop")
	util.WaitForSignal()
	return nil
}
