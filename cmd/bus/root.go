package bus

import (
	"github.com/ValentinKolb/netbus/cmd/util"
	"github.com/ValentinKolb/netbus/lib/lazy"
	"github.com/ValentinKolb/netbus/rpc/client"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"github.com/ValentinKolb/netbus/rpc/transport/base"
	"github.com/spf13/cobra"
)

var (
	// pool and bus are created on first use, so commands failing on their arguments never dial
	pool   *lazy.Cell[*base.Pool[transport.ITaskConn]]
	rpcBus *lazy.Cell[*client.NetBus]

	// BusCommands represents the bus command group
	BusCommands = &cobra.Command{
		Use:                "bus",
		Short:              "Send commands to the gateway",
		Long:               `Send commands to all configured gateway shards. Commands addressed to uniqIds are routed to the shard encoded in the id. The configuration can be set via command line flags or environment variables (e.g. NETBUS_SHARDS=1=127.0.0.1:6061,2=127.0.0.1:6062)`,
		PersistentPreRunE:  setupBusClient,
		PersistentPostRunE: closeBusClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common connection flags to the bus command
	util.SetupClientFlags(BusCommands)

	// Add subcommands
	BusCommands.AddCommand(broadcastCmd)
	BusCommands.AddCommand(multicastCmd)
	BusCommands.AddCommand(singlecastCmd)
	BusCommands.AddCommand(customerCmd)
	BusCommands.AddCommand(subscribeCmd)
	BusCommands.AddCommand(unsubscribeCmd)
	BusCommands.AddCommand(publishCmd)
	BusCommands.AddCommand(deleteTopicCmd)
	BusCommands.AddCommand(offlineCmd)
	BusCommands.AddCommand(updateCmd)
	BusCommands.AddCommand(onlineCmd)
	BusCommands.AddCommand(uniqIdsCmd)
	BusCommands.AddCommand(customersCmd)
	BusCommands.AddCommand(topicsCmd)
	BusCommands.AddCommand(membersCmd)
	BusCommands.AddCommand(connInfoCmd)
	BusCommands.AddCommand(metricsCmd)
	BusCommands.AddCommand(limitCmd)
	BusCommands.AddCommand(perfTestCmd)
}

// setupBusClient prepares the lazy task pool and bus
func setupBusClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
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

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	util.ServeMetrics()

	pool = lazy.New(func() (*base.Pool[transport.ITaskConn], error) {
		return util.GetTaskPool(config)
	})
	rpcBus = lazy.New(func() (*client.NetBus, error) {
		p, err := pool.Get()
		if err != nil {
			return nil, err
		}
		return client.NewNetBus(p, util.GetRouter(config), s), nil
	})
	return nil
}

// closeBusClient closes the task connections if they were opened
func closeBusClient(_ *cobra.Command, _ []string) error {
	if pool == nil || !pool.Loaded() {
		return nil
	}
	p, err := pool.Get()
	if err != nil {
		return nil
	}
	return p.Close()
}
