package bus

import (
	"fmt"
	"github.com/ValentinKolb/netbus/cmd/util"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/spf13/cobra"
	"strings"
)

var (
	// Shared flags of the write commands
	flagData     string
	flagDelay    int32
	flagGuest    bool
	flagCustomer bool

	// Flags of the read commands
	flagCount bool
	flagAll   bool

	// Flags of update
	flagSession     string
	flagCustomerId  string
	flagTopics      string
	flagDelSession  bool
	flagDelCustomer bool
	flagDelTopics   bool

	// Flags of limit
	flagOnMessage int32
	flagOnOpen    int32
	flagShard     int64
)

// --------------------------------------------------------------------------
// Writes
// --------------------------------------------------------------------------

var (
	broadcastCmd = &cobra.Command{
		Use:   "broadcast [data]",
		Short: "Sends data to every client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if err := b.Broadcast([]byte(args[0])); err != nil {
				return err
			}
			fmt.Println("broadcast successfully")
			return nil
		},
	}
	multicastCmd = &cobra.Command{
		Use:   "multicast [data] [uniqId...]",
		Short: "Sends data to a list of clients",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if err := b.Multicast(args[1:], []byte(args[0])); err != nil {
				return err
			}
			fmt.Println("multicast successfully")
			return nil
		},
	}
	singlecastCmd = &cobra.Command{
		Use:   "singlecast [uniqId] [data...]",
		Short: "Sends data to one client, multiple data are sent as one bulk",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				err = b.SingleCast(args[0], []byte(args[1]))
			} else {
				err = b.SingleCastBulk([]string{args[0]}, toBytes(args[1:]))
			}
			if err != nil {
				return err
			}
			fmt.Println("singlecast successfully")
			return nil
		},
	}
	customerCmd = &cobra.Command{
		Use:   "customer [data] [customerId...]",
		Short: "Sends data to every client of the given customers",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				err = b.SingleCastByCustomerId(args[1], []byte(args[0]))
			} else {
				err = b.MulticastByCustomerId(args[1:], []byte(args[0]))
			}
			if err != nil {
				return err
			}
			fmt.Println("sent successfully")
			return nil
		},
	}
	subscribeCmd = &cobra.Command{
		Use:   "subscribe [uniqId] [topic...]",
		Short: "Subscribes a client to topics",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if err := b.TopicSubscribe(args[0], args[1:], data()); err != nil {
				return err
			}
			fmt.Println("subscribed successfully")
			return nil
		},
	}
	unsubscribeCmd = &cobra.Command{
		Use:   "unsubscribe [uniqId] [topic...]",
		Short: "Unsubscribes a client from topics",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if err := b.TopicUnsubscribe(args[0], args[1:], data()); err != nil {
				return err
			}
			fmt.Println("unsubscribed successfully")
			return nil
		},
	}
	publishCmd = &cobra.Command{
		Use:   "publish [data] [topic...]",
		Short: "Sends data to the subscribers of topics",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if err := b.TopicPublish(args[1:], []byte(args[0])); err != nil {
				return err
			}
			fmt.Println("published successfully")
			return nil
		},
	}
	deleteTopicCmd = &cobra.Command{
		Use:   "delete-topic [topic...]",
		Short: "Deletes topics, former subscribers receive --data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if err := b.TopicDelete(args, data()); err != nil {
				return err
			}
			fmt.Println("deleted successfully")
			return nil
		},
	}
	offlineCmd = &cobra.Command{
		Use:   "offline [id...]",
		Short: "Disconnects clients (by uniqId, or by customer id with --customer)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			switch {
			case flagCustomer:
				err = b.ForceOfflineByCustomerId(args, data())
			case flagGuest:
				err = b.ForceOfflineGuest(args, data(), flagDelay)
			default:
				err = b.ForceOffline(args, data())
			}
			if err != nil {
				return err
			}
			fmt.Println("offline successfully")
			return nil
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [uniqId]",
		Short: "Updates or deletes the session, customer id or topics of a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if flagDelSession || flagDelCustomer || flagDelTopics {
				err = b.ConnInfoDelete(&common.ConnInfoDelete{
					UniqId:        args[0],
					DelSession:    flagDelSession,
					DelCustomerId: flagDelCustomer,
					DelTopic:      flagDelTopics,
					Data:          data(),
				})
			} else {
				err = b.ConnInfoUpdate(&common.ConnInfoUpdate{
					UniqId:        args[0],
					NewSession:    flagSession,
					NewCustomerId: flagCustomerId,
					NewTopics:     splitList(flagTopics),
					Data:          data(),
				})
			}
			if err != nil {
				return err
			}
			fmt.Println("updated successfully")
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

var (
	onlineCmd = &cobra.Command{
		Use:   "online [uniqId...]",
		Short: "Prints the clients that are online",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			online, err := b.CheckOnline(args)
			if err != nil {
				return err
			}
			return util.PrintJSON(online)
		},
	}
	uniqIdsCmd = &cobra.Command{
		Use:   "uniqids",
		Short: "Prints all connected clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if flagCount {
				count, err := b.UniqIdCount()
				if err != nil {
					return err
				}
				return util.PrintJSON(count)
			}
			list, err := b.UniqIdList()
			if err != nil {
				return err
			}
			return util.PrintJSON(list)
		},
	}
	customersCmd = &cobra.Command{
		Use:   "customers",
		Short: "Prints all customer ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if flagCount {
				counts, err := b.CustomerIdCount()
				if err != nil {
					return err
				}
				return util.PrintJSON(counts)
			}
			list, err := b.CustomerIdList()
			if err != nil {
				return err
			}
			return util.PrintJSON(list)
		},
	}
	topicsCmd = &cobra.Command{
		Use:   "topics",
		Short: "Prints all topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			if flagCount {
				counts, err := b.TopicCount()
				if err != nil {
					return err
				}
				return util.PrintJSON(counts)
			}
			list, err := b.TopicList()
			if err != nil {
				return err
			}
			return util.PrintJSON(list)
		},
	}
	membersCmd = &cobra.Command{
		Use:   "members [topic...]",
		Short: "Prints the subscribers of topics (uniqIds, or customer ids with --customer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}

			var result any
			switch {
			case flagCount && flagCustomer:
				result, err = b.TopicCustomerIdCount(args, flagAll)
			case flagCount:
				result, err = b.TopicUniqIdCount(args, flagAll)
			case flagCustomer:
				result, err = b.TopicCustomerIdList(args)
			default:
				result, err = b.TopicUniqIdList(args)
			}
			if err != nil {
				return err
			}
			return util.PrintJSON(result)
		},
	}
	connInfoCmd = &cobra.Command{
		Use:   "conninfo [id...]",
		Short: "Prints the connection info of clients (by uniqId, or by customer id with --customer)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}

			var result any
			if flagCustomer {
				result, err = b.ConnInfoByCustomerId(common.ConnInfoByCustomerIdReq{
					CustomerIds: args,
					ReqUniqId:   true,
					ReqSession:  true,
					ReqTopic:    true,
				})
			} else {
				result, err = b.ConnInfo(common.ConnInfoReq{
					UniqIds:       args,
					ReqCustomerId: true,
					ReqSession:    true,
					ReqTopic:      true,
				})
			}
			if err != nil {
				return err
			}
			return util.PrintJSON(result)
		},
	}
	metricsCmd = &cobra.Command{
		Use:   "metrics",
		Short: "Prints the metrics of every shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}
			metrics, err := b.Metrics()
			if err != nil {
				return err
			}
			return util.PrintJSON(metrics)
		},
	}
	limitCmd = &cobra.Command{
		Use:   "limit",
		Short: "Prints and optionally updates the concurrency limits of the shards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rpcBus.Get()
			if err != nil {
				return err
			}

			req := common.Limit{OnMessage: flagOnMessage, OnOpen: flagOnOpen}
			var result any
			if flagShard >= 0 {
				result, err = b.LimitShard(uint64(flagShard), req)
			} else {
				result, err = b.Limit(req)
			}
			if err != nil {
				return err
			}
			return util.PrintJSON(result)
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{subscribeCmd, unsubscribeCmd, deleteTopicCmd, offlineCmd, updateCmd} {
		c.Flags().StringVar(&flagData, "data", "", util.WrapString("Data sent to the affected clients"))
	}

	offlineCmd.Flags().BoolVar(&flagCustomer, "customer", false, util.WrapString("Arguments are customer ids"))
	offlineCmd.Flags().BoolVar(&flagGuest, "guest", false, util.WrapString("Only disconnect clients without customer id and session"))
	offlineCmd.Flags().Int32Var(&flagDelay, "delay", 0, util.WrapString("Seconds to wait before guests are disconnected (only with --guest)"))

	updateCmd.Flags().StringVar(&flagSession, "session", "", util.WrapString("New session of the client"))
	updateCmd.Flags().StringVar(&flagCustomerId, "customer-id", "", util.WrapString("New customer id of the client"))
	updateCmd.Flags().StringVar(&flagTopics, "topics", "", util.WrapString("Comma-separated list of topics to add"))
	updateCmd.Flags().BoolVar(&flagDelSession, "del-session", false, util.WrapString("Delete the session"))
	updateCmd.Flags().BoolVar(&flagDelCustomer, "del-customer-id", false, util.WrapString("Delete the customer id"))
	updateCmd.Flags().BoolVar(&flagDelTopics, "del-topics", false, util.WrapString("Unsubscribe from all topics"))

	for _, c := range []*cobra.Command{uniqIdsCmd, customersCmd, topicsCmd, membersCmd} {
		c.Flags().BoolVar(&flagCount, "count", false, util.WrapString("Print counts instead of lists"))
	}
	membersCmd.Flags().BoolVar(&flagCustomer, "customer", false, util.WrapString("Print customer ids instead of uniqIds"))
	membersCmd.Flags().BoolVar(&flagAll, "all", false, util.WrapString("Count every topic (only with --count)"))
	connInfoCmd.Flags().BoolVar(&flagCustomer, "customer", false, util.WrapString("Arguments are customer ids"))

	limitCmd.Flags().Int32Var(&flagOnMessage, "on-message", 0, util.WrapString("New limit of concurrent message handlers (0 keeps the current value)"))
	limitCmd.Flags().Int32Var(&flagOnOpen, "on-open", 0, util.WrapString("New limit of concurrent open handlers (0 keeps the current value)"))
	limitCmd.Flags().Int64Var(&flagShard, "shard", -1, util.WrapString("Only ask this shard"))
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// data returns the --data flag, nil if it is empty
func data() []byte {
	if flagData == "" {
		return nil
	}
	return []byte(flagData)
}

func toBytes(values []string) [][]byte {
	result := make([][]byte, len(values))
	for i, v := range values {
		result[i] = []byte(v)
	}
	return result
}

func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
