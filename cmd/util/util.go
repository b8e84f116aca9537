package util

import (
	"fmt"
	"github.com/ValentinKolb/netbus/lib/scheduler"
	"github.com/ValentinKolb/netbus/lib/shard"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/ValentinKolb/netbus/rpc/serializer"
	"github.com/ValentinKolb/netbus/rpc/transport"
	"github.com/ValentinKolb/netbus/rpc/transport/base"
	"github.com/ValentinKolb/netbus/rpc/transport/tcp"
	"github.com/ValentinKolb/netbus/rpc/transport/unix"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the gateway connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "shards"
	cmd.PersistentFlags().String(key, "1=127.0.0.1:6061", WrapString("Comma-separated list of gateway shards. Format: ID=ENDPOINT where ID is the decimal shard id and ENDPOINT the worker address (host:port or socket path)"))

	key = "prefix-width"
	cmd.PersistentFlags().Int(key, shard.DefaultPrefixWidth, WrapString("Number of hex characters of a uniqId encoding the shard id"))

	key = "send-timeout"
	cmd.PersistentFlags().Int(key, 30_000, WrapString("Write deadline of a single frame (in milliseconds, 0 disables it)"))

	key = "receive-timeout"
	cmd.PersistentFlags().Int(key, 30_000, WrapString("Read deadline of a single frame (in milliseconds, 0 disables it)"))

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, 5_000, WrapString("Dial timeout (in milliseconds)"))

	key = "max-idle"
	cmd.PersistentFlags().Int(key, common.DefaultMaxIdleMillisecond, WrapString("Idle time after which a task connection is reconnected before the next send (in milliseconds)"))

	key = "heartbeat-interval"
	cmd.PersistentFlags().Int(key, 45_000, WrapString("Interval of the heartbeat (in milliseconds, 0 disables it)"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to reconnect and resend a failed write"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 keeps the system default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 keeps the system default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for tcp)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for tcp)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, only for tcp)"))

	key = "metrics-endpoint"
	cmd.PersistentFlags().String(key, "", WrapString("If set, client metrics are served in Prometheus format on this address (e.g. 127.0.0.1:9100)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("netbus")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	conf := &common.ClientConfig{
		Push:        common.DefaultPushConfig(),
		PrefixWidth: viper.GetInt("prefix-width"),
		LogLevel:    viper.GetString("log-level"),
	}

	shards, err := ParseShards(viper.GetString("shards"))
	if err != nil {
		return nil, err
	}

	for _, id := range sortedIds(shards) {
		shardConf := common.DefaultShardConfig(id, shards[id])
		shardConf.SendTimeoutMillisecond = viper.GetInt("send-timeout")
		shardConf.ReceiveTimeoutMillisecond = viper.GetInt("receive-timeout")
		shardConf.ConnectTimeoutMillisecond = viper.GetInt("connect-timeout")
		shardConf.MaxIdleMillisecond = viper.GetInt("max-idle")
		shardConf.HeartbeatIntervalMillisecond = viper.GetInt("heartbeat-interval")
		shardConf.Transport = common.ClientTransportConfig{
			RetryCount: viper.GetInt("transport-retries"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			},
		}
		conf.Shards = append(conf.Shards, shardConf)
	}

	return conf, nil
}

// ParseShards parses a list of ID=VALUE pairs
func ParseShards(value string) (map[uint64]string, error) {
	shards := make(map[uint64]string)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=ENDPOINT)", item)
		}

		shardId, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}
		if _, ok := shards[shardId]; ok {
			return nil, fmt.Errorf("shard %d is configured twice", shardId)
		}
		shards[shardId] = strings.TrimSpace(parts[1])
	}

	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards configured")
	}
	return shards, nil
}

func sortedIds(shards map[uint64]string) []uint64 {
	ids := make([]uint64, 0, len(shards))
	for id := range shards {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.New(viper.GetString("serializer"))
}

// GetConnector creates the client connector based on configuration
func GetConnector() (base.IClientConnector, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPConnector(), nil
	case "unix":
		return unix.NewUnixConnector(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetRouter creates the router for the configured prefix width
func GetRouter(config *common.ClientConfig) shard.IRouter {
	return shard.NewHexPrefixRouter(config.PrefixWidth)
}

// GetTaskPool connects a task connection to every configured shard
func GetTaskPool(config *common.ClientConfig) (*base.Pool[transport.ITaskConn], error) {
	connector, err := GetConnector()
	if err != nil {
		return nil, err
	}
	return base.NewTaskPool(connector, config.Shards, scheduler.NewTickerScheduler())
}

// InitLogging applies the log level flag to all loggers
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// ServeMetrics exposes the client metrics if a metrics endpoint is configured
func ServeMetrics() {
	endpoint := viper.GetString("metrics-endpoint")
	if endpoint == "" {
		return
	}

	r := chi.NewRouter()
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteMetrics(w)
	})

	go func() {
		Logger.Infof("Serving metrics on http://%s/metrics", endpoint)
		server := &http.Server{Addr: endpoint, Handler: r, ReadHeaderTimeout: 10 * time.Second}
		if err := server.ListenAndServe(); err != nil {
			Logger.Errorf("Metrics endpoint stopped: %v", err)
		}
	}()
}

// PrintJSON prints v as indented JSON
func PrintJSON(v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// PrintJSONLine prints v as JSON on a single line
func PrintJSONLine(v any) error {
	out, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// WaitForSignal blocks until SIGINT or SIGTERM is received
func WaitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals
	signal.Stop(signals)
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
