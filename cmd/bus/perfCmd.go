package bus

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/netbus/cmd/util"
	"github.com/ValentinKolb/netbus/rpc/client"
	"github.com/ValentinKolb/netbus/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for gateway clusters",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfTopic            = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfTarget           = ""
	perfSkip             = make([]string, 0)
)

// perfTest is one benchmark, op is called in parallel
type perfTest struct {
	name string
	op   func(b *client.NetBus, payload []byte) error
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. broadcast,publish)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines per CPU to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the payload of the large tests should be (in KB)"))
	key = "target"
	perfTestCmd.Flags().String(key, "", util.WrapString("uniqId used by the singlecast tests, the first connected client if empty"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfNumThreads = viper.GetInt("threads")
	perfTarget = viper.GetString("target")
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	b, err := rpcBus.Get()
	if err != nil {
		return err
	}
	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	fmt.Println("Performance testing tool for gateway clusters")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	if perfTarget == "" {
		ids, err := b.UniqIdList()
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			perfTarget = ids[0]
		} else {
			// routes to the first shard but reaches no client
			perfTarget = util.GetRouter(config).Prefix(config.Shards[0].ShardID) + "00000000"
		}
	}

	small := []byte("test")
	large := make([]byte, perfLargeValueSizeKB*1024)

	tests := []struct {
		perfTest
		payload []byte
	}{
		{perfTest{"singlecast", func(b *client.NetBus, p []byte) error { return b.SingleCast(perfTarget, p) }}, small},
		{perfTest{"singlecast-large", func(b *client.NetBus, p []byte) error { return b.SingleCast(perfTarget, p) }}, large},
		{perfTest{"broadcast", func(b *client.NetBus, p []byte) error { return b.Broadcast(p) }}, small},
		{perfTest{"publish", func(b *client.NetBus, p []byte) error { return b.TopicPublish([]string{perfTopic}, p) }}, small},
		{perfTest{"uniqid-count", func(b *client.NetBus, _ []byte) error { _, err := b.UniqIdCount(); return err }}, nil},
		{perfTest{"topic-count", func(b *client.NetBus, _ []byte) error {
			_, err := b.TopicUniqIdCount([]string{perfTopic}, false)
			return err
		}}, nil},
	}

	fmt.Println("starting tests...")
	results := make(map[string]testing.BenchmarkResult)

	for _, test := range tests {
		result := testing.Benchmark(func(tb *testing.B) {
			if shouldSkip(test.name) {
				return
			}

			tb.SetParallelism(perfNumThreads)
			tb.ResetTimer()

			tb.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if err := test.op(b, test.payload); err != nil {
						log.Printf("(%s) - error: %v\n", test.name, err)
					}
				}
			})
		})

		results[test.name] = result
		printResult(test.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Shards", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	shards := make([]string, len(config.Shards))
	for i, shard := range config.Shards {
		shards[i] = fmt.Sprintf("%d=%s", shard.ShardID, shard.Endpoint)
	}

	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(shards, ";"),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
