package query

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dbatch/cmd/util"
	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for batch reads",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__perf"
	perfNumThreads = 10
	perfKeySpread  = 1000
	perfBatchSize  = 100
	perfSkip       = make([]string, 0)

	// perfTests lists the benchmarks in the order they run
	perfTests = []string{"get", "get-header", "exists", "get-stream", "read-list"}
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. get,exists)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent batch calls"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How many different keys to use for the tests"))
	key = "batch-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many keys one batch call reads"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "print-metrics"
	perfTestCmd.Flags().Bool(key, false, util.WrapString("Print the client metrics in Prometheus format after the tests"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfBatchSize = max(1, min(viper.GetInt("batch-size"), perfKeySpread))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult combines the benchmark result with the latency distribution of the calls
type perfResult struct {
	bench   testing.BenchmarkResult
	latency metrics.Timer
	errors  metrics.Counter
}

func runPerf(cmd *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for batch reads")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Keys: %d, Batch Size: %d\n", perfNumThreads, perfKeySpread, perfBatchSize)
	fmt.Println()

	keys, err := perfKeys()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	calls := map[string]func(context.Context, []*batch.Key) error{
		"get": func(ctx context.Context, keys []*batch.Key) error {
			_, err := batchClient.Get(ctx, keys)
			return err
		},
		"get-header": func(ctx context.Context, keys []*batch.Key) error {
			_, err := batchClient.GetHeader(ctx, keys)
			return err
		},
		"exists": func(ctx context.Context, keys []*batch.Key) error {
			_, err := batchClient.Exists(ctx, keys)
			return err
		},
		"get-stream": func(ctx context.Context, keys []*batch.Key) error {
			s := batchClient.GetStream(ctx, keys)
			defer s.Close()
			for range s.Items() {
			}
			return s.Err()
		},
		"read-list": func(ctx context.Context, keys []*batch.Key) error {
			reads := make([]*batch.BatchRead, len(keys))
			for i, k := range keys {
				reads[i] = batch.NewBatchRead(k)
			}
			return batchClient.ReadList(ctx, reads)
		},
	}

	fmt.Println("starting tests...")

	registry := metrics.NewRegistry()
	results := make(map[string]*perfResult)
	for _, test := range perfTests {
		if shouldSkip(test) {
			printResult(test, nil)
			continue
		}
		res := &perfResult{
			latency: metrics.GetOrRegisterTimer(test+".latency", registry),
			errors:  metrics.GetOrRegisterCounter(test+".errors", registry),
		}
		call := calls[test]
		res.bench = testing.Benchmark(func(b *testing.B) {
			b.SetParallelism(perfNumThreads)
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					start := time.Now()
					if err := call(ctx, batchOf(keys, counter)); err != nil {
						res.errors.Inc(1)
						log.Printf("(%s) - batch call failed: %v\n", test, err)
					}
					res.latency.UpdateSince(start)
					counter++
				}
			})
		})
		results[test] = res
		printResult(test, res)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if viper.GetBool("print-metrics") {
		fmt.Println()
		batchClient.WriteMetrics(os.Stdout)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// perfKeys creates the test keys of the configured namespace and set
func perfKeys() ([]*batch.Key, error) {
	userKeys := make([]string, perfKeySpread)
	for i := range userKeys {
		userKeys[i] = fmt.Sprintf("%s-%d", perfKeyPrefix, i)
	}
	return parseKeys(userKeys)
}

// batchOf returns the i-th window of perfBatchSize keys (with wraparound)
func batchOf(keys []*batch.Key, i int) []*batch.Key {
	out := make([]*batch.Key, perfBatchSize)
	start := i * perfBatchSize
	for j := range out {
		out[j] = keys[(start+j)%len(keys)]
	}
	return out
}

var percentiles = []float64{0.5, 0.95, 0.99}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, res *perfResult) {
	if res == nil || res.bench.NsPerOp() == 0 {
		fmt.Printf("%-14sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(res.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p := res.latency.Percentiles(percentiles)

	fmt.Printf("%-14s%s/op\t%.0f calls/sec\t%.0f keys/sec\tp50=%s p95=%s p99=%s\terrors=%d\n",
		test, time.Duration(nsPerOp), opsPerSec, opsPerSec*float64(perfBatchSize),
		time.Duration(p[0]), time.Duration(p[1]), time.Duration(p[2]), res.errors.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]*perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetClientConfig()

	// Write header
	header := []string{
		"Test", "NsPerOp", "CallsPerSec", "KeysPerSec", "P50Ns", "P95Ns", "P99Ns", "Errors",
		"Topology", "ReplicaMode", "MaxRetries", "TotalTimeoutMs", "EventLoops",
		"Serializer", "Transport", "Threads", "BatchSize", "Keys",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range perfTests {
		res, ok := results[test]
		if !ok || res.bench.NsPerOp() == 0 {
			continue
		}
		nsPerOp := math.Max(float64(res.bench.NsPerOp()), 1)
		opsPerSec := 1.0 / (nsPerOp / 1e9)
		p := res.latency.Percentiles(percentiles)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", opsPerSec*float64(perfBatchSize)),
			fmt.Sprintf("%.0f", p[0]),
			fmt.Sprintf("%.0f", p[1]),
			fmt.Sprintf("%.0f", p[2]),
			strconv.FormatInt(res.errors.Count(), 10),
			config.TopologyFile,
			config.ReplicaMode,
			strconv.Itoa(config.MaxRetries),
			strconv.Itoa(config.TotalTimeoutMs),
			strconv.Itoa(config.EventLoops),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfBatchSize),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
