package cache

import (
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

	"github.com/ValentinKolb/dGrid/cmd/util"
	"github.com/ValentinKolb/dGrid/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dGrid servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfBatchSize        = 16
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "key-spread"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "batch-size"
	perfTestCmd.Flags().Int(key, 16, util.WrapString("How many entries the put-all and get-all tests send per request"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("key-spread"), 1)
	perfNumThreads = viper.GetInt("threads")
	perfBatchSize = max(viper.GetInt("batch-size"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfTest is one benchmark. prepare fills the cache before the timer starts,
// op runs one operation with the n-th key of the worker.
type perfTest struct {
	name    string
	prepare bool
	op      func(key string, n int) error
}

func perfTests() []perfTest {
	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	expiry := viper.GetDuration("expiry")

	return []perfTest{
		{name: "put", op: func(key string, _ int) error {
			_, err := namedCache.Put(key, "test", expiry)
			return err
		}},
		{name: "put-large", op: func(key string, _ int) error {
			_, err := namedCache.Put(key, largeValue, expiry)
			return err
		}},
		{name: "put-all", op: func(_ string, n int) error {
			entries := make(map[any]any, perfBatchSize)
			for i := 0; i < perfBatchSize; i++ {
				entries[perfKey("put-all", n+i)] = "test"
			}
			return namedCache.PutAll(entries, expiry)
		}},
		{name: "get", prepare: true, op: func(key string, _ int) error {
			_, _, err := namedCache.Get(key)
			return err
		}},
		{name: "get-all", prepare: true, op: func(_ string, n int) error {
			keys := make([]any, perfBatchSize)
			for i := range keys {
				keys[i] = perfKey("get-all", n+i)
			}
			_, err := namedCache.GetAll(keys)
			return err
		}},
		{name: "remove", prepare: true, op: func(key string, _ int) error {
			_, _, err := namedCache.Remove(key)
			return err
		}},
		{name: "contains", prepare: true, op: func(key string, _ int) error {
			_, err := namedCache.ContainsKey(key)
			return err
		}},
		{name: "contains-not", op: func(_ string, n int) error {
			_, err := namedCache.ContainsKey(fmt.Sprintf("%s/contains-not-%d", perfKeyPrefix, n%100))
			return err
		}},
		{name: "mixed", prepare: true, op: func(key string, n int) error {
			var err error
			switch n % 4 {
			case 0:
				_, err = namedCache.Put(key, "test", expiry)
			case 1:
				_, _, err = namedCache.Get(key)
			case 2:
				_, _, err = namedCache.Remove(key)
			case 3:
				_, err = namedCache.ContainsKey(key)
			}
			return err
		}},
	}
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dGrid servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Cache: %s\n", namedCache.Name())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for _, test := range perfTests() {
		result := testing.Benchmark(func(b *testing.B) { runPerfTest(b, test) })
		results[test.name] = result
		printResult(test.name, result)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

func runPerfTest(b *testing.B, test perfTest) {
	if slices.Contains(perfSkip, test.name) {
		return
	}

	if test.prepare {
		entries := make(map[any]any, perfKeySpread)
		for i := 0; i < perfKeySpread; i++ {
			entries[perfKey(test.name, i)] = "test"
		}
		if err := namedCache.PutAll(entries, 0); err != nil {
			log.Printf("(%s) - error preparing keys: %v\n", test.name, err)
		}
	}

	// cleanup
	b.Cleanup(func() {
		if _, err := namedCache.Clear(); err != nil {
			log.Printf("(%s) - error clearing cache: %v\n", test.name, err)
		}
	})

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			if err := test.op(perfKey(test.name, counter), counter); err != nil {
				log.Printf("(%s) - error: %v\n", test.name, err)
			}
			counter++
		}
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// perfKey returns the i-th test key of a benchmark (with wraparound)
func perfKey(test string, i int) string {
	return fmt.Sprintf("%s-%s-%d", perfKeyPrefix, test, i%perfKeySpread)
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
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Cache", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "KeySpread", "BatchSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, test := range names {
		result := results[test]
		nsPerOp, opsPerSec, skipped := 0.0, 0.0, "true"
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
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			namedCache.Name(),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfBatchSize),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
