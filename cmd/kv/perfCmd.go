package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/kvuri/cmd/util"
	"github.com/google/uuid"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the store selected by --uri",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

// percentiles reported for every benchmark
var perfPercentiles = []float64{0.5, 0.9, 0.99}

// perfResult is the outcome of a single benchmark
type perfResult struct {
	bench   testing.BenchmarkResult
	latency metrics.Timer
	errors  int64
}

func (r perfResult) skipped() bool {
	return r.bench.N == 0
}

// perfOp is a single operation of a benchmark. The counter is the per goroutine iteration.
type perfOp func(ctx context.Context, key func(int) string, counter int) error

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	// every run writes below its own prefix
	perfKeyPrefix = "__test-" + uuid.NewString()[:8]

	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Performance testing tool for kvuri stores")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("URI: %s\n", viper.GetString("uri"))
	fmt.Printf("Namespace: %q\n", kvStore.Namespace())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Key prefix: %s\n", perfKeyPrefix)
	fmt.Println()

	fmt.Println("staring tests...")

	value := []byte("test")
	largeValue := make([]byte, perfLargeValueSizeKB*1024)

	benchmarks := []struct {
		name    string
		prefill bool
		op      perfOp
	}{
		{"set", false, func(ctx context.Context, key func(int) string, i int) error {
			return kvStore.Set(ctx, key(i), value)
		}},
		{"set-large", false, func(ctx context.Context, key func(int) string, i int) error {
			return kvStore.Set(ctx, key(i), largeValue)
		}},
		{"get", true, func(ctx context.Context, key func(int) string, i int) error {
			_, _, err := kvStore.Get(ctx, key(i))
			return err
		}},
		{"delete", true, func(ctx context.Context, key func(int) string, i int) error {
			_, err := kvStore.Delete(ctx, key(i))
			return err
		}},
		{"has", true, func(ctx context.Context, key func(int) string, i int) error {
			_, err := kvStore.Has(ctx, key(i))
			return err
		}},
		{"has-not", false, func(ctx context.Context, _ func(int) string, i int) error {
			_, err := kvStore.Has(ctx, fmt.Sprintf("%s/has-not-%d", perfKeyPrefix, i%100))
			return err
		}},
		{"mixed", true, func(ctx context.Context, key func(int) string, i int) error {
			var err error
			switch i % 4 {
			case 0: // set
				err = kvStore.Set(ctx, key(i), value)
			case 1: // get
				_, _, err = kvStore.Get(ctx, key(i))
			case 2: // delete
				_, err = kvStore.Delete(ctx, key(i))
			case 3: // has
				_, err = kvStore.Has(ctx, key(i))
			}
			return err
		}},
	}

	// Create results map
	results := make(map[string]perfResult)
	order := make([]string, 0, len(benchmarks))

	for _, bench := range benchmarks {
		result := benchmark(ctx, bench.name, bench.prefill, bench.op)
		results[bench.name] = result
		order = append(order, bench.name)
		printResult(bench.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// benchmark runs op in parallel and records the latency of every call
func benchmark(ctx context.Context, name string, prefill bool, op perfOp) perfResult {
	result := perfResult{latency: metrics.NewTimer()}
	defer result.latency.Stop()

	if shouldSkip(name) {
		return result
	}

	errCount := metrics.NewCounter()

	result.bench = testing.Benchmark(func(b *testing.B) {
		// prepare keys
		getKey, iter := getKeys(name)

		if prefill {
			iter(func(k string) {
				if err := kvStore.Set(ctx, k, []byte("test")); err != nil {
					log.Printf("(%s) - error setting key: %v\n", name, err)
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if _, err := kvStore.Delete(ctx, k); err != nil {
					log.Printf("(%s) - error deleting key: %v\n", name, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				err := op(ctx, getKey, counter)
				result.latency.UpdateSince(start)
				if err != nil {
					errCount.Inc(1)
					log.Printf("(%s) - error: %v\n", name, err)
				}
				counter++
			}
		})
	})

	result.errors = errCount.Count()
	return result
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	return slices.Contains(perfSkip, test)
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// opsPerSec converts the ns/op of a benchmark into operations per second
func opsPerSec(result testing.BenchmarkResult) (float64, float64) {
	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	return nsPerOp, 1.0 / (nsPerOp / 1e9)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.skipped() {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp, ops := opsPerSec(result.bench)
	ps := result.latency.Percentiles(perfPercentiles)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p90=%s p99=%s\terrors=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), ops,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]), result.errors)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, results map[string]perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"P50Ns", "P90Ns", "P99Ns", "Errors",
		"URI", "Namespace", "TTLMs",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, test := range order {
		result := results[test]

		var nsPerOp, ops float64
		ps := make([]float64, len(perfPercentiles))
		skipped := "true"

		if !result.skipped() {
			skipped = "false"
			nsPerOp, ops = opsPerSec(result.bench)
			ps = result.latency.Percentiles(perfPercentiles)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", ops),
			skipped,
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(result.errors, 10),
			viper.GetString("uri"),
			kvStore.Namespace(),
			strconv.FormatInt(kvStore.TTL().Milliseconds(), 10),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
