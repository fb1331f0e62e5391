package kv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/lKV/cmd/util"
	"github.com/ValentinKolb/lKV/lib/store"
	"github.com/ValentinKolb/lKV/rpc/client"
	"github.com/ValentinKolb/lKV/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for lKV servers",
		Long:    "Runs a set of benchmarks against a running server. Every thread uses its own connection, latencies are recorded per operation.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix     = "__test"
	perfNumThreads    = 10
	perfOpsPerThread  = 1000
	perfKeySpread     = 100
	perfSkip          = make([]string, 0)
	perfPercentiles   = []float64{0.5, 0.95, 0.99}
	perfPercentileTag = []string{"p50", "p95", "p99"}
)

// benchmark is one named workload. op is called with the thread local store
// and the iteration counter of the thread.
type benchmark struct {
	name    string
	prepare bool
	op      func(s store.IStore, key string, i int) error
}

var benchmarks = []benchmark{
	{name: "set", op: func(s store.IStore, key string, _ int) error {
		_, err := s.Set(key, "test")
		return err
	}},
	{name: "get", prepare: true, op: func(s store.IStore, key string, _ int) error {
		_, err := s.Get(key)
		return err
	}},
	{name: "mixed", prepare: true, op: func(s store.IStore, key string, i int) error {
		var err error
		switch i % 3 {
		case 0:
			_, err = s.Set(key, "test")
		case 1:
			_, err = s.Get(key)
		case 2:
			err = s.Delete(key)
		}
		// keys deleted by other threads are expected
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}},
	{name: "size", op: func(s store.IStore, _ string, _ int) error {
		_, err := s.Size()
		return err
	}},
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads (connections) to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per thread and benchmark"))
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
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfOpsPerThread = viper.GetInt("ops")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread <= 0 || perfNumThreads <= 0 || perfOpsPerThread <= 0 {
		return fmt.Errorf("keys, threads and ops must be positive")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	config := util.GetClientConfig()

	fmt.Println("Performance testing tool for lKV servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d, Ops/Thread: %d, Keys: %d\n", perfNumThreads, perfOpsPerThread, perfKeySpread)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()
	for _, b := range benchmarks {
		if shouldSkip(b.name) {
			fmt.Printf("%-12sskipped\n", b.name)
			continue
		}
		elapsed, err := runBenchmark(*config, b, registry)
		if err != nil {
			return fmt.Errorf("benchmark %s failed: %w", b.name, err)
		}
		printResult(b.name, registry, elapsed)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, registry, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runBenchmark runs b on perfNumThreads connections and records every call
// in the timer <name> and failures in the counter <name>.errors
func runBenchmark(config common.ClientConfig, b benchmark, registry gometrics.Registry) (time.Duration, error) {
	timer := gometrics.GetOrRegisterTimer(b.name, registry)
	failures := gometrics.GetOrRegisterCounter(b.name+".errors", registry)
	keys := getKeys(b.name)

	// one connection per thread
	stores := make([]*client.RPCStore, perfNumThreads)
	defer func() {
		for _, s := range stores {
			if s != nil {
				_ = s.Close()
			}
		}
	}()
	for i := range stores {
		s, err := client.NewRPCStore(config)
		if err != nil {
			return 0, err
		}
		stores[i] = s
	}

	if b.prepare {
		for _, k := range keys {
			if _, err := stores[0].Set(k, "test"); err != nil {
				return 0, fmt.Errorf("failed to prepare key %s: %w", k, err)
			}
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	for thread, s := range stores {
		wg.Add(1)
		go func(thread int, s store.IStore) {
			defer wg.Done()
			for i := 0; i < perfOpsPerThread; i++ {
				key := keys[(thread*perfOpsPerThread+i)%len(keys)]
				opStart := time.Now()
				err := b.op(s, key, i)
				timer.UpdateSince(opStart)
				if err != nil {
					failures.Inc(1)
					log.Printf("(%s) - error: %v\n", b.name, err)
				}
			}
		}(thread, s)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// cleanup
	for _, k := range keys {
		if err := stores[0].Delete(k); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Printf("(%s) - error deleting key: %v\n", b.name, err)
		}
	}

	return elapsed, nil
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getKeys creates the test keys of a benchmark
func getKeys(prefix string) []string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return keys
}

// printResult prints the recorded latencies of a benchmark in a formatted way
func printResult(test string, registry gometrics.Registry, elapsed time.Duration) {
	timer := gometrics.GetOrRegisterTimer(test, registry)
	failures := gometrics.GetOrRegisterCounter(test+".errors", registry)

	opsPerSec := float64(timer.Count()) / elapsed.Seconds()
	ps := timer.Percentiles(perfPercentiles)

	fmt.Printf("%-12s%8d ops\t%.0f ops/sec\tmean %s", test, timer.Count(), opsPerSec, time.Duration(timer.Mean()))
	for i, tag := range perfPercentileTag {
		fmt.Printf("\t%s %s", tag, time.Duration(ps[i]))
	}
	fmt.Printf("\terrors %d\n", failures.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, registry gometrics.Registry, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "Errors", "MeanNs", "P50Ns", "P95Ns", "P99Ns", "MaxNs",
		"Endpoint", "TimeoutSec", "Threads", "OpsPerThread", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, b := range benchmarks {
		if shouldSkip(b.name) {
			continue
		}
		timer := gometrics.GetOrRegisterTimer(b.name, registry)
		failures := gometrics.GetOrRegisterCounter(b.name+".errors", registry)
		ps := timer.Percentiles(perfPercentiles)

		row := []string{
			b.name,
			strconv.FormatInt(timer.Count(), 10),
			strconv.FormatInt(failures.Count(), 10),
			fmt.Sprintf("%.0f", timer.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(timer.Max(), 10),
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfOpsPerThread),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", b.name, err)
		}
	}

	return nil
}
