package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/mKV/cmd/util"
	"github.com/ValentinKolb/mKV/lib/store"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for mKV servers",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfOps              = 10000
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10000, util.WrapString("How many operations to perform per test"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfOps = viper.GetInt("ops")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for mKV servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Operations per test: %d\n", perfOps)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]gometrics.Timer)

	run := func(name string, setup func(iter func(func(string))), op func(counter int, key string) error) {
		if shouldSkip(name) {
			fmt.Printf("%-20sskipped\n", name)
			return
		}

		// prepare keys
		getKey, iter := getKeys(name)

		// seed the store if the test needs existing keys
		if setup != nil {
			setup(iter)
		}

		// cleanup
		defer iter(func(k string) {
			err := rpcStore.Delete(k)
			if err != nil {
				log.Printf("(%s) - error deleting key: %v\n", name, err)
			}
		})

		timer := runTimed(func(counter int) error {
			return op(counter, getKey(counter))
		})

		results[name] = timer
		printResult(name, timer)
	}

	// seedKeys sets a small string value for every test key
	seedKeys := func(name string) func(iter func(func(string))) {
		return func(iter func(func(string))) {
			iter(func(k string) {
				err := rpcStore.Set(k, store.StringValue("test"))
				if err != nil {
					log.Printf("(%s) - error setting key: %v\n", name, err)
				}
			})
		}
	}

	run("set", nil, func(_ int, key string) error {
		return rpcStore.Set(key, store.StringValue("test"))
	})

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	run("set-large", nil, func(_ int, key string) error {
		return rpcStore.Set(key, store.BufferValue(largeValue))
	})

	run("get", seedKeys("get"), func(_ int, key string) error {
		_, _, err := rpcStore.GetString(key)
		return err
	})

	run("delete", seedKeys("delete"), func(_ int, key string) error {
		return rpcStore.Delete(key)
	})

	run("contains", seedKeys("contains"), func(_ int, key string) error {
		_, err := rpcStore.Contains(key)
		return err
	})

	run("contains-not", nil, func(counter int, _ string) error {
		key := fmt.Sprintf("%s/contains-not-%d", perfKeyPrefix, counter%100)
		_, err := rpcStore.Contains(key) // miss expected
		return err
	})

	run("mixed", seedKeys("mixed"), func(counter int, key string) error {
		switch counter % 4 {
		case 0: // set
			return rpcStore.Set(key, store.StringValue("test"))
		case 1: // get
			_, _, err := rpcStore.GetString(key)
			return err
		case 2: // delete
			return rpcStore.Delete(key)
		default: // contains
			_, err := rpcStore.Contains(key)
			return err
		}
	})

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// runTimed executes the operation perfOps times across perfNumThreads
// goroutines and records every latency in a timer
func runTimed(op func(counter int) error) gometrics.Timer {
	timer := gometrics.NewTimer()

	var wg sync.WaitGroup
	var counter uint64
	var errCount uint64

	opsPerThread := perfOps / perfNumThreads
	if opsPerThread < 1 {
		opsPerThread = 1
	}

	for t := 0; t < perfNumThreads; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < opsPerThread; i++ {
				n := int(atomic.AddUint64(&counter, 1))
				start := time.Now()
				err := op(n)
				timer.UpdateSince(start)
				if err != nil {
					if atomic.AddUint64(&errCount, 1) <= 5 {
						log.Printf("operation failed: %v\n", err)
					}
				}
			}
		}()
	}
	wg.Wait()

	return timer
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

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, timer gometrics.Timer) {
	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Printf("%-20s%d ops\tmean %s\tp50 %s\tp95 %s\tp99 %s\t%.0f ops/sec\n",
		test,
		timer.Count(),
		time.Duration(timer.Mean()),
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		time.Duration(ps[2]),
		timer.RateMean(),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]gometrics.Timer) error {
	config := util.GetClientConfig()

	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "MeanNs", "P50Ns", "P95Ns", "P99Ns", "OpsPerSec",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, timer := range results {
		ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})

		row := []string{
			test,
			strconv.FormatInt(timer.Count(), 10),
			fmt.Sprintf("%.0f", timer.Mean()),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			fmt.Sprintf("%.0f", timer.RateMean()),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
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
