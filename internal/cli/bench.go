/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/srediag/cortex/pkg/cortex"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Hammer a private cell with concurrent writers and check for torn reads",
	Long: `Create a cell under a generated key, run concurrent writers that rewrite
the whole payload inside the lock and a reader that verifies every snapshot
is consistent, then remove the cell.`,
	Args: cobra.NoArgs,
	RunE: runBenchCmd,
}

func init() {
	key := "writers"
	benchCmd.Flags().Int(key, 8, wrapString("number of concurrent writers"))
	key = "iterations"
	benchCmd.Flags().Int(key, 10000, wrapString("updates performed by each writer"))
}

type benchConfig struct {
	Writers    int
	Iterations int
}

type benchResult struct {
	Writes  uint64
	Reads   uint64
	Torn    uint64
	Lost    uint64
	Elapsed time.Duration
}

func runBenchCmd(cmd *cobra.Command, _ []string) error {
	cfg := benchConfig{
		Writers:    viper.GetInt("writers"),
		Iterations: viper.GetInt("iterations"),
	}
	backend, err := backendFromConfig()
	if err != nil {
		return err
	}
	seg, err := cortex.New(cmd.Context(), nil, Cell{}, false, backend, nil)
	if err != nil {
		return err
	}
	defer seg.Close() //nolint:errcheck

	res, err := runBench(cmd.Context(), seg, cfg)
	if err != nil {
		return err
	}
	rate := float64(res.Writes) / res.Elapsed.Seconds()
	if err := writeFields(cmd.OutOrStdout(),
		"key", seg.Key(),
		"writes", res.Writes,
		"reads", res.Reads,
		"torn", res.Torn,
		"lost", res.Lost,
		"elapsed", res.Elapsed.Round(time.Millisecond),
		"writes_per_sec", fmt.Sprintf("%.0f", rate),
	); err != nil {
		return err
	}
	if res.Torn > 0 || res.Lost > 0 {
		return fmt.Errorf("bench found %d torn reads and %d lost updates", res.Torn, res.Lost)
	}
	return nil
}

// consistent reports whether every payload byte carries the low byte of Seq,
// which is how benchmark writers fill the cell.
func consistent(c *Cell) bool {
	if c.Len != CellPayload {
		return c.Seq == 0
	}
	b := byte(c.Seq)
	for _, v := range c.Data {
		if v != b {
			return false
		}
	}
	return true
}

func runBench(ctx context.Context, seg *cortex.Segment[Cell], cfg benchConfig) (benchResult, error) {
	if cfg.Writers < 1 || cfg.Iterations < 1 {
		return benchResult{}, fmt.Errorf("writers and iterations must be positive")
	}
	start, err := seg.Read()
	if err != nil {
		return benchResult{}, err
	}

	pool, err := ants.NewPool(cfg.Writers)
	if err != nil {
		return benchResult{}, err
	}
	defer pool.Release()

	var (
		res      benchResult
		wg       sync.WaitGroup
		firstErr atomic.Pointer[error]
		done     = make(chan struct{})
		readerWg sync.WaitGroup
	)
	fail := func(err error) { firstErr.CompareAndSwap(nil, &err) }

	began := time.Now()
	readerWg.Add(1)
	go func() {
		defer readerWg.Done()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			default:
			}
			c, err := seg.Read()
			if err != nil {
				fail(err)
				return
			}
			atomic.AddUint64(&res.Reads, 1)
			if !consistent(&c) {
				atomic.AddUint64(&res.Torn, 1)
			}
		}
	}()

	for w := 0; w < cfg.Writers; w++ {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			for i := 0; i < cfg.Iterations; i++ {
				if ctx.Err() != nil {
					return
				}
				err := seg.Update(func(c *Cell) {
					c.Seq++
					c.Len = CellPayload
					b := byte(c.Seq)
					for j := range c.Data {
						c.Data[j] = b
					}
				})
				if err != nil {
					fail(err)
					return
				}
				atomic.AddUint64(&res.Writes, 1)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
		}
	}
	wg.Wait()
	close(done)
	readerWg.Wait()
	res.Elapsed = time.Since(began)

	if p := firstErr.Load(); p != nil {
		return res, *p
	}
	end, err := seg.Read()
	if err != nil {
		return res, err
	}
	if got := end.Seq - start.Seq; got < res.Writes {
		res.Lost = res.Writes - got
	}
	return res, ctx.Err()
}
