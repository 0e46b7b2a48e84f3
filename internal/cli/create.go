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
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/srediag/cortex/pkg/cortex"
	"github.com/srediag/cortex/pkg/health"
)

var createCmd = &cobra.Command{
	Use:   "create [key] [payload]",
	Short: "Create a cell and hold it until interrupted",
	Long: `Create a cell under key, or under a generated key when none is given, and
keep it mapped until SIGINT or SIGTERM. On exit the cell and its lock are
removed.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runCreate,
}

func init() {
	key := "force"
	createCmd.Flags().Bool(key, false, wrapString("take over a cell that already exists under key"))
	key = "health-addr"
	createCmd.Flags().String(key, "", wrapString("serve /live, /ready and /metrics on this address while holding the cell"))
}

func runCreate(cmd *cobra.Command, args []string) error {
	backend, err := backendFromConfig()
	if err != nil {
		return err
	}

	var key *int32
	if len(args) > 0 {
		k, err := parseKey(args[0])
		if err != nil {
			return err
		}
		key = &k
	}
	var cell Cell
	if len(args) > 1 {
		if err := cell.SetPayload([]byte(args[1])); err != nil {
			return err
		}
	}

	promReg := prometheus.NewRegistry()
	metrics, err := cortex.NewMetrics(promReg)
	if err != nil {
		return err
	}
	registry := cortex.NewRegistry()
	opts := &cortex.Options{Metrics: metrics, Registry: registry}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seg, err := cortex.New(ctx, key, cell, viper.GetBool("force"), backend, opts)
	if err != nil {
		return err
	}
	defer registry.CloseAll() //nolint:errcheck

	if err := writeFields(cmd.OutOrStdout(), "key", seg.Key(), "id", seg.ID(), "size", seg.Size(), "owner", seg.IsOwner()); err != nil {
		return err
	}

	if addr := viper.GetString("health-addr"); addr != "" {
		srv, err := serveHTTP(addr, seg.Key(), promReg)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	if err := registry.CloseAll(); err != nil {
		return fmt.Errorf("release cell %d: %w", seg.Key(), err)
	}
	return writeFields(cmd.OutOrStdout(), "key", seg.Key(), "released", true)
}

func serveHTTP(addr string, key int32, reg *prometheus.Registry) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	checks := health.NewHandler(key, nil)
	mux := http.NewServeMux()
	mux.Handle("/live", checks)
	mux.Handle("/ready", checks)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "health server: %v\n", err)
		}
	}()
	return srv, nil
}
