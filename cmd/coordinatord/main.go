/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command coordinatord is the server process. Its flags only locate the
// configuration file and database, set the /metrics listen address, and
// add an extra log file: every behavior the core consults comes from the
// configuration file, not the command line.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nabbar/lbeacon-coordinator/config"
	"github.com/nabbar/lbeacon-coordinator/logger"
	"github.com/nabbar/lbeacon-coordinator/server"
)

var (
	flagConfigPath  string
	flagDSN         string
	flagMetricsAddr string
	flagLogFile     string
)

func main() {
	cmd := &cobra.Command{
		Use:   "coordinatord",
		Short: "Run the packet-routing coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	cmd.Flags().StringVarP(&flagConfigPath, "config", "c", "", "path to the key=value configuration file")
	cmd.Flags().StringVar(&flagDSN, "dsn", "coordinator.sqlite", "sqlite DSN for the persistence store")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", ":9090", "address the /metrics endpoint listens on, empty to disable")
	cmd.Flags().StringVar(&flagLogFile, "log-file", "", "path to an additional log file, overrides the config file's log_file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer() error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logFile := flagLogFile
	if logFile == "" {
		logFile = cfg.LogFilePath
	}

	lvl := logger.ParseLevel(cfg.LogLevel)
	log := logger.New(nil, lvl)

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logger.AddFileHook(log, f)
	}

	logFn := func() logger.Logger { return log }

	srv, err := server.New(cfg, flagDSN, logFn)
	if err != nil {
		log.Fatal("initializing coordinator", logger.Fields{"error": err.Error()})
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flagMetricsAddr != "" {
		startMetricsServer(ctx, srv, log)
	}

	log.Info("coordinator starting", logger.Fields{
		"receive_address": cfg.ReceiveAddress,
		"receive_port":    cfg.ReceivePort,
	})

	srv.Run(ctx)

	log.Info("coordinator stopped", nil)
	return nil
}

// startMetricsServer runs a bare /metrics HTTP endpoint in its own
// goroutine, shut down when ctx is cancelled. Its own failures are logged,
// never fatal - the routing core runs with or without Prometheus scraping.
func startMetricsServer(ctx context.Context, srv *server.Server, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(srv.Metrics().Gatherer(), promhttp.HandlerOpts{}))

	httpSrv := &http.Server{Addr: flagMetricsAddr, Handler: mux}

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server stopped", logger.Fields{"error": err.Error()})
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()
}
