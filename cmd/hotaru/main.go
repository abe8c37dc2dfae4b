/*
 * This file is part of Hotaru.
 *
 * Hotaru is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * Hotaru is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with Hotaru.  If not, see <http://www.gnu.org/licenses/>.
 */

package main

import (
	"flag"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"hotaru/collector"
	"hotaru/database"
	"hotaru/record"
	"hotaru/server"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	profileAddr := flag.String("profile", "", "address for the pprof listener, disabled when empty")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if *profileAddr != "" {
		go func() {
			slog.Info("starting pprof listener", "addr", *profileAddr)

			if err := http.ListenAndServe(*profileAddr, nil); err != nil {
				slog.Error("pprof listener failed", "err", err)
			}
		}()
	}

	prometheus.MustRegister(collector.NewCollector())

	if err := record.Init(); err != nil {
		slog.Error("failed to initialize announce journal", "err", err)
		os.Exit(1)
	}

	db := &database.Database{}
	db.Init()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		slog.Info("caught interrupt, shutting down...")
		server.Stop()
	}()

	server.Start(db)

	db.Terminate()

	slog.Info("shutdown complete")
}
