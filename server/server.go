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

package server

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"hotaru/collector"
	"hotaru/config"
	"hotaru/database"
	"hotaru/util"

	"github.com/valyala/fasthttp"
)

type httpHandler struct {
	db *database.Database

	bufferPool *util.BufferPool

	contextTimeout time.Duration

	startTime time.Time
}

var (
	handler *httpHandler
	server  *fasthttp.Server

	proxyHeader string
)

func (handler *httpHandler) handleRequest(ctx *fasthttp.RequestCtx) {
	collector.IncrementRequestsHandled()

	buf := handler.bufferPool.Take()
	defer handler.bufferPool.Give(buf)

	defer func() {
		if r := recover(); r != nil {
			collector.IncrementErroredRequests()
			slog.Error("recovered from panic in handler", "err", r, "path", string(ctx.Path()))
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		}
	}()

	status := handler.route(ctx, buf)

	ctx.SetStatusCode(status)
	_, _ = ctx.Write(buf.Bytes())
}

func (handler *httpHandler) route(ctx *fasthttp.RequestCtx, buf *bytes.Buffer) int {
	if !ctx.IsGet() {
		failure("Unsupported request method", buf, time.Hour)
		return fasthttp.StatusOK
	}

	segments := strings.Split(strings.Trim(string(ctx.Path()), "/"), "/")

	switch segments[0] {
	case "alive":
		return handler.alive(ctx, buf)
	case "metrics":
		return handler.metrics(ctx, buf)
	case "admin":
		return handler.admin(ctx, buf, segments[1:])
	}

	if len(segments) != 2 {
		failure("Malformed request", buf, time.Hour)
		return fasthttp.StatusOK
	}

	passkey, action := segments[0], segments[1]

	if !isPasskeyValid(passkey) {
		failure("Malformed request - invalid passkey", buf, time.Hour)
		return fasthttp.StatusOK
	}

	// An unknown passkey is not yet fatal for an announce: a variant
	// info_hash can still authenticate its owner (see announce.go).
	user := (*handler.db.Users.Load())[passkey]
	if user == nil && action != "announce" {
		failure("Your passkey is invalid", buf, time.Hour)
		return fasthttp.StatusOK
	}

	// Bound the whole request, most importantly the wait on the swarm lock
	requestCtx, cancel := context.WithTimeout(context.Background(), handler.contextTimeout)
	defer cancel()

	switch action {
	case "announce":
		handler.announce(requestCtx, ctx, user, buf)
	case "scrape":
		handler.scrape(requestCtx, ctx, user, buf)
	default:
		failure("Unknown action", buf, time.Hour)
	}

	ctx.SetContentType("text/plain")

	return fasthttp.StatusOK
}

func Start(db *database.Database) {
	httpConfig := config.Section("http")

	addr, _ := httpConfig.Get("addr", ":34000")
	proxyHeader, _ = httpConfig.Get("proxy_header", "")

	readTimeout, _ := httpConfig.GetInt("read_timeout", 1)
	writeTimeout, _ := httpConfig.GetInt("write_timeout", 3)
	idleTimeout, _ := httpConfig.GetInt("idle_timeout", 30)
	contextTimeout, _ := httpConfig.GetInt("context_timeout", 10)

	handler = &httpHandler{
		db:             db,
		bufferPool:     util.NewBufferPool(512),
		contextTimeout: time.Duration(contextTimeout) * time.Second,
		startTime:      time.Now(),
	}

	server = &fasthttp.Server{
		Handler:                       handler.handleRequest,
		GetOnly:                       false,
		ReadTimeout:                   time.Duration(readTimeout) * time.Second,
		WriteTimeout:                  time.Duration(writeTimeout) * time.Second,
		IdleTimeout:                   time.Duration(idleTimeout) * time.Second,
		MaxRequestBodySize:            1024,
		DisablePreParseMultipartForm:  true,
		NoDefaultServerHeader:         true,
		NoDefaultContentType:          true,
		DisableHeaderNamesNormalizing: false,
		CloseOnShutdown:               true,
	}

	slog.Info("ready and accepting new connections", "addr", addr)

	if err := server.ListenAndServe(addr); err != nil {
		slog.Error("failed to listen and serve", "err", err)
		os.Exit(1)
	}

	slog.Info("now closed and not accepting any new connections")
}

func Stop() {
	if server == nil {
		return
	}

	// Drains in-flight requests before returning
	if err := server.Shutdown(); err != nil {
		slog.Error("error shutting down http server", "err", err)
	}
}
