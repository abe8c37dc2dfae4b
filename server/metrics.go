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
	"log/slog"

	"hotaru/collector"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"
)

func (handler *httpHandler) metrics(ctx *fasthttp.RequestCtx, buf *bytes.Buffer) int {
	if adminToken != "" {
		auth := string(ctx.Request.Header.Peek("Authorization"))
		if auth != "Bearer "+adminToken {
			return fasthttp.StatusForbidden
		}
	}

	// The swarm totals are only walked when someone actually scrapes us
	var seeders, leechers int

	for _, torrent := range *handler.db.Torrents.Load() {
		seeders += int(torrent.SeedersLength.Load())
		leechers += int(torrent.LeechersLength.Load())
	}

	collector.UpdatePeers(seeders, leechers)

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		slog.Error("failed to gather metrics", "err", err)
		return fasthttp.StatusInternalServerError
	}

	encoder := expfmt.NewEncoder(buf, expfmt.NewFormat(expfmt.TypeTextPlain))

	for _, mf := range mfs {
		if err = encoder.Encode(mf); err != nil {
			slog.Error("failed to encode metric family", "err", err)
			return fasthttp.StatusInternalServerError
		}
	}

	ctx.SetContentType("text/plain; version=0.0.4; charset=utf-8")

	return fasthttp.StatusOK
}
