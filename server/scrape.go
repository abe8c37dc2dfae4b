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
	"time"

	"hotaru/config"
	cdb "hotaru/database/types"
	"hotaru/server/params"
	"hotaru/util"

	"github.com/valyala/fasthttp"
)

var (
	scrapeInterval      int
	globalScrapeEnabled bool

	// One global scrape at a time, it walks every swarm
	globalScrapeSemaphore = util.NewSemaphore()
)

func init() {
	intervals := config.Section("intervals")
	scrapeInterval, _ = intervals.GetInt("scrape", 900)

	scrapeConfig := config.Section("scrape")
	globalScrapeEnabled, _ = scrapeConfig.GetBool("allow_global", false)
}

func (handler *httpHandler) scrape(
	ctx context.Context,
	reqCtx *fasthttp.RequestCtx,
	user *cdb.User,
	buf *bytes.Buffer,
) {
	qp, err := params.ParseQuery(reqCtx.URI().QueryString())
	if err != nil {
		failure("Malformed request", buf, time.Hour)
		return
	}

	torrents := *handler.db.Torrents.Load()
	variants := *handler.db.Variants.Load()

	if len(qp.InfoHashes()) == 0 {
		handler.scrapeAll(ctx, torrents, buf)
		return
	}

	userID := user.ID.Load()

	util.BencodeScrapeHeader(buf)

	for _, infoHash := range qp.InfoHashes() {
		torrent, variant := resolveTorrent(infoHash, torrents, variants)
		if torrent == nil {
			continue
		}

		if variant != nil && variant.UserID != userID {
			continue
		}

		// Pruned and disabled torrents look exactly like unknown ones
		if torrent.Status.Load() != cdb.TorrentStatusActive {
			continue
		}

		util.BencodeScrapeTorrent(buf, infoHash,
			int64(torrent.SeedersLength.Load()),
			int64(torrent.Snatched.Load()),
			int64(torrent.LeechersLength.Load()))
	}

	util.BencodeScrapeFooter(buf, scrapeInterval)
}

func (handler *httpHandler) scrapeAll(
	ctx context.Context,
	torrents map[cdb.TorrentHash]*cdb.Torrent,
	buf *bytes.Buffer,
) {
	if !globalScrapeEnabled {
		failure("Global scrape is not allowed", buf, time.Duration(scrapeInterval)*time.Second)
		return
	}

	if !util.TryTakeSemaphore(ctx, globalScrapeSemaphore) {
		failure("Tracker is busy, please try again later", buf, time.Duration(scrapeInterval)*time.Second)
		return
	}
	defer util.ReturnSemaphore(globalScrapeSemaphore)

	hashes := make([]cdb.TorrentHash, 0, len(torrents))

	for infoHash, torrent := range torrents {
		if torrent.Status.Load() != cdb.TorrentStatusActive {
			continue
		}

		hashes = append(hashes, infoHash)
	}

	// Bencoded dictionary keys must be sorted
	util.BencodeSortTorrentHashKeys(hashes)

	util.BencodeScrapeHeader(buf)

	for _, infoHash := range hashes {
		torrent := torrents[infoHash]

		util.BencodeScrapeTorrent(buf, infoHash,
			int64(torrent.SeedersLength.Load()),
			int64(torrent.Snatched.Load()),
			int64(torrent.LeechersLength.Load()))
	}

	util.BencodeScrapeFooter(buf, scrapeInterval)
}
