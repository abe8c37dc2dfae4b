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
	"encoding/json"
	"time"

	"hotaru/config"
	cdb "hotaru/database/types"
	"hotaru/record"

	"github.com/jinzhu/copier"
	"github.com/valyala/fasthttp"
)

var adminToken string

func init() {
	adminToken, _ = config.Section("admin").Get("token", "")
}

type peerInfo struct {
	UserID       uint32 `json:"uid"`
	TorrentID    uint32 `json:"fid"`
	Addr         string `json:"addr"`
	Uploaded     uint64 `json:"uploaded"`
	Downloaded   uint64 `json:"downloaded"`
	Left         uint64 `json:"left"`
	Seeding      bool   `json:"seeding"`
	StartTime    int64  `json:"starttime"`
	LastAnnounce int64  `json:"last_announce"`
}

type statsInfo struct {
	Uptime   int64 `json:"uptime"`
	Users    int   `json:"users"`
	Torrents int   `json:"torrents"`
	Variants int   `json:"variants"`
	Clients  int   `json:"clients"`
	Seeders  int   `json:"seeders"`
	Leechers int   `json:"leechers"`
}

// Read-only introspection endpoints for site staff, gated by a bearer
// token. No token configured means no admin surface at all.
func (handler *httpHandler) admin(ctx *fasthttp.RequestCtx, buf *bytes.Buffer, segments []string) int {
	if adminToken == "" {
		return fasthttp.StatusNotFound
	}

	auth := string(ctx.Request.Header.Peek("Authorization"))
	if auth != "Bearer "+adminToken {
		return fasthttp.StatusForbidden
	}

	if len(segments) != 1 {
		return fasthttp.StatusNotFound
	}

	var (
		response interface{}
		args     = ctx.QueryArgs()
	)

	switch segments[0] {
	case "stats":
		response = handler.adminStats()
	case "peers":
		response = handler.adminPeers(
			uint32(args.GetUintOrZero("uid")),
			uint32(args.GetUintOrZero("fid")),
			string(args.Peek("status")),
			args.GetUintOrZero("limit"))
	case "announces":
		response = record.Recent(
			args.GetUintOrZero("limit"),
			uint32(args.GetUintOrZero("uid")),
			uint32(args.GetUintOrZero("fid")),
			string(args.Peek("event")))
	default:
		return fasthttp.StatusNotFound
	}

	encoded, err := json.Marshal(response)
	if err != nil {
		return fasthttp.StatusInternalServerError
	}

	buf.Write(encoded)
	ctx.SetContentType("application/json")

	return fasthttp.StatusOK
}

func (handler *httpHandler) adminStats() *statsInfo {
	var seeders, leechers int

	for _, torrent := range *handler.db.Torrents.Load() {
		seeders += int(torrent.SeedersLength.Load())
		leechers += int(torrent.LeechersLength.Load())
	}

	return &statsInfo{
		Uptime:   int64(time.Since(handler.startTime).Seconds()),
		Users:    len(*handler.db.Users.Load()),
		Torrents: len(*handler.db.Torrents.Load()),
		Variants: len(*handler.db.Variants.Load()),
		Clients:  len(*handler.db.Clients.Load()),
		Seeders:  seeders,
		Leechers: leechers,
	}
}

// adminPeers lists active sessions, narrowed by user, torrent and status
// ("seeding" or "leeching", empty for both).
func (handler *httpHandler) adminPeers(userID, torrentID uint32, status string, limit int) []*peerInfo {
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	peers := make([]*peerInfo, 0, 64)

	for _, torrent := range *handler.db.Torrents.Load() {
		if torrentID != 0 && torrent.ID.Load() != torrentID {
			continue
		}

		if len(peers) >= limit {
			break
		}

		func() {
			lockCtx, cancel := context.WithTimeout(context.Background(), handler.contextTimeout)
			defer cancel()

			if !torrent.PeerTryLock(lockCtx) {
				return
			}
			defer torrent.PeerUnlock()

			collect := func(m map[cdb.PeerKey]*cdb.Peer) {
				for _, peer := range m {
					if len(peers) >= limit {
						return
					}

					if userID != 0 && peer.UserID != userID {
						continue
					}

					info := &peerInfo{}
					if err := copier.Copy(info, peer); err != nil {
						continue
					}

					info.Addr = peer.Addr.IPString()
					peers = append(peers, info)
				}
			}

			switch status {
			case "seeding":
				collect(torrent.Seeders)
			case "leeching":
				collect(torrent.Leechers)
			default:
				collect(torrent.Seeders)
				collect(torrent.Leechers)
			}
		}()
	}

	return peers
}
