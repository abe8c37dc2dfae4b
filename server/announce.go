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
	"math"
	"time"

	"hotaru/config"
	"hotaru/database"
	cdb "hotaru/database/types"
	"hotaru/record"
	"hotaru/server/params"
	"hotaru/util"

	"github.com/valyala/fasthttp"
)

var (
	announceInterval    int
	minAnnounceInterval int
	announceDrift       int

	defaultNumWant int
	maxNumWant     int

	inactivityWindow int64
)

func init() {
	intervals := config.Section("intervals")

	announceInterval, _ = intervals.GetInt("announce", 1800)
	minAnnounceInterval, _ = intervals.GetInt("min_announce", 900)
	announceDrift, _ = intervals.GetInt("announce_drift", 300)

	inactivity, _ := intervals.GetInt("peer_inactivity", 3900)
	inactivityWindow = int64(inactivity)

	announceConfig := config.Section("announce")
	defaultNumWant, _ = announceConfig.GetInt("numwant", 25)
	maxNumWant, _ = announceConfig.GetInt("max_numwant", 50)
}

func (handler *httpHandler) announce(
	ctx context.Context,
	reqCtx *fasthttp.RequestCtx,
	user *cdb.User,
	buf *bytes.Buffer,
) {
	failureInterval := time.Duration(announceInterval) * time.Second

	qp, err := params.ParseQuery(reqCtx.URI().QueryString())
	if err != nil {
		failure("Malformed request", buf, time.Hour)
		return
	}

	infoHash, exists := qp.InfoHash()
	if !exists {
		failure("Malformed request - missing info_hash", buf, time.Hour)
		return
	}

	peerIDStr, exists := qp.PeerID()
	if !exists || len(peerIDStr) != 20 {
		failure("Malformed request - missing peer_id", buf, time.Hour)
		return
	}

	port, exists := qp.Port()
	if !exists || port < 1024 {
		failure("Malformed request - invalid port", buf, time.Hour)
		return
	}

	uploaded, exists := qp.Uploaded()
	if !exists {
		failure("Malformed request - missing uploaded", buf, time.Hour)
		return
	}

	downloaded, exists := qp.Downloaded()
	if !exists {
		failure("Malformed request - missing downloaded", buf, time.Hour)
		return
	}

	left, exists := qp.Left()
	if !exists {
		failure("Malformed request - missing left", buf, time.Hour)
		return
	}

	event, _ := qp.Event()

	switch event {
	case "", "started", "stopped", "completed":
	default:
		failure("Unknown event", buf, time.Hour)
		return
	}

	ipAddr, public := getIPAddressFromRequest(qp, reqCtx)
	if !public {
		failure("Could not determine your public IPv4 address", buf, failureInterval)
		return
	}

	clientID, approved := isClientApproved(peerIDStr, *handler.db.Clients.Load())
	if !approved {
		failure("Your client is not approved", buf, time.Hour)
		return
	}

	torrent, variant := resolveTorrent(infoHash, *handler.db.Torrents.Load(), *handler.db.Variants.Load())

	// Resolution order: the passkey first, then the variant hash. A client
	// announcing a personalized torrent through an unknown passkey still
	// authenticates as the user the variant was issued to.
	if user == nil {
		if variant != nil {
			user = (*handler.db.UsersID.Load())[variant.UserID]
		}

		if user == nil {
			failure("Your passkey is invalid", buf, time.Hour)
			return
		}
	}

	if torrent == nil {
		failure("Unregistered torrent", buf, failureInterval)
		return
	}

	userID := user.ID.Load()

	// A variant hash belongs to exactly one user
	if variant != nil && variant.UserID != userID {
		failure("Unregistered torrent", buf, failureInterval)
		return
	}

	seeding := left == 0

	switch torrent.Status.Load() {
	case cdb.TorrentStatusDisabled:
		failure("This torrent does not exist", buf, failureInterval)
		return
	case cdb.TorrentStatusPruned:
		if seeding && event != "stopped" {
			// A returning seeder revives a pruned torrent
			torrent.Status.Store(cdb.TorrentStatusActive)
			handler.db.UnPruneTorrent(torrent)

			slog.Info("unpruned torrent", "fid", torrent.ID.Load(), "uid", userID)
		} else {
			failure("Unregistered torrent", buf, failureInterval)
			return
		}
	}

	if !seeding && event != "stopped" && user.DisableDownload.Load() {
		failure("Your download privileges have been revoked", buf, failureInterval)
		return
	}

	if event == "completed" && left > 0 {
		slog.Warn("completed event with non-zero left", "uid", userID,
			"fid", torrent.ID.Load(), "left", left)
	}

	var (
		peerKey = cdb.NewPeerKey(userID, cdb.PeerIDFromRawString(peerIDStr))
		now     = time.Now().Unix()

		rawDeltaUp, rawDeltaDown int64
		deltaTime, deltaSeedTime int64
		deltaSnatch              uint8

		peer  *cdb.Peer
		peers []*cdb.Peer
	)

	active := event != "stopped"

	if !torrent.PeerTryLock(ctx) {
		failure("Tracker is busy, please try again later", buf, time.Duration(minAnnounceInterval)*time.Second)
		return
	}

	peer, wasSeeder := torrent.Seeders[peerKey]
	if !wasSeeder {
		peer = torrent.Leechers[peerKey]
	}

	if peer != nil {
		// Negative deltas mean the client restarted its counters
		rawDeltaUp = clampDelta(peer.Uploaded, uploaded)
		rawDeltaDown = clampDelta(peer.Downloaded, downloaded)

		deltaTime = clampWindow(now-peer.LastAnnounce, inactivityWindow)
		deltaSeedTime = seedTimeDelta(peer.Seeding, seeding, deltaTime)
	}

	if !active {
		if wasSeeder {
			delete(torrent.Seeders, peerKey)
		} else if peer != nil {
			delete(torrent.Leechers, peerKey)
		}
	} else {
		if peer == nil {
			// First contact for this session, nothing is credited yet
			peer = &cdb.Peer{
				ID:        cdb.PeerIDFromRawString(peerIDStr),
				StartTime: now,
				TorrentID: torrent.ID.Load(),
				UserID:    userID,
			}

			if seeding {
				torrent.Seeders[peerKey] = peer
			} else {
				torrent.Leechers[peerKey] = peer
			}
		} else if peer.Seeding != seeding {
			if seeding {
				delete(torrent.Leechers, peerKey)
				torrent.Seeders[peerKey] = peer
			} else {
				delete(torrent.Seeders, peerKey)
				torrent.Leechers[peerKey] = peer
			}
		}

		if event == "completed" && !wasSeeder {
			deltaSnatch = 1
		}

		peer.Addr = cdb.NewPeerAddressFromIPPort(ipAddr, port)
		peer.Uploaded = uploaded
		peer.Downloaded = downloaded
		peer.Left = left
		peer.LastAnnounce = now
		peer.ClientID = clientID
		peer.Seeding = seeding
	}

	torrent.SeedersLength.Store(uint32(len(torrent.Seeders)))
	torrent.LeechersLength.Store(uint32(len(torrent.Leechers)))
	torrent.LastAction.Store(now)

	if deltaSnatch == 1 {
		torrent.Snatched.Add(1)
	}

	numWant := defaultNumWant

	if want, hasNumWant := qp.NumWant(); hasNumWant {
		numWant = min(int(want), maxNumWant)
	}

	if !active {
		numWant = 0
	}

	peers = selectAnnouncePeers(torrent, peerKey, seeding, numWant)

	seedersLen := int64(torrent.SeedersLength.Load())
	leechersLen := int64(torrent.LeechersLength.Load())
	snatched := int64(torrent.Snatched.Load())

	torrent.PeerUnlock()

	if peer == nil {
		// Stop for a session we never knew about, nothing to account for
		util.BencodeAnnounceHeader(buf, seedersLen, leechersLen, snatched, announceInterval, minAnnounceInterval)
		util.BencodeAnnouncePeersIP4(buf, nil, qp.Compact(), false)
		util.BencodeAnnounceFooter(buf)

		return
	}

	// Freeleech knocks the charged download to zero, raw counters still count
	upMultiplier := math.Float64frombits(user.UpMultiplier.Load()) *
		math.Float64frombits(torrent.UpMultiplier.Load())
	downMultiplier := math.Float64frombits(user.DownMultiplier.Load()) *
		math.Float64frombits(torrent.DownMultiplier.Load())

	if database.GlobalFreeleech.Load() {
		downMultiplier = 0
	}

	deltaUp := int64(float64(rawDeltaUp) * upMultiplier)
	deltaDown := int64(float64(rawDeltaDown) * downMultiplier)

	handler.db.QueueUser(user, rawDeltaUp, rawDeltaDown, deltaUp, deltaDown)
	handler.db.QueueTransferHistory(peer, rawDeltaUp, rawDeltaDown, deltaTime, deltaSeedTime, deltaSnatch, active)
	handler.db.QueueTransferIP(peer, user, rawDeltaUp, rawDeltaDown)
	handler.db.QueueTorrent(torrent, deltaSnatch)

	if deltaSnatch == 1 {
		handler.db.QueueSnatch(peer, now)
	}

	handler.db.QueuePoints(&cdb.LedgerEntry{
		UserID:    userID,
		TorrentID: torrent.ID.Load(),
		Reason:    cdb.ReasonTraffic,
		Delta:     database.TrafficPoints(deltaUp, deltaDown),
		UpDelta:   deltaUp,
		DownDelta: deltaDown,
	})

	if deltaSeedTime > 0 {
		handler.db.AccumulateSeedTime(userID, torrent.ID.Load(), deltaSeedTime)
	}

	record.Record(&record.Announce{
		Time:       now,
		UserID:     userID,
		TorrentID:  torrent.ID.Load(),
		Event:      event,
		IP:         ipAddr.String(),
		Port:       port,
		Uploaded:   uploaded,
		Downloaded: downloaded,
		Left:       left,
		Seeding:    seeding,
	})

	interval := announceInterval
	if announceDrift > 0 {
		// Jitter spreads rescheduled announces so swarms do not thunder in sync
		interval += util.UnsafeIntn(announceDrift)
	}

	util.BencodeAnnounceHeader(buf, seedersLen, leechersLen, snatched, interval, minAnnounceInterval)
	util.BencodeAnnouncePeersIP4(buf, peers, qp.Compact(), !qp.NoPeerID())
	util.BencodeAnnounceFooter(buf)
}

// clampDelta protects the ledger from clients that restarted and reset
// their session counters back to zero.
func clampDelta(previous, reported uint64) int64 {
	if reported <= previous {
		return 0
	}

	return int64(reported - previous)
}

// seedTimeDelta credits elapsed time only when the peer was seeding at
// both observations. A seeder that comes back as a leecher (recheck or
// restart) was not verifiably seeding across the gap.
func seedTimeDelta(wasSeeding, seeding bool, deltaTime int64) int64 {
	if wasSeeding && seeding {
		return deltaTime
	}

	return 0
}

// clampWindow bounds an elapsed-time delta to the inactivity window. Time
// past the window would have expired the peer, so it is never credited.
func clampWindow(delta, window int64) int64 {
	if delta < 0 {
		return 0
	}

	if delta > window {
		return window
	}

	return delta
}

// selectAnnouncePeers picks up to numWant peers for the requester. Seeders
// only ever receive leechers; leechers receive seeders first and other
// leechers after. The requester never sees its own sessions, and at most
// one session per user is handed out from the seeder side.
func selectAnnouncePeers(torrent *cdb.Torrent, self cdb.PeerKey, seeding bool, numWant int) []*cdb.Peer {
	if numWant <= 0 {
		return nil
	}

	selfUserID := self.UserID()
	peers := make([]*cdb.Peer, 0, min(numWant, len(torrent.Seeders)+len(torrent.Leechers)))

	if !seeding {
		seenUsers := make(map[uint32]struct{}, numWant)

		for _, peer := range torrent.Seeders {
			if len(peers) >= numWant {
				break
			}

			if peer.UserID == selfUserID {
				continue
			}

			if _, dup := seenUsers[peer.UserID]; dup {
				continue
			}

			seenUsers[peer.UserID] = struct{}{}
			peers = append(peers, peer)
		}
	}

	for key, peer := range torrent.Leechers {
		if len(peers) >= numWant {
			break
		}

		if key == self || peer.UserID == selfUserID {
			continue
		}

		peers = append(peers, peer)
	}

	return peers
}
