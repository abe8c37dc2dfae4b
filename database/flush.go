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

package database

import (
	"bytes"
	"log/slog"
	"time"

	"hotaru/collector"
	"hotaru/config"
	cdb "hotaru/database/types"
	"hotaru/util"
)

var (
	torrentFlushBufferSize         int
	userFlushBufferSize            int
	transferHistoryFlushBufferSize int
	transferIpsFlushBufferSize     int
	snatchFlushBufferSize          int
	pointsFlushBufferSize          int

	flushSleepInterval    int
	purgeInactiveInterval int
	peerInactivityTime    int
)

func init() {
	channels := config.Section("channels")
	torrentFlushBufferSize, _ = channels.GetInt("torrent", 5000)
	userFlushBufferSize, _ = channels.GetInt("user", 5000)
	transferHistoryFlushBufferSize, _ = channels.GetInt("transfer_history", 5000)
	transferIpsFlushBufferSize, _ = channels.GetInt("transfer_ips", 5000)
	snatchFlushBufferSize, _ = channels.GetInt("snatch", 25)
	pointsFlushBufferSize, _ = channels.GetInt("points", 1000)

	intervals := config.Section("intervals")
	flushSleepInterval, _ = intervals.GetInt("flush", 3)
	purgeInactiveInterval, _ = intervals.GetInt("purge_inactive_peers", 120)
	peerInactivityTime, _ = intervals.GetInt("peer_inactivity", 3900)
}

/*
 * Channels are used for flushing to limit throughput to a manageable level.
 * If a client causes an update that requires a flush, it is enqueued in the
 * channel and executed asynchronously. This allows bursts of activity from
 * concurrent announces to be batched into single queries instead of hundreds
 * or thousands of individual queries.
 */
func (db *Database) startFlushing() {
	db.torrentChannel = make(chan *bytes.Buffer, torrentFlushBufferSize)
	db.userChannel = make(chan *bytes.Buffer, userFlushBufferSize)
	db.transferHistoryChannel = make(chan *bytes.Buffer, transferHistoryFlushBufferSize)
	db.transferIpsChannel = make(chan *bytes.Buffer, transferIpsFlushBufferSize)
	db.snatchChannel = make(chan *bytes.Buffer, snatchFlushBufferSize)
	db.pointsChannel = make(chan *cdb.LedgerEntry, pointsFlushBufferSize)

	go db.flushTorrents()
	go db.flushUsers()
	go db.flushTransferHistory()
	go db.flushTransferIps()
	go db.flushSnatches()
	go db.flushPoints()

	go func() {
		util.ContextTick(db.ctx, time.Duration(purgeInactiveInterval)*time.Second, func() {
			db.PurgeInactivePeers(time.Now().Unix())
		})
	}()
}

func (db *Database) closeFlushChannels() {
	close(db.torrentChannel)
	close(db.userChannel)
	close(db.transferHistoryChannel)
	close(db.transferIpsChannel)
	close(db.snatchChannel)
	close(db.pointsChannel)
}

func (db *Database) flushTorrents() {
	var (
		query bytes.Buffer
		count int
	)

	db.waitGroup.Add(1)
	defer db.waitGroup.Done()

	for {
		length := max(1, len(db.torrentChannel))
		query.Reset()

		query.WriteString("INSERT INTO torrents (ID, Snatched, Seeders, Leechers, last_action) VALUES\n")

		for count = 0; count < length; count++ {
			b := <-db.torrentChannel
			if b == nil {
				break
			}

			query.Write(b.Bytes())
			db.bufferPool.Give(b)

			if count != length-1 {
				query.WriteRune(',')
			}
		}

		if count > 0 {
			startTime := time.Now()

			query.WriteString("\nON DUPLICATE KEY UPDATE Snatched = Snatched + VALUE(Snatched), " +
				"Seeders = VALUE(Seeders), Leechers = VALUE(Leechers), last_action = " +
				"IF(last_action < VALUE(last_action), VALUE(last_action), last_action)")

			db.exec(&query)

			collector.UpdateChannelFlushTime("torrents", time.Since(startTime))
			collector.UpdateChannelFlushLen("torrents", count)

			if length < (torrentFlushBufferSize >> 1) {
				time.Sleep(time.Duration(flushSleepInterval) * time.Second)
			}
		} else if db.terminate.Load() {
			break
		} else {
			time.Sleep(time.Duration(flushSleepInterval) * time.Second)
		}
	}
}

func (db *Database) flushUsers() {
	var (
		query bytes.Buffer
		count int
	)

	db.waitGroup.Add(1)
	defer db.waitGroup.Done()

	for {
		length := max(1, len(db.userChannel))
		query.Reset()

		query.WriteString("INSERT INTO users_main (ID, Uploaded, Downloaded, rawdl, rawup) VALUES\n")

		for count = 0; count < length; count++ {
			b := <-db.userChannel
			if b == nil {
				break
			}

			query.Write(b.Bytes())
			db.bufferPool.Give(b)

			if count != length-1 {
				query.WriteRune(',')
			}
		}

		if count > 0 {
			startTime := time.Now()

			query.WriteString("\nON DUPLICATE KEY UPDATE Uploaded = Uploaded + VALUE(Uploaded), " +
				"Downloaded = Downloaded + VALUE(Downloaded), rawdl = rawdl + VALUE(rawdl), " +
				"rawup = rawup + VALUE(rawup)")

			db.exec(&query)

			collector.UpdateChannelFlushTime("users", time.Since(startTime))
			collector.UpdateChannelFlushLen("users", count)

			if length < (userFlushBufferSize >> 1) {
				time.Sleep(time.Duration(flushSleepInterval) * time.Second)
			}
		} else if db.terminate.Load() {
			break
		} else {
			time.Sleep(time.Duration(flushSleepInterval) * time.Second)
		}
	}
}

func (db *Database) flushTransferHistory() {
	var (
		query bytes.Buffer
		count int
	)

	db.waitGroup.Add(1)
	defer db.waitGroup.Done()

main:
	for {
		db.transferHistoryLock.Lock()

		length := max(1, len(db.transferHistoryChannel))
		query.Reset()

		query.WriteString("INSERT INTO transfer_history (uid, fid, uploaded, downloaded, " +
			"seeding, starttime, last_announce, activetime, seedtime, active, snatched, remaining) VALUES\n")

		for count = 0; count < length; count++ {
			b := <-db.transferHistoryChannel
			if b == nil {
				db.transferHistoryLock.Unlock()
				break main
			}

			query.Write(b.Bytes())
			db.bufferPool.Give(b)

			if count != length-1 {
				query.WriteRune(',')
			}
		}

		if count > 0 {
			startTime := time.Now()

			query.WriteString("\nON DUPLICATE KEY UPDATE uploaded = uploaded + VALUE(uploaded), " +
				"downloaded = downloaded + VALUE(downloaded), remaining = VALUE(remaining), " +
				"seeding = VALUE(seeding), activetime = activetime + VALUE(activetime), " +
				"seedtime = seedtime + VALUE(seedtime), last_announce = VALUE(last_announce), " +
				"active = VALUE(active), snatched = snatched + VALUE(snatched)")

			db.exec(&query)
			db.transferHistoryLock.Unlock()

			collector.UpdateChannelFlushTime("transfer_history", time.Since(startTime))
			collector.UpdateChannelFlushLen("transfer_history", count)

			if length < (transferHistoryFlushBufferSize >> 1) {
				time.Sleep(time.Duration(flushSleepInterval) * time.Second)
			}
		} else if db.terminate.Load() {
			db.transferHistoryLock.Unlock()
			break
		} else {
			db.transferHistoryLock.Unlock()
			time.Sleep(time.Duration(flushSleepInterval) * time.Second)
		}
	}
}

func (db *Database) flushTransferIps() {
	var (
		query bytes.Buffer
		count int
	)

	db.waitGroup.Add(1)
	defer db.waitGroup.Done()

	for {
		length := max(1, len(db.transferIpsChannel))
		query.Reset()

		query.WriteString("INSERT INTO transfer_ips (uid, fid, client_id, ip, port, " +
			"uploaded, downloaded, starttime, last_announce) VALUES\n")

		for count = 0; count < length; count++ {
			b := <-db.transferIpsChannel
			if b == nil {
				break
			}

			query.Write(b.Bytes())
			db.bufferPool.Give(b)

			if count != length-1 {
				query.WriteRune(',')
			}
		}

		if count > 0 {
			startTime := time.Now()

			query.WriteString("\nON DUPLICATE KEY UPDATE port = VALUE(port), " +
				"uploaded = uploaded + VALUE(uploaded), downloaded = downloaded + VALUE(downloaded), " +
				"last_announce = VALUE(last_announce)")

			db.exec(&query)

			collector.UpdateChannelFlushTime("transfer_ips", time.Since(startTime))
			collector.UpdateChannelFlushLen("transfer_ips", count)

			if length < (transferIpsFlushBufferSize >> 1) {
				time.Sleep(time.Duration(flushSleepInterval) * time.Second)
			}
		} else if db.terminate.Load() {
			break
		} else {
			time.Sleep(time.Duration(flushSleepInterval) * time.Second)
		}
	}
}

func (db *Database) flushSnatches() {
	var (
		query bytes.Buffer
		count int
	)

	db.waitGroup.Add(1)
	defer db.waitGroup.Done()

	for {
		length := max(1, len(db.snatchChannel))
		query.Reset()

		query.WriteString("INSERT INTO transfer_history (uid, fid, snatched_time) VALUES\n")

		for count = 0; count < length; count++ {
			b := <-db.snatchChannel
			if b == nil {
				break
			}

			query.Write(b.Bytes())
			db.bufferPool.Give(b)

			if count != length-1 {
				query.WriteRune(',')
			}
		}

		if count > 0 {
			startTime := time.Now()

			query.WriteString("\nON DUPLICATE KEY UPDATE snatched_time = VALUE(snatched_time)")

			db.exec(&query)

			collector.UpdateChannelFlushTime("snatches", time.Since(startTime))
			collector.UpdateChannelFlushLen("snatches", count)

			if length < (snatchFlushBufferSize >> 1) {
				time.Sleep(time.Duration(flushSleepInterval) * time.Second)
			}
		} else if db.terminate.Load() {
			break
		} else {
			time.Sleep(time.Duration(flushSleepInterval) * time.Second)
		}
	}
}

/*
 * Ledger entries cannot be batched the way the other channels are. Every
 * entry records the balance after itself, so each one has to be posted in
 * its own transaction with the balance row locked. See ledger.go.
 */
func (db *Database) flushPoints() {
	db.waitGroup.Add(1)
	defer db.waitGroup.Done()

	for entry := range db.pointsChannel {
		if entry == nil {
			continue
		}

		startTime := time.Now()

		if err := db.PostLedgerEntry(entry); err != nil {
			slog.Error("failed to post ledger entry",
				"uid", entry.UserID, "fid", entry.TorrentID, "reason", entry.Reason,
				"attempt", entry.Attempts, "err", err)

			if !db.requeuePoints(entry) {
				slog.Error("dropping ledger entry after repeated failures",
					"uid", entry.UserID, "fid", entry.TorrentID, "delta", entry.Delta)
			}

			time.Sleep(time.Duration(flushSleepInterval) * time.Second)

			continue
		}

		collector.UpdateChannelFlushTime("points", time.Since(startTime))
		collector.UpdateChannelFlushLen("points", 1)
	}
}

// PurgeInactivePeers removes peers that have not announced within the
// inactivity window, both from memory and from transfer_history. The
// current time is a parameter so the cutoff can be controlled in tests.
func (db *Database) PurgeInactivePeers(now int64) {
	oldestActive := now - int64(peerInactivityTime)

	var (
		countPurged int
		start       = time.Now()
	)

	dbTorrents := *db.Torrents.Load()

	for _, torrent := range dbTorrents {
		func() {
			if !torrent.PeerTryLock(db.ctx) {
				return
			}
			defer torrent.PeerUnlock()

			for key, peer := range torrent.Leechers {
				if peer.LastAnnounce < oldestActive {
					delete(torrent.Leechers, key)
					countPurged++
				}
			}

			for key, peer := range torrent.Seeders {
				if peer.LastAnnounce < oldestActive {
					delete(torrent.Seeders, key)
					countPurged++
				}
			}

			torrent.SeedersLength.Store(uint32(len(torrent.Seeders)))
			torrent.LeechersLength.Store(uint32(len(torrent.Leechers)))
		}()
	}

	if countPurged > 0 {
		// Nothing is charged for the time that elapsed since the peer's
		// last announce, so expiry posts no ledger entry.
		db.execute(db.cleanStalePeersStmt, oldestActive)
	}

	elapsed := time.Since(start)

	collector.UpdatePurgeInactivePeersTime(elapsed)
	slog.Info("purged inactive peers", "count", countPurged, "elapsed", elapsed)
}
