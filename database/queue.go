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
	"strconv"

	cdb "hotaru/database/types"
	"hotaru/util"
)

// Fallback address recorded in transfer_ips for users with TrackerHide set
const hiddenIPNumeric = 2130706433 // 127.0.0.1

func (db *Database) enqueue(channel chan *bytes.Buffer, b *bytes.Buffer) {
	// Never block an announce on a saturated flush channel
	select {
	case channel <- b:
	default:
		go func() {
			channel <- b
		}()
	}
}

func (db *Database) QueueTorrent(torrent *cdb.Torrent, deltaSnatch uint8) {
	tq := db.bufferPool.Take()

	tq.WriteString("('")
	tq.WriteString(strconv.FormatUint(uint64(torrent.ID.Load()), 10))
	tq.WriteString("','")
	tq.WriteString(strconv.FormatUint(uint64(deltaSnatch), 10))
	tq.WriteString("','")
	tq.WriteString(strconv.FormatUint(uint64(torrent.SeedersLength.Load()), 10))
	tq.WriteString("','")
	tq.WriteString(strconv.FormatUint(uint64(torrent.LeechersLength.Load()), 10))
	tq.WriteString("','")
	tq.WriteString(strconv.FormatInt(torrent.LastAction.Load(), 10))
	tq.WriteString("')")

	db.enqueue(db.torrentChannel, tq)
}

func (db *Database) QueueUser(user *cdb.User, rawDeltaUp, rawDeltaDown, deltaUp, deltaDown int64) {
	uq := db.bufferPool.Take()

	uq.WriteString("('")
	uq.WriteString(strconv.FormatUint(uint64(user.ID.Load()), 10))
	uq.WriteString("','")
	uq.WriteString(strconv.FormatInt(deltaUp, 10))
	uq.WriteString("','")
	uq.WriteString(strconv.FormatInt(deltaDown, 10))
	uq.WriteString("','")
	uq.WriteString(strconv.FormatInt(rawDeltaDown, 10))
	uq.WriteString("','")
	uq.WriteString(strconv.FormatInt(rawDeltaUp, 10))
	uq.WriteString("')")

	db.enqueue(db.userChannel, uq)
}

func (db *Database) QueueTransferHistory(peer *cdb.Peer, rawDeltaUp, rawDeltaDown, deltaTime,
	deltaSeedTime int64, deltaSnatch uint8, active bool) {
	thq := db.bufferPool.Take()

	thq.WriteString("('")
	thq.WriteString(strconv.FormatUint(uint64(peer.UserID), 10))
	thq.WriteString("','")
	thq.WriteString(strconv.FormatUint(uint64(peer.TorrentID), 10))
	thq.WriteString("','")
	thq.WriteString(strconv.FormatInt(rawDeltaUp, 10))
	thq.WriteString("','")
	thq.WriteString(strconv.FormatInt(rawDeltaDown, 10))
	thq.WriteString("','")
	thq.WriteString(util.Btoa(peer.Seeding))
	thq.WriteString("','")
	thq.WriteString(strconv.FormatInt(peer.StartTime, 10))
	thq.WriteString("','")
	thq.WriteString(strconv.FormatInt(peer.LastAnnounce, 10))
	thq.WriteString("','")
	thq.WriteString(strconv.FormatInt(deltaTime, 10))
	thq.WriteString("','")
	thq.WriteString(strconv.FormatInt(deltaSeedTime, 10))
	thq.WriteString("','")
	thq.WriteString(util.Btoa(active))
	thq.WriteString("','")
	thq.WriteString(strconv.FormatUint(uint64(deltaSnatch), 10))
	thq.WriteString("','")
	thq.WriteString(strconv.FormatUint(peer.Left, 10))
	thq.WriteString("')")

	db.enqueue(db.transferHistoryChannel, thq)
}

func (db *Database) QueueTransferIP(peer *cdb.Peer, user *cdb.User, rawDeltaUp, rawDeltaDown int64) {
	var (
		ipAddr = uint64(peer.Addr.IPNumeric())
		port   = uint64(peer.Addr.Port())
	)

	// Users hiding from the peer listing get the loopback address recorded
	if user.TrackerHide.Load() {
		ipAddr = hiddenIPNumeric
		port = 0
	}

	tiq := db.bufferPool.Take()

	tiq.WriteString("('")
	tiq.WriteString(strconv.FormatUint(uint64(peer.UserID), 10))
	tiq.WriteString("','")
	tiq.WriteString(strconv.FormatUint(uint64(peer.TorrentID), 10))
	tiq.WriteString("','")
	tiq.WriteString(strconv.FormatUint(uint64(peer.ClientID), 10))
	tiq.WriteString("','")
	tiq.WriteString(strconv.FormatUint(ipAddr, 10))
	tiq.WriteString("','")
	tiq.WriteString(strconv.FormatUint(port, 10))
	tiq.WriteString("','")
	tiq.WriteString(strconv.FormatInt(rawDeltaUp, 10))
	tiq.WriteString("','")
	tiq.WriteString(strconv.FormatInt(rawDeltaDown, 10))
	tiq.WriteString("','")
	tiq.WriteString(strconv.FormatInt(peer.StartTime, 10))
	tiq.WriteString("','")
	tiq.WriteString(strconv.FormatInt(peer.LastAnnounce, 10))
	tiq.WriteString("')")

	db.enqueue(db.transferIpsChannel, tiq)
}

func (db *Database) QueueSnatch(peer *cdb.Peer, now int64) {
	sq := db.bufferPool.Take()

	sq.WriteString("('")
	sq.WriteString(strconv.FormatUint(uint64(peer.UserID), 10))
	sq.WriteString("','")
	sq.WriteString(strconv.FormatUint(uint64(peer.TorrentID), 10))
	sq.WriteString("','")
	sq.WriteString(strconv.FormatInt(now, 10))
	sq.WriteString("')")

	db.enqueue(db.snatchChannel, sq)
}

// QueuePoints hands a ledger entry to the posting goroutine. Entries with a
// zero delta and no counters are dropped here so replayed announces do not
// produce empty ledger rows.
func (db *Database) QueuePoints(entry *cdb.LedgerEntry) {
	if entry.Delta.IsZero() && entry.UpDelta == 0 && entry.DownDelta == 0 && entry.SeedTimeDelta == 0 {
		return
	}

	select {
	case db.pointsChannel <- entry:
	default:
		go func() {
			db.pointsChannel <- entry
		}()
	}
}

// A ledger entry is posted at most this many times before it is dropped
const maxPointsAttempts = 3

// requeuePoints puts a failed entry back on the channel for another
// posting attempt. The announce that produced the entry was already
// acknowledged, so giving up means the user never gets that credit; the
// budget only exists to stop a poisoned entry from cycling forever.
func (db *Database) requeuePoints(entry *cdb.LedgerEntry) bool {
	if entry.Attempts+1 >= maxPointsAttempts || db.terminate.Load() {
		return false
	}

	entry.Attempts++
	db.QueuePoints(entry)

	return true
}
