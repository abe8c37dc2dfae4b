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
	"log/slog"
	"math"
	"time"

	"hotaru/collector"
	"hotaru/config"
	cdb "hotaru/database/types"
	"hotaru/util"
)

var (
	reloadInterval int

	// rebindVariants controls what happens to an issued variant hash when
	// its owner's passkey is later rotated. When false, a rotation
	// invalidates every variant issued under the old passkey and the row
	// is skipped until the site re-issues it. When true, variants follow
	// the user across rotations.
	rebindVariants bool
)

func init() {
	intervals := config.Section("intervals")
	reloadInterval, _ = intervals.GetInt("database_reload", 45)

	credentials := config.Section("credentials")
	rebindVariants, _ = credentials.GetBool("rebind_on_rotation", false)
}

/*
 * Reloading is performed synchronously in a single thread to prevent data races
 * and to reduce contention on the database.
 */
func (db *Database) startReloading() {
	go func() {
		util.ContextTick(db.ctx, time.Duration(reloadInterval)*time.Second, func() {
			db.waitGroup.Add(1)
			defer db.waitGroup.Done()

			startTime := time.Now()

			db.loadUsers()
			db.loadTorrents()
			db.loadVariants()
			db.loadConfig()
			db.loadClients()

			collector.UpdateReloadTime(time.Since(startTime))
		})
	}()
}

func (db *Database) loadUsers() {
	dbUsers := *db.Users.Load()

	newUsers := make(map[string]*cdb.User, len(dbUsers))
	newUsersID := make(map[uint32]*cdb.User, len(dbUsers))

	rows := db.query(db.loadUsersStmt)
	if rows == nil {
		slog.Error("failed to load users")
		return
	}

	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			id                           uint32
			torrentPass                  string
			downMultiplier, upMultiplier float64
			disableDownload, trackerHide bool
		)

		if err := rows.Scan(&id, &torrentPass, &downMultiplier, &upMultiplier,
			&disableDownload, &trackerHide); err != nil {
			slog.Error("error scanning user row", "err", err)
			collector.IncrementSQLErrorCount()

			continue
		}

		if oldUser, exists := dbUsers[torrentPass]; exists && oldUser.ID.Load() == id {
			// Existing user, keep the pointer so in-flight announces stay coherent
			oldUser.DownMultiplier.Store(math.Float64bits(downMultiplier))
			oldUser.UpMultiplier.Store(math.Float64bits(upMultiplier))
			oldUser.DisableDownload.Store(disableDownload)
			oldUser.TrackerHide.Store(trackerHide)

			newUsers[torrentPass] = oldUser
			newUsersID[id] = oldUser
		} else {
			newUser := &cdb.User{}
			newUser.ID.Store(id)
			newUser.DownMultiplier.Store(math.Float64bits(downMultiplier))
			newUser.UpMultiplier.Store(math.Float64bits(upMultiplier))
			newUser.DisableDownload.Store(disableDownload)
			newUser.TrackerHide.Store(trackerHide)

			newUsers[torrentPass] = newUser
			newUsersID[id] = newUser
		}
	}

	db.Users.Store(&newUsers)
	db.UsersID.Store(&newUsersID)

	collector.UpdateUsers(len(newUsers))

	slog.Info("user load complete", "rows", len(newUsers))
}

func (db *Database) loadTorrents() {
	dbTorrents := *db.Torrents.Load()

	newTorrents := make(map[cdb.TorrentHash]*cdb.Torrent, len(dbTorrents))
	newTorrentsID := make(map[uint32]*cdb.Torrent, len(dbTorrents))

	rows := db.query(db.loadTorrentsStmt)
	if rows == nil {
		slog.Error("failed to load torrents")
		return
	}

	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			id                           uint32
			infoHash                     cdb.TorrentHash
			size                         uint64
			downMultiplier, upMultiplier float64
			snatched                     uint32
			status                       uint32
		)

		if err := rows.Scan(&id, &infoHash, &size, &downMultiplier, &upMultiplier,
			&snatched, &status); err != nil {
			slog.Error("error scanning torrent row", "err", err)
			collector.IncrementSQLErrorCount()

			continue
		}

		if oldTorrent, exists := dbTorrents[infoHash]; exists && oldTorrent.ID.Load() == id {
			// Existing torrent, keep the swarm maps intact
			oldTorrent.Size.Store(size)
			oldTorrent.DownMultiplier.Store(math.Float64bits(downMultiplier))
			oldTorrent.UpMultiplier.Store(math.Float64bits(upMultiplier))
			oldTorrent.Snatched.Store(snatched)
			oldTorrent.Status.Store(status)

			newTorrents[infoHash] = oldTorrent
			newTorrentsID[id] = oldTorrent
		} else {
			newTorrent := cdb.NewTorrent()
			newTorrent.ID.Store(id)
			newTorrent.Size.Store(size)
			newTorrent.DownMultiplier.Store(math.Float64bits(downMultiplier))
			newTorrent.UpMultiplier.Store(math.Float64bits(upMultiplier))
			newTorrent.Snatched.Store(snatched)
			newTorrent.Status.Store(status)

			newTorrents[infoHash] = newTorrent
			newTorrentsID[id] = newTorrent
		}
	}

	db.Torrents.Store(&newTorrents)
	db.TorrentsID.Store(&newTorrentsID)

	collector.UpdateTorrents(len(newTorrents))

	slog.Info("torrent load complete", "rows", len(newTorrents))
}

func (db *Database) loadVariants() {
	var skipped int

	newVariants := make(map[cdb.TorrentHash]*cdb.Variant)

	rows := db.query(db.loadVariantsStmt)
	if rows == nil {
		slog.Error("failed to load torrent variants")
		return
	}

	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			hash          cdb.TorrentHash
			torrentID     uint32
			userID        uint32
			issuedPass    string
			currentPass   string
			canonicalHash cdb.TorrentHash
		)

		if err := rows.Scan(&hash, &torrentID, &userID, &issuedPass, &currentPass,
			&canonicalHash); err != nil {
			slog.Error("error scanning variant row", "err", err)
			collector.IncrementSQLErrorCount()

			continue
		}

		// A rotated passkey invalidates every variant issued under it
		if !rebindVariants && issuedPass != currentPass {
			skipped++
			continue
		}

		newVariants[hash] = &cdb.Variant{
			Canonical: canonicalHash,
			TorrentID: torrentID,
			UserID:    userID,
		}
	}

	db.Variants.Store(&newVariants)

	collector.UpdateVariants(len(newVariants))

	slog.Info("variant load complete", "rows", len(newVariants), "skipped", skipped)
}

func (db *Database) loadConfig() {
	rows := db.query(db.loadFreeleechStmt)
	if rows == nil {
		slog.Error("failed to load config")
		return
	}

	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var globalFreelech bool

		if err := rows.Scan(&globalFreelech); err != nil {
			slog.Error("error scanning config row", "err", err)
			collector.IncrementSQLErrorCount()

			continue
		}

		GlobalFreeleech.Store(globalFreelech)
	}
}

func (db *Database) loadClients() {
	newClients := make(map[uint16]string)

	rows := db.query(db.loadClientsStmt)
	if rows == nil {
		slog.Error("failed to load clients")
		return
	}

	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var (
			id     uint16
			peerID string
		)

		if err := rows.Scan(&id, &peerID); err != nil {
			slog.Error("error scanning client row", "err", err)
			collector.IncrementSQLErrorCount()

			continue
		}

		newClients[id] = peerID
	}

	db.Clients.Store(&newClients)

	collector.UpdateClients(len(newClients))

	slog.Info("client load complete", "rows", len(newClients))
}
