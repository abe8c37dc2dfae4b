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
	"fmt"
	"log/slog"
	"os"
	"time"

	"hotaru/collector"
	"hotaru/config"
	cdb "hotaru/database/types"
	"hotaru/util"
)

var serializeInterval int

func init() {
	intervals := config.Section("intervals")
	serializeInterval, _ = intervals.GetInt("database_serialize", 68)
}

func (db *Database) startSerializing() {
	go func() {
		util.ContextTick(db.ctx, time.Duration(serializeInterval)*time.Second, func() {
			db.serialize()
		})
	}()
}

/*
 * Serializes the in-memory peer state to disk so swarms survive a restart.
 * Written to a temporary file first and renamed into place, so a crash
 * mid-write never leaves a truncated cache behind.
 */
func (db *Database) serialize() {
	torrentFile := fmt.Sprintf("%s.bin", cdb.TorrentCacheFile)
	userFile := fmt.Sprintf("%s.bin", cdb.UserCacheFile)

	startTime := time.Now()

	func() {
		torrentTmpFile, err := os.OpenFile(torrentFile+".tmp", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			slog.Error("couldn't open file for writing", "file", torrentFile, "err", err)
			return
		}

		defer func() {
			_ = torrentTmpFile.Close()
		}()

		if err = cdb.WriteTorrents(torrentTmpFile, *db.Torrents.Load()); err != nil {
			slog.Error("failed to encode torrent cache", "err", err)
			return
		}

		if err = os.Rename(torrentFile+".tmp", torrentFile); err != nil {
			slog.Error("couldn't write new torrent cache", "err", err)
			return
		}
	}()

	func() {
		userTmpFile, err := os.OpenFile(userFile+".tmp", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
		if err != nil {
			slog.Error("couldn't open file for writing", "file", userFile, "err", err)
			return
		}

		defer func() {
			_ = userTmpFile.Close()
		}()

		if err = cdb.WriteUsers(userTmpFile, *db.Users.Load()); err != nil {
			slog.Error("failed to encode user cache", "err", err)
			return
		}

		if err = os.Rename(userFile+".tmp", userFile); err != nil {
			slog.Error("couldn't write new user cache", "err", err)
			return
		}
	}()

	elapsed := time.Since(startTime)

	collector.UpdateSerializationTime(elapsed)
	slog.Info("serialization complete", "elapsed", elapsed)
}

func (db *Database) deserialize() {
	torrentFile := fmt.Sprintf("%s.bin", cdb.TorrentCacheFile)
	userFile := fmt.Sprintf("%s.bin", cdb.UserCacheFile)

	startTime := time.Now()

	func() {
		fi, err := os.OpenFile(torrentFile, os.O_RDONLY, 0)
		if err != nil {
			slog.Warn("torrent cache missing, skipping", "err", err)
			return
		}

		defer func() {
			_ = fi.Close()
		}()

		torrents := make(map[cdb.TorrentHash]*cdb.Torrent)

		if err = cdb.LoadTorrents(fi, torrents); err != nil {
			slog.Error("failed to deserialize torrent cache", "err", err)
			return
		}

		torrentsID := make(map[uint32]*cdb.Torrent, len(torrents))

		var peers int

		for _, t := range torrents {
			torrentsID[t.ID.Load()] = t
			peers += len(t.Seeders) + len(t.Leechers)
		}

		db.Torrents.Store(&torrents)
		db.TorrentsID.Store(&torrentsID)

		slog.Info("loaded torrent cache", "torrents", len(torrents), "peers", peers)
	}()

	func() {
		fi, err := os.OpenFile(userFile, os.O_RDONLY, 0)
		if err != nil {
			slog.Warn("user cache missing, skipping", "err", err)
			return
		}

		defer func() {
			_ = fi.Close()
		}()

		users := make(map[string]*cdb.User)

		if err = cdb.LoadUsers(fi, users); err != nil {
			slog.Error("failed to deserialize user cache", "err", err)
			return
		}

		usersID := make(map[uint32]*cdb.User, len(users))

		for _, u := range users {
			usersID[u.ID.Load()] = u
		}

		db.Users.Store(&users)
		db.UsersID.Store(&usersID)

		slog.Info("loaded user cache", "users", len(users))
	}()

	slog.Info("deserialization complete", "elapsed", time.Since(startTime))
}
