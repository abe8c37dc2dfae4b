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
	"math"
	"net"
	"os"
	"reflect"
	"testing"
	"time"

	cdb "hotaru/database/types"
)

func TestSerializer(t *testing.T) {
	tempPath, err := os.MkdirTemp(os.TempDir(), "hotaru_serializer")
	if err != nil {
		t.Fatal(err)
	}

	oldWd, _ := os.Getwd()
	if err = os.Chdir(tempPath); err != nil {
		t.Fatal(err)
	}

	defer func() {
		_ = os.Chdir(oldWd)
	}()

	now := time.Now().Unix()

	testPeer := &cdb.Peer{
		ID:           cdb.PeerIDFromRawString("peer_is_twenty_chars"),
		Addr:         cdb.NewPeerAddressFromIPPort(net.IP{127, 0, 0, 1}, 63448),
		Uploaded:     100,
		Downloaded:   1000,
		Left:         0,
		StartTime:    now,
		LastAnnounce: now,
		TorrentID:    10,
		UserID:       12,
		ClientID:     4,
		Seeding:      true,
	}

	testTorrent := cdb.NewTorrent()
	testTorrent.ID.Store(10)
	testTorrent.Size.Store(1 << 30)
	testTorrent.Status.Store(cdb.TorrentStatusActive)
	testTorrent.Snatched.Store(100)
	testTorrent.LastAction.Store(now)
	testTorrent.SeedersLength.Store(1)
	testTorrent.Seeders[cdb.NewPeerKey(12, testPeer.ID)] = testPeer

	testUser := &cdb.User{}
	testUser.ID.Store(12)
	testUser.UpMultiplier.Store(math.Float64bits(1))
	testUser.DownMultiplier.Store(math.Float64bits(1))

	testTorrentHash := cdb.TorrentHashFromBytes([]byte{
		114, 239, 32, 237, 220, 181, 67, 143, 115, 182,
		216, 141, 120, 196, 223, 193, 102, 123, 137, 56,
	})

	testTorrents := map[cdb.TorrentHash]*cdb.Torrent{testTorrentHash: testTorrent}
	testUsers := map[string]*cdb.User{"mUztWMpBYNCqzmge6vGeEUGSrctJbgpQ": testUser}

	db.Torrents.Store(&testTorrents)
	db.Users.Store(&testUsers)

	db.serialize()

	// Wipe memory and load back from disk
	emptyTorrents := make(map[cdb.TorrentHash]*cdb.Torrent)
	emptyUsers := make(map[string]*cdb.User)
	db.Torrents.Store(&emptyTorrents)
	db.Users.Store(&emptyUsers)

	db.deserialize()

	loadedTorrents := *db.Torrents.Load()
	if len(loadedTorrents) != 1 {
		t.Fatalf("Expected 1 torrent after deserialization, got %d", len(loadedTorrents))
	}

	loaded := loadedTorrents[testTorrentHash]
	if loaded == nil {
		t.Fatal("Torrent hash key did not survive the roundtrip!")
	}

	if loaded.ID.Load() != 10 || loaded.Size.Load() != 1<<30 ||
		loaded.Snatched.Load() != 100 || loaded.LastAction.Load() != now {
		t.Fatalf("Torrent fields did not survive the roundtrip: %+v", loaded)
	}

	if math.Float64frombits(loaded.UpMultiplier.Load()) != 1 {
		t.Fatal("Torrent multiplier did not survive the roundtrip!")
	}

	if loaded.SeedersLength.Load() != 1 || len(loaded.Seeders) != 1 {
		t.Fatal("Swarm did not survive the roundtrip!")
	}

	loadedPeer := loaded.Seeders[cdb.NewPeerKey(12, testPeer.ID)]
	if !reflect.DeepEqual(testPeer, loadedPeer) {
		t.Fatalf("Peer did not survive the roundtrip:\nExpected: %+v\nGot: %+v", testPeer, loadedPeer)
	}

	if (*db.TorrentsID.Load())[10] != loaded {
		t.Fatal("Torrent index was not rebuilt on deserialization!")
	}

	loadedUsers := *db.Users.Load()
	if len(loadedUsers) != 1 {
		t.Fatalf("Expected 1 user after deserialization, got %d", len(loadedUsers))
	}

	loadedUser := loadedUsers["mUztWMpBYNCqzmge6vGeEUGSrctJbgpQ"]
	if !reflect.DeepEqual(testUser, loadedUser) {
		t.Fatalf("User did not survive the roundtrip:\nExpected: %+v\nGot: %+v", testUser, loadedUser)
	}

	if (*db.UsersID.Load())[12] != loadedUser {
		t.Fatal("User index was not rebuilt on deserialization!")
	}
}
