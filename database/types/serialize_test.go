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

package types

import (
	"bufio"
	"bytes"
	"math"
	"net"
	"reflect"
	"testing"
	"time"
)

func makeTestPeer(userID uint32) *Peer {
	return &Peer{
		ID:           PeerIDFromRawString("peer_is_twenty_chars"),
		Addr:         NewPeerAddressFromIPPort(net.IP{10, 0, 0, 1}, 6881),
		Uploaded:     1024,
		Downloaded:   2048,
		Left:         4096,
		StartTime:    time.Now().Unix() - 300,
		LastAnnounce: time.Now().Unix(),
		TorrentID:    10,
		UserID:       userID,
		ClientID:     4,
		Seeding:      true,
	}
}

func TestPeerRoundtrip(t *testing.T) {
	peer := makeTestPeer(12)

	buf := peer.Append(nil)

	loaded := &Peer{}
	if err := loaded.Load(bufio.NewReader(bytes.NewReader(buf))); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(peer, loaded) {
		t.Fatalf("Peer did not survive the roundtrip:\nExpected: %+v\nGot: %+v", peer, loaded)
	}
}

func TestTorrentRoundtrip(t *testing.T) {
	torrent := NewTorrent()
	torrent.ID.Store(10)
	torrent.Size.Store(1 << 30)
	torrent.Status.Store(TorrentStatusPruned)
	torrent.Snatched.Store(55)
	torrent.LastAction.Store(time.Now().Unix())
	torrent.UpMultiplier.Store(math.Float64bits(2))
	torrent.DownMultiplier.Store(math.Float64bits(0.5))

	seeder := makeTestPeer(12)
	leecher := makeTestPeer(13)
	leecher.Seeding = false

	torrent.Seeders[NewPeerKey(12, seeder.ID)] = seeder
	torrent.Leechers[NewPeerKey(13, leecher.ID)] = leecher
	torrent.SeedersLength.Store(1)
	torrent.LeechersLength.Store(1)

	buf := torrent.Append(nil)

	loaded := NewTorrent()
	if err := loaded.Load(bufio.NewReader(bytes.NewReader(buf))); err != nil {
		t.Fatal(err)
	}

	if loaded.ID.Load() != torrent.ID.Load() ||
		loaded.Size.Load() != torrent.Size.Load() ||
		loaded.Status.Load() != torrent.Status.Load() ||
		loaded.Snatched.Load() != torrent.Snatched.Load() ||
		loaded.LastAction.Load() != torrent.LastAction.Load() ||
		loaded.UpMultiplier.Load() != torrent.UpMultiplier.Load() ||
		loaded.DownMultiplier.Load() != torrent.DownMultiplier.Load() {
		t.Fatalf("Torrent fields did not survive the roundtrip: %+v", loaded)
	}

	if !reflect.DeepEqual(torrent.Seeders, loaded.Seeders) {
		t.Fatal("Seeders did not survive the roundtrip!")
	}

	if !reflect.DeepEqual(torrent.Leechers, loaded.Leechers) {
		t.Fatal("Leechers did not survive the roundtrip!")
	}

	if loaded.SeedersLength.Load() != 1 || loaded.LeechersLength.Load() != 1 {
		t.Fatal("Swarm gauges did not survive the roundtrip!")
	}
}

func TestUserRoundtrip(t *testing.T) {
	user := &User{}
	user.ID.Store(12)
	user.UpMultiplier.Store(math.Float64bits(1.5))
	user.DownMultiplier.Store(math.Float64bits(0))
	user.DisableDownload.Store(true)
	user.TrackerHide.Store(false)

	buf := user.Append(nil)

	loaded := &User{}
	if err := loaded.Load(bufio.NewReader(bytes.NewReader(buf))); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(user, loaded) {
		t.Fatalf("User did not survive the roundtrip:\nExpected: %+v\nGot: %+v", user, loaded)
	}
}

func TestWriteLoadTorrents(t *testing.T) {
	torrents := make(map[TorrentHash]*Torrent)

	for i := byte(0); i < 3; i++ {
		hash := TorrentHash{}
		for j := range hash {
			hash[j] = i + 'a'
		}

		torrent := NewTorrent()
		torrent.ID.Store(uint32(i) + 1)
		torrents[hash] = torrent
	}

	var buf bytes.Buffer

	if err := WriteTorrents(&buf, torrents); err != nil {
		t.Fatal(err)
	}

	loaded := make(map[TorrentHash]*Torrent)
	if err := LoadTorrents(&buf, loaded); err != nil {
		t.Fatal(err)
	}

	if len(loaded) != len(torrents) {
		t.Fatalf("Expected %d torrents, got %d", len(torrents), len(loaded))
	}

	for hash, torrent := range torrents {
		other := loaded[hash]
		if other == nil || other.ID.Load() != torrent.ID.Load() {
			t.Fatalf("Torrent %x did not survive the roundtrip", hash)
		}
	}
}

func TestLoadTorrentsRejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer

	if err := WriteSerializeHeader(&buf, 0, TorrentCacheVersion+1); err != nil {
		t.Fatal(err)
	}

	if err := LoadTorrents(&buf, make(map[TorrentHash]*Torrent)); err == nil {
		t.Fatal("Expected unsupported version error!")
	}
}

func TestWriteLoadUsers(t *testing.T) {
	users := make(map[string]*User)

	for i := uint32(1); i <= 3; i++ {
		user := &User{}
		user.ID.Store(i)
		users[string(rune('a'+i))+"SeCGKhdy5xa9MDeyqYarpBBLGmUHHbk"] = user
	}

	var buf bytes.Buffer

	if err := WriteUsers(&buf, users); err != nil {
		t.Fatal(err)
	}

	loaded := make(map[string]*User)
	if err := LoadUsers(&buf, loaded); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(users, loaded) {
		t.Fatal("Users did not survive the roundtrip!")
	}
}
