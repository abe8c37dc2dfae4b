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
	"fmt"
	"testing"

	cdb "hotaru/database/types"
)

func TestClampDelta(t *testing.T) {
	if got := clampDelta(100, 250); got != 150 {
		t.Fatalf("Expected delta of 150, got %d", got)
	}

	// Client restarted and reported counters below what we remember
	if got := clampDelta(100, 50); got != 0 {
		t.Fatalf("Expected restart to clamp to 0, got %d", got)
	}

	if got := clampDelta(100, 100); got != 0 {
		t.Fatalf("Expected no progress to clamp to 0, got %d", got)
	}
}

func TestSeedTimeDelta(t *testing.T) {
	if got := seedTimeDelta(true, true, 600); got != 600 {
		t.Fatalf("Expected 600 seconds for a continuous seeder, got %d", got)
	}

	// Seeder came back as a leecher, the gap cannot be credited
	if got := seedTimeDelta(true, false, 600); got != 0 {
		t.Fatalf("Expected 0 for a seeder turned leecher, got %d", got)
	}

	// Leecher finished somewhere in the gap, credit starts next announce
	if got := seedTimeDelta(false, true, 600); got != 0 {
		t.Fatalf("Expected 0 for a leecher turned seeder, got %d", got)
	}

	if got := seedTimeDelta(false, false, 600); got != 0 {
		t.Fatalf("Expected 0 for a leecher, got %d", got)
	}
}

func TestClampWindow(t *testing.T) {
	if got := clampWindow(500, 3900); got != 500 {
		t.Fatalf("Expected 500, got %d", got)
	}

	if got := clampWindow(10000, 3900); got != 3900 {
		t.Fatalf("Expected cap at 3900, got %d", got)
	}

	if got := clampWindow(-5, 3900); got != 0 {
		t.Fatalf("Expected negative delta to clamp to 0, got %d", got)
	}
}

func makePeer(userID uint32, n int, seeding bool) (cdb.PeerKey, *cdb.Peer) {
	id := cdb.PeerIDFromRawString(fmt.Sprintf("peer%04d------------", n))

	return cdb.NewPeerKey(userID, id), &cdb.Peer{
		ID:      id,
		UserID:  userID,
		Seeding: seeding,
	}
}

func TestSelectAnnouncePeersForLeecher(t *testing.T) {
	torrent := cdb.NewTorrent()

	for i := 0; i < 5; i++ {
		k, p := makePeer(uint32(i+1), i, true)
		torrent.Seeders[k] = p
	}

	for i := 5; i < 8; i++ {
		k, p := makePeer(uint32(i+1), i, false)
		torrent.Leechers[k] = p
	}

	selfKey, selfPeer := makePeer(100, 99, false)
	torrent.Leechers[selfKey] = selfPeer

	peers := selectAnnouncePeers(torrent, selfKey, false, 50)
	if len(peers) != 8 {
		t.Fatalf("Expected 8 peers, got %d", len(peers))
	}

	for _, peer := range peers {
		if peer.UserID == 100 {
			t.Fatal("Leecher was handed its own session!")
		}
	}
}

func TestSelectAnnouncePeersForSeeder(t *testing.T) {
	torrent := cdb.NewTorrent()

	for i := 0; i < 4; i++ {
		k, p := makePeer(uint32(i+1), i, true)
		torrent.Seeders[k] = p
	}

	for i := 4; i < 6; i++ {
		k, p := makePeer(uint32(i+1), i, false)
		torrent.Leechers[k] = p
	}

	selfKey, selfPeer := makePeer(1, 0, true)
	torrent.Seeders[selfKey] = selfPeer

	peers := selectAnnouncePeers(torrent, selfKey, true, 50)
	if len(peers) != 2 {
		t.Fatalf("Seeder should only receive the 2 leechers, got %d peers", len(peers))
	}

	for _, peer := range peers {
		if peer.Seeding {
			t.Fatal("Seeder was handed another seeder!")
		}
	}
}

func TestSelectAnnouncePeersUniqueSeederPerUser(t *testing.T) {
	torrent := cdb.NewTorrent()

	// One user seeding from three boxes
	for i := 0; i < 3; i++ {
		k, p := makePeer(7, i, true)
		torrent.Seeders[k] = p
	}

	selfKey, selfPeer := makePeer(1, 50, false)
	torrent.Leechers[selfKey] = selfPeer

	peers := selectAnnouncePeers(torrent, selfKey, false, 50)
	if len(peers) != 1 {
		t.Fatalf("Expected a single session for the multi-seeding user, got %d", len(peers))
	}
}

func TestSelectAnnouncePeersNumWant(t *testing.T) {
	torrent := cdb.NewTorrent()

	for i := 0; i < 30; i++ {
		k, p := makePeer(uint32(i+1), i, true)
		torrent.Seeders[k] = p
	}

	selfKey, _ := makePeer(100, 99, false)

	peers := selectAnnouncePeers(torrent, selfKey, false, 10)
	if len(peers) != 10 {
		t.Fatalf("Expected numwant to cap at 10, got %d", len(peers))
	}

	if peers = selectAnnouncePeers(torrent, selfKey, false, 0); peers != nil {
		t.Fatalf("Expected no peers for numwant 0, got %d", len(peers))
	}
}
