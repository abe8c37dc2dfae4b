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

package record

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	tempPath, err := os.MkdirTemp(os.TempDir(), "hotaru_record")
	if err != nil {
		panic(err)
	}

	if err = os.Chdir(tempPath); err != nil {
		panic(err)
	}

	if err = Init(); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

func reset() {
	ringMutex.Lock()
	ring = make([]*Announce, 4)
	ringNext = 0
	ringFull = false
	ringMutex.Unlock()
}

func TestRecentNewestFirst(t *testing.T) {
	reset()

	for i := 1; i <= 3; i++ {
		Record(&Announce{Time: int64(i), UserID: uint32(i)})
	}

	got := Recent(0, 0, 0, "")
	if len(got) != 3 {
		t.Fatalf("Expected 3 announces, got %d", len(got))
	}

	if got[0].UserID != 3 || got[2].UserID != 1 {
		t.Fatalf("Announces are not newest first: %v, %v, %v", got[0], got[1], got[2])
	}
}

func TestRecentWrapsRing(t *testing.T) {
	reset()

	for i := 1; i <= 6; i++ {
		Record(&Announce{Time: int64(i), UserID: uint32(i)})
	}

	got := Recent(0, 0, 0, "")
	if len(got) != 4 {
		t.Fatalf("Expected ring size of 4, got %d", len(got))
	}

	if got[0].UserID != 6 || got[3].UserID != 3 {
		t.Fatalf("Oldest announces were not evicted: %v ... %v", got[0], got[3])
	}
}

func TestRecentFilters(t *testing.T) {
	reset()

	Record(&Announce{UserID: 1, TorrentID: 10})
	Record(&Announce{UserID: 2, TorrentID: 10})
	Record(&Announce{UserID: 1, TorrentID: 20})

	byUser := Recent(0, 1, 0, "")
	if len(byUser) != 2 {
		t.Fatalf("Expected 2 announces for user 1, got %d", len(byUser))
	}

	byTorrent := Recent(0, 0, 10, "")
	if len(byTorrent) != 2 {
		t.Fatalf("Expected 2 announces for torrent 10, got %d", len(byTorrent))
	}

	both := Recent(0, 1, 20, "")
	if len(both) != 1 {
		t.Fatalf("Expected 1 announce for user 1 on torrent 20, got %d", len(both))
	}
}

func TestRecentFiltersByEvent(t *testing.T) {
	reset()

	Record(&Announce{UserID: 1, Event: "started"})
	Record(&Announce{UserID: 2, Event: "completed"})
	Record(&Announce{UserID: 3, Event: ""})

	completed := Recent(0, 0, 0, "completed")
	if len(completed) != 1 || completed[0].UserID != 2 {
		t.Fatalf("Expected only the completed announce, got %v", completed)
	}
}

func TestRecentLimit(t *testing.T) {
	reset()

	for i := 1; i <= 4; i++ {
		Record(&Announce{UserID: uint32(i)})
	}

	got := Recent(2, 0, 0, "")
	if len(got) != 2 {
		t.Fatalf("Expected 2 announces, got %d", len(got))
	}

	if got[0].UserID != 4 {
		t.Fatalf("Expected newest announce first, got user %d", got[0].UserID)
	}
}
