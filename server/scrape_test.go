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
	"strings"
	"testing"

	cdb "hotaru/database/types"
)

func TestScrapeAllSortsHashes(t *testing.T) {
	oldEnabled := globalScrapeEnabled

	defer func() {
		globalScrapeEnabled = oldEnabled
	}()

	globalScrapeEnabled = true

	torrents := make(map[cdb.TorrentHash]*cdb.Torrent)

	for _, r := range []byte{'c', 'a', 'b'} {
		torrent := cdb.NewTorrent()
		torrents[cdb.TorrentHashFromBytes(bytes.Repeat([]byte{r}, 20))] = torrent
	}

	pruned := cdb.NewTorrent()
	pruned.Status.Store(cdb.TorrentStatusPruned)
	torrents[cdb.TorrentHashFromBytes(bytes.Repeat([]byte{'d'}, 20))] = pruned

	handler := &httpHandler{}

	var buf bytes.Buffer

	handler.scrapeAll(context.Background(), torrents, &buf)

	body := buf.String()

	// Dictionary keys come out in byte order regardless of map iteration
	posA := strings.Index(body, strings.Repeat("a", 20))
	posB := strings.Index(body, strings.Repeat("b", 20))
	posC := strings.Index(body, strings.Repeat("c", 20))

	if posA < 0 || posB < 0 || posC < 0 {
		t.Fatalf("Active torrent missing from global scrape: %s", body)
	}

	if posA > posB || posB > posC {
		t.Fatalf("Hashes are not sorted: a=%d b=%d c=%d", posA, posB, posC)
	}

	if strings.Contains(body, strings.Repeat("d", 20)) {
		t.Fatal("Pruned torrent leaked into global scrape!")
	}
}

func TestScrapeAllDisabled(t *testing.T) {
	oldEnabled := globalScrapeEnabled

	defer func() {
		globalScrapeEnabled = oldEnabled
	}()

	globalScrapeEnabled = false

	handler := &httpHandler{}

	var buf bytes.Buffer

	handler.scrapeAll(context.Background(), nil, &buf)

	if !strings.Contains(buf.String(), "Global scrape is not allowed") {
		t.Fatalf("Expected a refusal, got %s", buf.String())
	}
}
