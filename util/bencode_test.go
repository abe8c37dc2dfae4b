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

package util

import (
	"bytes"
	"net"
	"testing"
	"time"

	cdb "hotaru/database/types"

	"github.com/zeebo/bencode"
)

func TestBencodeFailure(t *testing.T) {
	var buf bytes.Buffer

	BencodeFailure(&buf, "error message", 5*time.Second)

	expected := "d14:failure reason13:error message8:intervali5ee"
	if buf.String() != expected {
		t.Fatalf("Expected %s, got %s", expected, buf.String())
	}
}

func TestBencodeAnnounce(t *testing.T) {
	var buf bytes.Buffer

	peer := &cdb.Peer{
		ID:   cdb.PeerIDFromRawString("peer_is_twenty_chars"),
		Addr: cdb.NewPeerAddressFromIPPort(net.IP{10, 11, 12, 13}, 6881),
	}

	BencodeAnnounceHeader(&buf, 1, 2, 3, 1800, 900)
	BencodeAnnouncePeersIP4(&buf, []*cdb.Peer{peer}, true, false)
	BencodeAnnounceFooter(&buf)

	var decoded map[string]interface{}
	if err := bencode.DecodeBytes(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Announce reply is not valid bencode: %v", err)
	}

	if decoded["complete"].(int64) != 1 || decoded["incomplete"].(int64) != 2 {
		t.Fatalf("Wrong swarm gauges in %v", decoded)
	}

	if decoded["interval"].(int64) != 1800 || decoded["min interval"].(int64) != 900 {
		t.Fatalf("Wrong intervals in %v", decoded)
	}

	peers := []byte(decoded["peers"].(string))
	if !bytes.Equal(peers, []byte{10, 11, 12, 13, 0x1a, 0xe1}) {
		t.Fatalf("Wrong compact peer blob: %v", peers)
	}
}

func TestBencodeAnnounceNonCompact(t *testing.T) {
	var buf bytes.Buffer

	peer := &cdb.Peer{
		ID:   cdb.PeerIDFromRawString("peer_is_twenty_chars"),
		Addr: cdb.NewPeerAddressFromIPPort(net.IP{192, 168, 1, 100}, 51413),
	}

	BencodeAnnounceHeader(&buf, 0, 1, 0, 1800, 900)
	BencodeAnnouncePeersIP4(&buf, []*cdb.Peer{peer}, false, true)
	BencodeAnnounceFooter(&buf)

	var decoded struct {
		Peers []struct {
			IP     string `bencode:"ip"`
			PeerID string `bencode:"peer id"`
			Port   int64  `bencode:"port"`
		} `bencode:"peers"`
	}

	if err := bencode.DecodeBytes(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Announce reply is not valid bencode: %v", err)
	}

	if len(decoded.Peers) != 1 {
		t.Fatalf("Expected 1 peer, got %d", len(decoded.Peers))
	}

	if decoded.Peers[0].IP != "192.168.1.100" {
		t.Fatalf("Wrong ip %s", decoded.Peers[0].IP)
	}

	if decoded.Peers[0].Port != 51413 {
		t.Fatalf("Wrong port %d", decoded.Peers[0].Port)
	}

	if decoded.Peers[0].PeerID != "peer_is_twenty_chars" {
		t.Fatalf("Wrong peer id %s", decoded.Peers[0].PeerID)
	}
}

func TestBencodeScrape(t *testing.T) {
	var buf bytes.Buffer

	hashes := []cdb.TorrentHash{
		cdb.TorrentHashFromBytes([]byte("bbbbbbbbbbbbbbbbbbbb")),
		cdb.TorrentHashFromBytes([]byte("aaaaaaaaaaaaaaaaaaaa")),
	}

	BencodeSortTorrentHashKeys(hashes)

	if hashes[0][0] != 'a' {
		t.Fatal("Hash keys were not sorted!")
	}

	BencodeScrapeHeader(&buf)

	for i, infoHash := range hashes {
		BencodeScrapeTorrent(&buf, infoHash, int64(i+1), int64(i+2), int64(i+3))
	}

	BencodeScrapeFooter(&buf, 900)

	var decoded struct {
		Files map[string]struct {
			Complete   int64 `bencode:"complete"`
			Downloaded int64 `bencode:"downloaded"`
			Incomplete int64 `bencode:"incomplete"`
		} `bencode:"files"`
		Flags struct {
			MinRequestInterval int64 `bencode:"min_request_interval"`
		} `bencode:"flags"`
	}

	if err := bencode.DecodeBytes(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Scrape reply is not valid bencode: %v", err)
	}

	if len(decoded.Files) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(decoded.Files))
	}

	entry, exists := decoded.Files["aaaaaaaaaaaaaaaaaaaa"]
	if !exists {
		t.Fatal("Reply is not keyed by raw info-hash bytes!")
	}

	if entry.Complete != 1 || entry.Downloaded != 2 || entry.Incomplete != 3 {
		t.Fatalf("Wrong counts in %+v", entry)
	}

	if decoded.Flags.MinRequestInterval != 900 {
		t.Fatalf("Wrong min_request_interval %d", decoded.Flags.MinRequestInterval)
	}
}
