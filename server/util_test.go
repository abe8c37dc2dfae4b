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
	"net"
	"testing"
	"time"

	cdb "hotaru/database/types"
	"hotaru/util"
)

func TestFailure(t *testing.T) {
	var buf bytes.Buffer

	buf.WriteString("partial reply that should be discarded")
	failure("testing", &buf, 7*time.Second)

	expected := "d14:failure reason7:testing8:intervali7ee"
	if buf.String() != expected {
		t.Fatalf("Expected %s, got %s", expected, buf.String())
	}
}

func TestIsPasskeyValid(t *testing.T) {
	if !isPasskeyValid(util.RandStringBytes(32)) {
		t.Fatal("Generated passkey did not validate!")
	}

	for _, passkey := range []string{
		"",
		"tooshort",
		"waaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaytoolong",
		"contains/slash-but-is-32-chars-l",
		"contains space but is 32 chars l",
	} {
		if isPasskeyValid(passkey) {
			t.Fatalf("Passkey %q should not validate!", passkey)
		}
	}
}

func TestIsClientApproved(t *testing.T) {
	clients := map[uint16]string{
		1: "-TR",
		2: "-DE205",
	}

	id, approved := isClientApproved("-TR4050-abcdefghij12", clients)
	if !approved || id != 1 {
		t.Fatalf("Expected client 1 approved, got %d %v", id, approved)
	}

	id, approved = isClientApproved("-DE2050-abcdefghij12", clients)
	if !approved || id != 2 {
		t.Fatalf("Expected client 2 approved, got %d %v", id, approved)
	}

	if _, approved = isClientApproved("-AZ5750-abcdefghij12", clients); approved {
		t.Fatal("Unknown client prefix was approved!")
	}
}

func TestResolveTorrent(t *testing.T) {
	canonical := cdb.TorrentHashFromBytes([]byte("canonicalcanonical__"))
	variantHash := cdb.TorrentHashFromBytes([]byte("variantvariant______"))
	unknown := cdb.TorrentHashFromBytes([]byte("unknownunknown______"))
	orphan := cdb.TorrentHashFromBytes([]byte("orphanorphan________"))

	torrent := cdb.NewTorrent()
	torrent.ID.Store(77)

	torrents := map[cdb.TorrentHash]*cdb.Torrent{canonical: torrent}
	variants := map[cdb.TorrentHash]*cdb.Variant{
		variantHash: {Canonical: canonical, TorrentID: 77, UserID: 5},
		orphan:      {Canonical: unknown, TorrentID: 99, UserID: 5},
	}

	got, variant := resolveTorrent(canonical, torrents, variants)
	if got != torrent || variant != nil {
		t.Fatal("Canonical hash should resolve without a variant!")
	}

	got, variant = resolveTorrent(variantHash, torrents, variants)
	if got != torrent || variant == nil || variant.UserID != 5 {
		t.Fatal("Variant hash should resolve to its canonical swarm!")
	}

	if got, _ = resolveTorrent(unknown, torrents, variants); got != nil {
		t.Fatal("Unknown hash resolved to a swarm!")
	}

	// Variant pointing at a deleted torrent behaves like an unknown hash
	if got, _ = resolveTorrent(orphan, torrents, variants); got != nil {
		t.Fatal("Orphaned variant resolved to a swarm!")
	}
}

func TestIsPrivateIPAddress(t *testing.T) {
	private := []string{
		"127.0.0.1", "10.0.0.1", "172.16.5.4", "172.31.255.255",
		"192.168.1.1", "169.254.10.10", "0.0.0.0",
	}

	for _, addr := range private {
		if !isPrivateIPAddress(net.ParseIP(addr)) {
			t.Fatalf("%s should be private!", addr)
		}
	}

	public := []string{"1.1.1.1", "8.8.8.8", "172.32.0.1", "93.184.216.34"}

	for _, addr := range public {
		if isPrivateIPAddress(net.ParseIP(addr)) {
			t.Fatalf("%s should be public!", addr)
		}
	}
}
