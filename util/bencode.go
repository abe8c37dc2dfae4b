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
	"slices"
	"strconv"
	"time"

	cdb "hotaru/database/types"
)

func bencodeWriteInt64[T ~int64 | ~int](buf *bytes.Buffer, v T) {
	// Static allocation, length of max int64
	var lenBuf [20]byte

	buf.Write(strconv.AppendInt(lenBuf[:0], int64(v), 10))
}

func bencodeWriteString[T ~string | ~[]byte](buf *bytes.Buffer, v T) {
	bencodeWriteInt64(buf, len(v))
	buf.WriteByte(':')
	buf.Write([]byte(v))
}

func bencodeWriteNumber[T ~int64 | ~int](buf *bytes.Buffer, v T) {
	buf.WriteByte('i')
	bencodeWriteInt64(buf, v)
	buf.WriteByte('e')
}

func BencodeFailure(buf *bytes.Buffer, err string, interval time.Duration) {
	if interval < 0 {
		panic("bencode: negative interval")
	}

	buf.WriteByte('d')

	bencodeWriteString(buf, "failure reason")
	bencodeWriteString(buf, err)

	if interval > 0 {
		bencodeWriteString(buf, "interval")
		bencodeWriteNumber(buf, interval/time.Second)
	}

	buf.WriteByte('e')
}

func BencodeSortTorrentHashKeys(keys []cdb.TorrentHash) {
	slices.SortFunc(keys, func(a, b cdb.TorrentHash) int {
		return slices.Compare(a[:], b[:])
	})
}

// BencodeScrapeHeader Writes the scrape header.
// Call BencodeScrapeTorrent afterwards, then finish with BencodeScrapeFooter
func BencodeScrapeHeader(buf *bytes.Buffer) {
	buf.WriteByte('d')

	bencodeWriteString(buf, "files")

	buf.WriteByte('d')
}

// BencodeScrapeTorrent keys the entry with the exact bytes the client
// asked for, variant hashes included. Clients match replies against what
// they sent, not against what we consider canonical.
func BencodeScrapeTorrent(buf *bytes.Buffer, infoHash cdb.TorrentHash, complete, downloaded, incomplete int64) {
	bencodeWriteString(buf, infoHash[:])

	buf.WriteByte('d')

	bencodeWriteString(buf, "complete")
	bencodeWriteNumber(buf, complete)

	bencodeWriteString(buf, "downloaded")
	bencodeWriteNumber(buf, downloaded)

	bencodeWriteString(buf, "incomplete")
	bencodeWriteNumber(buf, incomplete)

	buf.WriteByte('e')
}

func BencodeScrapeFooter(buf *bytes.Buffer, scrapeInterval int) {
	buf.WriteByte('e')

	bencodeWriteString(buf, "flags")

	buf.WriteByte('d')

	bencodeWriteString(buf, "min_request_interval")
	bencodeWriteNumber(buf, scrapeInterval)

	buf.WriteByte('e')

	// compatibility with clients that don't implement scrape flags
	bencodeWriteString(buf, "interval")
	bencodeWriteNumber(buf, scrapeInterval)

	bencodeWriteString(buf, "min interval")
	bencodeWriteNumber(buf, scrapeInterval)

	buf.WriteByte('e')
}

// BencodeAnnounceHeader Writes the announce header.
// Call BencodeAnnouncePeersIP4 afterwards, then finish with BencodeAnnounceFooter
func BencodeAnnounceHeader(buf *bytes.Buffer, complete, incomplete, downloaded int64, interval, minInterval int) {
	buf.WriteByte('d')

	bencodeWriteString(buf, "complete")
	bencodeWriteNumber(buf, complete)

	bencodeWriteString(buf, "downloaded")
	bencodeWriteNumber(buf, downloaded)

	bencodeWriteString(buf, "incomplete")
	bencodeWriteNumber(buf, incomplete)

	bencodeWriteString(buf, "interval")
	bencodeWriteNumber(buf, interval)

	bencodeWriteString(buf, "min interval")
	bencodeWriteNumber(buf, minInterval)
}

func BencodeAnnouncePeersIP4(buf *bytes.Buffer, peers []*cdb.Peer, compact, peerID bool) {
	bencodeWriteString(buf, "peers")

	if compact {
		bencodeWriteInt64(buf, len(peers)*cdb.PeerAddressSize)
		buf.WriteByte(':')

		for _, peer := range peers {
			buf.Write(peer.Addr[:])
		}
	} else {
		buf.WriteByte('l')

		for _, peer := range peers {
			buf.WriteByte('d')

			bencodeWriteString(buf, "ip")
			{
				bencodeWriteInt64(buf, peer.Addr.IPStringLen())
				buf.WriteByte(':')
				peer.Addr.AppendIPString(buf)
			}

			if peerID {
				bencodeWriteString(buf, "peer id")
				bencodeWriteString(buf, peer.ID[:])
			}

			bencodeWriteString(buf, "port")
			bencodeWriteNumber(buf, int64(peer.Addr.Port()))

			buf.WriteByte('e')
		}

		buf.WriteByte('e')
	}
}

func BencodeAnnounceFooter(buf *bytes.Buffer) {
	buf.WriteByte('e')
}
