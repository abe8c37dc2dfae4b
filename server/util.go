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
	"strings"
	"time"

	cdb "hotaru/database/types"
	"hotaru/server/params"
	"hotaru/util"

	"github.com/valyala/fasthttp"
)

// failure resets the response buffer and writes a failure reason document.
// Always served with HTTP 200, clients ignore tracker errors on any other
// status.
func failure(err string, buf *bytes.Buffer, interval time.Duration) {
	buf.Reset()
	util.BencodeFailure(buf, err, interval)
}

const passkeyLength = 32

func isPasskeyValid(passkey string) bool {
	if len(passkey) != passkeyLength {
		return false
	}

	for i := 0; i < len(passkey); i++ {
		c := passkey[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}

	return true
}

// isClientApproved matches the peer_id prefix against the whitelist.
func isClientApproved(peerID string, clients map[uint16]string) (uint16, bool) {
	for id, prefix := range clients {
		if strings.HasPrefix(peerID, prefix) {
			return id, true
		}
	}

	return 0, false
}

// resolveTorrent maps a requested info-hash to its swarm, looking at
// canonical hashes first and per-user variant hashes second. The returned
// variant is nil when the hash was canonical.
func resolveTorrent(
	hash cdb.TorrentHash,
	torrents map[cdb.TorrentHash]*cdb.Torrent,
	variants map[cdb.TorrentHash]*cdb.Variant,
) (*cdb.Torrent, *cdb.Variant) {
	if torrent, exists := torrents[hash]; exists {
		return torrent, nil
	}

	if variant, exists := variants[hash]; exists {
		if torrent, exists := torrents[variant.Canonical]; exists {
			return torrent, variant
		}
	}

	return nil, nil
}

func isPrivateIPAddress(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 0:
			return true
		case ip4[0] == 10:
			return true
		case ip4[0] == 127:
			return true
		case ip4[0] == 169 && ip4[1] == 254:
			return true
		case ip4[0] == 172 && ip4[1]&0xf0 == 16:
			return true
		case ip4[0] == 192 && ip4[1] == 168:
			return true
		}

		return false
	}

	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsPrivate()
}

// getIPAddressFromRequest decides which IPv4 address to store for the peer.
// The client-supplied ip/ipv4 parameter wins if it is a public address, then
// the configured proxy header, then the connecting address itself.
func getIPAddressFromRequest(qp *params.QueryParams, ctx *fasthttp.RequestCtx) (net.IP, bool) {
	if ipStr, exists := qp.IP(); exists {
		if ip := net.ParseIP(ipStr); ip != nil {
			if ip4 := ip.To4(); ip4 != nil && !isPrivateIPAddress(ip4) {
				return ip4, true
			}
		}
	}

	if proxyHeader != "" {
		if headerValue := ctx.Request.Header.Peek(proxyHeader); len(headerValue) > 0 {
			if ip := net.ParseIP(string(headerValue)); ip != nil {
				if ip4 := ip.To4(); ip4 != nil {
					return ip4, !isPrivateIPAddress(ip4)
				}
			}
		}
	}

	if ip, ok := ctx.RemoteAddr().(*net.TCPAddr); ok {
		if ip4 := ip.IP.To4(); ip4 != nil {
			return ip4, !isPrivateIPAddress(ip4)
		}
	}

	return nil, false
}
