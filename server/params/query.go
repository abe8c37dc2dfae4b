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

package params

import (
	"errors"
	"strconv"

	cdb "hotaru/database/types"
)

var ErrMalformedQuery = errors.New("malformed query string")

/*
 * Query parameters parsed from the announce and scrape URLs.
 *
 * net/url is deliberately not used here. The info_hash and peer_id values
 * are raw binary percent-encoded by the client, and they are almost never
 * valid UTF-8. Decoding them through url.ParseQuery would also fold
 * repeated keys into a slice for every parameter, while the only key that
 * may legally repeat is info_hash on a scrape.
 */
type QueryParams struct {
	params queryParam
	exists existsParam

	infoHashes []cdb.TorrentHash
}

type queryParam struct {
	uploaded   uint64
	downloaded uint64
	left       uint64
	port       uint16
	numWant    uint16
	peerID     string
	ip         string
	event      string
	compact    bool
	noPeerID   bool
}

type existsParam struct {
	uploaded   bool
	downloaded bool
	left       bool
	port       bool
	numWant    bool
	peerID     bool
	ip         bool
	event      bool
	compact    bool
	noPeerID   bool
}

func ParseQuery(query []byte) (*QueryParams, error) {
	qp := &QueryParams{}

	for pos := 0; pos < len(query); {
		end := pos

		for end < len(query) && query[end] != '&' {
			end++
		}

		kv := query[pos:end]
		pos = end + 1

		if len(kv) == 0 {
			continue
		}

		eq := 0
		for eq < len(kv) && kv[eq] != '=' {
			eq++
		}

		if eq == len(kv) {
			// Key with no value, nothing in the protocol looks like this
			continue
		}

		key, err := unescape(kv[:eq])
		if err != nil {
			return nil, err
		}

		value, err := unescape(kv[eq+1:])
		if err != nil {
			return nil, err
		}

		if err = qp.set(string(key), value); err != nil {
			return nil, err
		}
	}

	return qp, nil
}

func (qp *QueryParams) set(key string, value []byte) error {
	var err error

	switch key {
	case "info_hash":
		if len(value) != cdb.TorrentHashSize {
			return ErrMalformedQuery
		}

		qp.infoHashes = append(qp.infoHashes, cdb.TorrentHashFromBytes(value))
	case "peer_id":
		qp.params.peerID = string(value)
		qp.exists.peerID = true
	case "port":
		var port uint64

		if port, err = strconv.ParseUint(string(value), 10, 16); err != nil {
			return ErrMalformedQuery
		}

		qp.params.port = uint16(port)
		qp.exists.port = true
	case "uploaded":
		if qp.params.uploaded, err = strconv.ParseUint(string(value), 10, 64); err != nil {
			return ErrMalformedQuery
		}

		qp.exists.uploaded = true
	case "downloaded":
		if qp.params.downloaded, err = strconv.ParseUint(string(value), 10, 64); err != nil {
			return ErrMalformedQuery
		}

		qp.exists.downloaded = true
	case "left":
		if qp.params.left, err = strconv.ParseUint(string(value), 10, 64); err != nil {
			return ErrMalformedQuery
		}

		qp.exists.left = true
	case "numwant":
		var numWant uint64

		if numWant, err = strconv.ParseUint(string(value), 10, 16); err != nil {
			// Clients disagree wildly here, a bad numwant is not fatal
			return nil
		}

		qp.params.numWant = uint16(numWant)
		qp.exists.numWant = true
	case "event":
		qp.params.event = string(value)
		qp.exists.event = true
	case "ip", "ipv4":
		qp.params.ip = string(value)
		qp.exists.ip = true
	case "compact":
		qp.params.compact = len(value) == 1 && value[0] == '1'
		qp.exists.compact = true
	case "no_peer_id":
		qp.params.noPeerID = len(value) == 1 && value[0] == '1'
		qp.exists.noPeerID = true
	}

	return nil
}

func unescape(s []byte) ([]byte, error) {
	out := make([]byte, 0, len(s))

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%':
			if i+2 >= len(s) {
				return nil, ErrMalformedQuery
			}

			hi := unhex(s[i+1])
			lo := unhex(s[i+2])

			if hi < 0 || lo < 0 {
				return nil, ErrMalformedQuery
			}

			out = append(out, byte(hi<<4|lo))
			i += 2
		case '+':
			out = append(out, ' ')
		default:
			out = append(out, s[i])
		}
	}

	return out, nil
}

func unhex(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	}

	return -1
}

func (qp *QueryParams) InfoHashes() []cdb.TorrentHash {
	return qp.infoHashes
}

// InfoHash returns the single info_hash of an announce. Announces with zero
// or multiple info_hash values are invalid.
func (qp *QueryParams) InfoHash() (cdb.TorrentHash, bool) {
	if len(qp.infoHashes) != 1 {
		return cdb.TorrentHash{}, false
	}

	return qp.infoHashes[0], true
}

func (qp *QueryParams) PeerID() (string, bool) {
	return qp.params.peerID, qp.exists.peerID
}

func (qp *QueryParams) Port() (uint16, bool) {
	return qp.params.port, qp.exists.port
}

func (qp *QueryParams) Uploaded() (uint64, bool) {
	return qp.params.uploaded, qp.exists.uploaded
}

func (qp *QueryParams) Downloaded() (uint64, bool) {
	return qp.params.downloaded, qp.exists.downloaded
}

func (qp *QueryParams) Left() (uint64, bool) {
	return qp.params.left, qp.exists.left
}

func (qp *QueryParams) NumWant() (uint16, bool) {
	return qp.params.numWant, qp.exists.numWant
}

func (qp *QueryParams) Event() (string, bool) {
	return qp.params.event, qp.exists.event
}

func (qp *QueryParams) IP() (string, bool) {
	return qp.params.ip, qp.exists.ip
}

func (qp *QueryParams) Compact() bool {
	return qp.params.compact
}

func (qp *QueryParams) NoPeerID() bool {
	return qp.params.noPeerID
}
