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
	"database/sql/driver"
	"encoding/hex"
	"errors"
)

var (
	errInvalidType      = errors.New("invalid type provided")
	errWrongHashSize    = errors.New("wrong torrent hash size")
	errNilHash          = errors.New("nil torrent hash")
	errWrongPeerIDSize  = errors.New("wrong peer id size")
	errNilPeerID        = errors.New("nil peer id")
	errWrongPeerKeySize = errors.New("wrong peer key size")
)

// TorrentHashSize is the size of a SHA-1 digest identifying a torrent's
// metainfo, shared by canonical and variant hashes.
const TorrentHashSize = 20

type TorrentHash [TorrentHashSize]byte

func TorrentHashFromBytes(buf []byte) (h TorrentHash) {
	if len(buf) != TorrentHashSize {
		return
	}

	copy(h[:], buf)

	return h
}

//goland:noinspection GoMixedReceiverTypes
func (h *TorrentHash) Scan(src any) error {
	if src == nil {
		return nil
	} else if buf, ok := src.([]byte); ok {
		if len(buf) == 0 {
			return errNilHash
		}

		if len(buf) != TorrentHashSize {
			return errWrongHashSize
		}

		copy((*h)[:], buf)

		return nil
	}

	return errInvalidType
}

//goland:noinspection GoMixedReceiverTypes
func (h *TorrentHash) Value() (driver.Value, error) {
	return (*h)[:], nil
}

//goland:noinspection GoMixedReceiverTypes
func (h TorrentHash) MarshalText() ([]byte, error) {
	var buf [TorrentHashSize * 2]byte

	hex.Encode(buf[:], h[:])

	return buf[:], nil
}

//goland:noinspection GoMixedReceiverTypes
func (h *TorrentHash) UnmarshalText(b []byte) error {
	if len(b) != TorrentHashSize*2 {
		return errWrongHashSize
	}

	if _, err := hex.Decode(h[:], b); err != nil {
		return err
	}

	return nil
}

// UserTorrentPair keys per-session bookkeeping that outlives a single
// announce, such as the seedtime accumulator.
type UserTorrentPair struct {
	UserID    uint32
	TorrentID uint32
}
