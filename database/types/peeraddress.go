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
	"bytes"
	"encoding/binary"
	"net"
	"strconv"
)

// PeerAddressSize is 4 bytes of IPv4 address plus 2 bytes of big-endian
// port, the unit of the compact peer list wire format (BEP 23).
const PeerAddressSize = 6

type PeerAddress [PeerAddressSize]byte

func NewPeerAddressFromIPPort(ip net.IP, port uint16) (addr PeerAddress) {
	copy(addr[:4], ip.To4())
	binary.BigEndian.PutUint16(addr[4:], port)

	return addr
}

//goland:noinspection GoMixedReceiverTypes
func (addr PeerAddress) IP() net.IP {
	return net.IPv4(addr[0], addr[1], addr[2], addr[3]).To4()
}

//goland:noinspection GoMixedReceiverTypes
func (addr PeerAddress) IPNumeric() uint32 {
	return binary.BigEndian.Uint32(addr[:4])
}

//goland:noinspection GoMixedReceiverTypes
func (addr PeerAddress) Port() uint16 {
	return binary.BigEndian.Uint16(addr[4:])
}

//goland:noinspection GoMixedReceiverTypes
func (addr PeerAddress) IPString() string {
	return addr.IP().String()
}

// IPStringLen returns the length of IPString without allocating it,
// needed to emit the bencode string header before the value.
//
//goland:noinspection GoMixedReceiverTypes
func (addr PeerAddress) IPStringLen() (n int) {
	n = 3 // dots

	for _, octet := range addr[:4] {
		switch {
		case octet >= 100:
			n += 3
		case octet >= 10:
			n += 2
		default:
			n++
		}
	}

	return n
}

//goland:noinspection GoMixedReceiverTypes
func (addr PeerAddress) AppendIPString(buf *bytes.Buffer) {
	var tmp [3]byte

	for i, octet := range addr[:4] {
		if i > 0 {
			buf.WriteByte('.')
		}

		buf.Write(strconv.AppendUint(tmp[:0], uint64(octet), 10))
	}
}
