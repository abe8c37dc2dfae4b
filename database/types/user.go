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
	"encoding/binary"
	"sync/atomic"
)

type User struct {
	ID atomic.Uint32

	DisableDownload atomic.Bool
	TrackerHide     atomic.Bool

	UpMultiplier   atomic.Uint64 // float64 bits
	DownMultiplier atomic.Uint64 // float64 bits
}

func (u *User) Load(reader readerAndByteReader) (err error) {
	var (
		id       uint32
		up, down uint64
		b        byte
	)

	if err = binary.Read(reader, binary.LittleEndian, &id); err != nil {
		return err
	}

	u.ID.Store(id)

	if b, err = reader.ReadByte(); err != nil {
		return err
	}

	u.DisableDownload.Store(b == 1)

	if b, err = reader.ReadByte(); err != nil {
		return err
	}

	u.TrackerHide.Store(b == 1)

	if err = binary.Read(reader, binary.LittleEndian, &up); err != nil {
		return err
	}

	u.UpMultiplier.Store(up)

	if err = binary.Read(reader, binary.LittleEndian, &down); err != nil {
		return err
	}

	u.DownMultiplier.Store(down)

	return nil
}

func (u *User) Append(preAllocatedBuffer []byte) (buf []byte) {
	buf = preAllocatedBuffer
	buf = binary.LittleEndian.AppendUint32(buf, u.ID.Load())

	if u.DisableDownload.Load() {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	if u.TrackerHide.Load() {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = binary.LittleEndian.AppendUint64(buf, u.UpMultiplier.Load())
	buf = binary.LittleEndian.AppendUint64(buf, u.DownMultiplier.Load())

	return buf
}

// UserCacheFile holds filename used by serializer for this type
var UserCacheFile = "user-cache"

// UserCacheVersion Used to distinguish old versions of the on-disk cache.
// Bump when fields are altered on User struct
const UserCacheVersion = 1
