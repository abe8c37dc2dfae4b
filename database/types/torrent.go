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
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"

	lock "github.com/viney-shih/go-lock"
)

// Torrent status values as stored in the torrents table.
const (
	TorrentStatusActive uint32 = iota
	TorrentStatusPruned
	TorrentStatusDisabled
)

// Torrent is one swarm. The peer maps are guarded by the embedded CAS
// lock; the scalar gauges are atomics so scrape, metrics and admin reads
// never have to take it.
type Torrent struct {
	Seeders  map[PeerKey]*Peer
	Leechers map[PeerKey]*Peer

	ID         atomic.Uint32
	Size       atomic.Uint64 // bytes, weights seeding credit
	Status     atomic.Uint32
	Snatched   atomic.Uint32 // lifetime completed counter
	LastAction atomic.Int64  // unix time

	SeedersLength  atomic.Uint32
	LeechersLength atomic.Uint32

	UpMultiplier   atomic.Uint64 // float64 bits
	DownMultiplier atomic.Uint64 // float64 bits

	peersLock lock.Mutex
}

func NewTorrent() *Torrent {
	t := &Torrent{
		Seeders:   make(map[PeerKey]*Peer),
		Leechers:  make(map[PeerKey]*Peer),
		peersLock: lock.NewCASMutex(),
	}
	t.UpMultiplier.Store(math.Float64bits(1))
	t.DownMultiplier.Store(math.Float64bits(1))

	return t
}

func (t *Torrent) PeerLock() {
	t.peersLock.Lock()
}

// PeerTryLock respects the request deadline so a stalled swarm cannot
// pile announces up past the client's retry window.
func (t *Torrent) PeerTryLock(ctx context.Context) bool {
	return t.peersLock.TryLockWithContext(ctx)
}

func (t *Torrent) PeerUnlock() {
	t.peersLock.Unlock()
}

func (t *Torrent) Load(reader readerAndByteReader) (err error) {
	var (
		id, status, snatched, seeders, leechers uint32
		size                                    uint64
		lastAction                              int64
		up, down                                uint64
	)

	if err = binary.Read(reader, binary.LittleEndian, &id); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &size); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &status); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &snatched); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &lastAction); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &up); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &down); err != nil {
		return err
	}

	t.ID.Store(id)
	t.Size.Store(size)
	t.Status.Store(status)
	t.Snatched.Store(snatched)
	t.LastAction.Store(lastAction)
	t.UpMultiplier.Store(up)
	t.DownMultiplier.Store(down)

	if err = binary.Read(reader, binary.LittleEndian, &seeders); err != nil {
		return err
	}

	if err = binary.Read(reader, binary.LittleEndian, &leechers); err != nil {
		return err
	}

	t.Seeders = make(map[PeerKey]*Peer, seeders)
	t.Leechers = make(map[PeerKey]*Peer, leechers)

	var k PeerKey

	for i := uint32(0); i < seeders; i++ {
		if _, err = io.ReadFull(reader, k[:]); err != nil {
			return err
		}

		p := &Peer{}
		if err = p.Load(reader); err != nil {
			return err
		}

		t.Seeders[k] = p
	}

	for i := uint32(0); i < leechers; i++ {
		if _, err = io.ReadFull(reader, k[:]); err != nil {
			return err
		}

		p := &Peer{}
		if err = p.Load(reader); err != nil {
			return err
		}

		t.Leechers[k] = p
	}

	t.SeedersLength.Store(seeders)
	t.LeechersLength.Store(leechers)
	t.peersLock = lock.NewCASMutex()

	return nil
}

func (t *Torrent) Append(preAllocatedBuffer []byte) (buf []byte) {
	buf = preAllocatedBuffer
	buf = binary.LittleEndian.AppendUint32(buf, t.ID.Load())
	buf = binary.LittleEndian.AppendUint64(buf, t.Size.Load())
	buf = binary.LittleEndian.AppendUint32(buf, t.Status.Load())
	buf = binary.LittleEndian.AppendUint32(buf, t.Snatched.Load())
	buf = binary.LittleEndian.AppendUint64(buf, uint64(t.LastAction.Load()))
	buf = binary.LittleEndian.AppendUint64(buf, t.UpMultiplier.Load())
	buf = binary.LittleEndian.AppendUint64(buf, t.DownMultiplier.Load())

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Seeders)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Leechers)))

	for k, p := range t.Seeders {
		buf = append(buf, k[:]...)
		buf = p.Append(buf)
	}

	for k, p := range t.Leechers {
		buf = append(buf, k[:]...)
		buf = p.Append(buf)
	}

	return buf
}

// TorrentCacheFile holds filename used by serializer for this type
var TorrentCacheFile = "torrent-cache"

// TorrentCacheVersion Used to distinguish old versions of the on-disk cache.
// Bump when fields are altered on Torrent or Peer structs
const TorrentCacheVersion = 1
