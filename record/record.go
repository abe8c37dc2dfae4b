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

package record

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"
	"time"

	"hotaru/config"
)

// Announce is a single processed announce, as exposed by the admin API and
// written to the hourly journal.
type Announce struct {
	Time       int64  `json:"time"`
	UserID     uint32 `json:"uid"`
	TorrentID  uint32 `json:"fid"`
	Event      string `json:"event"`
	IP         string `json:"ip"`
	Port       uint16 `json:"port"`
	Uploaded   uint64 `json:"uploaded"`
	Downloaded uint64 `json:"downloaded"`
	Left       uint64 `json:"left"`
	Seeding    bool   `json:"seeding"`
}

var (
	journalEnabled bool
	journalDir     string

	recordChannel chan *Announce

	// Fixed-size ring of the most recent announces, served by the admin API
	ringMutex sync.RWMutex
	ring      []*Announce
	ringNext  int
	ringFull  bool
)

func Init() error {
	section := config.Section("record")

	journalEnabled, _ = section.GetBool("enabled", false)
	journalDir, _ = section.Get("dir", "events")
	ringSize, _ := section.GetInt("ring", 4096)

	ring = make([]*Announce, ringSize)
	ringNext = 0
	ringFull = false

	if !journalEnabled {
		return nil
	}

	if err := os.MkdirAll(journalDir, 0700); err != nil {
		return err
	}

	recordChannel = make(chan *Announce, 1024)

	go journalWriter()

	return nil
}

// Record stores the announce in the ring and, when enabled, hands it to the
// journal writer. Never blocks the announce path.
func Record(a *Announce) {
	ringMutex.Lock()
	if len(ring) == 0 {
		ringMutex.Unlock()
		return
	}

	ring[ringNext] = a
	ringNext++

	if ringNext == len(ring) {
		ringNext = 0
		ringFull = true
	}
	ringMutex.Unlock()

	if !journalEnabled {
		return
	}

	select {
	case recordChannel <- a:
	default:
		// Journal is best effort, drop rather than stall announces
	}
}

// Recent returns up to limit announces, newest first. A non-zero userID or
// torrentID narrows the listing to that user or torrent; a non-empty event
// narrows it to that event type.
func Recent(limit int, userID, torrentID uint32, event string) []*Announce {
	ringMutex.RLock()
	defer ringMutex.RUnlock()

	size := ringNext
	if ringFull {
		size = len(ring)
	}

	if limit <= 0 || limit > size {
		limit = size
	}

	result := make([]*Announce, 0, limit)

	for i := 1; i <= size && len(result) < limit; i++ {
		idx := (ringNext - i + len(ring)) % len(ring)

		a := ring[idx]
		if a == nil {
			break
		}

		if userID != 0 && a.UserID != userID {
			continue
		}

		if torrentID != 0 && a.TorrentID != torrentID {
			continue
		}

		if event != "" && a.Event != event {
			continue
		}

		result = append(result, a)
	}

	return result
}

func journalFile(now time.Time) string {
	return path.Join(journalDir, fmt.Sprintf("announces-%s.json", now.Format("2006-01-02T15")))
}

func journalWriter() {
	var (
		file     *os.File
		fileName string
	)

	for a := range recordChannel {
		name := journalFile(time.Unix(a.Time, 0))

		if file == nil || name != fileName {
			if file != nil {
				_ = file.Close()
			}

			var err error

			file, err = os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
			if err != nil {
				slog.Error("couldn't open journal file", "file", name, "err", err)
				continue
			}

			fileName = name
		}

		line, err := json.Marshal(a)
		if err != nil {
			slog.Error("couldn't marshal announce", "err", err)
			continue
		}

		line = append(line, '\n')

		if _, err = file.Write(line); err != nil {
			slog.Error("couldn't write journal file", "file", fileName, "err", err)
		}
	}
}
