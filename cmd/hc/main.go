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

// hc is the operator's swiss army knife: it dumps the on-disk peer caches
// as JSON and posts manual points adjustments to the ledger.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"hotaru/database"
	cdb "hotaru/database/types"

	"github.com/shopspring/decimal"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [arguments]

Commands:
  dump-torrents    print the torrent cache as JSON
  dump-users       print the user cache as JSON
  adjust           post a manual points adjustment
  bonus            post an approval bonus for an uploaded torrent

`, os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "dump-torrents":
		dumpTorrents()
	case "dump-users":
		dumpUsers()
	case "adjust":
		adjust(os.Args[2:])
	case "bonus":
		bonus(os.Args[2:])
	default:
		usage()
	}
}

type torrentDump struct {
	ID             uint32                    `json:"id"`
	Size           uint64                    `json:"size"`
	Status         uint32                    `json:"status"`
	Snatched       uint32                    `json:"snatched"`
	LastAction     int64                     `json:"last_action"`
	UpMultiplier   float64                   `json:"up_multiplier"`
	DownMultiplier float64                   `json:"down_multiplier"`
	Seeders        map[cdb.PeerKey]*cdb.Peer `json:"seeders"`
	Leechers       map[cdb.PeerKey]*cdb.Peer `json:"leechers"`
}

type userDump struct {
	ID              uint32  `json:"id"`
	UpMultiplier    float64 `json:"up_multiplier"`
	DownMultiplier  float64 `json:"down_multiplier"`
	DisableDownload bool    `json:"disable_download"`
	TrackerHide     bool    `json:"tracker_hide"`
}

func dumpTorrents() {
	fi, err := os.Open(fmt.Sprintf("%s.bin", cdb.TorrentCacheFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	defer func() {
		_ = fi.Close()
	}()

	torrents := make(map[cdb.TorrentHash]*cdb.Torrent)
	if err = cdb.LoadTorrents(fi, torrents); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out := make(map[cdb.TorrentHash]*torrentDump, len(torrents))

	for hash, t := range torrents {
		out[hash] = &torrentDump{
			ID:             t.ID.Load(),
			Size:           t.Size.Load(),
			Status:         t.Status.Load(),
			Snatched:       t.Snatched.Load(),
			LastAction:     t.LastAction.Load(),
			UpMultiplier:   math.Float64frombits(t.UpMultiplier.Load()),
			DownMultiplier: math.Float64frombits(t.DownMultiplier.Load()),
			Seeders:        t.Seeders,
			Leechers:       t.Leechers,
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	if err = encoder.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpUsers() {
	fi, err := os.Open(fmt.Sprintf("%s.bin", cdb.UserCacheFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	defer func() {
		_ = fi.Close()
	}()

	users := make(map[string]*cdb.User)
	if err = cdb.LoadUsers(fi, users); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out := make(map[string]*userDump, len(users))

	for passkey, u := range users {
		out[passkey] = &userDump{
			ID:              u.ID.Load(),
			UpMultiplier:    math.Float64frombits(u.UpMultiplier.Load()),
			DownMultiplier:  math.Float64frombits(u.DownMultiplier.Load()),
			DisableDownload: u.DisableDownload.Load(),
			TrackerHide:     u.TrackerHide.Load(),
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	if err = encoder.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func adjust(args []string) {
	fs := flag.NewFlagSet("adjust", flag.ExitOnError)
	uid := fs.Uint("uid", 0, "user to adjust")
	points := fs.String("points", "", "points delta, negative to deduct")
	note := fs.String("note", "", "reason recorded in the ledger")

	_ = fs.Parse(args)

	if *uid == 0 || *points == "" {
		fs.Usage()
		os.Exit(2)
	}

	delta, err := decimal.NewFromString(*points)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid points value: %v\n", err)
		os.Exit(2)
	}

	db := &database.Database{}
	db.Init()

	defer db.Terminate()

	if err = db.PostAdjustment(uint32(*uid), delta, *note); err != nil {
		fmt.Fprintf(os.Stderr, "adjustment failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("posted %s points to user %d\n", delta.String(), *uid)
}

func bonus(args []string) {
	fs := flag.NewFlagSet("bonus", flag.ExitOnError)
	uid := fs.Uint("uid", 0, "uploader to reward")
	fid := fs.Uint("fid", 0, "torrent that passed moderation")
	points := fs.String("points", "", "bonus points")
	note := fs.String("note", "", "reason recorded in the ledger")

	_ = fs.Parse(args)

	if *uid == 0 || *fid == 0 || *points == "" {
		fs.Usage()
		os.Exit(2)
	}

	amount, err := decimal.NewFromString(*points)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid points value: %v\n", err)
		os.Exit(2)
	}

	db := &database.Database{}
	db.Init()

	db.QueueBonus(uint32(*uid), uint32(*fid), amount, *note)

	// Terminate drains the points channel, so the bonus is posted before exit
	db.Terminate()

	fmt.Printf("posted %s bonus points to user %d for torrent %d\n", amount.String(), *uid, *fid)
}
