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

package database

import (
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"time"

	"hotaru/collector"
	"hotaru/config"
	cdb "hotaru/database/types"
	"hotaru/util"

	"github.com/shopspring/decimal"
)

// Scale of the Delta and Balance columns in points_ledger
const ledgerScale = 8

var (
	gib = decimal.NewFromInt(1 << 30)

	uploadCoefficient   decimal.Decimal
	downloadCoefficient decimal.Decimal
	pointsPerHour       float64

	accrualInterval int
)

func init() {
	points := config.Section("points")

	uploadCoefficientStr, _ := points.Get("per_gib_up", "1.0")
	uploadCoefficient = decimal.RequireFromString(uploadCoefficientStr)

	downloadCoefficientStr, _ := points.Get("per_gib_down", "0")
	downloadCoefficient = decimal.RequireFromString(downloadCoefficientStr)

	pointsPerHourStr, _ := points.Get("per_seeding_hour", "2.0")
	pointsPerHour = decimal.RequireFromString(pointsPerHourStr).InexactFloat64()

	intervals := config.Section("intervals")
	accrualInterval, _ = intervals.GetInt("points_accrual", 3600)
}

// TrafficPoints converts credited byte deltas into a points delta. The
// inputs are the multiplier-adjusted deltas, not the raw client counters.
func TrafficPoints(deltaUp, deltaDown int64) decimal.Decimal {
	up := decimal.NewFromInt(deltaUp).Mul(uploadCoefficient).DivRound(gib, ledgerScale)
	down := decimal.NewFromInt(deltaDown).Mul(downloadCoefficient).DivRound(gib, ledgerScale)

	return up.Sub(down)
}

// SeedingPoints values seconds of seeding on a single torrent. Larger
// torrents earn more, crowded swarms earn less:
//
//	perHour * hours * log2(1 + sizeGiB) / sqrt(seeders)
//
// The curve weight is computed in floats and only the final result enters
// decimal land, so balances stay exact while the weighting stays cheap.
func SeedingPoints(seconds int64, size uint64, seeders uint32) decimal.Decimal {
	if seconds <= 0 {
		return decimal.Zero
	}

	if seeders < 1 {
		seeders = 1
	}

	hours := float64(seconds) / 3600
	sizeWeight := math.Log2(1 + float64(size)/float64(1<<30))
	swarmWeight := math.Sqrt(float64(seeders))

	return decimal.NewFromFloat(pointsPerHour * hours * sizeWeight / swarmWeight).Round(ledgerScale)
}

// AccumulateSeedTime adds seconds of credited seeding for the pair. The
// accumulator is drained by the accrual sweep, so a peer that expires
// between sweeps still gets paid for time recorded before expiry.
func (db *Database) AccumulateSeedTime(userID, torrentID uint32, seconds int64) {
	if seconds <= 0 {
		return
	}

	pair := cdb.UserTorrentPair{UserID: userID, TorrentID: torrentID}

	db.seedtimeMutex.Lock()
	db.seedtime[pair] += seconds
	db.seedtimeMutex.Unlock()
}

// drainSeedTime swaps out the accumulator so each accrued second is
// credited exactly once no matter how sweeps and announces interleave.
func (db *Database) drainSeedTime() map[cdb.UserTorrentPair]int64 {
	db.seedtimeMutex.Lock()
	drained := db.seedtime
	db.seedtime = make(map[cdb.UserTorrentPair]int64)
	db.seedtimeMutex.Unlock()

	return drained
}

func (db *Database) startAccruing() {
	go func() {
		util.ContextTick(db.ctx, time.Duration(accrualInterval)*time.Second, func() {
			db.AccrueSeedingPoints()
		})
	}()
}

// AccrueSeedingPoints drains the seedtime accumulator and queues one
// seeding-time ledger entry per (user, torrent) pair.
func (db *Database) AccrueSeedingPoints() {
	startTime := time.Now()
	drained := db.drainSeedTime()

	if len(drained) == 0 {
		return
	}

	dbTorrentsID := *db.TorrentsID.Load()

	var entries int

	for pair, seconds := range drained {
		torrent, exists := dbTorrentsID[pair.TorrentID]
		if !exists {
			// Deleted between announce and sweep, its seedtime dies with it
			slog.Warn("dropping seedtime for unknown torrent",
				"fid", pair.TorrentID, "uid", pair.UserID, "seconds", seconds)

			continue
		}

		delta := SeedingPoints(seconds, torrent.Size.Load(), torrent.SeedersLength.Load())
		if delta.IsZero() {
			continue
		}

		db.QueuePoints(&cdb.LedgerEntry{
			UserID:        pair.UserID,
			TorrentID:     pair.TorrentID,
			Reason:        cdb.ReasonSeedingTime,
			Delta:         delta,
			SeedTimeDelta: seconds,
		})

		entries++
	}

	collector.UpdateAccrualTime(time.Since(startTime))
	slog.Info("seeding points accrued", "pairs", len(drained), "entries", entries)
}

// PostLedgerEntry appends the entry and moves the balance in a single
// transaction, retrying on deadlock like every other write.
func (db *Database) PostLedgerEntry(entry *cdb.LedgerEntry) error {
	var err error

	for tries := 1; tries <= maxDeadlockRetries; tries++ {
		err = db.postLedgerEntry(entry)
		if err == nil {
			return nil
		}

		if !isDeadlockError(err) {
			collector.IncrementSQLErrorCount()
			return err
		}

		wait := time.Duration(deadlockWaitTime*tries) * time.Second
		slog.Warn("deadlock found", "wait", wait, "try", tries, "max", maxDeadlockRetries)

		if tries == 1 {
			collector.IncrementDeadlockCount()
		}

		collector.IncrementDeadlockTime(wait)
		time.Sleep(wait)
	}

	collector.IncrementDeadlockAborted()

	return err
}

func (db *Database) postLedgerEntry(entry *cdb.LedgerEntry) error {
	db.connMutex.Lock()
	defer db.connMutex.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback()
	}()

	// Lock the balance row for the duration of the posting
	var balanceStr string

	balance := decimal.Zero

	err = tx.Stmt(db.selectPointsStmt).QueryRow(entry.UserID).Scan(&balanceStr)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First entry for this user, balance starts at zero
	case err != nil:
		return err
	default:
		if balance, err = decimal.NewFromString(balanceStr); err != nil {
			return err
		}
	}

	newBalance := balance.Add(entry.Delta)

	if _, err = tx.Stmt(db.upsertPointsStmt).Exec(entry.UserID, newBalance.String()); err != nil {
		return err
	}

	if _, err = tx.Stmt(db.insertLedgerStmt).Exec(
		entry.UserID,
		entry.TorrentID,
		entry.Reason,
		entry.Delta.String(),
		newBalance.String(),
		entry.UpDelta,
		entry.DownDelta,
		entry.SeedTimeDelta,
		entry.Note,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// PostAdjustment posts a manual admin-adjustment synchronously. Used by the
// command line tool, so failure has to surface immediately rather than
// disappear into the flush pipeline.
func (db *Database) PostAdjustment(userID uint32, delta decimal.Decimal, note string) error {
	if delta.IsZero() {
		return nil
	}

	return db.PostLedgerEntry(&cdb.LedgerEntry{
		UserID: userID,
		Reason: cdb.ReasonAdminAdjustment,
		Delta:  delta.Round(ledgerScale),
		Note:   note,
	})
}

// QueueBonus queues an approval-bonus entry, paid when a torrent the user
// uploaded passes moderation.
func (db *Database) QueueBonus(userID, torrentID uint32, bonus decimal.Decimal, note string) {
	db.QueuePoints(&cdb.LedgerEntry{
		UserID:    userID,
		TorrentID: torrentID,
		Reason:    cdb.ReasonApprovalBonus,
		Delta:     bonus.Round(ledgerScale),
		Note:      note,
	})
}
