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
	"github.com/shopspring/decimal"
)

// Ledger entry reasons as stored in the points_ledger table.
const (
	ReasonTraffic         = "traffic"
	ReasonSeedingTime     = "seeding-time"
	ReasonApprovalBonus   = "approval-bonus"
	ReasonAdminAdjustment = "admin-adjustment"
)

// LedgerEntry is one pending posting against a user's point balance.
// Delta uses decimal arithmetic end to end; balances drift if they ever
// pass through binary floats. The byte/seconds fields are context for
// auditing, they do not participate in balance math.
type LedgerEntry struct {
	Delta decimal.Decimal

	UpDelta       int64
	DownDelta     int64
	SeedTimeDelta int64

	UserID    uint32
	TorrentID uint32 // 0 when the posting is not tied to a torrent

	Reason string
	Note   string

	// Attempts counts failed postings, managed by the flush pipeline
	Attempts int
}
