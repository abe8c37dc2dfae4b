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

// Variant binds a per-user alias info-hash to its canonical torrent and
// the user the personalized copy was issued to. The canonical torrent
// record is never mutated by personalization; variants are a pure lookup
// layer on the side, which keeps them independently reloadable.
type Variant struct {
	Canonical TorrentHash

	TorrentID uint32
	UserID    uint32
}
