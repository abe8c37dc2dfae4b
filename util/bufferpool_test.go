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

package util

import (
	"testing"
)

func TestBufferPool(t *testing.T) {
	pool := NewBufferPool(64)

	buf := pool.Take()
	if buf.Len() != 0 {
		t.Fatalf("Expected fresh buffer to be empty, got %d bytes!", buf.Len())
	}

	buf.WriteString("some data")
	pool.Give(buf)

	buf = pool.Take()
	if buf.Len() != 0 {
		t.Fatalf("Expected recycled buffer to be reset, got %d bytes!", buf.Len())
	}
}
