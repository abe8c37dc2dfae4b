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
	"context"
	"testing"
	"time"
)

func TestSemaphore(t *testing.T) {
	s := NewSemaphore()

	TakeSemaphore(s)
	ReturnSemaphore(s)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if !TryTakeSemaphore(ctx, s) {
		t.Fatal("Expected to take free semaphore!")
	}

	// Held now, second take must time out
	if TryTakeSemaphore(ctx, s) {
		t.Fatal("Took semaphore that should have been held!")
	}

	ReturnSemaphore(s)
}

func TestReturnSemaphorePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Expected panic when returning a full semaphore!")
		}
	}()

	s := NewSemaphore()
	ReturnSemaphore(s)
}
