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
	"strings"
	"testing"
)

func TestBtoa(t *testing.T) {
	if Btoa(true) != "1" {
		t.Fatal("Btoa(true) should be \"1\"!")
	}

	if Btoa(false) != "0" {
		t.Fatal("Btoa(false) should be \"0\"!")
	}
}

func TestIntn(t *testing.T) {
	for i := 0; i < 1000; i++ {
		got := Intn(100)
		if got < 0 || got >= 100 {
			t.Fatalf("Intn(100) returned %d, out of range!", got)
		}
	}
}

func TestRand(t *testing.T) {
	for i := 0; i < 1000; i++ {
		got := Rand(10, 20)
		if got < 10 || got > 20 {
			t.Fatalf("Rand(10, 20) returned %d, out of range!", got)
		}
	}
}

func TestRandStringBytes(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		s := RandStringBytes(32)
		if len(s) != 32 {
			t.Fatalf("Expected 32 characters, got %d (%s)!", len(s), s)
		}

		for _, c := range s {
			if !strings.ContainsRune(alphanumBytes, c) {
				t.Fatalf("Got non-alphanumeric character %c in %s!", c, s)
			}
		}

		if _, exists := seen[s]; exists {
			t.Fatalf("Generated duplicate passkey %s!", s)
		}

		seen[s] = struct{}{}
	}
}
