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

// bencode converts between bencode on stdin and JSON on stdout, handy when
// poking at tracker replies from the command line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/zeebo/bencode"
)

func main() {
	encode := flag.Bool("e", false, "encode JSON from stdin to bencode")
	flag.Parse()

	var err error

	if *encode {
		var v interface{}

		if err = json.NewDecoder(os.Stdin).Decode(&v); err == nil {
			err = bencode.NewEncoder(os.Stdout).Encode(v)
		}
	} else {
		var v interface{}

		if err = bencode.NewDecoder(os.Stdin).Decode(&v); err == nil {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			err = encoder.Encode(v)
		}
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
