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

// Package config reads config.json from the working directory once, on
// first use. Every accessor returns the value plus whether it was
// actually present, so callers keep their defaults close to the lookup.
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

// Map is one level of the parsed configuration tree. Numbers stay as
// json.Number until a caller asks for them.
type Map map[string]any

var (
	configFile = "config.json"
	config     Map
	once       sync.Once
)

func init() {
	// Mostly for running several instances out of one directory
	if path := os.Getenv("HOTARU_CONFIG"); path != "" {
		configFile = path
	}
}

func readConfig() {
	f, err := os.Open(configFile)
	if err != nil {
		slog.Warn("unable to open config file, defaults will be used", "err", err)
		return
	}

	defer func() {
		_ = f.Close()
	}()

	decoder := json.NewDecoder(f)
	decoder.UseNumber()

	if err = decoder.Decode(&config); err != nil {
		slog.Error("can not parse config file, defaults will be used", "err", err)
	}
}

func loaded() Map {
	once.Do(readConfig)
	return config
}

func lookup[T any](m Map, key string) (T, bool) {
	value, exists := m[key].(T)
	return value, exists
}

func Get(key string, defaultValue string) (string, bool) {
	return loaded().Get(key, defaultValue)
}

func GetInt(key string, defaultValue int) (int, bool) {
	return loaded().GetInt(key, defaultValue)
}

func GetBool(key string, defaultValue bool) (bool, bool) {
	return loaded().GetBool(key, defaultValue)
}

func Section(key string) Map {
	return loaded().Section(key)
}

func (m Map) Get(key string, defaultValue string) (string, bool) {
	if value, exists := lookup[string](m, key); exists {
		return value, true
	}

	return defaultValue, false
}

func (m Map) GetInt(key string, defaultValue int) (int, bool) {
	if value, exists := lookup[json.Number](m, key); exists {
		n, _ := value.Int64()
		return int(n), true
	}

	return defaultValue, false
}

func (m Map) GetBool(key string, defaultValue bool) (bool, bool) {
	if value, exists := lookup[bool](m, key); exists {
		return value, true
	}

	return defaultValue, false
}

// Section never fails; a missing section yields a nil Map whose lookups
// all report absence, so defaults cascade naturally.
func (m Map) Section(key string) Map {
	section, _ := lookup[map[string]any](m, key)
	return section
}
