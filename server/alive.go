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

package server

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
)

type aliveInfo struct {
	Now    int64 `json:"now"`
	Uptime int64 `json:"uptime"`
}

// Health check endpoint for load balancers, no authentication.
func (handler *httpHandler) alive(ctx *fasthttp.RequestCtx, buf *bytes.Buffer) int {
	encoded, err := json.Marshal(&aliveInfo{
		Now:    time.Now().Unix(),
		Uptime: int64(time.Since(handler.startTime).Seconds()),
	})
	if err != nil {
		return fasthttp.StatusInternalServerError
	}

	buf.Write(encoded)
	ctx.SetContentType("application/json")

	return fasthttp.StatusOK
}
