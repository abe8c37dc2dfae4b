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

package collector

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	uptimeMetric          *prometheus.Desc
	usersMetric           *prometheus.Desc
	torrentsMetric        *prometheus.Desc
	variantsMetric        *prometheus.Desc
	clientsMetric         *prometheus.Desc
	seedersMetric         *prometheus.Desc
	leechersMetric        *prometheus.Desc
	requestsMetric        *prometheus.Desc
	erroredMetric         *prometheus.Desc
	deadlockCountMetric   *prometheus.Desc
	deadlockTimeMetric    *prometheus.Desc
	deadlockAbortedMetric *prometheus.Desc
	sqlErrorCountMetric   *prometheus.Desc
}

var (
	startTime = time.Now()

	usersCount    atomic.Int64
	torrentsCount atomic.Int64
	variantsCount atomic.Int64
	clientsCount  atomic.Int64
	seedersCount  atomic.Int64
	leechersCount atomic.Int64

	requestsHandled atomic.Uint64
	requestsErrored atomic.Uint64

	deadlockCount   atomic.Uint64
	deadlockTime    atomic.Int64
	deadlockAborted atomic.Uint64
	sqlErrorCount   atomic.Uint64

	channelFlushTime = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "hotaru_channel_flush_time_seconds",
		Help: "Time spent flushing a channel batch to the database",
	}, []string{"channel"})

	channelFlushLen = prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Name: "hotaru_channel_flush_len",
		Help: "Number of rows flushed in a single batch",
	}, []string{"channel"})

	reloadTime = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "hotaru_reload_time_seconds",
		Help: "Time spent reloading caches from the database",
	})

	purgeInactivePeersTime = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "hotaru_purge_inactive_peers_time_seconds",
		Help: "Time spent purging inactive peers",
	})

	serializationTime = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "hotaru_serialization_time_seconds",
		Help: "Time spent writing the peer caches to disk",
	})

	accrualTime = prometheus.NewSummary(prometheus.SummaryOpts{
		Name: "hotaru_accrual_time_seconds",
		Help: "Time spent accruing seeding points",
	})
)

func NewCollector() *Collector {
	return &Collector{
		uptimeMetric: prometheus.NewDesc("hotaru_uptime_seconds",
			"System uptime in seconds", nil, nil),
		usersMetric: prometheus.NewDesc("hotaru_users",
			"Number of loaded users", nil, nil),
		torrentsMetric: prometheus.NewDesc("hotaru_torrents",
			"Number of loaded torrents", nil, nil),
		variantsMetric: prometheus.NewDesc("hotaru_variants",
			"Number of loaded torrent variants", nil, nil),
		clientsMetric: prometheus.NewDesc("hotaru_clients",
			"Number of approved clients", nil, nil),
		seedersMetric: prometheus.NewDesc("hotaru_seeders",
			"Number of seeders across all swarms", nil, nil),
		leechersMetric: prometheus.NewDesc("hotaru_leechers",
			"Number of leechers across all swarms", nil, nil),
		requestsMetric: prometheus.NewDesc("hotaru_requests",
			"Number of requests handled", nil, nil),
		erroredMetric: prometheus.NewDesc("hotaru_requests_errored",
			"Number of requests failed", nil, nil),
		deadlockCountMetric: prometheus.NewDesc("hotaru_deadlocks",
			"Number of unique database deadlocks encountered", nil, nil),
		deadlockTimeMetric: prometheus.NewDesc("hotaru_deadlock_time_seconds",
			"Time spent waiting out database deadlocks", nil, nil),
		deadlockAbortedMetric: prometheus.NewDesc("hotaru_deadlocks_aborted",
			"Number of queries aborted after too many deadlock retries", nil, nil),
		sqlErrorCountMetric: prometheus.NewDesc("hotaru_sql_errors",
			"Number of SQL errors encountered", nil, nil),
	}
}

func (collector *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.uptimeMetric
	ch <- collector.usersMetric
	ch <- collector.torrentsMetric
	ch <- collector.variantsMetric
	ch <- collector.clientsMetric
	ch <- collector.seedersMetric
	ch <- collector.leechersMetric
	ch <- collector.requestsMetric
	ch <- collector.erroredMetric
	ch <- collector.deadlockCountMetric
	ch <- collector.deadlockTimeMetric
	ch <- collector.deadlockAbortedMetric
	ch <- collector.sqlErrorCountMetric

	channelFlushTime.Describe(ch)
	channelFlushLen.Describe(ch)
	reloadTime.Describe(ch)
	purgeInactivePeersTime.Describe(ch)
	serializationTime.Describe(ch)
	accrualTime.Describe(ch)
}

func (collector *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(collector.uptimeMetric, prometheus.CounterValue,
		time.Since(startTime).Seconds())
	ch <- prometheus.MustNewConstMetric(collector.usersMetric, prometheus.GaugeValue,
		float64(usersCount.Load()))
	ch <- prometheus.MustNewConstMetric(collector.torrentsMetric, prometheus.GaugeValue,
		float64(torrentsCount.Load()))
	ch <- prometheus.MustNewConstMetric(collector.variantsMetric, prometheus.GaugeValue,
		float64(variantsCount.Load()))
	ch <- prometheus.MustNewConstMetric(collector.clientsMetric, prometheus.GaugeValue,
		float64(clientsCount.Load()))
	ch <- prometheus.MustNewConstMetric(collector.seedersMetric, prometheus.GaugeValue,
		float64(seedersCount.Load()))
	ch <- prometheus.MustNewConstMetric(collector.leechersMetric, prometheus.GaugeValue,
		float64(leechersCount.Load()))
	ch <- prometheus.MustNewConstMetric(collector.requestsMetric, prometheus.CounterValue,
		float64(requestsHandled.Load()))
	ch <- prometheus.MustNewConstMetric(collector.erroredMetric, prometheus.CounterValue,
		float64(requestsErrored.Load()))
	ch <- prometheus.MustNewConstMetric(collector.deadlockCountMetric, prometheus.CounterValue,
		float64(deadlockCount.Load()))
	ch <- prometheus.MustNewConstMetric(collector.deadlockTimeMetric, prometheus.CounterValue,
		(time.Duration(deadlockTime.Load()) * time.Nanosecond).Seconds())
	ch <- prometheus.MustNewConstMetric(collector.deadlockAbortedMetric, prometheus.CounterValue,
		float64(deadlockAborted.Load()))
	ch <- prometheus.MustNewConstMetric(collector.sqlErrorCountMetric, prometheus.CounterValue,
		float64(sqlErrorCount.Load()))

	channelFlushTime.Collect(ch)
	channelFlushLen.Collect(ch)
	reloadTime.Collect(ch)
	purgeInactivePeersTime.Collect(ch)
	serializationTime.Collect(ch)
	accrualTime.Collect(ch)
}

func UpdateUsers(count int) {
	usersCount.Store(int64(count))
}

func UpdateTorrents(count int) {
	torrentsCount.Store(int64(count))
}

func UpdateVariants(count int) {
	variantsCount.Store(int64(count))
}

func UpdateClients(count int) {
	clientsCount.Store(int64(count))
}

func UpdatePeers(seeders, leechers int) {
	seedersCount.Store(int64(seeders))
	leechersCount.Store(int64(leechers))
}

func IncrementRequestsHandled() {
	requestsHandled.Add(1)
}

func IncrementErroredRequests() {
	requestsErrored.Add(1)
}

func IncrementDeadlockCount() {
	deadlockCount.Add(1)
}

func IncrementDeadlockTime(wait time.Duration) {
	deadlockTime.Add(int64(wait))
}

func IncrementDeadlockAborted() {
	deadlockAborted.Add(1)
}

func IncrementSQLErrorCount() {
	sqlErrorCount.Add(1)
}

func UpdateChannelFlushTime(channel string, d time.Duration) {
	channelFlushTime.WithLabelValues(channel).Observe(d.Seconds())
}

func UpdateChannelFlushLen(channel string, count int) {
	channelFlushLen.WithLabelValues(channel).Observe(float64(count))
}

func UpdateReloadTime(d time.Duration) {
	reloadTime.Observe(d.Seconds())
}

func UpdatePurgeInactivePeersTime(d time.Duration) {
	purgeInactivePeersTime.Observe(d.Seconds())
}

func UpdateSerializationTime(d time.Duration) {
	serializationTime.Observe(d.Seconds())
}

func UpdateAccrualTime(d time.Duration) {
	accrualTime.Observe(d.Seconds())
}
