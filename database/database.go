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
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"hotaru/collector"
	"hotaru/config"
	cdb "hotaru/database/types"
	"hotaru/util"

	"github.com/go-sql-driver/mysql"
)

type Database struct {
	snatchChannel          chan *bytes.Buffer
	transferHistoryChannel chan *bytes.Buffer
	transferIpsChannel     chan *bytes.Buffer
	torrentChannel         chan *bytes.Buffer
	userChannel            chan *bytes.Buffer
	pointsChannel          chan *cdb.LedgerEntry

	loadUsersStmt       *sql.Stmt
	loadTorrentsStmt    *sql.Stmt
	loadVariantsStmt    *sql.Stmt
	loadClientsStmt     *sql.Stmt
	loadFreeleechStmt   *sql.Stmt
	cleanStalePeersStmt *sql.Stmt
	unPruneTorrentStmt  *sql.Stmt

	selectPointsStmt *sql.Stmt
	upsertPointsStmt *sql.Stmt
	insertLedgerStmt *sql.Stmt

	// Reloadable caches. Stored as pointers so readers get a coherent
	// snapshot without holding any lock across the request.
	Users    atomic.Pointer[map[string]*cdb.User]        // by passkey
	UsersID  atomic.Pointer[map[uint32]*cdb.User]        // by user id
	Torrents atomic.Pointer[map[cdb.TorrentHash]*cdb.Torrent] // by canonical hash
	TorrentsID atomic.Pointer[map[uint32]*cdb.Torrent]   // by torrent id
	Variants atomic.Pointer[map[cdb.TorrentHash]*cdb.Variant] // by variant hash
	Clients  atomic.Pointer[map[uint16]string]

	// Seeding seconds accumulated between accrual sweeps, keyed per
	// (user, torrent). Drained atomically by the sweep.
	seedtimeMutex sync.Mutex
	seedtime      map[cdb.UserTorrentPair]int64

	conn      *sql.DB
	connMutex sync.Mutex

	bufferPool *util.BufferPool

	transferHistoryLock sync.Mutex

	terminate atomic.Bool
	waitGroup sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// GlobalFreeleech is toggled from the mod_core table on reload.
var GlobalFreeleech atomic.Bool

var (
	deadlockWaitTime   int
	maxDeadlockRetries int
)

var defaultDsn = map[string]string{
	"username": "hotaru",
	"password": "",
	"proto":    "tcp",
	"addr":     "127.0.0.1:3306",
	"database": "hotaru",
}

func (db *Database) Init() {
	db.terminate.Store(false)
	db.ctx, db.cancel = context.WithCancel(context.Background())

	slog.Info("opening database connection")

	db.conn = Open()

	// Used for recording updates, so the max required size should be < 128 bytes. See queue.go for details
	db.bufferPool = util.NewBufferPool(128)

	var err error

	db.loadUsersStmt, err = db.conn.Prepare(
		"SELECT ID, torrent_pass, DownMultiplier, UpMultiplier, DisableDownload, TrackerHide " +
			"FROM users_main WHERE Enabled = '1'")
	if err != nil {
		panic(err)
	}

	db.loadTorrentsStmt, err = db.conn.Prepare(
		"SELECT ID, info_hash, Size, DownMultiplier, UpMultiplier, Snatched, Status FROM torrents")
	if err != nil {
		panic(err)
	}

	db.loadVariantsStmt, err = db.conn.Prepare(
		"SELECT v.hash, v.TorrentID, v.UserID, v.issued_pass, u.torrent_pass, t.info_hash " +
			"FROM torrent_variants AS v " +
			"JOIN users_main AS u ON u.ID = v.UserID " +
			"JOIN torrents AS t ON t.ID = v.TorrentID " +
			"WHERE u.Enabled = '1'")
	if err != nil {
		panic(err)
	}

	db.loadClientsStmt, err = db.conn.Prepare(
		"SELECT id, peer_id FROM approved_clients WHERE archived = 0")
	if err != nil {
		panic(err)
	}

	db.loadFreeleechStmt, err = db.conn.Prepare(
		"SELECT mod_setting FROM mod_core WHERE mod_option = 'global_freeleech'")
	if err != nil {
		panic(err)
	}

	db.cleanStalePeersStmt, err = db.conn.Prepare(
		"UPDATE transfer_history SET active = 0 WHERE last_announce < ? AND active = 1")
	if err != nil {
		panic(err)
	}

	db.unPruneTorrentStmt, err = db.conn.Prepare(
		"UPDATE torrents SET Status = 0 WHERE ID = ?")
	if err != nil {
		panic(err)
	}

	db.selectPointsStmt, err = db.conn.Prepare(
		"SELECT Points FROM user_points WHERE UserID = ? FOR UPDATE")
	if err != nil {
		panic(err)
	}

	db.upsertPointsStmt, err = db.conn.Prepare(
		"INSERT INTO user_points (UserID, Points) VALUES (?, ?) ON DUPLICATE KEY UPDATE Points = VALUE(Points)")
	if err != nil {
		panic(err)
	}

	db.insertLedgerStmt, err = db.conn.Prepare(
		"INSERT INTO points_ledger (UserID, TorrentID, Reason, Delta, Balance, UpDelta, DownDelta, SeedTime, Note) " +
			"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		panic(err)
	}

	dbUsers := make(map[string]*cdb.User)
	db.Users.Store(&dbUsers)

	dbUsersID := make(map[uint32]*cdb.User)
	db.UsersID.Store(&dbUsersID)

	dbTorrents := make(map[cdb.TorrentHash]*cdb.Torrent)
	db.Torrents.Store(&dbTorrents)

	dbTorrentsID := make(map[uint32]*cdb.Torrent)
	db.TorrentsID.Store(&dbTorrentsID)

	dbVariants := make(map[cdb.TorrentHash]*cdb.Variant)
	db.Variants.Store(&dbVariants)

	dbClients := make(map[uint16]string)
	db.Clients.Store(&dbClients)

	db.seedtime = make(map[cdb.UserTorrentPair]int64)

	db.deserialize()

	// Run initial load to populate data in memory before we start accepting connections
	slog.Info("populating initial data into memory, please wait...")

	db.loadUsers()
	db.loadTorrents()
	db.loadVariants()
	db.loadConfig()
	db.loadClients()

	slog.Info("starting background goroutines")
	db.startReloading()
	db.startSerializing()
	db.startFlushing()
	db.startAccruing()
}

func (db *Database) Terminate() {
	slog.Info("terminating database connection")

	db.terminate.Store(true)
	db.cancel()

	slog.Info("closing all flush channels")
	db.closeFlushChannels()

	go func() {
		time.Sleep(10 * time.Second)
		slog.Info("waiting for database flushing to finish, this can take a few minutes")
	}()

	db.waitGroup.Wait()

	db.connMutex.Lock()
	_ = db.conn.Close()
	db.connMutex.Unlock()

	db.serialize()
}

func Open() *sql.DB {
	databaseConfig := config.Section("database")
	deadlockWaitTime, _ = databaseConfig.GetInt("deadlock_pause", 1)
	maxDeadlockRetries, _ = databaseConfig.GetInt("deadlock_retries", 5)

	// DSN Format: username:password@protocol(address)/dbname?param=value
	// First try to load the DSN from environment. Useful for tests.
	databaseDsn := os.Getenv("DB_DSN")
	if databaseDsn == "" {
		dbUsername, _ := databaseConfig.Get("username", defaultDsn["username"])
		dbPassword, _ := databaseConfig.Get("password", defaultDsn["password"])
		dbProto, _ := databaseConfig.Get("proto", defaultDsn["proto"])
		dbAddr, _ := databaseConfig.Get("addr", defaultDsn["addr"])
		dbDatabase, _ := databaseConfig.Get("database", defaultDsn["database"])
		databaseDsn = fmt.Sprintf("%s:%s@%s(%s)/%s",
			dbUsername,
			dbPassword,
			dbProto,
			dbAddr,
			dbDatabase,
		)
	}

	conn, err := sql.Open("mysql", databaseDsn)
	if err != nil {
		slog.Error("couldn't connect to database", "err", err)
		os.Exit(1)
	}

	if err = conn.Ping(); err != nil {
		slog.Error("couldn't ping database", "err", err)
		os.Exit(1)
	}

	return conn
}

// UnPruneTorrent reactivates a pruned torrent. Called when a seeder comes
// back for it; the in-memory status flip happens at the call site.
func (db *Database) UnPruneTorrent(torrent *cdb.Torrent) {
	db.execute(db.unPruneTorrentStmt, torrent.ID.Load())
}

func (db *Database) query(stmt *sql.Stmt, args ...interface{}) *sql.Rows { //nolint:unparam
	rows, _ := perform(func() (interface{}, error) {
		return stmt.Query(args...)
	}).(*sql.Rows)

	return rows
}

func (db *Database) execute(stmt *sql.Stmt, args ...interface{}) sql.Result {
	result, _ := perform(func() (interface{}, error) {
		return stmt.Exec(args...)
	}).(sql.Result)

	return result
}

func (db *Database) exec(query *bytes.Buffer, args ...interface{}) sql.Result { //nolint:unparam
	result, _ := perform(func() (interface{}, error) {
		return db.conn.Exec(query.String(), args...)
	}).(sql.Result)

	return result
}

func isDeadlockError(err error) bool {
	if merr, isMysqlError := err.(*mysql.MySQLError); isMysqlError {
		return merr.Number == 1213 || merr.Number == 1205
	}

	return false
}

func perform(exec func() (interface{}, error)) (result interface{}) {
	var (
		err   error
		tries int
		wait  time.Duration
	)

	for tries = 1; tries <= maxDeadlockRetries; tries++ {
		result, err = exec()
		if err != nil {
			if merr, isMysqlError := err.(*mysql.MySQLError); isMysqlError {
				if merr.Number == 1213 || merr.Number == 1205 {
					wait = time.Duration(deadlockWaitTime*tries) * time.Second
					slog.Warn("deadlock found", "wait", wait, "try", tries, "max", maxDeadlockRetries)

					if tries == 1 {
						collector.IncrementDeadlockCount()
					}

					collector.IncrementDeadlockTime(wait)
					time.Sleep(wait)

					continue
				}

				slog.Error("sql error", "errno", merr.Number, "err", merr.Message)
				collector.IncrementSQLErrorCount()
			} else {
				slog.Error("error executing sql", "err", err)
				panic(err)
			}
		}

		return
	}

	slog.Error("deadlocked too many times, giving up", "tries", tries)
	collector.IncrementDeadlockAborted()

	return
}
