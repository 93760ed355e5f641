package mysql

import (
	"net"
	"time"

	"github.com/xnko/libdb"
)

// conn is the MySQL engine's implementation of the connection half of
// the facade (§4.4). It owns one TCP stream, is exclusively held by one
// caller at a time, and is optionally parked in its session's Pool.
//
// Once undefined is set the connection is permanently poisoned: every
// subsequent operation returns UNAVAILABLE (or UNKNOWN where a protocol
// violation was detected instead of an I/O failure) and Close routes to
// destroy rather than back into the Pool.
type conn struct {
	session *sessionEngineImpl
	netConn net.Conn
	buf     *readBuffer

	sequence byte
	timeout  time.Duration

	maxAllowedPacket int

	undefined bool
	lastError *libdb.Error

	affectedRows uint64
	insertID     uint64
	status       statusFlag

	result *mysqlResult // at most one live Result per Connection
}

func (c *conn) Error() *libdb.Error { return c.lastError }

func (c *conn) setError(err *libdb.Error) { c.lastError = err }

// poison marks the connection undefined, the sticky flag described in
// §4.4 / §9 that replaces exception propagation in the original source.
func (c *conn) poison() {
	c.undefined = true
}

func (c *conn) isUndefined() bool { return c.undefined }

// destroy best-effort sends COM_QUIT, ignoring failures, then closes the
// TCP stream.
func (c *conn) destroy() {
	if !c.undefined {
		c.sequence = 0
		_ = c.writeCommandPacket(comQuit)
	}
	_ = c.netConn.Close()
}

// drainPending discards any still-open Result so a new command can be
// issued, matching db_mysql_eat_result's use at the top of query/
// prepare/exec.
func (c *conn) drainPending() libdb.Code {
	if c.result == nil {
		return libdb.OK
	}
	r := c.result
	c.result = nil
	return r.Close()
}

func (c *conn) Query(sql string) (libdb.ResultEngine, libdb.Code) {
	if c.undefined {
		return nil, libdb.UNAVAILABLE
	}
	if code := c.drainPending(); code != libdb.OK && code != libdb.NO_DATA {
		return nil, code
	}
	c.sequence = 0
	if err := c.writeCommandPacketStr(comQuery, sql); err != nil {
		return nil, c.ioFailure(err)
	}
	rs, code := c.readFirstReply(0)
	if rs == nil {
		return nil, code
	}
	c.result = rs
	return rs, code
}

func (c *conn) Affected() uint64 { return c.affectedRows }
func (c *conn) InsertID() uint64 { return c.insertID }

// Begin, Commit, and Rollback send their statement through this
// connection's own Query. The facade's Connection.Begin/Commit/Rollback
// call the engine's Query directly instead, which is what lets a hook
// wrapping Query observe transaction verbs.
func (c *conn) Begin() libdb.Code {
	_, code := c.Query("START TRANSACTION")
	return code
}

func (c *conn) Commit() libdb.Code {
	_, code := c.Query("COMMIT")
	return code
}

func (c *conn) Rollback() libdb.Code {
	_, code := c.Query("ROLLBACK")
	return code
}

// Close drains any pending result-sets and returns the connection to
// the Pool unless it is undefined, in which case it is destroyed.
func (c *conn) Close() libdb.Code {
	if c.undefined {
		c.destroy()
		return libdb.OK
	}
	if code := c.drainPending(); code != libdb.OK && code != libdb.NO_DATA {
		c.destroy()
		return libdb.OK
	}
	c.lastError = nil
	if c.session != nil && c.session.pool.Release(c) {
		return libdb.OK
	}
	c.destroy()
	return libdb.OK
}

// ioFailure marks the connection undefined and translates an I/O error
// into the UNAVAILABLE code (§4.1, §7).
func (c *conn) ioFailure(err error) libdb.Code {
	c.poison()
	errLog.Print(err)
	return libdb.UNAVAILABLE
}
