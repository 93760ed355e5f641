package libdb

// Session is one logical database: credentials, timeouts, and a Pool of
// idle Connections. Create one with Start; destroy it with Close, which
// drains the Pool first.
type Session struct {
	engine SessionEngine
}

// Start constructs a Session for cfg.Type. Per Open Question resolution
// (see DESIGN.md): on any error, Start returns the Code and a nil
// Session — NOT_SUPPORTED is surfaced before anything is allocated, and
// a caller can never be handed a Session that isn't actually usable.
//
// On success the engine has already eagerly opened one Connection and
// returned it to the Pool (see mysql.Pool), so CONNECT_FAILED /
// NOT_SUPPORTED / FAILED surface here rather than at the first query.
func Start(cfg EngineConfig) (*Session, Code) {
	ctor, ok := engineRegistry[cfg.Type]
	if !ok {
		return nil, NOT_SUPPORTED
	}
	engine, _, code := ctor(cfg)
	if code != OK {
		return nil, code
	}
	return &Session{engine: engine}, OK
}

// Error returns the most recent error recorded on the session before a
// connection exists (a failed login; an unsupported server version is
// cached by the engine but records no error).
func (s *Session) Error() *Error {
	return s.engine.Error()
}

// Close destroys every idle connection in the Pool and releases the
// session. Connections it already handed out through Open are not
// invalidated: calls on them keep working until their own Close.
func (s *Session) Close() Code {
	return s.engine.Close()
}

// Open acquires a Connection: an idle one from the Pool if available,
// otherwise a freshly handshaken one.
func (s *Session) Open() (*Connection, Code) {
	ce, code := s.engine.Open()
	if code != OK {
		return nil, code
	}
	return &Connection{engine: ce}, OK
}

// Connection is exclusively owned by one caller at a time, optionally
// parked in its Session's Pool between uses.
type Connection struct {
	engine ConnEngine
}

func (c *Connection) Error() *Error {
	return c.engine.Error()
}

// Query runs sql using the text protocol. A nil Result with OK means
// the statement produced no result-set (e.g. an OK packet from an
// INSERT/UPDATE); call Affected/InsertID for its outcome.
func (c *Connection) Query(sql string) (*Result, Code) {
	re, code := c.engine.Query(sql)
	if code != OK || re == nil {
		return nil, code
	}
	return &Result{engine: re}, OK
}

// Affected returns affected_rows from the most recent OK packet. No I/O.
func (c *Connection) Affected() uint64 { return c.engine.Affected() }

// InsertID returns last_insert_id from the most recent OK packet. No I/O.
func (c *Connection) InsertID() uint64 { return c.engine.InsertID() }

// Begin, Commit, and Rollback dispatch through Query with
// "START TRANSACTION" / "COMMIT" / "ROLLBACK", so that a hook wrapping
// the engine's Query observes every transaction verb too.
func (c *Connection) Begin() Code    { _, code := c.Query("START TRANSACTION"); return code }
func (c *Connection) Commit() Code   { _, code := c.Query("COMMIT"); return code }
func (c *Connection) Rollback() Code { _, code := c.Query("ROLLBACK"); return code }

// Prepare compiles sql into a Statement bound to this Connection.
func (c *Connection) Prepare(sql string) (*Statement, Code) {
	se, code := c.engine.Prepare(sql)
	if code != OK {
		return nil, code
	}
	return &Statement{engine: se}, OK
}

// Close drains any pending result-sets and returns the connection to
// its Session's Pool, unless it is marked undefined, in which case it
// is destroyed instead.
func (c *Connection) Close() Code { return c.engine.Close() }

// Statement is a prepared statement bound to its Connection.
type Statement struct {
	engine StmtEngine
}

func (st *Statement) Reset() Code { return st.engine.Reset() }

func (st *Statement) BindNull(index int) Code               { return st.engine.BindNull(index) }
func (st *Statement) BindBool(index int, v bool) Code        { return st.engine.BindBool(index, v) }
func (st *Statement) BindByte(index int, v byte) Code         { return st.engine.BindByte(index, v) }
func (st *Statement) BindShort(index int, v int16) Code       { return st.engine.BindShort(index, v) }
func (st *Statement) BindInt(index int, v int32) Code         { return st.engine.BindInt(index, v) }
func (st *Statement) BindInt64(index int, v int64) Code       { return st.engine.BindInt64(index, v) }
func (st *Statement) BindFloat(index int, v float32) Code     { return st.engine.BindFloat(index, v) }
func (st *Statement) BindDouble(index int, v float64) Code    { return st.engine.BindDouble(index, v) }
func (st *Statement) BindTime(index int, v Time) Code         { return st.engine.BindTime(index, v) }
func (st *Statement) BindDate(index int, v Date) Code         { return st.engine.BindDate(index, v) }
func (st *Statement) BindDateTime(index int, v Date) Code     { return st.engine.BindDateTime(index, v) }
func (st *Statement) BindTimestamp(index int, v Date) Code    { return st.engine.BindTimestamp(index, v) }
func (st *Statement) BindString(index int, v string) Code     { return st.engine.BindString(index, v) }
func (st *Statement) BindBinary(index int, v []byte) Code     { return st.engine.BindBinary(index, v) }
func (st *Statement) BindBlob(index int, v []byte) Code       { return st.engine.BindBlob(index, v) }

// Exec runs the statement using the binary protocol.
func (st *Statement) Exec() (*Result, Code) {
	re, code := st.engine.Exec()
	if code != OK || re == nil {
		return nil, code
	}
	return &Result{engine: re}, OK
}

// Close releases server-side and local statement state.
func (st *Statement) Close() Code { return st.engine.Close() }

// Result models one query, which may yield zero or more result-sets.
// Iterate result-sets with FetchColumns, then rows within a result-set
// with FetchRows; Close drains whatever remains so the Connection stays
// stream-synchronized.
type Result struct {
	engine ResultEngine
}

func (r *Result) FetchColumns() ([]Column, Code) { return r.engine.FetchColumns() }

// FetchRows returns up to max rows of the current result-set; max == 0
// drains the entire result-set in one call.
func (r *Result) FetchRows(max int) ([][]Value, Code) { return r.engine.FetchRows(max) }

func (r *Result) Close() Code { return r.engine.Close() }
