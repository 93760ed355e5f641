package libdb

// These interfaces are the "iface" table of function pointers from the
// original C source, translated into a Go interface per engine subject
// (session / connection / statement / result) — the SPI a driver
// package implements, analogous to how database/sql/driver exports
// Driver/Conn/Stmt/Rows for third-party drivers to implement. A second
// engine driver would implement the same four interfaces and register
// itself with Register; nothing in this file or in facade.go names
// MySQL.

type SessionEngine interface {
	Error() *Error
	Close() Code
	Open() (ConnEngine, Code)
}

type ConnEngine interface {
	Error() *Error
	Query(sql string) (ResultEngine, Code)
	Affected() uint64
	InsertID() uint64
	Begin() Code
	Commit() Code
	Rollback() Code
	Prepare(sql string) (StmtEngine, Code)
	Close() Code
}

type StmtEngine interface {
	Reset() Code
	BindNull(index int) Code
	BindBool(index int, value bool) Code
	BindByte(index int, value byte) Code
	BindShort(index int, value int16) Code
	BindInt(index int, value int32) Code
	BindInt64(index int, value int64) Code
	BindFloat(index int, value float32) Code
	BindDouble(index int, value float64) Code
	BindTime(index int, value Time) Code
	BindDate(index int, value Date) Code
	BindDateTime(index int, value Date) Code
	BindTimestamp(index int, value Date) Code
	BindString(index int, value string) Code
	BindBinary(index int, value []byte) Code
	BindBlob(index int, value []byte) Code
	Exec() (ResultEngine, Code)
	Close() Code
}

type ResultEngine interface {
	FetchColumns() ([]Column, Code)
	FetchRows(max int) ([][]Value, Code)
	Close() Code
}

// Constructor builds a SessionEngine from an EngineConfig whose Type
// field matches the EngineType it was registered under. It returns
// CONNECT_FAILED / NOT_SUPPORTED / FAILED the way db_session_start does
// when the eagerly-opened first connection (see Pool) fails.
type Constructor func(cfg EngineConfig) (SessionEngine, *Error, Code)

var engineRegistry = map[EngineType]Constructor{}

// Register associates an EngineType with a constructor. Engine driver
// packages call this from an init function, the way database/sql
// drivers call sql.Register — the facade never imports an engine
// package directly, so a consumer must blank-import the engine it wants
// (e.g. `import _ "github.com/xnko/libdb/mysql"`).
func Register(t EngineType, ctor Constructor) {
	engineRegistry[t] = ctor
}
