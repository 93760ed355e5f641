package libdb

import "time"

// EngineType selects which engine driver Start constructs.
type EngineType int

const (
	// EngineMySQL is the only engine with a real driver in this module;
	// every other value is accepted by the signature but rejected by
	// Start with NOT_SUPPORTED.
	EngineMySQL EngineType = 1
	EngineDB2   EngineType = 2
	EngineFirebird EngineType = 3
	EngineSQLite3 EngineType = 4
	EnginePostgreSQL EngineType = 5
	EngineOracle EngineType = 6
	EngineTDS    EngineType = 7
)

// EngineConfig is the engine-neutral payload passed to Start. Engine is
// typically supplied through a constructor on the engine's own package
// (e.g. mysql.NewConfig) that returns an EngineConfig pre-populated with
// Type and MySQL; most callers never touch EngineConfig fields directly.
type EngineConfig struct {
	Type EngineType

	// ConnectTimeout bounds TCP connection establishment only.
	ConnectTimeout time.Duration
	// Timeout bounds every individual read or write after the connection
	// is established.
	Timeout time.Duration
	// PoolSize is the fixed capacity of the idle-connection pool. Zero
	// defaults to 1 (see Pool).
	PoolSize int

	// Engine is the driver-specific payload, e.g. a mysql.Config value. Start
	// type-asserts it according to Type.
	Engine any
}
