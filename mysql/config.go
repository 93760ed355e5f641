package mysql

import (
	"time"

	"github.com/xnko/libdb"
)

// Config is the MySQL-specific payload of libdb.EngineConfig, carried as
// its Engine field. It corresponds to the mysql branch of the union in
// db_engine_t.
type Config struct {
	Addr      string // host:port
	User      string
	Passwd    string
	DBName    string
	Flags     int
	Collation string
}

// NewConfig builds a ready-to-use libdb.EngineConfig for the MySQL
// engine, defaulting Collation the way the teacher's mysql.Config
// defaults its own Collation field.
func NewConfig(cfg Config, connectTimeout, timeout time.Duration, poolSize int) libdb.EngineConfig {
	if cfg.Collation == "" {
		cfg.Collation = defaultCollation
	}
	return libdb.EngineConfig{
		Type:           libdb.EngineMySQL,
		ConnectTimeout: connectTimeout,
		Timeout:        timeout,
		PoolSize:       poolSize,
		Engine:         cfg,
	}
}
