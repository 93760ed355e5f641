package mysql

import (
	"testing"

	"github.com/xnko/libdb"
)

func TestNewConfigDefaultsCollation(t *testing.T) {
	cfg := NewConfig(Config{Addr: "127.0.0.1:3306", User: "root"}, 0, 0, 0)
	mc, ok := cfg.Engine.(Config)
	if !ok {
		t.Fatal("Engine field is not a mysql.Config")
	}
	if mc.Collation != defaultCollation {
		t.Errorf("Collation = %q, want %q", mc.Collation, defaultCollation)
	}
	if cfg.Type != libdb.EngineMySQL {
		t.Errorf("Type = %v, want EngineMySQL", cfg.Type)
	}
}

func TestNewConfigPreservesExplicitCollation(t *testing.T) {
	cfg := NewConfig(Config{Collation: "latin1_swedish_ci"}, 0, 0, 0)
	mc := cfg.Engine.(Config)
	if mc.Collation != "latin1_swedish_ci" {
		t.Errorf("Collation = %q", mc.Collation)
	}
}
