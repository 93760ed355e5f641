package mysql

import (
	"errors"
	"testing"

	"github.com/xnko/libdb"
	"github.com/xnko/libdb/internal/testutil"
)

func TestQueryOnUndefinedConnection(t *testing.T) {
	c := &conn{undefined: true}
	if _, code := c.Query("select 1"); code != libdb.UNAVAILABLE {
		t.Errorf("code = %v, want UNAVAILABLE", code)
	}
}

func TestIoFailurePoisonsConnection(t *testing.T) {
	c := &conn{}
	code := c.ioFailure(errors.New("broken pipe"))
	if code != libdb.UNAVAILABLE {
		t.Errorf("code = %v, want UNAVAILABLE", code)
	}
	if !c.isUndefined() {
		t.Error("ioFailure should poison the connection")
	}
}

func TestQueryOKPacketReturnsNilResult(t *testing.T) {
	okPacket := []byte{iOK, 2, 0, 0, 0} // affected_rows=2, insert_id=0, status=0
	stream := framePacket(1, okPacket)

	fc := testutil.NewFakeConn(stream)
	c := &conn{netConn: fc, buf: newReadBuffer(fc)}

	rs, code := c.Query("update t set x = 1")
	if code != libdb.OK {
		t.Fatalf("code = %v", code)
	}
	if rs != nil {
		t.Error("an OK-packet reply must surface as a nil Result")
	}
	if c.affectedRows != 2 {
		t.Errorf("affectedRows = %d, want 2", c.affectedRows)
	}
}

func TestCloseDestroysUndefinedConnection(t *testing.T) {
	fc := testutil.NewFakeConn(nil)
	c := &conn{netConn: fc, buf: newReadBuffer(fc), undefined: true}
	if code := c.Close(); code != libdb.OK {
		t.Errorf("code = %v, want OK", code)
	}
	// destroy() on an undefined connection must not attempt COM_QUIT.
	if len(fc.Writes) != 0 {
		t.Errorf("expected no writes, got %d", len(fc.Writes))
	}
}

func TestCloseReleasesHealthyConnectionToPool(t *testing.T) {
	fc := testutil.NewFakeConn(nil)
	s := &sessionEngineImpl{pool: newPool(1)}
	c := &conn{netConn: fc, buf: newReadBuffer(fc), session: s}

	if code := c.Close(); code != libdb.OK {
		t.Errorf("code = %v, want OK", code)
	}
	if s.pool.Acquire() != c {
		t.Error("Close should have released the connection back to the pool")
	}
}
