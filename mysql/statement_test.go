package mysql

import (
	"encoding/binary"
	"testing"

	"github.com/xnko/libdb"
	"github.com/xnko/libdb/internal/testutil"
)

func newTestStmt(dbTypes ...libdb.Type) *mysqlStmt {
	meta := make([]paramMeta, len(dbTypes))
	for i, t := range dbTypes {
		meta[i] = paramMeta{dbType: t}
	}
	params := make([]stmtParam, len(dbTypes))
	for i := range params {
		params[i].isNull = true
	}
	return &mysqlStmt{numParams: len(dbTypes), paramMeta: meta, params: params}
}

func TestBindScalarIdempotent(t *testing.T) {
	s := newTestStmt(libdb.TypeInt)

	if code := s.BindInt(0, 7); code != libdb.OK {
		t.Fatalf("first bind: %v", code)
	}
	if !s.paramsChanged {
		t.Fatal("expected paramsChanged after first bind")
	}
	s.paramsChanged = false

	if code := s.BindInt(0, 7); code != libdb.OK {
		t.Fatalf("repeat bind: %v", code)
	}
	if s.paramsChanged {
		t.Error("repeating the same value should not mark paramsChanged")
	}

	if code := s.BindInt(0, 8); code != libdb.OK {
		t.Fatalf("changed bind: %v", code)
	}
	if !s.paramsChanged {
		t.Error("a different value must mark paramsChanged")
	}
}

func TestBindNullThenBindNullIsNoop(t *testing.T) {
	s := newTestStmt(libdb.TypeInt)
	s.BindInt(0, 1)
	s.paramsChanged = false

	s.BindNull(0)
	s.paramsChanged = false
	if code := s.BindNull(0); code != libdb.OK {
		t.Fatalf("code = %v", code)
	}
	if s.paramsChanged {
		t.Error("repeating BindNull should not mark paramsChanged")
	}
}

func TestBindOutOfIndex(t *testing.T) {
	s := newTestStmt(libdb.TypeInt, libdb.TypeInt)
	if code := s.BindInt(2, 1); code != libdb.OUT_OF_INDEX {
		t.Errorf("code = %v, want OUT_OF_INDEX", code)
	}
	if code := s.BindInt(-1, 1); code != libdb.OUT_OF_INDEX {
		t.Errorf("code = %v, want OUT_OF_INDEX", code)
	}
}

func TestValuesEqualDifferentTypes(t *testing.T) {
	a := libdb.Value{Type: libdb.TypeInt, Int: 5}
	b := libdb.Value{Type: libdb.TypeShort, Short: 5}
	if valuesEqual(a, b) {
		t.Error("values of different Type should never compare equal")
	}
}

// TestBindIntNarrowIntegerOverflow covers the mandatory scenario from
// spec.md's testable-properties list: a TINYINT parameter,
// bind_int(0, 0x100), expects TOO_LONG with the previous value
// preserved.
func TestBindIntNarrowIntegerOverflow(t *testing.T) {
	s := newTestStmt(libdb.TypeByte)
	if code := s.BindInt(0, 5); code != libdb.OK {
		t.Fatalf("seed bind: %v", code)
	}
	s.paramsChanged = false

	if code := s.BindInt(0, 0x100); code != libdb.TOO_LONG {
		t.Errorf("code = %v, want TOO_LONG", code)
	}
	if s.paramsChanged {
		t.Error("a rejected bind must not mark paramsChanged")
	}
	if s.params[0].value.Byte != 5 {
		t.Errorf("previous value was not preserved: got %d, want 5", s.params[0].value.Byte)
	}
}

func TestBindShortIntoByteParamWithinRangeSucceeds(t *testing.T) {
	s := newTestStmt(libdb.TypeByte)
	if code := s.BindShort(0, 200); code != libdb.OK {
		t.Fatalf("code = %v", code)
	}
	if s.params[0].value.Byte != 200 {
		t.Errorf("got %d, want 200", s.params[0].value.Byte)
	}
}

func TestBindInt64IntoIntParamOverflow(t *testing.T) {
	s := newTestStmt(libdb.TypeInt)
	if code := s.BindInt64(0, 1<<33); code != libdb.TOO_LONG {
		t.Errorf("code = %v, want TOO_LONG", code)
	}
	if code := s.BindInt64(0, 42); code != libdb.OK {
		t.Errorf("in-range bind failed: %v", code)
	}
}

func TestBindIntMismatchOnStringParam(t *testing.T) {
	s := newTestStmt(libdb.TypeString)
	if code := s.BindInt(0, 1); code != libdb.MISMATCH {
		t.Errorf("code = %v, want MISMATCH", code)
	}
}

func TestBindFloatMismatchOnIntParam(t *testing.T) {
	s := newTestStmt(libdb.TypeInt)
	if code := s.BindFloat(0, 1.5); code != libdb.MISMATCH {
		t.Errorf("code = %v, want MISMATCH", code)
	}
}

func TestBindFloatIntoDoubleParamWidens(t *testing.T) {
	s := newTestStmt(libdb.TypeDouble)
	if code := s.BindFloat(0, 1.5); code != libdb.OK {
		t.Fatalf("code = %v", code)
	}
	if s.params[0].value.Type != libdb.TypeDouble {
		t.Errorf("stored Type = %v, want TypeDouble", s.params[0].value.Type)
	}
}

func TestBindTimeMismatchOnDateParam(t *testing.T) {
	s := newTestStmt(libdb.TypeDate)
	if code := s.BindTime(0, libdb.Time{}); code != libdb.MISMATCH {
		t.Errorf("code = %v, want MISMATCH", code)
	}
}

func TestBindStringAndBinaryInterchangeableOnEitherParam(t *testing.T) {
	s := newTestStmt(libdb.TypeString, libdb.TypeBinary)
	if code := s.BindBinary(0, []byte("hi")); code != libdb.OK {
		t.Errorf("BindBinary into string param: %v", code)
	}
	if code := s.BindString(1, "hi"); code != libdb.OK {
		t.Errorf("BindString into binary param: %v", code)
	}
}

func TestBindNullThenBindIntMismatchLeavesNullUntouched(t *testing.T) {
	s := newTestStmt(libdb.TypeString)
	s.BindNull(0)
	if code := s.BindInt(0, 1); code != libdb.MISMATCH {
		t.Fatalf("code = %v, want MISMATCH", code)
	}
	if !s.params[0].isNull {
		t.Error("a MISMATCH bind must not disturb the existing NULL value")
	}
}

// TestPrepareRetainsParamMetadata checks that Prepare decodes each
// parameter's Column-Definition packet rather than discarding it,
// keeping both the detected libdb.Type and the server's raw MYSQL_TYPE
// per slot (spec §3's parameter column metadata vector).
func TestPrepareRetainsParamMetadata(t *testing.T) {
	okHeader := make([]byte, 12)
	okHeader[0] = 0x00
	binary.LittleEndian.PutUint32(okHeader[1:5], 7)  // statement id
	binary.LittleEndian.PutUint16(okHeader[5:7], 0)  // num_columns
	binary.LittleEndian.PutUint16(okHeader[7:9], 1)  // num_params

	var stream []byte
	stream = append(stream, framePacket(1, okHeader)...)
	stream = append(stream, framePacket(2, buildColumnDefPacket("", fieldTypeTiny))...)
	stream = append(stream, framePacket(3, []byte{iEOF, 0, 0, 0, 0})...)

	fc := testutil.NewFakeConn(stream)
	c := &conn{netConn: fc, buf: newReadBuffer(fc)}

	se, code := c.Prepare("insert into t values (?)")
	if code != libdb.OK {
		t.Fatalf("Prepare code = %v", code)
	}
	st := se.(*mysqlStmt)
	if st.statementID != 7 {
		t.Errorf("statementID = %d, want 7", st.statementID)
	}
	if len(st.paramMeta) != 1 {
		t.Fatalf("paramMeta len = %d, want 1", len(st.paramMeta))
	}
	if st.paramMeta[0].dbType != libdb.TypeByte {
		t.Errorf("paramMeta[0].dbType = %v, want TypeByte", st.paramMeta[0].dbType)
	}
	if st.paramMeta[0].mysqlType != fieldTypeTiny {
		t.Errorf("paramMeta[0].mysqlType = %v, want fieldTypeTiny", st.paramMeta[0].mysqlType)
	}
	if !st.params[0].isNull {
		t.Error("a freshly prepared parameter must start NULL")
	}
}

func TestAppendBinaryDateZeroValue(t *testing.T) {
	buf := appendBinaryDate(nil, libdb.Date{})
	if len(buf) != 1 || buf[0] != 0 {
		t.Errorf("zero Date should encode as a single 0 length byte, got %v", buf)
	}
}

func TestAppendBinaryTimeRoundTripLength(t *testing.T) {
	tm := libdb.Time{Negative: true, Days: 2, Hours: 3, Minutes: 4, Seconds: 5}
	buf := appendBinaryTime(nil, tm)
	if len(buf) != 9 || buf[0] != 8 {
		t.Fatalf("got length %d, header %d; want 9,8", len(buf), buf[0])
	}
	got, n, err := decodeBinaryTime(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(buf) {
		t.Errorf("consumed %d, want %d", n, len(buf))
	}
	if got != tm {
		t.Errorf("got %+v, want %+v", got, tm)
	}
}
