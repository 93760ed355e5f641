package mysql

import (
	"testing"

	"github.com/xnko/libdb"
	"github.com/xnko/libdb/internal/testutil"
)

func TestDecodeTextRowNullSentinel(t *testing.T) {
	cols := []mysqlColumnMeta{
		{fieldType: fieldTypeVarString},
		{fieldType: fieldTypeLong},
	}
	data := []byte{3, 'a', 'b', 'c', lenencNullSentinel}

	row, err := decodeTextRow(data, cols)
	if err != nil {
		t.Fatal(err)
	}
	if row[0].String != "abc\x00" {
		t.Errorf("row[0].String = %q", row[0].String)
	}
	if !row[1].IsNull {
		t.Error("row[1] should be NULL")
	}
}

// TestDecodeBinaryRowNullBitmapOffset checks the binary-protocol null
// bitmap's 2-bit offset (bit index = column index + 2), resolving the
// ambiguity between the MySQL protocol's documented offset and a
// no-offset reading some client code mistakenly uses.
func TestDecodeBinaryRowNullBitmapOffset(t *testing.T) {
	cols := []mysqlColumnMeta{
		{fieldType: fieldTypeLong},  // column 0: NULL
		{fieldType: fieldTypeShort}, // column 1: 7
		{fieldType: fieldTypeTiny},  // column 2: 9
	}
	// bit for column 0 is at offset 0+2=2 -> 0x04 in the single bitmap byte.
	data := []byte{0x00, 0x04, 0x07, 0x00, 0x09}

	row, err := decodeBinaryRow(data, cols)
	if err != nil {
		t.Fatal(err)
	}
	if !row[0].IsNull {
		t.Error("row[0] should be NULL")
	}
	if row[1].Short != 7 {
		t.Errorf("row[1].Short = %d, want 7", row[1].Short)
	}
	if row[2].Byte != 9 {
		t.Errorf("row[2].Byte = %d, want 9", row[2].Byte)
	}
}

func encodeLenencStr(s string) []byte {
	return append([]byte{byte(len(s))}, s...)
}

func buildColumnDefPacket(name string, ft fieldType) []byte {
	var b []byte
	b = append(b, encodeLenencStr("")...)     // catalog
	b = append(b, encodeLenencStr("")...)     // schema
	b = append(b, encodeLenencStr("")...)     // table
	b = append(b, encodeLenencStr("")...)     // org_table
	b = append(b, encodeLenencStr(name)...)   // name
	b = append(b, encodeLenencStr("")...)     // org_name
	b = append(b, 0x0c)                       // filler
	b = append(b, 33, 0)                      // charset
	b = append(b, 0, 0, 0, 0)                 // length
	b = append(b, byte(ft))                   // type
	b = append(b, 0, 0)                       // flags
	b = append(b, 0)                          // decimals
	return b
}

func framePacket(seq byte, payload []byte) []byte {
	n := len(payload)
	return append([]byte{byte(n), byte(n >> 8), byte(n >> 16), seq}, payload...)
}

func TestFetchColumnsThenFetchRows(t *testing.T) {
	var stream []byte
	stream = append(stream, framePacket(0, buildColumnDefPacket("id", fieldTypeLong))...)
	stream = append(stream, framePacket(1, []byte{iEOF, 0, 0, 0, 0})...)
	stream = append(stream, framePacket(2, []byte{2, '4', '2'})...)
	stream = append(stream, framePacket(3, []byte{iEOF, 0, 0, 0, 0})...)

	fc := testutil.NewFakeConn(stream)
	c := &conn{netConn: fc, buf: newReadBuffer(fc)}
	r := &mysqlResult{conn: c, numColumns: 1, rowsDone: true}

	cols, code := r.FetchColumns()
	if code != libdb.OK {
		t.Fatalf("FetchColumns code = %v", code)
	}
	if len(cols) != 1 || cols[0].Name != "id" || cols[0].Type != libdb.TypeInt {
		t.Fatalf("unexpected columns: %+v", cols)
	}

	rows, code := r.FetchRows(0)
	if code != libdb.OK {
		t.Fatalf("FetchRows code = %v", code)
	}
	if len(rows) != 1 || rows[0][0].Int != 42 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if !r.rowsDone || r.hasMore {
		t.Errorf("rowsDone=%v hasMore=%v, want true,false", r.rowsDone, r.hasMore)
	}
}

func TestFetchColumnsOnUndefinedConnection(t *testing.T) {
	c := &conn{undefined: true}
	r := &mysqlResult{conn: c}
	if _, code := r.FetchColumns(); code != libdb.UNKNOWN {
		t.Errorf("code = %v, want UNKNOWN", code)
	}
}

func TestFetchColumnsNoDataAfterLastResultSet(t *testing.T) {
	c := &conn{}
	r := &mysqlResult{conn: c, rowsDone: true, hasMore: false, columns: []libdb.Column{{}}}
	if _, code := r.FetchColumns(); code != libdb.NO_DATA {
		t.Errorf("code = %v, want NO_DATA", code)
	}
}
