package mysql

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/xnko/libdb"
)

// valuesEqual compares two bound values for the idempotency check in
// the Bind methods. libdb.Value carries a []byte field, so it isn't
// itself comparable with ==; this compares only the field the Type
// selects.
func valuesEqual(a, b libdb.Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case libdb.TypeBool:
		return a.Bool == b.Bool
	case libdb.TypeByte:
		return a.Byte == b.Byte
	case libdb.TypeShort:
		return a.Short == b.Short
	case libdb.TypeInt:
		return a.Int == b.Int
	case libdb.TypeInt64:
		return a.Int64 == b.Int64
	case libdb.TypeFloat:
		return a.Float == b.Float
	case libdb.TypeDouble:
		return a.Double == b.Double
	case libdb.TypeTime:
		return a.Time == b.Time
	case libdb.TypeDate:
		return a.Date == b.Date
	case libdb.TypeDateTime:
		return a.DateTime == b.DateTime
	case libdb.TypeTimestamp:
		return a.Timestamp == b.Timestamp
	case libdb.TypeString:
		return a.String == b.String
	default:
		return bytes.Equal(a.Binary, b.Binary)
	}
}

// paramMeta is one parameter's server-declared metadata, captured once
// at Prepare and never touched again: the detected libdb.Type used for
// MISMATCH/TOO_LONG checks, and the raw MYSQL_TYPE the server reported,
// which is what gets sent back verbatim as the type code in
// COM_STMT_EXECUTE (db_mysql_statement.c's mysql_types[i]).
type paramMeta struct {
	dbType    libdb.Type
	mysqlType fieldType
}

// stmtParam is one bound parameter slot: whichever typed field of
// value is meaningful for the param's dbType. long tracks whether
// bytes were appended via BindBlob's long-data path, so Exec knows not
// to also inline a payload for it.
type stmtParam struct {
	isNull bool
	value  libdb.Value
	long   bool // sent via COM_STMT_SEND_LONG_DATA, not inline in Exec
}

// mysqlStmt is the MySQL engine's implementation of libdb.StmtEngine
// (§4.5/§4.6): a server-side prepared statement plus the client-side
// parameter metadata and value vectors bound to it between executions.
// Invariant: len(paramMeta) == len(params) == numParams.
type mysqlStmt struct {
	conn          *conn
	statementID   uint32
	numParams     int
	paramMeta     []paramMeta
	params        []stmtParam
	paramsChanged bool
}

// Prepare sends COM_STMT_PREPARE and reads the OK header (§4.5): a
// 1-byte 0x00, 4-byte statement id, 2-byte column count, 2-byte param
// count, 1-byte filler, 2-byte warning count, followed by param and
// column metadata blocks (each terminated by an EOF) when non-empty.
// Each parameter's Column-Definition packet is decoded and its detected
// DB type retained (§3: "a vector of parameter column metadata … the
// server's MYSQL_TYPE per parameter"), mirroring
// db_mysql_statement_prepare's parse of params[i].type/mysql_types[i].
func (c *conn) Prepare(sql string) (libdb.StmtEngine, libdb.Code) {
	if c.undefined {
		return nil, libdb.UNAVAILABLE
	}
	if code := c.drainPending(); code != libdb.OK && code != libdb.NO_DATA {
		return nil, code
	}
	c.sequence = 0
	if err := c.writeCommandPacketStr(comStmtPrepare, sql); err != nil {
		return nil, c.ioFailure(err)
	}

	data, err := c.readPacket()
	if err != nil {
		return nil, c.ioFailure(err)
	}
	if data[0] == iERR {
		return nil, c.handleErrorPacket(data)
	}
	if len(data) < 12 {
		c.poison()
		return nil, libdb.UNKNOWN
	}
	statementID := binary.LittleEndian.Uint32(data[1:5])
	numColumns := int(binary.LittleEndian.Uint16(data[5:7]))
	numParams := int(binary.LittleEndian.Uint16(data[7:9]))

	paramMetas := make([]paramMeta, numParams)
	if numParams > 0 {
		for i := 0; i < numParams; i++ {
			pdata, err := c.readPacket()
			if err != nil {
				return nil, c.ioFailure(err)
			}
			meta, derr := decodeColumnDef(pdata)
			if derr != nil {
				c.poison()
				return nil, libdb.UNKNOWN
			}
			paramMetas[i] = paramMeta{dbType: DetectType(meta.fieldType), mysqlType: meta.fieldType}
		}
		if code := c.readUntilEOF(); code != libdb.OK {
			return nil, code
		}
	}
	if numColumns > 0 {
		for i := 0; i < numColumns; i++ {
			if _, err := c.readPacket(); err != nil {
				return nil, c.ioFailure(err)
			}
		}
		if code := c.readUntilEOF(); code != libdb.OK {
			return nil, code
		}
	}

	params := make([]stmtParam, numParams)
	for i := range params {
		params[i].isNull = true
	}

	return &mysqlStmt{
		conn:        c,
		statementID: statementID,
		numParams:   numParams,
		paramMeta:   paramMetas,
		params:      params,
	}, libdb.OK
}

func (s *mysqlStmt) checkIndex(index int) libdb.Code {
	if index < 0 || index >= s.numParams {
		return libdb.OUT_OF_INDEX
	}
	return libdb.OK
}

// Reset sends COM_STMT_RESET, draining any pending result first
// (db_mysql_statement_reset calls db_mysql_eat_result before writing
// the command, the same as Prepare/Exec). On success every parameter
// is driven back to NULL by calling this statement's own BindNull for
// each index; a wrapper around the StmtEngine does not see these calls.
func (s *mysqlStmt) Reset() libdb.Code {
	c := s.conn
	if c.undefined {
		return libdb.UNAVAILABLE
	}
	if code := c.drainPending(); code != libdb.OK && code != libdb.NO_DATA {
		return code
	}
	if err := c.writeCommandPacketUint32(comStmtReset, s.statementID); err != nil {
		return c.ioFailure(err)
	}
	data, err := c.readPacket()
	if err != nil {
		return c.ioFailure(err)
	}
	if data[0] == iERR {
		return c.handleErrorPacket(data)
	}
	for i := 0; i < s.numParams; i++ {
		s.BindNull(i)
	}
	return libdb.OK
}

func (s *mysqlStmt) BindNull(index int) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	if s.params[index].isNull {
		return libdb.OK
	}
	s.params[index] = stmtParam{isNull: true}
	s.paramsChanged = true
	return libdb.OK
}

// bindNatural implements db_mysql_statement_bind_natural: value is
// accepted into any of the "whole number" param types (bool, byte,
// short, int, int64); anything else is MISMATCH. Callers perform their
// own width pre-check (TOO_LONG) before reaching here.
func (s *mysqlStmt) bindNatural(index int, value int64) libdb.Code {
	meta := s.paramMeta[index]
	var v libdb.Value
	switch meta.dbType {
	case libdb.TypeBool:
		v = libdb.Value{Type: libdb.TypeBool, Bool: value != 0}
	case libdb.TypeByte:
		v = libdb.Value{Type: libdb.TypeByte, Byte: byte(value)}
	case libdb.TypeShort:
		v = libdb.Value{Type: libdb.TypeShort, Short: int16(value)}
	case libdb.TypeInt:
		v = libdb.Value{Type: libdb.TypeInt, Int: int32(value)}
	case libdb.TypeInt64:
		v = libdb.Value{Type: libdb.TypeInt64, Int64: value}
	default:
		return libdb.MISMATCH
	}

	cur := s.params[index]
	if !cur.isNull && !cur.long && valuesEqual(cur.value, v) {
		return libdb.OK
	}
	s.params[index] = stmtParam{value: v}
	s.paramsChanged = true
	return libdb.OK
}

func (s *mysqlStmt) BindBool(index int, v bool) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	value := int64(0)
	if v {
		value = 1
	}
	return s.bindNatural(index, value)
}

func (s *mysqlStmt) BindByte(index int, v byte) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	if s.paramMeta[index].dbType == libdb.TypeBool && v&0xfe != 0 {
		return libdb.TOO_LONG
	}
	return s.bindNatural(index, int64(v))
}

func (s *mysqlStmt) BindShort(index int, v int16) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	value := int64(v)
	switch s.paramMeta[index].dbType {
	case libdb.TypeBool:
		if value&^int64(1) != 0 {
			return libdb.TOO_LONG
		}
	case libdb.TypeByte:
		if value&^int64(0xff) != 0 {
			return libdb.TOO_LONG
		}
	}
	return s.bindNatural(index, value)
}

func (s *mysqlStmt) BindInt(index int, v int32) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	value := int64(v)
	switch s.paramMeta[index].dbType {
	case libdb.TypeBool:
		if value&^int64(1) != 0 {
			return libdb.TOO_LONG
		}
	case libdb.TypeByte:
		if value&^int64(0xff) != 0 {
			return libdb.TOO_LONG
		}
	case libdb.TypeShort:
		if value&^int64(0xffff) != 0 {
			return libdb.TOO_LONG
		}
	}
	return s.bindNatural(index, value)
}

func (s *mysqlStmt) BindInt64(index int, v int64) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	switch s.paramMeta[index].dbType {
	case libdb.TypeBool:
		if v&^int64(1) != 0 {
			return libdb.TOO_LONG
		}
	case libdb.TypeByte:
		if v&^int64(0xff) != 0 {
			return libdb.TOO_LONG
		}
	case libdb.TypeShort:
		if v&^int64(0xffff) != 0 {
			return libdb.TOO_LONG
		}
	case libdb.TypeInt:
		if v&^int64(0xffffffff) != 0 {
			return libdb.TOO_LONG
		}
	}
	return s.bindNatural(index, v)
}

// BindFloat and BindDouble mirror db_mysql_statement_bind_float/double:
// either binder may target a FLOAT or a DOUBLE param, storing into the
// field the param's own dbType selects (narrowing or widening as
// needed); anything else is MISMATCH. Floats never return TOO_LONG.
func (s *mysqlStmt) BindFloat(index int, v float32) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	meta := s.paramMeta[index]
	var nv libdb.Value
	switch meta.dbType {
	case libdb.TypeFloat:
		nv = libdb.Value{Type: libdb.TypeFloat, Float: v}
	case libdb.TypeDouble:
		nv = libdb.Value{Type: libdb.TypeDouble, Double: float64(v)}
	default:
		return libdb.MISMATCH
	}
	return s.bindFloating(index, nv)
}

func (s *mysqlStmt) BindDouble(index int, v float64) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	meta := s.paramMeta[index]
	var nv libdb.Value
	switch meta.dbType {
	case libdb.TypeFloat:
		nv = libdb.Value{Type: libdb.TypeFloat, Float: float32(v)}
	case libdb.TypeDouble:
		nv = libdb.Value{Type: libdb.TypeDouble, Double: v}
	default:
		return libdb.MISMATCH
	}
	return s.bindFloating(index, nv)
}

func (s *mysqlStmt) bindFloating(index int, v libdb.Value) libdb.Code {
	cur := s.params[index]
	if !cur.isNull && !cur.long && valuesEqual(cur.value, v) {
		return libdb.OK
	}
	s.params[index] = stmtParam{value: v}
	s.paramsChanged = true
	return libdb.OK
}

// bindExact implements the bind_time/date/datetime/timestamp family:
// the param's dbType must match want exactly, or the bind is MISMATCH.
func (s *mysqlStmt) bindExact(index int, want libdb.Type, v libdb.Value) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	if s.paramMeta[index].dbType != want {
		return libdb.MISMATCH
	}
	cur := s.params[index]
	if !cur.isNull && !cur.long && valuesEqual(cur.value, v) {
		return libdb.OK
	}
	s.params[index] = stmtParam{value: v}
	s.paramsChanged = true
	return libdb.OK
}

func (s *mysqlStmt) BindTime(index int, v libdb.Time) libdb.Code {
	return s.bindExact(index, libdb.TypeTime, libdb.Value{Type: libdb.TypeTime, Time: v})
}

func (s *mysqlStmt) BindDate(index int, v libdb.Date) libdb.Code {
	return s.bindExact(index, libdb.TypeDate, libdb.Value{Type: libdb.TypeDate, Date: v})
}

func (s *mysqlStmt) BindDateTime(index int, v libdb.Date) libdb.Code {
	return s.bindExact(index, libdb.TypeDateTime, libdb.Value{Type: libdb.TypeDateTime, DateTime: v})
}

func (s *mysqlStmt) BindTimestamp(index int, v libdb.Date) libdb.Code {
	return s.bindExact(index, libdb.TypeTimestamp, libdb.Value{Type: libdb.TypeTimestamp, Timestamp: v})
}

// bindBytes implements bind_string/bind_binary, which in the original
// are the same function (bind_string calls bind_binary with strlen):
// either is accepted into a STRING or a BINARY param, storing the raw
// bytes into the field the param's own dbType selects.
func (s *mysqlStmt) bindBytes(index int, data []byte) libdb.Code {
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	meta := s.paramMeta[index]
	var v libdb.Value
	switch meta.dbType {
	case libdb.TypeString:
		v = libdb.Value{Type: libdb.TypeString, String: string(data), Size: uint64(len(data))}
	case libdb.TypeBinary:
		v = libdb.Value{Type: libdb.TypeBinary, Binary: append([]byte(nil), data...), Size: uint64(len(data))}
	default:
		return libdb.MISMATCH
	}
	cur := s.params[index]
	if !cur.isNull && !cur.long && valuesEqual(cur.value, v) {
		return libdb.OK
	}
	s.params[index] = stmtParam{value: v}
	s.paramsChanged = true
	return libdb.OK
}

func (s *mysqlStmt) BindString(index int, v string) libdb.Code {
	return s.bindBytes(index, []byte(v))
}

func (s *mysqlStmt) BindBinary(index int, v []byte) libdb.Code {
	return s.bindBytes(index, v)
}

// BindBlob sends v via COM_STMT_SEND_LONG_DATA rather than inlining it
// in the next Exec's parameter stream (§4.6: "payloads too large to
// size up front"). It always marks the statement changed since the
// server-side buffer, not just the client's view, has mutated.
func (s *mysqlStmt) BindBlob(index int, v []byte) libdb.Code {
	c := s.conn
	if code := s.checkIndex(index); code != libdb.OK {
		return code
	}
	if c.undefined {
		return libdb.UNAVAILABLE
	}

	payload := make([]byte, 4+1+4+2+len(v))
	payload[4] = comStmtSendLongData
	binary.LittleEndian.PutUint32(payload[5:9], s.statementID)
	binary.LittleEndian.PutUint16(payload[9:11], uint16(index))
	copy(payload[11:], v)

	c.sequence = 0
	if err := c.writePacket(payload); err != nil {
		return c.ioFailure(err)
	}
	// COM_STMT_SEND_LONG_DATA has no server reply.
	s.params[index] = stmtParam{long: true}
	s.paramsChanged = true
	return libdb.OK
}

// Exec sends COM_STMT_EXECUTE (§4.6): statement id, flags (always
// CURSOR_TYPE_NO_CURSOR), iteration count (always 1), then, when the
// statement has params, a null bitmap and the new_params_bound flag,
// followed — only when params changed since the last Exec — by one type
// code per param (the server's own MYSQL_TYPE captured at Prepare,
// db_mysql_statement.c's mysql_types[i] sent back verbatim) and the
// value stream itself.
func (s *mysqlStmt) Exec() (libdb.ResultEngine, libdb.Code) {
	c := s.conn
	if c.undefined {
		return nil, libdb.UNAVAILABLE
	}
	if code := c.drainPending(); code != libdb.OK && code != libdb.NO_DATA {
		return nil, code
	}

	payload := make([]byte, 0, 32)
	payload = append(payload, 0, 0, 0, 0) // header placeholder
	payload = append(payload, comStmtExecute)
	var idBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], s.statementID)
	payload = append(payload, idBuf[:]...)
	payload = append(payload, 0)          // flags: CURSOR_TYPE_NO_CURSOR
	payload = append(payload, 1, 0, 0, 0) // iteration count

	if s.numParams > 0 {
		nullBitmapLen := (s.numParams + 7) / 8
		nullBitmap := make([]byte, nullBitmapLen)
		for i, p := range s.params {
			if p.isNull {
				nullBitmap[i/8] |= 1 << uint(i%8)
			}
		}
		payload = append(payload, nullBitmap...)

		if s.paramsChanged {
			payload = append(payload, 1) // new_params_bound
			for _, meta := range s.paramMeta {
				payload = append(payload, byte(meta.mysqlType), 0)
			}
			for _, p := range s.params {
				if p.isNull || p.long {
					continue
				}
				payload = appendParamValue(payload, p.value)
			}
		} else {
			payload = append(payload, 0) // new_params_bound
		}
	}

	c.sequence = 0
	if err := c.writePacket(payload); err != nil {
		return nil, c.ioFailure(err)
	}
	s.paramsChanged = false

	rs, code := c.readFirstReply(s.statementID)
	if rs == nil {
		return nil, code
	}
	c.result = rs
	return rs, code
}

// Close sends COM_STMT_CLOSE, which the server never acknowledges.
func (s *mysqlStmt) Close() libdb.Code {
	c := s.conn
	if c.undefined {
		return libdb.OK
	}
	if err := c.writeCommandPacketUint32(comStmtClose, s.statementID); err != nil {
		return c.ioFailure(err)
	}
	return libdb.OK
}

// appendParamValue encodes one bound value into the COM_STMT_EXECUTE
// value stream using the same fixed-width/length-encoded layouts as
// the binary-row decoder (§4.5/§4.6). v.Type is always the param's own
// dbType (set in bindNatural/bindFloating/bindExact/bindBytes), so the
// width here always matches the type code already written for it.
func appendParamValue(buf []byte, v libdb.Value) []byte {
	switch v.Type {
	case libdb.TypeBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return append(buf, b)
	case libdb.TypeByte:
		return append(buf, v.Byte)
	case libdb.TypeShort:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v.Short))
		return append(buf, b[:]...)
	case libdb.TypeInt:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v.Int))
		return append(buf, b[:]...)
	case libdb.TypeInt64:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.Int64))
		return append(buf, b[:]...)
	case libdb.TypeFloat:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v.Float))
		return append(buf, b[:]...)
	case libdb.TypeDouble:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.Double))
		return append(buf, b[:]...)
	case libdb.TypeTime:
		return appendBinaryTime(buf, v.Time)
	case libdb.TypeDate:
		return appendBinaryDate(buf, v.Date)
	case libdb.TypeDateTime:
		return appendBinaryDate(buf, v.DateTime)
	case libdb.TypeTimestamp:
		return appendBinaryDate(buf, v.Timestamp)
	case libdb.TypeString:
		return appendLengthEncodedBytes(buf, []byte(v.String))
	default:
		return appendLengthEncodedBytes(buf, v.Binary)
	}
}

func appendLengthEncodedBytes(buf []byte, data []byte) []byte {
	buf = appendLengthEncodedInteger(buf, uint64(len(data)))
	return append(buf, data...)
}

func appendBinaryTime(buf []byte, t libdb.Time) []byte {
	if t == (libdb.Time{}) {
		return append(buf, 0)
	}
	length := byte(8)
	if t.Microsecond != 0 {
		length = 12
	}
	buf = append(buf, length)
	neg := byte(0)
	if t.Negative {
		neg = 1
	}
	buf = append(buf, neg)
	var days [4]byte
	binary.LittleEndian.PutUint32(days[:], uint32(t.Days))
	buf = append(buf, days[:]...)
	buf = append(buf, t.Hours, t.Minutes, t.Seconds)
	if length == 12 {
		var micros [4]byte
		binary.LittleEndian.PutUint32(micros[:], uint32(t.Microsecond))
		buf = append(buf, micros[:]...)
	}
	return buf
}

func appendBinaryDate(buf []byte, d libdb.Date) []byte {
	if d == (libdb.Date{}) {
		return append(buf, 0)
	}
	length := byte(4)
	if d.Hour != 0 || d.Minute != 0 || d.Second != 0 || d.Microsecond != 0 {
		length = 7
		if d.Microsecond != 0 {
			length = 11
		}
	}
	buf = append(buf, length)
	var year [2]byte
	binary.LittleEndian.PutUint16(year[:], uint16(d.Year))
	buf = append(buf, year[:]...)
	buf = append(buf, d.Month, d.Day)
	if length >= 7 {
		buf = append(buf, d.Hour, d.Minute, d.Second)
	}
	if length == 11 {
		var micros [4]byte
		binary.LittleEndian.PutUint32(micros[:], uint32(d.Microsecond))
		buf = append(buf, micros[:]...)
	}
	return buf
}
