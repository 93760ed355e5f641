package mysql

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/xnko/libdb"
)

// mysqlColumnMeta is the column metadata the row decoders need that the
// public libdb.Column doesn't carry (field type, unsigned flag).
type mysqlColumnMeta struct {
	name      string
	fieldType fieldType
	flags     fieldFlag
	decimals  byte
	length    uint32
}

// mysqlResult is the MySQL engine's implementation of libdb.ResultEngine
// (§4.5): one query, zero or more result-sets, iterated by
// FetchColumns/FetchRows.
type mysqlResult struct {
	conn        *conn
	numColumns  int
	statementID uint32

	columns      []libdb.Column
	mysqlColumns []mysqlColumnMeta

	byFetch  bool
	rowsDone bool
	hasMore  bool
}

// decodeColumnDef parses one Column-Definition41 packet (§4.5): five
// lenenc strings (catalog, schema, table, org_table, name), org_name,
// a 1-byte filler (the "length of fixed fields" byte, always 0x0c and
// unused), 2-byte charset, 4-byte max length, 1-byte MYSQL_TYPE,
// 2-byte flags, 1-byte decimals. Everything past decimals is discarded.
func decodeColumnDef(data []byte) (mysqlColumnMeta, error) {
	pos, err := skipLengthEncodedString(data) // catalog
	if err != nil {
		return mysqlColumnMeta{}, err
	}
	n, err := skipLengthEncodedString(data[pos:]) // schema
	if err != nil {
		return mysqlColumnMeta{}, err
	}
	pos += n
	n, err = skipLengthEncodedString(data[pos:]) // table
	if err != nil {
		return mysqlColumnMeta{}, err
	}
	pos += n
	n, err = skipLengthEncodedString(data[pos:]) // org_table
	if err != nil {
		return mysqlColumnMeta{}, err
	}
	pos += n
	name, _, n, err := readLengthEncodedString(data[pos:]) // name
	if err != nil {
		return mysqlColumnMeta{}, err
	}
	pos += n
	n, err = skipLengthEncodedString(data[pos:]) // org_name
	if err != nil {
		return mysqlColumnMeta{}, err
	}
	pos += n

	pos++ // filler (length-of-fixed-fields, always 0x0c)

	pos += 2 // charset

	length := binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4

	ft := fieldType(data[pos])
	pos++

	flags := fieldFlag(binary.LittleEndian.Uint16(data[pos : pos+2]))
	pos += 2

	decimals := data[pos]

	return mysqlColumnMeta{name: string(name), fieldType: ft, flags: flags, decimals: decimals, length: length}, nil
}

// FetchColumns implements the state machine of §4.5's fetch_columns
// table.
func (r *mysqlResult) FetchColumns() ([]libdb.Column, libdb.Code) {
	c := r.conn
	if c.undefined {
		return nil, libdb.UNKNOWN
	}

	switch {
	case r.numColumns > 0 && r.columns == nil:
		// first result-set; columns not yet read.
	case !r.rowsDone:
		return nil, libdb.OUT_OF_SYNC
	case !r.hasMore:
		return nil, libdb.NO_DATA
	default:
		data, err := c.readPacket()
		if err != nil {
			return nil, c.ioFailure(err)
		}
		if data[0] == iERR {
			return nil, c.handleErrorPacket(data)
		}
		count, _, _ := readLengthEncodedInteger(data)
		r.numColumns = int(count)
		r.columns = nil
	}

	r.byFetch = false
	r.rowsDone = false
	r.hasMore = false

	meta := make([]mysqlColumnMeta, r.numColumns)
	pub := make([]libdb.Column, r.numColumns)
	for i := 0; i < r.numColumns; i++ {
		data, err := c.readPacket()
		if err != nil {
			c.poison()
			return nil, libdb.UNAVAILABLE
		}
		m, derr := decodeColumnDef(data)
		if derr != nil {
			c.poison()
			return nil, libdb.UNAVAILABLE
		}
		meta[i] = m
		pub[i] = libdb.Column{Name: m.name, Type: DetectType(m.fieldType), Length: uint64(m.length)}
	}

	data, err := c.readPacket()
	if err != nil {
		c.poison()
		return nil, libdb.UNAVAILABLE
	}
	if data[0] != iEOF {
		c.poison()
		return nil, libdb.UNKNOWN
	}
	status := readStatus(data[3:5])
	c.status = status
	if status&statusCursorExists != 0 {
		r.byFetch = true
	}

	r.mysqlColumns = meta
	r.columns = pub
	return pub, libdb.OK
}

// FetchRows implements §4.5's fetch_rows(max): max == 0 drains the
// entire result-set in one call.
func (r *mysqlResult) FetchRows(max int) ([][]libdb.Value, libdb.Code) {
	c := r.conn
	if c.undefined {
		return nil, libdb.UNKNOWN
	}
	if r.columns == nil {
		return nil, libdb.OUT_OF_SYNC
	}
	if r.rowsDone {
		return nil, libdb.NO_DATA
	}

	if r.byFetch {
		data, err := c.buf.takeSmallBuffer(4 + 1 + 4 + 4)
		if err != nil {
			data = make([]byte, 4+1+4+4)
		}
		c.sequence = 0
		data[4] = comStmtFetch
		binary.LittleEndian.PutUint32(data[5:9], r.statementID)
		binary.LittleEndian.PutUint32(data[9:13], uint32(max))
		if werr := c.writePacket(data); werr != nil {
			return nil, c.ioFailure(werr)
		}
	}

	var rows [][]libdb.Value
	for {
		data, err := c.readPacket()
		if err != nil {
			c.poison()
			return nil, libdb.UNAVAILABLE
		}

		switch data[0] {
		case iERR:
			code := c.handleErrorPacket(data)
			return nil, code
		case iEOF:
			if len(data) < 9 {
				status := readStatus(data[3:5])
				c.status = status
				r.hasMore = status&statusMoreResultsExists != 0
				r.rowsDone = true
				return rows, libdb.OK
			}
		}

		var row []libdb.Value
		var derr error
		if r.statementID == 0 {
			row, derr = decodeTextRow(data, r.mysqlColumns)
		} else {
			row, derr = decodeBinaryRow(data, r.mysqlColumns)
		}
		if derr != nil {
			c.poison()
			return nil, libdb.UNAVAILABLE
		}
		rows = append(rows, row)
		if max > 0 && len(rows) >= max {
			return rows, libdb.OK
		}
	}
}

// Close drains every remaining row of the current result-set and every
// following result-set so the connection's byte stream re-aligns at a
// packet boundary (§4.5).
func (r *mysqlResult) Close() libdb.Code {
	c := r.conn
	if c.undefined {
		c.result = nil
		return libdb.OK
	}
	if r.numColumns > 0 && r.columns == nil {
		// the first result-set's column block was never fetched.
		if code := c.readUntilEOF(); code != libdb.OK {
			c.result = nil
			return code
		}
		r.rowsDone = false
	}
	if !r.rowsDone {
		if code := c.readUntilEOF(); code != libdb.OK {
			c.result = nil
			return code
		}
		r.rowsDone = true
	}
	code := c.discardResults()
	c.result = nil
	return code
}

/******************************************************************************
*                     Row decoding — text protocol (§4.5)                     *
******************************************************************************/

func decodeTextRow(data []byte, cols []mysqlColumnMeta) ([]libdb.Value, error) {
	row := make([]libdb.Value, len(cols))
	pos := 0
	for i, col := range cols {
		if pos >= len(data) {
			return nil, ErrMalformPkt
		}
		if data[pos] == lenencNullSentinel {
			pos++
			row[i] = libdb.Value{Type: DetectType(col.fieldType), IsNull: true}
			continue
		}

		buf, isNull, n, err := readLengthEncodedString(data[pos:])
		pos += n
		if err != nil {
			return nil, err
		}
		if isNull {
			row[i] = libdb.Value{Type: DetectType(col.fieldType), IsNull: true}
			continue
		}

		v, err := parseTextValue(string(buf), col)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// parseTextValue parses the ASCII representation of one text-protocol
// column value using an explicit, locale-independent ASCII scanner
// (§9: "Locale-sensitive parsing ... must be locale-independent").
func parseTextValue(s string, col mysqlColumnMeta) (libdb.Value, error) {
	t := DetectType(col.fieldType)
	v := libdb.Value{Type: t, Size: uint64(len(s))}

	switch t {
	case libdb.TypeByte:
		n, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return v, err
		}
		v.Byte = byte(n)
	case libdb.TypeShort:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return v, err
		}
		v.Short = int16(n)
	case libdb.TypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return v, err
		}
		v.Int = int32(n)
	case libdb.TypeInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return v, err
		}
		v.Int64 = n
	case libdb.TypeFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return v, err
		}
		v.Float = float32(f)
	case libdb.TypeDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return v, err
		}
		v.Double = f
	case libdb.TypeTime:
		tm, err := parseTextTime(s)
		if err != nil {
			return v, err
		}
		v.Time = tm
	case libdb.TypeDate, libdb.TypeDateTime, libdb.TypeTimestamp:
		d, err := parseTextDate(s)
		if err != nil {
			return v, err
		}
		switch t {
		case libdb.TypeDate:
			v.Date = d
		case libdb.TypeDateTime:
			v.DateTime = d
		case libdb.TypeTimestamp:
			v.Timestamp = d
		}
	default:
		v.String = s + "\x00"
		v.Binary = []byte(s)
	}
	return v, nil
}

// parseTextTime parses "HH:MM:SS" (hours/minutes/seconds fixed-width,
// colons at positions 2 and 5) per §4.5.
func parseTextTime(s string) (libdb.Time, error) {
	if len(s) < 8 || s[2] != ':' || s[5] != ':' {
		return libdb.Time{}, ErrMalformPkt
	}
	h, err := strconv.Atoi(s[0:2])
	if err != nil {
		return libdb.Time{}, err
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil {
		return libdb.Time{}, err
	}
	sec, err := strconv.Atoi(s[6:8])
	if err != nil {
		return libdb.Time{}, err
	}
	return libdb.Time{Hours: uint8(h), Minutes: uint8(m), Seconds: uint8(sec)}, nil
}

// parseTextDate parses "YYYY-MM-DD" and, when present, the trailing
// " HH:MM:SS" time part (§4.5).
func parseTextDate(s string) (libdb.Date, error) {
	if len(s) < 10 {
		return libdb.Date{}, ErrMalformPkt
	}
	year, err := strconv.Atoi(s[0:4])
	if err != nil {
		return libdb.Date{}, err
	}
	month, err := strconv.Atoi(s[5:7])
	if err != nil {
		return libdb.Date{}, err
	}
	day, err := strconv.Atoi(s[8:10])
	if err != nil {
		return libdb.Date{}, err
	}
	d := libdb.Date{Year: int16(year), Month: uint8(month), Day: uint8(day)}
	if len(s) >= 19 {
		h, err := strconv.Atoi(s[11:13])
		if err != nil {
			return libdb.Date{}, err
		}
		m, err := strconv.Atoi(s[14:16])
		if err != nil {
			return libdb.Date{}, err
		}
		sec, err := strconv.Atoi(s[17:19])
		if err != nil {
			return libdb.Date{}, err
		}
		d.Hour, d.Minute, d.Second = uint8(h), uint8(m), uint8(sec)
	}
	return d, nil
}

/******************************************************************************
*                    Row decoding — binary protocol (§4.5)                    *
******************************************************************************/

func decodeBinaryRow(data []byte, cols []mysqlColumnMeta) ([]libdb.Value, error) {
	// data[0] is the 0x00 marker.
	nullBitmapLen := (len(cols) + 7 + 2) / 8
	if 1+nullBitmapLen > len(data) {
		return nil, ErrMalformPkt
	}
	nullMask := data[1 : 1+nullBitmapLen]
	pos := 1 + nullBitmapLen

	row := make([]libdb.Value, len(cols))
	for i, col := range cols {
		t := DetectType(col.fieldType)
		// Bit i (0-based), offset by 2 per the MySQL binary protocol
		// spec (see DESIGN.md / §9's Open Question resolution — the
		// original source's unoffset bit test is a bug; this follows
		// the spec, not the source).
		bit := i + 2
		if (nullMask[bit/8]>>(uint(bit)%8))&1 == 1 {
			row[i] = libdb.Value{Type: t, IsNull: true}
			continue
		}

		switch t {
		case libdb.TypeBool, libdb.TypeByte:
			if pos >= len(data) {
				return nil, ErrMalformPkt
			}
			row[i] = libdb.Value{Type: t, Byte: data[pos], Size: 1}
			pos++
		case libdb.TypeShort:
			if pos+2 > len(data) {
				return nil, ErrMalformPkt
			}
			row[i] = libdb.Value{Type: t, Short: int16(binary.LittleEndian.Uint16(data[pos : pos+2])), Size: 2}
			pos += 2
		case libdb.TypeInt:
			if pos+4 > len(data) {
				return nil, ErrMalformPkt
			}
			row[i] = libdb.Value{Type: t, Int: int32(binary.LittleEndian.Uint32(data[pos : pos+4])), Size: 4}
			pos += 4
		case libdb.TypeInt64:
			if pos+8 > len(data) {
				return nil, ErrMalformPkt
			}
			row[i] = libdb.Value{Type: t, Int64: int64(binary.LittleEndian.Uint64(data[pos : pos+8])), Size: 8}
			pos += 8
		case libdb.TypeFloat:
			if pos+4 > len(data) {
				return nil, ErrMalformPkt
			}
			row[i] = libdb.Value{Type: t, Float: math.Float32frombits(binary.LittleEndian.Uint32(data[pos : pos+4])), Size: 4}
			pos += 4
		case libdb.TypeDouble:
			if pos+8 > len(data) {
				return nil, ErrMalformPkt
			}
			row[i] = libdb.Value{Type: t, Double: math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8])), Size: 8}
			pos += 8
		case libdb.TypeTime:
			tm, n, err := decodeBinaryTime(data[pos:])
			if err != nil {
				return nil, err
			}
			row[i] = libdb.Value{Type: t, Time: tm}
			pos += n
		case libdb.TypeDate, libdb.TypeDateTime, libdb.TypeTimestamp:
			d, n, err := decodeBinaryDate(data[pos:])
			if err != nil {
				return nil, err
			}
			v := libdb.Value{Type: t}
			switch t {
			case libdb.TypeDate:
				v.Date = d
			case libdb.TypeDateTime:
				v.DateTime = d
			case libdb.TypeTimestamp:
				v.Timestamp = d
			}
			row[i] = v
			pos += n
		default:
			buf, isNull, n, err := readLengthEncodedString(data[pos:])
			if err != nil {
				return nil, err
			}
			pos += n
			if isNull {
				row[i] = libdb.Value{Type: t, IsNull: true}
				continue
			}
			row[i] = libdb.Value{Type: t, String: string(buf) + "\x00", Binary: buf, Size: uint64(len(buf))}
		}
	}
	return row, nil
}

// decodeBinaryTime decodes the TIME binary-row encoding (§4.5): a
// 1-byte length in {0, 8, 12}, then sign, days(4), h, m, s[, micros(4)].
func decodeBinaryTime(b []byte) (libdb.Time, int, error) {
	if len(b) < 1 {
		return libdb.Time{}, 0, ErrMalformPkt
	}
	length := int(b[0])
	if length == 0 {
		return libdb.Time{}, 1, nil
	}
	if length != 8 && length != 12 {
		return libdb.Time{}, 0, ErrMalformPkt
	}
	if len(b) < 1+length {
		return libdb.Time{}, 0, ErrMalformPkt
	}
	body := b[1:]
	tm := libdb.Time{
		Negative: body[0] != 0,
		Days:     int32(binary.LittleEndian.Uint32(body[1:5])),
		Hours:    body[5],
		Minutes:  body[6],
		Seconds:  body[7],
	}
	if length == 12 {
		tm.Microsecond = int32(binary.LittleEndian.Uint32(body[8:12]))
	}
	return tm, 1 + length, nil
}

// decodeBinaryDate decodes the DATE/DATETIME/TIMESTAMP binary-row
// encoding (§4.5): a 1-byte length in {0, 4, 7, 11}, then
// year(2), month, day[, h, m, s[, micros(4)]].
func decodeBinaryDate(b []byte) (libdb.Date, int, error) {
	if len(b) < 1 {
		return libdb.Date{}, 0, ErrMalformPkt
	}
	length := int(b[0])
	if length == 0 {
		return libdb.Date{}, 1, nil
	}
	if length != 4 && length != 7 && length != 11 {
		return libdb.Date{}, 0, ErrMalformPkt
	}
	if len(b) < 1+length {
		return libdb.Date{}, 0, ErrMalformPkt
	}
	body := b[1:]
	d := libdb.Date{
		Year:  int16(binary.LittleEndian.Uint16(body[0:2])),
		Month: body[2],
		Day:   body[3],
	}
	if length >= 7 {
		d.Hour, d.Minute, d.Second = body[4], body[5], body[6]
	}
	if length == 11 {
		d.Microsecond = int32(binary.LittleEndian.Uint32(body[7:11]))
	}
	return d, 1 + length, nil
}
