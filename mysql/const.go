// Package mysql is the MySQL 4.1+ engine driver for github.com/xnko/libdb:
// the framed binary wire protocol, handshake and native-password proof,
// text and binary result-set decoding, prepared-statement binding and
// execution, and a session-scoped connection pool.
package mysql

// clientFlag is the CLIENT_* capability bitset sent in the handshake
// response packet.
type clientFlag uint32

const (
	clientLongPassword clientFlag = 1 << 0
	clientFoundRows    clientFlag = 1 << 1
	clientLongFlag     clientFlag = 1 << 2
	clientConnectWithDB clientFlag = 1 << 3
	clientNoSchema     clientFlag = 1 << 4
	clientCompress     clientFlag = 1 << 5
	clientODBC         clientFlag = 1 << 6
	clientLocalFiles   clientFlag = 1 << 7
	clientIgnoreSpace  clientFlag = 1 << 8
	clientProtocol41   clientFlag = 1 << 9
	clientInteractive  clientFlag = 1 << 10
	clientSSL          clientFlag = 1 << 11
	clientIgnoreSigpipe clientFlag = 1 << 12
	clientTransactions clientFlag = 1 << 13
	clientReserved     clientFlag = 1 << 14
	clientSecureConn   clientFlag = 1 << 15
	clientMultiStatements clientFlag = 1 << 16
	clientMultiResults clientFlag = 1 << 17
	clientPSMultiResults clientFlag = 1 << 18
	clientPluginAuth   clientFlag = 1 << 19
	clientConnectAttrs clientFlag = 1 << 20
	clientPluginAuthLenEncClientData clientFlag = 1 << 21
)

// loginClientFlags are the capability bits §4.3 step 4 requires the
// handshake response to advertise.
const loginClientFlags = clientLongFlag |
	clientConnectWithDB |
	clientIgnoreSpace |
	clientProtocol41 |
	clientIgnoreSigpipe |
	clientTransactions |
	clientSecureConn |
	clientMultiStatements |
	clientMultiResults |
	clientPSMultiResults

// Command bytes, the first payload byte of every client-to-server packet.
const (
	comQuit          byte = 0x01
	comInitDB        byte = 0x02
	comQuery         byte = 0x03
	comRefresh       byte = 0x07
	comStatistics    byte = 0x09
	comPing          byte = 0x0e
	comChangeUser    byte = 0x11
	comStmtPrepare   byte = 0x16
	comStmtExecute   byte = 0x17
	comStmtSendLongData byte = 0x18
	comStmtClose     byte = 0x19
	comStmtReset     byte = 0x1a
	comStmtFetch     byte = 0x1c
)

// Packet indicator bytes classified by the status reader (§4.2).
const (
	iOK  byte = 0x00
	iEOF byte = 0xfe
	iERR byte = 0xff
	// lenenc null sentinel (§4.1): a standalone 0xFB first byte of a
	// text-protocol column denotes SQL NULL.
	lenencNullSentinel byte = 0xfb
)

// Server status flags (the 2-byte field in OK/EOF packets).
type statusFlag uint16

const (
	statusInTrans           statusFlag = 0x0001
	statusAutocommit        statusFlag = 0x0002
	statusMoreResultsExists statusFlag = 0x0008
	statusCursorExists      statusFlag = 0x0040
)

// MYSQL_TYPE_* field types, as sent in column definitions and the
// prepared-statement binary protocol.
type fieldType byte

const (
	fieldTypeDecimal    fieldType = 0x00
	fieldTypeTiny       fieldType = 0x01
	fieldTypeShort      fieldType = 0x02
	fieldTypeLong       fieldType = 0x03
	fieldTypeFloat      fieldType = 0x04
	fieldTypeDouble     fieldType = 0x05
	fieldTypeNULL       fieldType = 0x06
	fieldTypeTimestamp  fieldType = 0x07
	fieldTypeLongLong   fieldType = 0x08
	fieldTypeInt24      fieldType = 0x09
	fieldTypeDate       fieldType = 0x0a
	fieldTypeTime       fieldType = 0x0b
	fieldTypeDateTime   fieldType = 0x0c
	fieldTypeYear       fieldType = 0x0d
	fieldTypeNewDate    fieldType = 0x0e
	fieldTypeVarChar    fieldType = 0x0f
	fieldTypeBit        fieldType = 0x10
	fieldTypeJSON       fieldType = 0xf5
	fieldTypeNewDecimal fieldType = 0xf6
	fieldTypeEnum       fieldType = 0xf7
	fieldTypeSet        fieldType = 0xf8
	fieldTypeTinyBLOB   fieldType = 0xf9
	fieldTypeMediumBLOB fieldType = 0xfa
	fieldTypeLongBLOB   fieldType = 0xfb
	fieldTypeBLOB       fieldType = 0xfc
	fieldTypeVarString  fieldType = 0xfd
	fieldTypeString     fieldType = 0xfe
	fieldTypeGeometry   fieldType = 0xff
)

// fieldFlag bits from a column definition's Flags field.
type fieldFlag uint16

const flagUnsigned fieldFlag = 0x0020

const (
	minProtocolVersion = 10
	maxPacketSize       = 1<<24 - 1
	defaultCollation    = "utf8_general_ci"
	// defaultMaxAllowedPacket matches the server's own default so a
	// first connection doesn't need to query @@max_allowed_packet.
	defaultMaxAllowedPacket = 4 << 20
)

// collations lists just enough of the server's collation table to
// support the one charset this client ever requests (§6: "the charset
// byte is 33 (utf8)"). A second engine never needs more than its own
// default wired in.
var collations = map[string]byte{
	defaultCollation: 33,
}
