package mysql

import (
	"time"

	"github.com/xnko/libdb"
)

func init() {
	libdb.Register(libdb.EngineMySQL, newSessionEngine)
}

// sessionEngineImpl is the MySQL engine's implementation of
// libdb.SessionEngine (§4.4): one set of credentials, a Pool of idle
// connections, and the two sticky caches the supplemented feature set
// calls for (SPEC_FULL.md §3) so a server that can't be talked to
// doesn't get re-dialed on every Open.
type sessionEngineImpl struct {
	cfg            Config
	connectTimeout time.Duration
	timeout        time.Duration

	pool *Pool

	lastError *libdb.Error

	unsupportedVersion bool
	authFailed         bool
}

// newSessionEngine is the libdb.Constructor registered for
// libdb.EngineMySQL. Per §4.4 / the Start doc comment, it eagerly opens
// one connection so CONNECT_FAILED, NOT_SUPPORTED, and auth failure
// surface at Start rather than at the first query, and parks that
// connection in the Pool on success.
func newSessionEngine(ecfg libdb.EngineConfig) (libdb.SessionEngine, *libdb.Error, libdb.Code) {
	cfg, ok := ecfg.Engine.(Config)
	if !ok {
		return nil, nil, libdb.NOT_SUPPORTED
	}

	s := &sessionEngineImpl{
		cfg:            cfg,
		connectTimeout: ecfg.ConnectTimeout,
		timeout:        ecfg.Timeout,
		pool:           newPool(ecfg.PoolSize),
	}

	c, lerr, code := dial(s.cfg, s.connectTimeout, s.timeout)
	if code != libdb.OK {
		switch code {
		case libdb.NOT_SUPPORTED:
			s.unsupportedVersion = true
		case libdb.FAILED:
			s.authFailed = true
			s.lastError = lerr
		}
		return s, lerr, code
	}

	c.session = s
	s.pool.Release(c)
	return s, nil, libdb.OK
}

func (s *sessionEngineImpl) Error() *libdb.Error { return s.lastError }

// Close destroys every idle connection currently parked in the Pool.
// Connections already handed out via Open are unaffected until their
// own Close is called.
func (s *sessionEngineImpl) Close() libdb.Code {
	s.pool.DestroyAll()
	return libdb.OK
}

// Open acquires an idle connection from the Pool, or dials a fresh one
// when the Pool is empty. A previously observed unsupported server
// version or auth failure short-circuits further dial attempts (§9).
func (s *sessionEngineImpl) Open() (libdb.ConnEngine, libdb.Code) {
	if s.unsupportedVersion {
		return nil, libdb.NOT_SUPPORTED
	}
	if s.authFailed {
		return nil, libdb.FAILED
	}

	if c := s.pool.Acquire(); c != nil {
		return c, libdb.OK
	}

	c, lerr, code := dial(s.cfg, s.connectTimeout, s.timeout)
	if code != libdb.OK {
		switch code {
		case libdb.NOT_SUPPORTED:
			s.unsupportedVersion = true
		case libdb.FAILED:
			s.authFailed = true
			s.lastError = lerr
		}
		return nil, code
	}
	c.session = s
	return c, libdb.OK
}
