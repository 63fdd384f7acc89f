// Package sqlprovision creates a scratch database and user on an external
// DBMS for a single SQL-language-server session, and tears it down again.
package sqlprovision

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"lspwsbridge/internal/bridgeconfig"
	"lspwsbridge/internal/lspenvelope"
)

// DbError wraps a failure during provisioning. It carries only the cause;
// when resources still need teardown, ProvisionOnInitialize returns the
// partially built Record alongside it (see Record's NeedsCleanup).
type DbError struct {
	Err error
}

func (e *DbError) Error() string { return fmt.Sprintf("sqlprovision: %v", e.Err) }
func (e *DbError) Unwrap() error { return e.Err }

// CleanupError is logged only, never surfaced as a connection failure.
type CleanupError struct {
	Err error
}

func (e *CleanupError) Error() string { return fmt.Sprintf("sqlprovision: cleanup: %v", e.Err) }
func (e *CleanupError) Unwrap() error { return e.Err }

// Record tracks one provisioned scratch database across its lifetime: the
// admin credentials used to create it (kept only long enough to drive
// provisioning and cleanup, never surfaced to the language server or a
// log line) and whichever resources were actually created, so Cleanup can
// finish the job even after a partial failure.
type Record struct {
	SessionID string // 128-bit UUID, lowercase hex with dashes
	Driver    string // mysql | postgres | sqlite

	host  string
	port  uint16
	proto string

	adminUsername string
	adminPassword string

	createdDatabase string
	createdUser     string
	createdPassword string
}

func newRecord(driver string, cfg bridgeconfig.SQLConfig) *Record {
	return &Record{
		SessionID:     uuid.NewString(),
		Driver:        driver,
		host:          cfg.Host,
		port:          cfg.Port,
		proto:         cfg.Proto,
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
	}
}

// prefix is the first 8 hex characters of the session id (the UUID's
// first dash-delimited group), used to build the scratch resource names.
func (r *Record) prefix() string { return r.SessionID[:8] }

func (r *Record) dbName() string  { return "lsp_db_" + r.prefix() }
func (r *Record) user() string    { return "lsp_user_" + r.prefix() }
func (r *Record) password() string { return "lsp_pass_" + r.prefix() }

// NeedsCleanup reports whether any resource was created and hasn't been
// torn down yet.
func (r *Record) NeedsCleanup() bool {
	return r.createdDatabase != "" || r.createdUser != ""
}

// ProvisionOnInitialize implements 4.5: it runs only when the selected
// server's logical name is serverName ("sql"), env is an `initialize`
// Request whose initializationOptions.init carries non-empty driver and
// initSql strings, and cfg has a matching "sql" entry for that driver.
// Otherwise it is a no-op (nil, nil).
//
// On success it rewrites env's initializationOptions to the
// connectionConfig shape the downstream language server expects, and
// returns the Record for the bridge to clean up at Draining.
//
// On failure it returns a *DbError. If the partially built Record still
// has resources needing teardown (Postgres, where DDL auto-commits, or a
// mysql teardown that itself failed), that Record is also returned so the
// caller can finish the job; otherwise, as for mysql and sqlite once their
// own rollback or removal succeeded, nil is returned instead.
func ProvisionOnInitialize(env *lspenvelope.Envelope, serverName string, cfg *bridgeconfig.Config) (*Record, error) {
	if serverName != "sql" || !env.IsInitialize() {
		return nil, nil
	}

	var params struct {
		InitializationOptions json.RawMessage `json:"initializationOptions"`
	}
	if err := json.Unmarshal(env.Params(), &params); err != nil || len(params.InitializationOptions) == 0 {
		return nil, nil
	}

	var opts struct {
		Init struct {
			Driver  string `json:"driver"`
			InitSQL string `json:"initSql"`
		} `json:"init"`
	}
	if err := json.Unmarshal(params.InitializationOptions, &opts); err != nil {
		return nil, nil
	}
	driver := opts.Init.Driver
	initSQL := opts.Init.InitSQL
	if driver == "" || initSQL == "" {
		return nil, nil
	}

	sqlCfg, ok := cfg.SQLDriver(driver)
	if !ok {
		return nil, nil
	}

	rec := newRecord(driver, sqlCfg)

	var initErr error
	switch driver {
	case "mysql":
		initErr = rec.initMySQL(initSQL)
	case "postgres":
		initErr = rec.initPostgres(initSQL)
	case "sqlite":
		initErr = rec.initSQLite(initSQL)
	default:
		return nil, &DbError{Err: fmt.Errorf("unsupported driver %q", driver)}
	}

	if initErr != nil {
		if rec.NeedsCleanup() {
			return rec, &DbError{Err: initErr}
		}
		return nil, &DbError{Err: initErr}
	}

	rewriteInitializationOptions(env, rec, sqlCfg)
	return rec, nil
}

// rewriteInitializationOptions replaces initializationOptions with the
// connectionConfig shape the language server expects, discarding the
// original init block entirely.
func rewriteInitializationOptions(env *lspenvelope.Envelope, rec *Record, sqlCfg bridgeconfig.SQLConfig) {
	connectionConfig := map[string]interface{}{
		"driver": rec.Driver,
		"host":   sqlCfg.Host,
		"port":   sqlCfg.Port,
	}
	if rec.createdUser != "" {
		connectionConfig["user"] = rec.createdUser
	}
	if rec.createdPassword != "" {
		connectionConfig["passwd"] = rec.createdPassword
	}
	if rec.createdDatabase != "" {
		connectionConfig["dbName"] = rec.createdDatabase
	}
	if sqlCfg.Proto != "" {
		connectionConfig["proto"] = sqlCfg.Proto
	}

	newOptions := map[string]interface{}{"connectionConfig": connectionConfig}
	raw, err := json.Marshal(newOptions)
	if err != nil {
		// connectionConfig is built from known-marshalable scalars; this
		// cannot fail in practice.
		return
	}

	var params map[string]json.RawMessage
	if err := json.Unmarshal(env.Params(), &params); err != nil {
		return
	}
	params["initializationOptions"] = raw
	patched, err := json.Marshal(params)
	if err != nil {
		return
	}
	env.SetParams(patched)
}

// Cleanup tears down whichever resources were created, idempotently and
// best-effort. Errors are wrapped as *CleanupError: logged by the caller,
// never treated as connection-fatal.
func (r *Record) Cleanup() error {
	switch r.Driver {
	case "mysql":
		return r.cleanupMySQL()
	case "postgres":
		return r.cleanupPostgres()
	case "sqlite":
		return r.cleanupSQLite()
	default:
		return nil
	}
}
