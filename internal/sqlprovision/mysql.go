package sqlprovision

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

func (r *Record) adminDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/", r.adminUsername, r.adminPassword, r.host, r.port)
}

func (r *Record) userDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", r.createdUser, r.createdPassword, r.host, r.port, r.createdDatabase)
}

// initMySQL creates the scratch database, user and grant inside a single
// admin transaction, then runs initSQL as the new user inside its own
// transaction. Resource creation failures roll the admin transaction back
// (MySQL DDL participates in transactions, unlike Postgres), so nothing is
// left behind and the caller never needs to Cleanup. An initSQL failure
// rolls its own transaction back and then tears the created resources down
// via cleanupMySQL before returning.
func (r *Record) initMySQL(initSQL string) error {
	admin, err := openSQL("mysql", r.adminDSN())
	if err != nil {
		return fmt.Errorf("opening admin connection: %w", err)
	}
	defer admin.Close()

	user := r.user()
	password := r.password()
	dbName := r.dbName()

	tx, err := admin.Begin()
	if err != nil {
		return fmt.Errorf("beginning admin transaction: %w", err)
	}

	statements := []string{
		fmt.Sprintf("CREATE DATABASE `%s`", escapeBacktick(dbName)),
		fmt.Sprintf("CREATE USER '%s'@'%%' IDENTIFIED BY '%s'", escapeQuote(user), escapeQuote(password)),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", escapeBacktick(dbName), escapeQuote(user)),
		"FLUSH PRIVILEGES",
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("provisioning resources: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing resource provisioning: %w", err)
	}
	r.createdDatabase = dbName
	r.createdUser = user
	r.createdPassword = password

	userConn, err := openSQL("mysql", r.userDSN())
	if err != nil {
		if cerr := r.cleanupMySQL(); cerr != nil {
			return fmt.Errorf("opening connection as provisioned user: %w (cleanup also failed: %v)", err, cerr)
		}
		return fmt.Errorf("opening connection as provisioned user: %w", err)
	}
	defer userConn.Close()

	initTx, err := userConn.Begin()
	if err != nil {
		if cerr := r.cleanupMySQL(); cerr != nil {
			return fmt.Errorf("beginning initSql transaction: %w (cleanup also failed: %v)", err, cerr)
		}
		return fmt.Errorf("beginning initSql transaction: %w", err)
	}

	if _, err := initTx.Exec(initSQL); err != nil {
		_ = initTx.Rollback()
		if cerr := r.cleanupMySQL(); cerr != nil {
			return fmt.Errorf("running initSql: %w (cleanup also failed: %v)", err, cerr)
		}
		return fmt.Errorf("running initSql: %w", err)
	}

	if err := initTx.Commit(); err != nil {
		if cerr := r.cleanupMySQL(); cerr != nil {
			return fmt.Errorf("committing initSql: %w (cleanup also failed: %v)", err, cerr)
		}
		return fmt.Errorf("committing initSql: %w", err)
	}

	return nil
}

// cleanupMySQL drops the scratch database and user, idempotently.
func (r *Record) cleanupMySQL() error {
	if !r.NeedsCleanup() {
		return nil
	}

	admin, err := openSQL("mysql", r.adminDSN())
	if err != nil {
		return &CleanupError{Err: fmt.Errorf("opening admin connection: %w", err)}
	}
	defer admin.Close()

	if r.createdDatabase != "" {
		if _, err := admin.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", escapeBacktick(r.createdDatabase))); err != nil {
			return &CleanupError{Err: fmt.Errorf("dropping database: %w", err)}
		}
		r.createdDatabase = ""
	}

	if r.createdUser != "" {
		if _, err := admin.Exec(fmt.Sprintf("DROP USER IF EXISTS '%s'@'%%'", escapeQuote(r.createdUser))); err != nil {
			return &CleanupError{Err: fmt.Errorf("dropping user: %w", err)}
		}
		r.createdUser = ""
	}

	return nil
}

// escapeBacktick and escapeQuote guard against the (practically
// impossible) case of the generated hex-suffixed identifiers colliding
// with a reserved character; names here are always the package's own
// lsp_db_/lsp_user_/lsp_pass_ prefix plus 8 hex digits.
func escapeBacktick(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '`' {
			out = append(out, '`', '`')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func escapeQuote(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
