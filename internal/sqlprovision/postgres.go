package sqlprovision

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (r *Record) adminURL(dbName string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		r.adminUsername, r.adminPassword, r.host, r.port, dbName)
}

func (r *Record) userURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		r.createdUser, r.createdPassword, r.host, r.port, r.createdDatabase)
}

// initPostgres creates a scratch user and database as the admin connection,
// then runs initSQL as the new user inside a transaction. Postgres DDL
// auto-commits outside a transaction block, so a failure partway through
// resource creation leaves whatever succeeded in place; the caller must
// Cleanup the returned partial Record. An initSQL failure, by contrast, is
// inside this function's own transaction and this function rolls it back
// and tears the resources back down itself before returning.
func (r *Record) initPostgres(initSQL string) error {
	ctx := context.Background()

	admin, err := pgx.Connect(ctx, r.adminURL("postgres"))
	if err != nil {
		return fmt.Errorf("connecting as admin: %w", err)
	}
	defer admin.Close(ctx)

	user := r.user()
	password := r.password()
	dbName := r.dbName()

	createUserSQL := fmt.Sprintf("CREATE USER %s WITH PASSWORD %s",
		pgx.Identifier{user}.Sanitize(), quoteLiteral(password))
	if _, err := admin.Exec(ctx, createUserSQL); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	r.createdUser = user
	r.createdPassword = password

	createDBSQL := fmt.Sprintf("CREATE DATABASE %s OWNER %s",
		pgx.Identifier{dbName}.Sanitize(), pgx.Identifier{user}.Sanitize())
	if _, err := admin.Exec(ctx, createDBSQL); err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	r.createdDatabase = dbName

	conn, err := pgx.Connect(ctx, r.userURL())
	if err != nil {
		// Resources exist; caller must Cleanup.
		return fmt.Errorf("connecting as provisioned user: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning initSql transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, initSQL); err != nil {
		_ = tx.Rollback(ctx)
		if cerr := r.cleanupPostgres(); cerr != nil {
			return fmt.Errorf("running initSql: %w (cleanup also failed: %v)", err, cerr)
		}
		return fmt.Errorf("running initSql: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if cerr := r.cleanupPostgres(); cerr != nil {
			return fmt.Errorf("committing initSql: %w (cleanup also failed: %v)", err, cerr)
		}
		return fmt.Errorf("committing initSql: %w", err)
	}

	return nil
}

// cleanupPostgres terminates any remaining backends on the scratch
// database (ignoring the result; a stray backend just means the DROP
// below fails loudly instead, which is still reported) and drops the
// database and user it created, idempotently.
func (r *Record) cleanupPostgres() error {
	if !r.NeedsCleanup() {
		return nil
	}

	ctx := context.Background()
	admin, err := pgx.Connect(ctx, r.adminURL("postgres"))
	if err != nil {
		return &CleanupError{Err: fmt.Errorf("connecting as admin: %w", err)}
	}
	defer admin.Close(ctx)

	if r.createdDatabase != "" {
		_, _ = admin.Exec(ctx,
			"SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1",
			r.createdDatabase)

		dropDB := fmt.Sprintf("DROP DATABASE IF EXISTS %s", pgx.Identifier{r.createdDatabase}.Sanitize())
		if _, err := admin.Exec(ctx, dropDB); err != nil {
			return &CleanupError{Err: fmt.Errorf("dropping database: %w", err)}
		}
		r.createdDatabase = ""
	}

	if r.createdUser != "" {
		dropUser := fmt.Sprintf("DROP USER IF EXISTS %s", pgx.Identifier{r.createdUser}.Sanitize())
		if _, err := admin.Exec(ctx, dropUser); err != nil {
			return &CleanupError{Err: fmt.Errorf("dropping user: %w", err)}
		}
		r.createdUser = ""
	}

	return nil
}

// quoteLiteral produces a single-quoted SQL string literal, doubling any
// embedded quote. Passwords are generated by this package (hex digits
// from a UUID), never user input, but literals are still quoted properly
// rather than trusted blind.
func quoteLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
