package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteDriverName es el nombre con el que modernc registra el driver
const SQLiteDriverName = "sqlite"

func init() {
	// sqlx no trae "sqlite" en su tabla de bindvars
	sqlx.BindDriver(SQLiteDriverName, sqlx.QUESTION)
}

// SQLiteDSN arma el DSN con los pragmas que usamos en todas las bases SQLite
func SQLiteDSN(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)"
}

// NewSQLiteDB abre (o crea) una base SQLite en la ruta indicada
func NewSQLiteDB(path string, maxOpenConns int) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := OpenSQLite(path, maxOpenConns)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}

// OpenSQLite abre el handle sin verificar la conexión
func OpenSQLite(path string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Open(SQLiteDriverName, SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}
