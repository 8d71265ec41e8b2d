package db

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/smallbiznis/rentbook/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	KindPostgres = "postgres"
	KindMySQL    = "mysql"
	KindSQLite   = "sqlite"
)

// Kind folds the accepted DATABASE_TYPE spellings onto one dialect name.
// Unknown values are returned lower-cased so the error names them.
func Kind(dbType string) string {
	switch kind := strings.ToLower(strings.TrimSpace(dbType)); kind {
	case "postgres", "postgresql", "pg":
		return KindPostgres
	case "mysql", "mariadb":
		return KindMySQL
	case "sqlite", "sqlite3":
		return KindSQLite
	default:
		return kind
	}
}

// DSN builds the connection string for the configured dialect. Sessions run
// in UTC so reading dates round-trip unchanged. sqlite has foreign key
// enforcement switched on, which it leaves off by default.
func DSN(cfg config.Config) (string, error) {
	switch Kind(cfg.DBType) {
	case KindMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		), nil
	case KindPostgres:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		), nil
	case KindSQLite:
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			path = "rentbook.db"
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + url.Values{"_foreign_keys": {"on"}}.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported database type %q", cfg.DBType)
	}
}

func Dialect(cfg config.Config) (gorm.Dialector, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	switch Kind(cfg.DBType) {
	case KindMySQL:
		return mysql.Open(dsn), nil
	case KindPostgres:
		return postgres.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}
