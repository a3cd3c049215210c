package db

import (
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"

	DefaultSQLiteDSN = "routine.db"
	DefaultMySQLDSN  = "root:@tcp(127.0.0.1:3306)/daily_routine?charset=utf8mb4&parseTime=True&loc=Local"
)

// Options selects the SQL backend. Type is "sqlite" (default) or "mysql".
type Options struct {
	Type     string
	DSN      string
	LogLevel logger.LogLevel
}

// hlogWriter routes GORM's SQL logger into hlog.
type hlogWriter struct{}

func (hlogWriter) Printf(format string, args ...interface{}) { hlog.Infof(format, args...) }

// NewGormDB opens the database described by opts.
func NewGormDB(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	dsn := opts.DSN

	switch opts.Type {
	case TypeMySQL:
		if dsn == "" {
			dsn = DefaultMySQLDSN
			hlog.Infof("Using default MySQL DSN: %s", dsn)
		}
		dialector = mysql.Open(dsn)
	case "", TypeSQLite:
		if dsn == "" {
			dsn = DefaultSQLiteDSN
			hlog.Infof("Using default SQLite DSN: %s", dsn)
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", opts.Type)
	}

	level := opts.LogLevel
	if level == 0 {
		level = logger.Warn
	}
	newLogger := logger.New(
		hlogWriter{},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Type != TypeMySQL {
		// SQLite allows a single writer.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	hlog.Infof("Database connection established (%s).", dialector.Name())
	return db, nil
}

// AutoMigrate performs auto-migration for the given GORM models.
func AutoMigrate(db *gorm.DB, models ...interface{}) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	hlog.Infof("Database migration completed for %d models.", len(models))
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
