package client

import (
	"fmt"
	"os"
	"time"

	sqldriver "github.com/go-sql-driver/mysql"
	sqltrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/database/sql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func addr(host string, port uint32) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// Open initializes a gorm connection from config. When tracing is enabled the
// underlying driver is registered with the Datadog sql integration so every
// query produces a span.
func Open(name string, cfg *Config) (*gorm.DB, error) {
	dialector := gormmysql.Open(cfg.dsn())
	if cfg.TracingEnabled {
		sqltrace.Register(name, &sqldriver.MySQLDriver{}, sqltrace.WithServiceName(os.Getenv("DD_SERVICE")))
		sqlDB, err := sqltrace.Open(name, cfg.dsn(), sqltrace.WithServiceName(os.Getenv("DD_SERVICE")))
		if err != nil {
			return nil, err
		}
		dialector = gormmysql.New(gormmysql.Config{Conn: sqlDB})
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(int(cfg.MaxIdleConns))
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(int(cfg.MaxOpenConns))
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}
	if cfg.ConnMaxLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeTime) * time.Minute)
	}
	return db, nil
}
