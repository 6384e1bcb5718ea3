package client

import (
	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config carries the MySQL connection settings read from config.yaml with
// environment overrides.
type Config struct {
	Username        string
	Password        string
	Host            string
	Port            uint32
	Name            string
	TracingEnabled  bool
	MaxOpenConns    uint32
	MaxIdleConns    uint32
	ConnMaxIdleTime uint32 // minutes
	ConnMaxLifeTime uint32 // minutes
}

func ReadConfig() *Config {
	// Enable environment variable usage
	viper.BindEnv("db.user", "DB_USER")
	viper.BindEnv("db.password", "DB_PASSWORD")
	viper.BindEnv("db.host", "DB_HOST")
	viper.BindEnv("db.port", "DB_PORT")
	viper.BindEnv("db.name", "DB_NAME")

	return &Config{
		Username:        viper.GetString("db.user"),
		Password:        viper.GetString("db.password"),
		Host:            viper.GetString("db.host"),
		Port:            viper.GetUint32("db.port"),
		Name:            viper.GetString("db.name"),
		TracingEnabled:  viper.GetBool("db.tracing_enabled"),
		MaxOpenConns:    viper.GetUint32("db.max_open_conns"),
		MaxIdleConns:    viper.GetUint32("db.max_idle_conns"),
		ConnMaxIdleTime: viper.GetUint32("db.conn_max_idle_time"),
		ConnMaxLifeTime: viper.GetUint32("db.conn_max_life_time"),
	}
}

func (c *Config) dsn() string {
	mysqlConfig := mysql.NewConfig()
	mysqlConfig.Addr = addr(c.Host, c.Port)
	mysqlConfig.Net = "tcp"
	mysqlConfig.DBName = c.Name
	mysqlConfig.User = c.Username
	mysqlConfig.Passwd = c.Password
	mysqlConfig.AllowCleartextPasswords = true
	mysqlConfig.AllowNativePasswords = true
	mysqlConfig.ParseTime = true
	return mysqlConfig.FormatDSN()
}
