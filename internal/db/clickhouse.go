package db

import (
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/jmoiron/sqlx"
)

// NewClickHouseConnection opens ClickHouse through the database/sql driver,
// e.g. clickhouse://default:@localhost:9000/leadgw?dial_timeout=5s&compress=true
func NewClickHouseConnection(c config.DatabaseConfig) (*sqlx.DB, error) {
	return open("clickhouse", c, 3*time.Second)
}
