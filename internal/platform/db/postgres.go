// Package db wraps PostgreSQL connectivity: pool-tuned gorm.DB construction
// plus the schema migration entrypoint every bounded context's models
// register themselves with.
package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"oxsubstrate/internal/platform/config"
)

// Postgres wraps a pool-tuned gorm.DB.
type Postgres struct {
	*gorm.DB
}

// Connect opens a pooled connection and pings it. It does not run
// migrations; call Migrate with the set of models each context owns.
func Connect(cfg config.PostgresConfig) (*Postgres, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DSN(),
	}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("extract sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Postgres{DB: gormDB}, nil
}

// Migrate runs AutoMigrate over every model each bounded context registers,
// then applies any raw SQL each context needs for constructs AutoMigrate
// cannot express (GIN indexes, partial indexes).
func (p *Postgres) Migrate(ctx context.Context, models []any, rawStatements []string) error {
	if err := p.DB.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	for _, stmt := range rawStatements {
		if err := p.DB.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("exec migration statement %q: %w", stmt, err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
