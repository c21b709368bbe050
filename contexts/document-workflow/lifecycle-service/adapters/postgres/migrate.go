package postgresadapter

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the embedded schema migrations. dialect is a goose dialect
// name such as "postgres" or "sqlite3".
func Migrate(ctx context.Context, db *gorm.DB, dialect string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("resolve sql db handle: %w", err)
	}

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
