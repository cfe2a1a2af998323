package repo

import (
	"context"

	"gorm.io/gorm"

	pkgdb "github.com/Skotchmaster/game_store/pkg/db"
)

type GormRepo struct {
	DB *gorm.DB
}

// InTx runs fn inside one transaction. fn receives a repo bound to the
// transaction; returning an error rolls everything back.
func (r *GormRepo) InTx(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}

func (r *GormRepo) Ping(ctx context.Context) error {
	return pkgdb.Ping(ctx, r.DB)
}
