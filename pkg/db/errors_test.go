package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pg serialization", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: true},
		{name: "pg deadlock wrapped", err: fmt.Errorf("mark paid: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), want: true},
		{name: "pg connection failure", err: &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, want: true},
		{name: "pg unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, want: false},
		{name: "mysql deadlock", err: &mysql.MySQLError{Number: 1213}, want: true},
		{name: "mysql duplicate", err: &mysql.MySQLError{Number: 1062}, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled wrapped", err: fmt.Errorf("mark order 7 paid: %w", context.Canceled), want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTranslatedErrors(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDuplicate(fmt.Errorf("create user: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsForeignKeyViolation(gorm.ErrForeignKeyViolated))
	assert.False(t, IsDuplicate(gorm.ErrRecordNotFound))
}
