package order

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/apperror"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/services/wallet"
	"github.com/Windi-Fikriyansyah/platform_be_mitra/internal/testutil"
)

func TestAccept_LocksOrderAndMitraProfile(t *testing.T) {
	gdb, mock := testutil.NewMockDB(t)
	orderID, mitraID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_code", "status", "total_price"}).
			AddRow(orderID.String(), "AB12CD34", "pending", "100000.00"))
	mock.ExpectQuery(`SELECT \* FROM "profiles" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "is_blocked"}).
			AddRow(mitraID.String(), "mitra", false))
	mock.ExpectQuery(`SELECT \* FROM "mitra_profiles" WHERE .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"mitra_id"}).AddRow(mitraID.String()))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM "balance_transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("0"))
	mock.ExpectRollback()

	svc := NewService(gdb, wallet.NewLedger(), nil)
	_, err := svc.Accept(context.Background(), orderID, mitraID)

	assert.True(t, apperror.Is(err, apperror.KindPrecondition))
	assert.Equal(t, "insufficient balance", apperror.Message(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_LocksOrder(t *testing.T) {
	gdb, mock := testutil.NewMockDB(t)
	orderID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(orderID.String(), "completed"))
	mock.ExpectRollback()

	_, err := NewService(gdb, wallet.NewLedger(), nil).Complete(context.Background(), orderID)

	assert.True(t, apperror.Is(err, apperror.KindPrecondition))
	assert.NoError(t, mock.ExpectationsWereMet())
}
