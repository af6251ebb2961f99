package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
)

// newMockAssignmentRepository creates a GormFeeAssignmentRepository with a mocked SQL connection
func newMockAssignmentRepository(t *testing.T) (*GormFeeAssignmentRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormFeeAssignmentRepository(gormDB), mock, mockDB
}

func newLockableAssignment(t *testing.T) *fees.FeeAssignment {
	t.Helper()

	tenantID := uuid.New()
	structure, err := fees.NewFeeStructure(tenantID, "Tuition", decimal.NewFromInt(1000), nil, fees.NoLateFee())
	require.NoError(t, err)

	assignment, err := fees.NewFeeAssignment(tenantID, uuid.New(), uuid.New(), structure)
	require.NoError(t, err)
	return assignment
}

func TestGormFeeAssignmentRepository_FindByID(t *testing.T) {
	t.Run("finds existing assignment", func(t *testing.T) {
		repo, mock, mockDB := newMockAssignmentRepository(t)
		defer mockDB.Close()

		assignmentID := uuid.New()
		tenantID := uuid.New()
		studentID := uuid.New()

		rows := sqlmock.NewRows([]string{
			"id", "tenant_id", "version", "student_id", "structure_name",
			"amount", "principal_paid", "late_fee_type", "active",
		}).AddRow(assignmentID, tenantID, 3, studentID, "Tuition Term 1",
			decimal.RequireFromString("1000"), decimal.RequireFromString("250"), "NONE", true)

		mock.ExpectQuery(`SELECT \* FROM "fee_assignments" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, assignmentID, 1).
			WillReturnRows(rows)

		assignment, err := repo.FindByID(context.Background(), tenantID, assignmentID)

		require.NoError(t, err)
		require.NotNil(t, assignment)
		assert.Equal(t, assignmentID, assignment.ID)
		assert.Equal(t, tenantID, assignment.TenantID)
		assert.Equal(t, 3, assignment.Version)
		assert.Equal(t, "Tuition Term 1", assignment.StructureName)
		assert.True(t, assignment.Amount.Equal(decimal.NewFromInt(1000)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil without error for missing assignment", func(t *testing.T) {
		repo, mock, mockDB := newMockAssignmentRepository(t)
		defer mockDB.Close()

		assignmentID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "fee_assignments" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, assignmentID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		assignment, err := repo.FindByID(context.Background(), tenantID, assignmentID)

		assert.NoError(t, err)
		assert.Nil(t, assignment)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormFeeAssignmentRepository_ExistsForStructure(t *testing.T) {
	t.Run("reports existing assignment", func(t *testing.T) {
		repo, mock, mockDB := newMockAssignmentRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		studentID := uuid.New()
		sessionID := uuid.New()
		structureID := uuid.New()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "fee_assignments"`).
			WithArgs(tenantID, studentID, sessionID, structureID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		exists, err := repo.ExistsForStructure(context.Background(), tenantID, studentID, sessionID, structureID)

		assert.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports no assignment", func(t *testing.T) {
		repo, mock, mockDB := newMockAssignmentRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "fee_assignments"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		exists, err := repo.ExistsForStructure(context.Background(), tenantID, uuid.New(), uuid.New(), uuid.New())

		assert.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormFeeAssignmentRepository_SaveWithLock(t *testing.T) {
	t.Run("updates row when stored version matches", func(t *testing.T) {
		repo, mock, mockDB := newMockAssignmentRepository(t)
		defer mockDB.Close()

		assignment := newLockableAssignment(t)
		_, err := assignment.RecordPayment(decimal.NewFromInt(100), time.Now())
		require.NoError(t, err)
		assert.Equal(t, 2, assignment.Version)

		mock.ExpectExec(`UPDATE "fee_assignments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.SaveWithLock(context.Background(), assignment)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns conflict when stored version has moved on", func(t *testing.T) {
		repo, mock, mockDB := newMockAssignmentRepository(t)
		defer mockDB.Close()

		assignment := newLockableAssignment(t)
		_, err := assignment.RecordPayment(decimal.NewFromInt(100), time.Now())
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "fee_assignments" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(context.Background(), assignment)

		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates database errors", func(t *testing.T) {
		repo, mock, mockDB := newMockAssignmentRepository(t)
		defer mockDB.Close()

		assignment := newLockableAssignment(t)
		_, err := assignment.RecordPayment(decimal.NewFromInt(100), time.Now())
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "fee_assignments" SET`).
			WillReturnError(sql.ErrConnDone)

		err = repo.SaveWithLock(context.Background(), assignment)

		require.Error(t, err)
		assert.NotErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormFeeAssignmentRepository_FindAllForTenant(t *testing.T) {
	t.Run("applies unsettled filter in SQL", func(t *testing.T) {
		repo, mock, mockDB := newMockAssignmentRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		unsettled := true

		mock.ExpectQuery(`SELECT \* FROM "fee_assignments" WHERE tenant_id = \$1 AND \(amount \+ late_fee_accrued - total_discount_amount - late_fee_waived - principal_paid - late_fee_paid\) > 0`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id"}))

		assignments, err := repo.FindAllForTenant(context.Background(), tenantID, fees.FeeAssignmentFilter{
			Unsettled: &unsettled,
		})

		assert.NoError(t, err)
		assert.Empty(t, assignments)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
