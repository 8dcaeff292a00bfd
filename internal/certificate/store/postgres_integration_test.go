//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"certledger/internal/certificate/models"
	"certledger/internal/certificate/store"
	"certledger/internal/platform/database"
	"certledger/pkg/platform/sentinel"
	"certledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	db       *database.DB
	store    *store.SQLStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.db = &database.DB{DB: s.postgres.DB, Dialect: database.Postgres}
	s.Require().NoError(s.db.Migrate(context.Background()))
	s.store = store.NewSQLStore(s.db)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.postgres.DB.ExecContext(context.Background(), "TRUNCATE certificates RESTART IDENTITY")
	s.Require().NoError(err)
}

func newRecord(key, name string) *models.Record {
	return &models.Record{
		Key:              key,
		StudentName:      name,
		IssueDate:        1700000000,
		AuthorityAddress: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		TransactionHash:  "0x" + uuid.NewString(),
		FilePath:         "uploads/" + key + ".pdf",
	}
}

func (s *PostgresStoreSuite) TestInsertFindList() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, newRecord("K2", "Maria Silva")))
	s.Require().NoError(s.store.Insert(ctx, newRecord("K1", "Maria Silva")))

	got, err := s.store.FindByKey(ctx, "K1")
	s.Require().NoError(err)
	s.Equal("Maria Silva", got.StudentName)
	s.False(got.CreatedAt.IsZero())

	list, err := s.store.ListByStudentName(ctx, "Maria Silva")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("K2", list[0].Key)
	s.Equal("K1", list[1].Key)

	_, err = s.store.FindByKey(ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentUniqueKeyViolation verifies that concurrent inserts of the
// same key result in exactly one success.
func (s *PostgresStoreSuite) TestConcurrentUniqueKeyViolation() {
	ctx := context.Background()
	key := "0x" + uuid.NewString()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Insert(ctx, newRecord(key, "Concurrent Student"))
			if err == nil {
				successCount.Add(1)
				return
			}
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}
