package postgres_test

import (
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/procure/internal/adapters/postgres"
	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/secondary"
)

// setupPostgres connects to PROCURE_TEST_POSTGRES_DSN and applies the schema.
// Tests use fresh uuid-based ids so they can share one database.
func setupPostgres(t *testing.T) *postgres.DB {
	t.Helper()
	dsn := os.Getenv("PROCURE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PROCURE_TEST_POSTGRES_DSN not set")
	}

	database, err := postgres.Connect(t.Context(), postgres.Config{DSN: dsn, MaxConns: 4}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.Migrate(t.Context()))
	return database
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedDraft(t *testing.T, repo *postgres.RequestRepository) string {
	t.Helper()
	id := uuid.NewString()
	req := &secondary.RequestRecord{
		ID: id, ProgramID: "MAL", Year: 2026, FacilityID: "F1",
		CurrentStage: "draft", Status: "active",
		PSMPercent: d("10"), PSMAmount: d("20.00"), Subtotal: d("200.00"), Total: d("220.00"),
		OwnerID: "alice", CreatedAt: "2026-03-01T10:00:00Z", UpdatedAt: "2026-03-01T10:00:00Z",
	}
	items := []*secondary.ItemRecord{{
		ID: id + "-1", RequestID: id, LineNumber: 1, ForecastLineRef: "FL-1", ItemName: "ACT", Unit: "pack",
		OriginalQuantity: d("100"), OriginalUnitPrice: d("2"),
		Quantity: d("100"), UnitPrice: d("2"), LineSubtotal: d("200.00"),
	}}
	require.NoError(t, repo.CreateWithItems(t.Context(), req, items))
	return id
}

func TestPostgres_RequestRoundTrip(t *testing.T) {
	database := setupPostgres(t)
	repo := postgres.NewRequestRepository(database)
	ctx := t.Context()
	id := seedDraft(t, repo)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, d("220").Equal(got.Total))
	assert.Equal(t, "2026-03-01T10:00:00Z", got.CreatedAt)

	items, err := repo.GetItems(ctx, id)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, d("100").Equal(items[0].Quantity))

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPostgres_ConcurrentTransitions(t *testing.T) {
	database := setupPostgres(t)
	repo := postgres.NewRequestRepository(database)
	ctx := t.Context()
	id := seedDraft(t, repo)

	const workers = 4
	errCh := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- repo.TransitionStage(ctx, secondary.StageChange{
				RequestID: id, ExpectedStage: "draft", NewStage: "submitted", NewStatus: "active",
				Transition: &secondary.TransitionRecord{
					ID: uuid.NewString(), RequestID: id, FromStage: "draft", ToStage: "submitted",
					Action: "submit", ActorID: "alice", Decision: "submitted", CreatedAt: "2026-03-01T11:00:00Z",
				},
			})
		}()
	}
	wg.Wait()
	close(errCh)

	var ok, stale int
	for err := range errCh {
		if err == nil {
			ok++
		} else if errs.IsRetryable(err) {
			stale++
		} else {
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, stale)

	list, err := postgres.NewTransitionRepository(database).ListByRequest(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = database.Pool.Exec(ctx, "DELETE FROM stage_transitions WHERE id = $1", list[0].ID)
	assert.ErrorContains(t, err, "append-only")
}

func TestPostgres_UserRoles(t *testing.T) {
	database := setupPostgres(t)
	repo := postgres.NewReferenceRepository(database)
	ctx := t.Context()
	user := "user-" + uuid.NewString()

	require.NoError(t, repo.SaveUserRole(ctx, &secondary.UserRoleRecord{
		UserID: user, Role: "reviewer", AdminLevel: "zone", ZoneID: "Z1",
	}))
	got, err := repo.GetUserRole(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Z1", got.ZoneID)

	err = repo.SaveUserRole(ctx, &secondary.UserRoleRecord{
		UserID: user, Role: "admin", AdminLevel: "national", RegionID: "R1",
	})
	assert.Error(t, err)
}
