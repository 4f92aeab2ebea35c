package charts

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chartduel/chartduel-backend/internal/arenas"
	"github.com/chartduel/chartduel-backend/internal/ledger"
	"github.com/chartduel/chartduel-backend/internal/realtime"
	"github.com/chartduel/chartduel-backend/internal/users"
	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	pkgerrors "github.com/chartduel/chartduel-backend/pkg/errors"
	"github.com/chartduel/chartduel-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastTo(userIDs []uuid.UUID, env realtime.Envelope, exclude uuid.UUID) error {
	return nil
}

func setupChartsDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  avatar_url TEXT,
  balance INTEGER NOT NULL DEFAULT 0,
  reputation REAL NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'offline',
  total_earned INTEGER NOT NULL DEFAULT 0,
  charts_won INTEGER NOT NULL DEFAULT 0,
  charts_played INTEGER NOT NULL DEFAULT 0,
  total_donations_received INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE charts (
  id TEXT PRIMARY KEY,
  creator_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT,
  entry_fee INTEGER NOT NULL,
  prize_pool INTEGER NOT NULL DEFAULT 0,
  participant_count INTEGER NOT NULL DEFAULT 0,
  max_participants INTEGER NOT NULL,
  min_participants INTEGER NOT NULL DEFAULT 2,
  win_score INTEGER NOT NULL DEFAULT 100,
  status TEXT NOT NULL DEFAULT 'open',
  winner_id TEXT,
  total_donations INTEGER NOT NULL DEFAULT 0,
  scheduled_at DATETIME,
  started_at DATETIME,
  ended_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE chart_participants (
  id TEXT PRIMARY KEY,
  chart_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'joined',
  joined_at DATETIME,
  UNIQUE (chart_id, user_id)
);`,
		`CREATE TABLE arenas (
  id TEXT PRIMARY KEY,
  chart_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'live',
  round INTEGER NOT NULL DEFAULT 0,
  winner_id TEXT,
  prize INTEGER NOT NULL DEFAULT 0,
  started_at DATETIME,
  ended_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE arena_players (
  id TEXT PRIMARY KEY,
  arena_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  moves INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'playing',
  UNIQUE (arena_id, user_id)
);`,
		`CREATE TABLE transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount INTEGER NOT NULL,
  balance INTEGER NOT NULL,
  reference_id TEXT,
  description TEXT NOT NULL,
  created_at DATETIME
);`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type chartsFixture struct {
	svc   Service
	db    *gorm.DB
	chart *models.Chart
	alice *models.User
	bob   *models.User
}

func newChartsFixture(t *testing.T) *chartsFixture {
	t.Helper()

	db := setupChartsDB(t)

	alice := &models.User{ID: uuid.New(), Username: "alice", DisplayName: "alice", Balance: 500}
	bob := &models.User{ID: uuid.New(), Username: "bob", DisplayName: "bob", Balance: 500}
	require.NoError(t, db.Create(alice).Error)
	require.NoError(t, db.Create(bob).Error)

	chart := &models.Chart{
		ID:              uuid.New(),
		CreatorID:       alice.ID,
		Title:           "first to fifty",
		EntryFee:        100,
		MaxParticipants: 2,
		MinParticipants: 2,
		WinScore:        50,
		Status:          enums.ChartStatusOpen,
	}
	require.NoError(t, db.Create(chart).Error)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	arenaSvc, err := arenas.NewService(arenas.NewRepository(db), users.NewRepository(db), noopBroadcaster{}, logg, arenas.Config{})
	require.NoError(t, err)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(
		&gormTxRunner{db: db},
		NewRepository(db),
		users.NewRepository(db),
		ledgerSvc,
		arenaSvc,
		logg,
		Config{MinEntryFee: 0, MaxParticipantsCap: 64, DefaultWinScore: 100},
	)
	require.NoError(t, err)

	return &chartsFixture{svc: svc, db: db, chart: chart, alice: alice, bob: bob}
}

func TestService_JoinDebitsAndRecords(t *testing.T) {
	f := newChartsFixture(t)
	ctx := context.Background()

	result, err := f.svc.Join(ctx, f.chart.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Nil(t, result.ArenaID, "one join must not start a two-slot chart")
	assert.Equal(t, 1, result.Chart.ParticipantCount)
	assert.Equal(t, enums.ChartStatusOpen, result.Chart.Status)
	assert.Equal(t, int64(100), result.Chart.PrizePool)

	var alice models.User
	require.NoError(t, f.db.First(&alice, "id = ?", f.alice.ID).Error)
	assert.Equal(t, int64(400), alice.Balance)
	assert.Equal(t, 1, alice.ChartsPlayed)

	var txn models.Transaction
	require.NoError(t, f.db.First(&txn, "user_id = ?", f.alice.ID).Error)
	assert.Equal(t, enums.TransactionTypeChartEntry, txn.Type)
	assert.Equal(t, int64(-100), txn.Amount)
	assert.Equal(t, int64(400), txn.Balance)
	require.NotNil(t, txn.ReferenceID)
	assert.Equal(t, f.chart.ID, *txn.ReferenceID)
}

func TestService_JoinFillsChartAndCreatesArena(t *testing.T) {
	f := newChartsFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, f.chart.ID, f.alice.ID)
	require.NoError(t, err)

	result, err := f.svc.Join(ctx, f.chart.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ChartStatusInProgress, result.Chart.Status)
	assert.Equal(t, int64(200), result.Chart.PrizePool)
	require.NotNil(t, result.ArenaID, "filling the last slot must create the arena")

	var arena models.Arena
	require.NoError(t, f.db.Preload("Players").First(&arena, "id = ?", result.ArenaID).Error)
	assert.Equal(t, f.chart.ID, arena.ChartID)
	assert.Equal(t, enums.ArenaStatusLive, arena.Status)
	require.Len(t, arena.Players, 2)
	for _, player := range arena.Players {
		assert.Equal(t, enums.PlayerStatusPlaying, player.Status)
		assert.Zero(t, player.Score)
	}

	var chart models.Chart
	require.NoError(t, f.db.First(&chart, "id = ?", f.chart.ID).Error)
	assert.NotNil(t, chart.StartedAt)
}

func TestService_JoinStartedChartConflicts(t *testing.T) {
	f := newChartsFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, f.chart.ID, f.alice.ID)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, f.chart.ID, f.bob.ID)
	require.NoError(t, err)

	late := &models.User{ID: uuid.New(), Username: "carol", DisplayName: "carol", Balance: 500}
	require.NoError(t, f.db.Create(late).Error)

	_, err = f.svc.Join(ctx, f.chart.ID, late.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for a started chart, got %v", err)
	}

	var carol models.User
	require.NoError(t, f.db.First(&carol, "id = ?", late.ID).Error)
	assert.Equal(t, int64(500), carol.Balance, "rejected join must not debit")
}

func TestService_JoinTwiceConflictsAndRollsBack(t *testing.T) {
	f := newChartsFixture(t)
	ctx := context.Background()

	_, err := f.svc.Join(ctx, f.chart.ID, f.alice.ID)
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, f.chart.ID, f.alice.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for duplicate join, got %v", err)
	}

	var chart models.Chart
	require.NoError(t, f.db.First(&chart, "id = ?", f.chart.ID).Error)
	assert.Equal(t, 1, chart.ParticipantCount, "failed join must release the claimed slot")
	assert.Equal(t, int64(100), chart.PrizePool)

	var alice models.User
	require.NoError(t, f.db.First(&alice, "id = ?", f.alice.ID).Error)
	assert.Equal(t, int64(400), alice.Balance, "only the first join debits")

	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestService_JoinInsufficientFundsRollsBack(t *testing.T) {
	f := newChartsFixture(t)
	ctx := context.Background()

	broke := &models.User{ID: uuid.New(), Username: "dana", DisplayName: "dana", Balance: 40}
	require.NoError(t, f.db.Create(broke).Error)

	_, err := f.svc.Join(ctx, f.chart.ID, broke.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	var chart models.Chart
	require.NoError(t, f.db.First(&chart, "id = ?", f.chart.ID).Error)
	assert.Zero(t, chart.ParticipantCount, "failed debit must release the claimed slot")
	assert.Zero(t, chart.PrizePool)

	var count int64
	require.NoError(t, f.db.Model(&models.ChartParticipant{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestService_JoinUnknownChart(t *testing.T) {
	f := newChartsFixture(t)

	_, err := f.svc.Join(context.Background(), uuid.New(), f.alice.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	f := newChartsFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input CreateChartInput
	}{
		{"empty title", CreateChartInput{Title: "  ", EntryFee: 10, MaxParticipants: 2}},
		{"one participant", CreateChartInput{Title: "solo", EntryFee: 10, MaxParticipants: 1}},
		{"over cap", CreateChartInput{Title: "stadium", EntryFee: 10, MaxParticipants: 500}},
		{"min above max", CreateChartInput{Title: "inverted", EntryFee: 10, MaxParticipants: 2, MinParticipants: 4}},
		{"negative win score", CreateChartInput{Title: "broken", EntryFee: 10, MaxParticipants: 2, WinScore: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.alice.ID, tc.input)
			if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_CreateDefaults(t *testing.T) {
	f := newChartsFixture(t)

	dto, err := f.svc.Create(context.Background(), f.alice.ID, CreateChartInput{
		Title:           "fresh board",
		EntryFee:        25,
		MaxParticipants: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, dto.MinParticipants)
	assert.Equal(t, int64(100), dto.WinScore)
	assert.Equal(t, enums.ChartStatusOpen, dto.Status)
	assert.Zero(t, dto.ParticipantCount)
}
