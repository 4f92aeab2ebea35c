package settlement

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
	"github.com/chartduel/chartduel-backend/internal/charts"
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

type recordingNotifier struct {
	notifications []recordedNotification
}

type recordedNotification struct {
	UserID uuid.UUID
	Type   enums.NotificationType
}

func (n *recordingNotifier) Notify(ctx context.Context, userID uuid.UUID, notifType enums.NotificationType, title, message string) (*models.Notification, error) {
	n.notifications = append(n.notifications, recordedNotification{UserID: userID, Type: notifType})
	return &models.Notification{UserID: userID, Type: notifType, Title: title, Message: message}, nil
}

type recordingBroadcaster struct {
	envelopes []realtime.Envelope
	audiences [][]uuid.UUID
}

func (b *recordingBroadcaster) BroadcastTo(userIDs []uuid.UUID, env realtime.Envelope, exclude uuid.UUID) error {
	b.envelopes = append(b.envelopes, env)
	b.audiences = append(b.audiences, userIDs)
	return nil
}

func setupSettlementDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

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
		`CREATE TABLE arena_spectators (
  id TEXT PRIMARY KEY,
  arena_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  joined_at DATETIME,
  UNIQUE (arena_id, user_id)
);`,
		`CREATE TABLE arena_chat_messages (
  id TEXT PRIMARY KEY,
  arena_id TEXT NOT NULL,
  user_id TEXT,
  kind TEXT NOT NULL DEFAULT 'user',
  body TEXT NOT NULL,
  created_at DATETIME
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

type settlementFixture struct {
	engine      *Engine
	db          *gorm.DB
	notifier    *recordingNotifier
	broadcaster *recordingBroadcaster
	chart       *models.Chart
	arena       *models.Arena
	winner      *models.User
	loser       *models.User
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()

	db := setupSettlementDB(t)

	winner := &models.User{ID: uuid.New(), Username: "winner", DisplayName: "winner", Balance: 50}
	loser := &models.User{ID: uuid.New(), Username: "loser", DisplayName: "loser", Balance: 10}
	require.NoError(t, db.Create(winner).Error)
	require.NoError(t, db.Create(loser).Error)

	chart := &models.Chart{
		ID:               uuid.New(),
		CreatorID:        winner.ID,
		Title:            "speedrun",
		EntryFee:         100,
		PrizePool:        200,
		ParticipantCount: 2,
		MaxParticipants:  2,
		WinScore:         100,
		Status:           enums.ChartStatusInProgress,
	}
	require.NoError(t, db.Create(chart).Error)
	for _, u := range []*models.User{winner, loser} {
		require.NoError(t, db.Create(&models.ChartParticipant{
			ID:      uuid.New(),
			ChartID: chart.ID,
			UserID:  u.ID,
			Status:  enums.ParticipantStatusJoined,
		}).Error)
	}

	arena := &models.Arena{
		ID:      uuid.New(),
		ChartID: chart.ID,
		Status:  enums.ArenaStatusLive,
		Players: []models.ArenaPlayer{
			{ID: uuid.New(), UserID: winner.ID, Status: enums.PlayerStatusPlaying},
			{ID: uuid.New(), UserID: loser.ID, Status: enums.PlayerStatusPlaying},
		},
	}
	require.NoError(t, db.Create(arena).Error)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db))
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	broadcaster := &recordingBroadcaster{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	engine, err := NewEngine(
		&gormTxRunner{db: db},
		arenas.NewRepository(db),
		charts.NewRepository(db),
		users.NewRepository(db),
		ledgerSvc,
		notifier,
		broadcaster,
		nil,
		logg,
	)
	require.NoError(t, err)

	return &settlementFixture{
		engine:      engine,
		db:          db,
		notifier:    notifier,
		broadcaster: broadcaster,
		chart:       chart,
		arena:       arena,
		winner:      winner,
		loser:       loser,
	}
}

func TestEngine_CompleteSettlesOnce(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Complete(ctx, f.arena.ID, f.winner.ID))

	var arena models.Arena
	require.NoError(t, f.db.First(&arena, "id = ?", f.arena.ID).Error)
	assert.Equal(t, enums.ArenaStatusFinished, arena.Status)
	require.NotNil(t, arena.WinnerID)
	assert.Equal(t, f.winner.ID, *arena.WinnerID)
	assert.Equal(t, int64(200), arena.Prize)
	require.NotNil(t, arena.EndedAt)

	var chart models.Chart
	require.NoError(t, f.db.First(&chart, "id = ?", f.chart.ID).Error)
	assert.Equal(t, enums.ChartStatusCompleted, chart.Status)
	require.NotNil(t, chart.WinnerID)
	assert.Equal(t, f.winner.ID, *chart.WinnerID)

	var winner models.User
	require.NoError(t, f.db.First(&winner, "id = ?", f.winner.ID).Error)
	assert.Equal(t, int64(250), winner.Balance, "50 starting + 200 prize")
	assert.Equal(t, 1, winner.ChartsWon)
	assert.Equal(t, int64(200), winner.TotalEarned)

	var payouts []models.Transaction
	require.NoError(t, f.db.Where("user_id = ? AND type = ?", f.winner.ID, enums.TransactionTypePrizePayout).Find(&payouts).Error)
	require.Len(t, payouts, 1)
	assert.Equal(t, int64(200), payouts[0].Amount)
	assert.Equal(t, int64(250), payouts[0].Balance)
	require.NotNil(t, payouts[0].ReferenceID)
	assert.Equal(t, f.chart.ID, *payouts[0].ReferenceID)

	require.Len(t, f.notifier.notifications, 2)
	byUser := map[uuid.UUID]enums.NotificationType{}
	for _, n := range f.notifier.notifications {
		byUser[n.UserID] = n.Type
	}
	assert.Equal(t, enums.NotificationTypePrizeWon, byUser[f.winner.ID])
	assert.Equal(t, enums.NotificationTypeChartCompleted, byUser[f.loser.ID])

	require.Len(t, f.broadcaster.envelopes, 1)
	assert.Equal(t, realtime.MessageArenaCompleted, f.broadcaster.envelopes[0].Type)
	assert.Len(t, f.broadcaster.audiences[0], 2)
}

func TestEngine_CompleteReplayPaysNothing(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Complete(ctx, f.arena.ID, f.winner.ID))

	// Replay with a different claimed winner: the finished guard wins.
	require.NoError(t, f.engine.Complete(ctx, f.arena.ID, f.loser.ID))

	var arena models.Arena
	require.NoError(t, f.db.First(&arena, "id = ?", f.arena.ID).Error)
	require.NotNil(t, arena.WinnerID)
	assert.Equal(t, f.winner.ID, *arena.WinnerID, "replay must not change the winner")

	var winner models.User
	require.NoError(t, f.db.First(&winner, "id = ?", f.winner.ID).Error)
	assert.Equal(t, int64(250), winner.Balance, "prize must be credited exactly once")

	var loser models.User
	require.NoError(t, f.db.First(&loser, "id = ?", f.loser.ID).Error)
	assert.Equal(t, int64(10), loser.Balance)

	var count int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("type = ?", enums.TransactionTypePrizePayout).Count(&count).Error)
	assert.Equal(t, int64(1), count, "exactly one payout ledger row")

	assert.Len(t, f.notifier.notifications, 2, "replay must not re-notify")
	assert.Len(t, f.broadcaster.envelopes, 1, "replay must not re-broadcast")
}

func TestEngine_CompleteUnknownArena(t *testing.T) {
	f := newSettlementFixture(t)

	err := f.engine.Complete(context.Background(), uuid.New(), f.winner.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEngine_CompleteNonPlayerWinner(t *testing.T) {
	f := newSettlementFixture(t)

	err := f.engine.Complete(context.Background(), f.arena.ID, uuid.New())
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	var arena models.Arena
	require.NoError(t, f.db.First(&arena, "id = ?", f.arena.ID).Error)
	assert.Equal(t, enums.ArenaStatusLive, arena.Status, "arena must stay live")
}
