package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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
	"github.com/chartduel/chartduel-backend/pkg/metrics"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Notifier persists a notification and attempts realtime delivery.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notifType enums.NotificationType, title, message string) (*models.Notification, error)
}

// Broadcaster fans the completion envelope out to the arena audience.
type Broadcaster interface {
	BroadcastTo(userIDs []uuid.UUID, env realtime.Envelope, exclude uuid.UUID) error
}

// Engine finishes arenas and distributes prizes. Safe under concurrent and
// repeated invocation: the arena's finished transition is a conditional
// update, and a claim that affects zero rows pays nothing.
type Engine struct {
	tx          TxRunner
	arenas      arenas.Repository
	charts      charts.Repository
	users       users.Repository
	ledger      ledger.Service
	notifier    Notifier
	broadcaster Broadcaster
	metrics     *metrics.RealtimeMetrics
	logg        *logger.Logger
}

// NewEngine wires the settlement engine. notifier and broadcaster may be nil
// in headless contexts; the money movement never depends on them.
func NewEngine(
	tx TxRunner,
	arenasRepo arenas.Repository,
	chartsRepo charts.Repository,
	usersRepo users.Repository,
	ledgerSvc ledger.Service,
	notifier Notifier,
	broadcaster Broadcaster,
	m *metrics.RealtimeMetrics,
	logg *logger.Logger,
) (*Engine, error) {
	if tx == nil || arenasRepo == nil || chartsRepo == nil || usersRepo == nil || ledgerSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "settlement engine dependencies missing")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Engine{
		tx:          tx,
		arenas:      arenasRepo,
		charts:      chartsRepo,
		users:       usersRepo,
		ledger:      ledgerSvc,
		notifier:    notifier,
		broadcaster: broadcaster,
		metrics:     m,
		logg:        logg,
	}, nil
}

// Complete settles the arena for the given winner. A replay, concurrent or
// later, observes the finished guard and returns without paying again.
func (e *Engine) Complete(ctx context.Context, arenaID, winnerID uuid.UUID) error {
	if arenaID == uuid.Nil || winnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "arena and winner ids required")
	}

	arena, err := e.arenas.FindByID(ctx, arenaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "arena not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load arena")
	}
	if !isPlayer(arena, winnerID) {
		return pkgerrors.New(pkgerrors.CodeValidation, "winner is not an arena player")
	}

	chart, err := e.charts.FindByID(ctx, arena.ChartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chart")
	}

	// The payout formula is authoritative; prize_pool is display data.
	prize := chart.EntryFee * int64(chart.ParticipantCount)
	now := time.Now().UTC()

	settled := false
	txErr := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		finished, err := e.arenas.WithTx(tx).MarkFinished(ctx, arenaID, winnerID, prize, now)
		if err != nil {
			return fmt.Errorf("finish arena: %w", err)
		}
		if !finished {
			return nil
		}
		settled = true

		if _, err := e.charts.WithTx(tx).MarkCompleted(ctx, chart.ID, winnerID, now); err != nil {
			return fmt.Errorf("complete chart: %w", err)
		}

		usersRepo := e.users.WithTx(tx)
		balance, err := usersRepo.Credit(ctx, winnerID, prize)
		if err != nil {
			return fmt.Errorf("credit winner: %w", err)
		}
		if err := usersRepo.RecordChartWon(ctx, winnerID, prize); err != nil {
			return fmt.Errorf("bump winner counters: %w", err)
		}

		if _, err := e.ledger.WithTx(tx).Record(ctx, ledger.RecordTransactionInput{
			UserID:      winnerID,
			Type:        enums.TransactionTypePrizePayout,
			Amount:      prize,
			Balance:     balance,
			ReferenceID: &chart.ID,
			Description: "prize: " + chart.Title,
		}); err != nil {
			return fmt.Errorf("record payout: %w", err)
		}
		return nil
	})

	logCtx := e.logg.WithArenaID(e.logg.WithChartID(ctx, chart.ID.String()), arenaID.String())
	if txErr != nil {
		e.metrics.SettlementFailed()
		e.logg.Error(logCtx, "settlement failed", txErr)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "settle arena")
	}
	if !settled {
		e.metrics.SettlementReplayed()
		e.logg.Info(logCtx, "arena already settled, replay ignored")
		return nil
	}

	e.metrics.SettlementCompleted()
	e.metrics.ArenaClosed()
	e.logg.Info(e.logg.WithUserID(logCtx, winnerID.String()), "arena settled")

	e.notifyParticipants(ctx, chart, winnerID, prize)
	e.broadcastCompletion(ctx, arena, chart, winnerID, prize)
	return nil
}

// notifyParticipants runs after commit; the settlement row is already durable
// so notification failures only log.
func (e *Engine) notifyParticipants(ctx context.Context, chart *models.Chart, winnerID uuid.UUID, prize int64) {
	if e.notifier == nil {
		return
	}
	participants, err := e.charts.ParticipantIDs(ctx, chart.ID)
	if err != nil {
		e.logg.Error(e.logg.WithChartID(ctx, chart.ID.String()), "participant lookup for notifications failed", err)
		return
	}
	for _, userID := range participants {
		var notifyErr error
		if userID == winnerID {
			_, notifyErr = e.notifier.Notify(ctx, userID, enums.NotificationTypePrizeWon,
				"You won "+chart.Title,
				fmt.Sprintf("The prize of %d credits has been added to your balance.", prize))
		} else {
			_, notifyErr = e.notifier.Notify(ctx, userID, enums.NotificationTypeChartCompleted,
				chart.Title+" has finished",
				"The chart you entered has been decided.")
		}
		if notifyErr != nil {
			e.logg.Error(e.logg.WithUserID(ctx, userID.String()), "settlement notification failed", notifyErr)
		}
	}
}

func (e *Engine) broadcastCompletion(ctx context.Context, arena *models.Arena, chart *models.Chart, winnerID uuid.UUID, prize int64) {
	if e.broadcaster == nil {
		return
	}
	audience, err := e.arenas.AudienceIDs(ctx, arena.ID)
	if err != nil {
		e.logg.Error(e.logg.WithArenaID(ctx, arena.ID.String()), "audience lookup failed", err)
		return
	}
	env := realtime.NewEnvelope(realtime.MessageArenaCompleted, arenas.ArenaCompletedPayload{
		ArenaID:  arena.ID,
		ChartID:  chart.ID,
		WinnerID: winnerID,
		Prize:    prize,
	})
	if err := e.broadcaster.BroadcastTo(audience, env, uuid.Nil); err != nil {
		e.logg.Warn(e.logg.WithArenaID(ctx, arena.ID.String()), "partial arena_completed delivery")
	}
}

func isPlayer(arena *models.Arena, userID uuid.UUID) bool {
	for _, p := range arena.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
