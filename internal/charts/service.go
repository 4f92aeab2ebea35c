package charts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartduel/chartduel-backend/internal/arenas"
	"github.com/chartduel/chartduel-backend/internal/ledger"
	"github.com/chartduel/chartduel-backend/internal/users"
	"github.com/chartduel/chartduel-backend/pkg/db"
	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	pkgerrors "github.com/chartduel/chartduel-backend/pkg/errors"
	"github.com/chartduel/chartduel-backend/pkg/logger"
)

// TxRunner runs a function inside a database transaction. Satisfied by
// db.Client.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var _ TxRunner = (*db.Client)(nil)

// Service drives chart creation and the fee-gated join, including the
// synchronous arena hand-off when the last slot fills.
type Service interface {
	Create(ctx context.Context, creatorID uuid.UUID, input CreateChartInput) (*ChartDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*ChartDTO, error)
	Join(ctx context.Context, chartID, userID uuid.UUID) (*JoinResult, error)
}

// Config bounds boundary validation for new charts.
type Config struct {
	MinEntryFee        int64
	MaxParticipantsCap int
	DefaultWinScore    int64
}

type service struct {
	tx     TxRunner
	repo   Repository
	users  users.Repository
	ledger ledger.Service
	arenas arenas.Service
	logg   *logger.Logger
	cfg    Config
}

// NewService wires the chart service.
func NewService(tx TxRunner, repo Repository, usersRepo users.Repository, ledgerSvc ledger.Service, arenaSvc arenas.Service, logg *logger.Logger, cfg Config) (Service, error) {
	if tx == nil || repo == nil || usersRepo == nil || ledgerSvc == nil || arenaSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chart service dependencies missing")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if cfg.MaxParticipantsCap <= 0 {
		cfg.MaxParticipantsCap = 64
	}
	if cfg.DefaultWinScore <= 0 {
		cfg.DefaultWinScore = 100
	}
	return &service{
		tx:     tx,
		repo:   repo,
		users:  usersRepo,
		ledger: ledgerSvc,
		arenas: arenaSvc,
		logg:   logg,
		cfg:    cfg,
	}, nil
}

func (s *service) Create(ctx context.Context, creatorID uuid.UUID, input CreateChartInput) (*ChartDTO, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator id required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if input.EntryFee < s.cfg.MinEntryFee {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry fee below minimum").
			WithDetails(map[string]any{"min_entry_fee": s.cfg.MinEntryFee})
	}
	if input.MaxParticipants < 2 || input.MaxParticipants > s.cfg.MaxParticipantsCap {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max participants out of range").
			WithDetails(map[string]any{"cap": s.cfg.MaxParticipantsCap})
	}
	minParticipants := input.MinParticipants
	if minParticipants == 0 {
		minParticipants = 2
	}
	if minParticipants < 2 || minParticipants > input.MaxParticipants {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min participants out of range")
	}
	winScore := input.WinScore
	if winScore == 0 {
		winScore = s.cfg.DefaultWinScore
	}
	if winScore <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "win score must be positive")
	}

	chart := &models.Chart{
		ID:              uuid.New(),
		CreatorID:       creatorID,
		Title:           title,
		Description:     input.Description,
		EntryFee:        input.EntryFee,
		MaxParticipants: input.MaxParticipants,
		MinParticipants: minParticipants,
		WinScore:        winScore,
		Status:          enums.ChartStatusOpen,
		ScheduledAt:     input.ScheduledAt,
	}
	if err := s.repo.Create(ctx, chart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create chart")
	}
	return FromModel(chart), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ChartDTO, error) {
	chart, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return FromModel(chart), nil
}

// Join claims a slot, debits the entry fee and records the participant inside
// one transaction. Filling the last slot flips the chart to in_progress and
// creates the arena in the same transaction, so either everything about the
// join exists or none of it does.
func (s *service) Join(ctx context.Context, chartID, userID uuid.UUID) (*JoinResult, error) {
	if chartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chart id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var result JoinResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		usersRepo := s.users.WithTx(tx)
		ledgerSvc := s.ledger.WithTx(tx)

		claimed, err := repo.ClaimSlot(ctx, chartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim slot")
		}
		if !claimed {
			return s.classifyFailedClaim(ctx, repo, chartID)
		}

		chart, err := s.load(ctx, repo, chartID)
		if err != nil {
			return err
		}

		balance, ok, err := usersRepo.DebitIfSufficient(ctx, userID, chart.EntryFee)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit entry fee")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance does not cover the entry fee").
				WithDetails(map[string]any{"entry_fee": chart.EntryFee})
		}

		if err := repo.AddParticipant(ctx, &models.ChartParticipant{
			ID:      uuid.New(),
			ChartID: chart.ID,
			UserID:  userID,
			Status:  enums.ParticipantStatusJoined,
		}); err != nil {
			if db.IsUniqueViolation(err, "chart_participants") {
				return pkgerrors.New(pkgerrors.CodeConflict, "already joined this chart")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add participant")
		}

		if _, err := ledgerSvc.Record(ctx, ledger.RecordTransactionInput{
			UserID:      userID,
			Type:        enums.TransactionTypeChartEntry,
			Amount:      -chart.EntryFee,
			Balance:     balance,
			ReferenceID: &chart.ID,
			Description: "entry fee: " + chart.Title,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record entry fee")
		}

		if err := usersRepo.RecordChartJoined(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump charts played")
		}

		result.Chart = FromModel(chart)
		if chart.ParticipantCount >= chart.MaxParticipants {
			if err := s.startChart(ctx, tx, repo, chart, &result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) startChart(ctx context.Context, tx *gorm.DB, repo Repository, chart *models.Chart, result *JoinResult) error {
	now := time.Now().UTC()
	started, err := repo.MarkInProgress(ctx, chart.ID, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start chart")
	}
	if !started {
		// Another join already started it; nothing left to do.
		return nil
	}
	chart.Status = enums.ChartStatusInProgress
	chart.StartedAt = &now
	result.Chart = FromModel(chart)

	participants, err := repo.ParticipantIDs(ctx, chart.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "snapshot participants")
	}
	arena, err := s.arenas.CreateForChart(ctx, tx, chart, participants)
	if err != nil {
		return err
	}
	result.ArenaID = &arena.ID

	logCtx := s.logg.WithChartID(ctx, chart.ID.String())
	s.logg.Info(s.logg.WithArenaID(logCtx, arena.ID.String()), "chart filled, arena created")
	return nil
}

// classifyFailedClaim turns a zero-row slot claim into the precise client
// error.
func (s *service) classifyFailedClaim(ctx context.Context, repo Repository, chartID uuid.UUID) error {
	chart, err := s.load(ctx, repo, chartID)
	if err != nil {
		return err
	}
	if chart.Status != enums.ChartStatusOpen {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "chart is not open")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "chart is full")
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Chart, error) {
	chart, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "chart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chart")
	}
	return chart, nil
}
