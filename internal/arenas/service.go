package arenas

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartduel/chartduel-backend/internal/realtime"
	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	pkgerrors "github.com/chartduel/chartduel-backend/pkg/errors"
	"github.com/chartduel/chartduel-backend/pkg/logger"
)

// Broadcaster fans envelopes out to arena audiences. Implemented by the
// realtime registry; per-recipient failures never fail the operation.
type Broadcaster interface {
	BroadcastTo(userIDs []uuid.UUID, env realtime.Envelope, exclude uuid.UUID) error
}

// Settler finishes an arena and distributes the prize. Implemented by the
// settlement engine.
type Settler interface {
	Complete(ctx context.Context, arenaID, winnerID uuid.UUID) error
}

// UserDirectory resolves public identities for snapshots and spectator
// events. Implemented by the users repository.
type UserDirectory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Service drives the arena lifecycle: spectator membership, chat, score
// reports and the hand-off to settlement.
type Service interface {
	CreateForChart(ctx context.Context, tx *gorm.DB, chart *models.Chart, participants []uuid.UUID) (*models.Arena, error)
	Get(ctx context.Context, arenaID uuid.UUID) (*ArenaStateDTO, error)
	JoinAsSpectator(ctx context.Context, arenaID, userID uuid.UUID) (*ArenaStateDTO, error)
	PostChat(ctx context.Context, arenaID, userID uuid.UUID, raw string) (*ChatMessageDTO, error)
	UpdateScore(ctx context.Context, arenaID, reporterID, targetID uuid.UUID, score int64, moves int) error
	Leave(ctx context.Context, arenaID, userID uuid.UUID) error
	SetSettler(settler Settler)
}

// Config bounds chat behavior.
type Config struct {
	MaxChatLength int
	ChatHistory   int
}

type service struct {
	repo        Repository
	users       UserDirectory
	broadcaster Broadcaster
	settler     Settler
	logg        *logger.Logger
	cfg         Config
}

// NewService wires the arena service. The settler is attached after
// construction because settlement broadcasts through the same service's
// audience queries.
func NewService(repo Repository, users UserDirectory, broadcaster Broadcaster, logg *logger.Logger, cfg Config) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "arena repository required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user directory required")
	}
	if broadcaster == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "broadcaster required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if cfg.MaxChatLength <= 0 {
		cfg.MaxChatLength = 280
	}
	if cfg.ChatHistory <= 0 {
		cfg.ChatHistory = 50
	}
	return &service{
		repo:        repo,
		users:       users,
		broadcaster: broadcaster,
		logg:        logg,
		cfg:         cfg,
	}, nil
}

func (s *service) SetSettler(settler Settler) {
	s.settler = settler
}

// CreateForChart snapshots the chart's participants into a live arena. Runs
// inside the caller's transaction so a failed join never leaves an arena
// behind.
func (s *service) CreateForChart(ctx context.Context, tx *gorm.DB, chart *models.Chart, participants []uuid.UUID) (*models.Arena, error) {
	if chart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chart required")
	}
	if len(participants) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "participant snapshot required")
	}

	players := make([]models.ArenaPlayer, 0, len(participants))
	for _, userID := range participants {
		players = append(players, models.ArenaPlayer{
			ID:     uuid.New(),
			UserID: userID,
			Status: enums.PlayerStatusPlaying,
		})
	}
	arena := &models.Arena{
		ID:      uuid.New(),
		ChartID: chart.ID,
		Status:  enums.ArenaStatusLive,
		Players: players,
	}
	if err := s.repo.WithTx(tx).Create(ctx, arena); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create arena")
	}
	return arena, nil
}

func (s *service) Get(ctx context.Context, arenaID uuid.UUID) (*ArenaStateDTO, error) {
	arena, err := s.load(ctx, arenaID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, arena)
}

// JoinAsSpectator registers the watcher and returns the full state snapshot.
// Rejoining is harmless; only a fresh join is announced to the audience. An
// unknown arena is dropped silently: the nil snapshot tells the realtime
// layer there is nothing to send.
func (s *service) JoinAsSpectator(ctx context.Context, arenaID, userID uuid.UUID) (*ArenaStateDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	arena, err := s.loadRealtime(ctx, arenaID)
	if err != nil || arena == nil {
		return nil, err
	}

	added, err := s.repo.AddSpectator(ctx, arena.ID, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add spectator")
	}
	if added {
		s.fanOut(ctx, arena.ID, realtime.NewEnvelope(realtime.MessageSpectatorJoined, SpectatorEventPayload{
			ArenaID: arena.ID,
			UserID:  userID,
			User:    s.identity(ctx, userID),
		}), userID)
	}

	return s.snapshot(ctx, arena)
}

// PostChat truncates, persists and echoes the message through the broadcast
// path; the sender receives their own line in audience order, not locally.
func (s *service) PostChat(ctx context.Context, arenaID, userID uuid.UUID, raw string) (*ChatMessageDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	body := strings.TrimSpace(raw)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message required")
	}
	if runes := []rune(body); len(runes) > s.cfg.MaxChatLength {
		body = string(runes[:s.cfg.MaxChatLength])
	}

	arena, err := s.loadRealtime(ctx, arenaID)
	if err != nil || arena == nil {
		return nil, err
	}

	sender := userID
	msg := &models.ArenaChatMessage{
		ID:      uuid.New(),
		ArenaID: arena.ID,
		UserID:  &sender,
		Kind:    enums.ChatKindUser,
		Body:    body,
	}
	if err := s.repo.AppendChat(ctx, msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append chat")
	}

	dto := chatDTO(msg)
	s.fanOut(ctx, arena.ID, realtime.NewEnvelope(realtime.MessageArenaChat, dto), uuid.Nil)
	return &dto, nil
}

// UpdateScore trusts any listed player to report any listed player's score,
// then hands off to settlement when the chart's win score is reached.
func (s *service) UpdateScore(ctx context.Context, arenaID, reporterID, targetID uuid.UUID, score int64, moves int) error {
	if reporterID == uuid.Nil || targetID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reporter and player ids required")
	}
	if score < 0 || moves < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "score and moves cannot be negative")
	}

	arena, err := s.loadRealtime(ctx, arenaID)
	if err != nil || arena == nil {
		return err
	}
	if arena.Status != enums.ArenaStatusLive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "arena is not live")
	}
	if !hasPlayer(arena, reporterID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "reporter is not an arena player")
	}
	if !hasPlayer(arena, targetID) {
		return pkgerrors.New(pkgerrors.CodeValidation, "player is not listed in this arena")
	}

	updated, err := s.repo.UpdatePlayerScore(ctx, arena.ID, targetID, score, moves)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist score")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeValidation, "player is not listed in this arena")
	}

	s.fanOut(ctx, arena.ID, realtime.NewEnvelope(realtime.MessageScoreUpdate, ScoreUpdatePayload{
		ArenaID:  arena.ID,
		PlayerID: targetID,
		Score:    score,
		Moves:    moves,
	}), uuid.Nil)

	winScore, err := s.repo.ChartWinScore(ctx, arena.ChartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load win score")
	}
	if score >= winScore {
		if s.settler == nil {
			return pkgerrors.New(pkgerrors.CodeDependency, "settlement engine not attached")
		}
		return s.settler.Complete(ctx, arena.ID, targetID)
	}
	return nil
}

// Leave removes a spectator; leaving twice, or leaving an arena that never
// existed, is a no-op.
func (s *service) Leave(ctx context.Context, arenaID, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	arena, err := s.loadRealtime(ctx, arenaID)
	if err != nil || arena == nil {
		return err
	}

	removed, err := s.repo.RemoveSpectator(ctx, arena.ID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove spectator")
	}
	if removed {
		s.fanOut(ctx, arena.ID, realtime.NewEnvelope(realtime.MessageSpectatorLeft, SpectatorEventPayload{
			ArenaID: arena.ID,
			UserID:  userID,
			User:    s.identity(ctx, userID),
		}), userID)
	}
	return nil
}

func (s *service) load(ctx context.Context, arenaID uuid.UUID) (*models.Arena, error) {
	if arenaID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "arena id required")
	}
	arena, err := s.repo.FindByID(ctx, arenaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "arena not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load arena")
	}
	return arena, nil
}

// loadRealtime is the lookup for realtime-path operations: an unknown arena
// yields (nil, nil) so the caller drops the frame instead of surfacing an
// error envelope. Infrastructure failures still propagate.
func (s *service) loadRealtime(ctx context.Context, arenaID uuid.UUID) (*models.Arena, error) {
	arena, err := s.load(ctx, arenaID)
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeNotFound {
			s.logg.Debug(s.logg.WithArenaID(ctx, arenaID.String()), "dropping frame for unknown arena")
			return nil, nil
		}
		return nil, err
	}
	return arena, nil
}

func (s *service) snapshot(ctx context.Context, arena *models.Arena) (*ArenaStateDTO, error) {
	spectators, err := s.repo.SpectatorIDs(ctx, arena.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list spectators")
	}
	chat, err := s.repo.RecentChat(ctx, arena.ID, s.cfg.ChatHistory)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chat history")
	}

	ids := make([]uuid.UUID, 0, len(arena.Players)+len(spectators))
	for _, p := range arena.Players {
		ids = append(ids, p.UserID)
	}
	ids = append(ids, spectators...)
	identities, err := s.identities(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve identities")
	}
	return stateDTO(arena, spectators, chat, identities), nil
}

func (s *service) identities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

// identity resolves a single user for event payloads. Lookup failures fall
// back to a bare id: the event itself must still go out.
func (s *service) identity(ctx context.Context, userID uuid.UUID) UserSummaryDTO {
	identities, err := s.identities(ctx, []uuid.UUID{userID})
	if err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "identity lookup failed", err)
		return UserSummaryDTO{UserID: userID}
	}
	return summaryFor(identities, userID)
}

func (s *service) fanOut(ctx context.Context, arenaID uuid.UUID, env realtime.Envelope, exclude uuid.UUID) {
	audience, err := s.repo.AudienceIDs(ctx, arenaID)
	if err != nil {
		s.logg.Error(s.logg.WithArenaID(ctx, arenaID.String()), "audience lookup failed", err)
		return
	}
	if err := s.broadcaster.BroadcastTo(audience, env, exclude); err != nil {
		s.logg.Warn(s.logg.WithArenaID(ctx, arenaID.String()), "partial broadcast delivery")
	}
}

func hasPlayer(arena *models.Arena, userID uuid.UUID) bool {
	for _, p := range arena.Players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
