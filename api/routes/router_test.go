package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartduel/chartduel-backend/internal/arenas"
	"github.com/chartduel/chartduel-backend/internal/charts"
	"github.com/chartduel/chartduel-backend/internal/donations"
	"github.com/chartduel/chartduel-backend/internal/ledger"
	"github.com/chartduel/chartduel-backend/internal/notifications"
	pkgAuth "github.com/chartduel/chartduel-backend/pkg/auth"
	"github.com/chartduel/chartduel-backend/pkg/config"
	"github.com/chartduel/chartduel-backend/pkg/db/models"
	"github.com/chartduel/chartduel-backend/pkg/enums"
	"github.com/chartduel/chartduel-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubChartsService struct{}

func (stubChartsService) Create(ctx context.Context, creatorID uuid.UUID, input charts.CreateChartInput) (*charts.ChartDTO, error) {
	return &charts.ChartDTO{ID: uuid.New(), CreatorID: creatorID, Title: input.Title}, nil
}

func (stubChartsService) Get(ctx context.Context, id uuid.UUID) (*charts.ChartDTO, error) {
	return &charts.ChartDTO{ID: id, Status: enums.ChartStatusOpen}, nil
}

func (stubChartsService) Join(ctx context.Context, chartID, userID uuid.UUID) (*charts.JoinResult, error) {
	return &charts.JoinResult{Chart: &charts.ChartDTO{ID: chartID}}, nil
}

type stubArenasService struct{}

func (stubArenasService) CreateForChart(ctx context.Context, tx *gorm.DB, chart *models.Chart, participants []uuid.UUID) (*models.Arena, error) {
	return &models.Arena{ID: uuid.New()}, nil
}

func (stubArenasService) Get(ctx context.Context, arenaID uuid.UUID) (*arenas.ArenaStateDTO, error) {
	return &arenas.ArenaStateDTO{ArenaID: arenaID, Status: enums.ArenaStatusLive}, nil
}

func (stubArenasService) JoinAsSpectator(ctx context.Context, arenaID, userID uuid.UUID) (*arenas.ArenaStateDTO, error) {
	return &arenas.ArenaStateDTO{ArenaID: arenaID}, nil
}

func (stubArenasService) PostChat(ctx context.Context, arenaID, userID uuid.UUID, raw string) (*arenas.ChatMessageDTO, error) {
	return &arenas.ChatMessageDTO{ArenaID: arenaID, Body: raw}, nil
}

func (stubArenasService) UpdateScore(ctx context.Context, arenaID, reporterID, targetID uuid.UUID, score int64, moves int) error {
	return nil
}

func (stubArenasService) Leave(ctx context.Context, arenaID, userID uuid.UUID) error {
	return nil
}

func (stubArenasService) SetSettler(settler arenas.Settler) {}

type stubSettler struct{}

func (stubSettler) Complete(ctx context.Context, arenaID, winnerID uuid.UUID) error {
	return nil
}

type stubDonationsService struct{}

func (stubDonationsService) Donate(ctx context.Context, donorID uuid.UUID, input donations.DonateInput) (*models.Donation, error) {
	return &models.Donation{ID: uuid.New(), DonorID: donorID, Amount: input.Amount}, nil
}

func (stubDonationsService) Shout(ctx context.Context, senderID uuid.UUID, input donations.ShoutInput) (*models.Shoutout, error) {
	return &models.Shoutout{ID: uuid.New(), SenderID: senderID, Message: input.Message}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{Items: []models.Notification{}}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type stubLedgerService struct{}

func (s stubLedgerService) Record(ctx context.Context, input ledger.RecordTransactionInput) (*models.Transaction, error) {
	return &models.Transaction{}, nil
}

func (s stubLedgerService) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Transaction, error) {
	return []models.Transaction{}, nil
}

func (s stubLedgerService) WithTx(tx *gorm.DB) ledger.Service {
	return s
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
		Donation: config.DonationConfig{
			MinAmount:  1,
			RateWindow: time.Minute,
			RateLimit:  10,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            stubPinger{},
		Charts:        stubChartsService{},
		Arenas:        stubArenasService{},
		Settler:       stubSettler{},
		Donations:     stubDonationsService{},
		Notifications: stubNotificationsService{},
		Ledger:        stubLedgerService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   userID,
		Username: "router-test",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLiveIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReadyIsPublic(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAPIRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/charts/" + uuid.NewString()},
		{http.MethodPost, "/api/v1/charts/" + uuid.NewString() + "/join"},
		{http.MethodGet, "/api/v1/arenas/" + uuid.NewString()},
		{http.MethodPost, "/api/v1/donations"},
		{http.MethodGet, "/api/v1/notifications"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", route.method, route.path, resp.Code)
		}
	}
}

func TestChartRoutesWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	token := buildToken(t, cfg, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/charts/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for chart fetch got %d", resp.Code)
	}

	body := `{"title":"speed round","entry_fee":50,"max_participants":2}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/charts", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for chart create got %d", resp.Code)
	}
}

func TestDonationRouteValidatesBody(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	token := buildToken(t, cfg, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/donations", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body got %d", resp.Code)
	}

	body := `{"recipient_id":"` + uuid.NewString() + `","amount":30}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/donations", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 for donation got %d", resp.Code)
	}
}

func TestTransactionsScopedToCaller(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	userID := uuid.New()
	token := buildToken(t, cfg, userID)

	own := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/transactions", nil)
	own.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, own)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for own ledger got %d", resp.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+uuid.NewString()+"/transactions", nil)
	other.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, other)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's ledger got %d", resp.Code)
	}
}

func TestNotificationRoutesWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	token := buildToken(t, cfg, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for notifications got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for read-all got %d", resp.Code)
	}
}
