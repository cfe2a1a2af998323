package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/paypalgw"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/testdb"
	"github.com/Skotchmaster/game_store/internal/transport"
	"github.com/Skotchmaster/game_store/pkg/events"
)

type env struct {
	db     *gorm.DB
	repo   *repo.GormRepo
	events *events.Recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testdb.New(t)
	return &env{db: db, repo: &repo.GormRepo{DB: db}, events: &events.Recorder{}}
}

func (e *env) orders() *OrderService {
	return &OrderService{Repo: e.repo, Events: e.events}
}

func address() *models.Address {
	return &models.Address{Street: "Calle Mayor 1", City: "Madrid", PostalCode: "28013", Country: "ES"}
}

func (e *env) placeOrder(t *testing.T, userID uint, items ...transport.OrderItemRequest) *models.Order {
	t.Helper()
	o, err := e.orders().CreateOrder(context.Background(), userID, transport.CreateOrderRequest{
		Items:           items,
		ShippingAddress: address(),
	})
	require.NoError(t, err)
	return o
}

func (e *env) order(t *testing.T, id uint) *models.Order {
	t.Helper()
	o, err := e.repo.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

type fakeGateway struct {
	mu sync.Mutex

	nextOrderID   string
	createErr     error
	captureStatus string
	captureID     string
	captureErr    error
	verified      bool
	verifyErr     error

	created  []paypalgw.OrderRequest
	captures []string
	verifies int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		nextOrderID:   "PP-ORDER-1",
		captureStatus: paypalgw.StatusCompleted,
		captureID:     "CAP1",
		verified:      true,
	}
}

func (g *fakeGateway) CreateOrder(_ context.Context, in paypalgw.OrderRequest) (*paypalgw.CreatedOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, in)
	return &paypalgw.CreatedOrder{
		ID:         g.nextOrderID,
		Status:     "CREATED",
		ApproveURL: "https://www.sandbox.paypal.com/checkoutnow?token=" + g.nextOrderID,
	}, nil
}

func (g *fakeGateway) CaptureOrder(_ context.Context, id string) (*paypalgw.Capture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captures = append(g.captures, id)
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	return &paypalgw.Capture{OrderID: id, Status: g.captureStatus, CaptureID: g.captureID}, nil
}

func (g *fakeGateway) VerifyWebhook(context.Context, *http.Request, []byte) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifies++
	return g.verified, g.verifyErr
}

type fakeIndex struct {
	mu        sync.Mutex
	hits      []uint
	searchErr error
	indexed   []uint
	deleted   []uint
}

func (f *fakeIndex) Search(_ context.Context, _ string, _, _ int) (int64, []uint, error) {
	if f.searchErr != nil {
		return 0, nil, f.searchErr
	}
	return int64(len(f.hits)), f.hits, nil
}

func (f *fakeIndex) IndexProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, p.ID)
	return nil
}

func (f *fakeIndex) DeleteProduct(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

var errBoom = errors.New("boom")
