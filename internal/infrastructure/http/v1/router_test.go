package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packcore/internal/app"
	"packcore/internal/core/apperror"
	"packcore/internal/core/entity"
	"packcore/internal/core/id"
	"packcore/internal/core/types"
	"packcore/internal/domain/catalogs/material"
	"packcore/internal/domain/catalogs/product"
	"packcore/internal/domain/documents/production_order"
	"packcore/internal/domain/documents/purchase_receipt"
	"packcore/internal/domain/documents/sales_order"
	"packcore/internal/domain/provisioning"
	"packcore/internal/domain/registers/lots"
	v1 "packcore/internal/infrastructure/http/v1"
	"packcore/internal/infrastructure/http/v1/dto"
	"packcore/internal/infrastructure/http/v1/handlers"
	"packcore/internal/infrastructure/http/v1/middleware"
	"packcore/internal/infrastructure/storage/postgres"
)

type apiEnv struct {
	t       *testing.T
	handler http.Handler
	svc     *app.Services
	kraft   *material.Material
	bag     *product.Product
	cups    *product.Product
}

func newAPI(t *testing.T, idem middleware.IdempotencyStore) *apiEnv {
	t.Helper()
	svc, _, err := app.NewInMemory(app.DefaultOptions())
	require.NoError(t, err)

	ctx := context.Background()
	kraft := material.NewMaterial("KRAFT200", "Kraft 200g", "kg")
	kraft.AdminUnitCost = types.MustMoney("4.00")
	require.NoError(t, svc.Materials.Create(ctx, kraft))

	bag := product.NewProduct("BAG", "Kraft bag", "un", product.KindManufactured)
	require.NoError(t, svc.Products.Create(ctx, bag))
	_, err = svc.Products.AddRecipeLine(ctx, bag.ID, kraft.ID, 1, decimal.RequireFromString("30"))
	require.NoError(t, err)

	cups := product.NewProduct("CUP", "Paper cup", "un", product.KindResale)
	cups.StockQty = types.MustQuantity("10")
	require.NoError(t, svc.Products.Create(ctx, cups))

	router := v1.NewRouter(v1.RouterConfig{
		Services: svc,
		HealthChecks: map[string]handlers.Check{
			"database": func(context.Context) error { return nil },
		},
		Idempotency: idem,
	})
	return &apiEnv{t: t, handler: router, svc: svc, kraft: kraft, bag: bag, cups: cups}
}

func (e *apiEnv) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]any](t, rec)
	code, _ := body["code"].(string)
	return code
}

func (e *apiEnv) receiveKraft(lines ...[2]string) purchase_receipt.Result {
	e.t.Helper()
	req := map[string]any{"supplier": "Papelaria Norte", "supplierDocNumber": "NF-1"}
	reqLines := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		reqLines = append(reqLines, map[string]any{
			"materialId": e.kraft.ID.String(),
			"quantity":   l[0],
			"unitCost":   l[1],
		})
	}
	req["lines"] = reqLines

	rec := e.do(http.MethodPost, "/api/v1/purchases/receipts", req)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[purchase_receipt.Result](e.t, rec)
}

func TestHealth(t *testing.T) {
	e := newAPI(t, nil)

	rec := e.do(http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"healthy"`)
}

func TestHealth_NotReady(t *testing.T) {
	svc, _, err := app.NewInMemory(app.DefaultOptions())
	require.NoError(t, err)
	router := v1.NewRouter(v1.RouterConfig{
		Services: svc,
		HealthChecks: map[string]handlers.Check{
			"database": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestPurchaseReceipt_AndLots(t *testing.T) {
	e := newAPI(t, nil)

	res := e.receiveKraft([2]string{"50", "4.00"}, [2]string{"30", "4.50"})
	require.Len(t, res.Lines, 2)
	assert.Nil(t, res.Lines[0].Divergence)
	require.NotNil(t, res.Lines[1].Divergence)
	assert.Equal(t, "12.5", res.Lines[1].Divergence.PctDiff.String())
	assert.Equal(t, "Papelaria Norte/NF-1", res.Lines[0].Lot.SourceRef)

	rec := e.do(http.MethodGet, "/api/v1/materials/"+e.kraft.ID.String()+"/lots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[dto.ItemsResponse[lots.Lot]](t, rec)
	require.Len(t, listed.Items, 2)
	assert.Equal(t, res.Lines[0].Lot.ID, listed.Items[0].ID)

	rec = e.do(http.MethodGet, "/api/v1/materials/"+e.kraft.ID.String()+"/fifo-preview?quantity=60", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	preview := decode[lots.Consumption](t, rec)
	require.Len(t, preview.Draws, 2)
	assert.Equal(t, types.MustQuantity("50"), preview.Draws[0].Quantity)
	assert.Equal(t, types.MustQuantity("10"), preview.Draws[1].Quantity)
	assert.True(t, preview.TotalCost.Equal(types.MustMoney("245")))

	// the preview does not consume
	m, err := e.svc.Materials.GetByID(context.Background(), e.kraft.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("80"), m.StockQty)

	rec = e.do(http.MethodGet, "/api/v1/materials/"+e.kraft.ID.String()+"/conservation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[lots.ConservationReport](t, rec).Balanced)
}

func TestPurchaseReceipt_Invalid(t *testing.T) {
	e := newAPI(t, nil)

	rec := e.do(http.MethodPost, "/api/v1/purchases/receipts", map[string]any{"lines": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeValidation, errorCode(t, rec))
}

func TestMaterialRoutes_Errors(t *testing.T) {
	e := newAPI(t, nil)

	rec := e.do(http.MethodGet, "/api/v1/materials/not-a-uuid/lots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeValidation, errorCode(t, rec))

	rec = e.do(http.MethodGet, "/api/v1/materials/"+id.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperror.CodeNotFound, errorCode(t, rec))

	rec = e.do(http.MethodGet, "/api/v1/materials/"+e.kraft.ID.String()+"/fifo-preview?quantity=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCost_UpdatesRecipeAndHistory(t *testing.T) {
	e := newAPI(t, nil)

	rec := e.do(http.MethodPost, "/api/v1/materials/"+e.kraft.ID.String()+"/admin-cost",
		map[string]any{"unitCost": "5.00", "reason": "supplier price list"},
		middleware.HeaderUserID, "compras")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"recipesUpdated":1`)

	rec = e.do(http.MethodGet, "/api/v1/materials/"+e.kraft.ID.String()+"/cost-history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[dto.ItemsResponse[material.CostHistoryEntry]](t, rec)
	require.Len(t, history.Items, 1)
	assert.True(t, history.Items[0].NewCost.Equal(types.MustMoney("5.00")))
	assert.Equal(t, "compras", history.Items[0].ChangedBy)
}

func TestCostDivergence(t *testing.T) {
	e := newAPI(t, nil)
	e.receiveKraft([2]string{"10", "5.00"})

	rec := e.do(http.MethodGet, "/api/v1/materials/"+e.kraft.ID.String()+"/cost-divergence", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pctDiff":"25"`)
}

// createOrder orders bags and, when given, resale cups.
func (e *apiEnv) createOrder(bags string, cups ...string) sales_order.Order {
	e.t.Helper()
	items := []map[string]any{{
		"productId": e.bag.ID.String(),
		"quantity":  map[string]any{"kind": "simple", "qty": bags},
		"unitPrice": "0.35",
	}}
	for _, qty := range cups {
		items = append(items, map[string]any{
			"productId": e.cups.ID.String(),
			"quantity":  map[string]any{"kind": "simple", "qty": qty},
			"unitPrice": "0.10",
		})
	}
	rec := e.do(http.MethodPost, "/api/v1/orders", map[string]any{
		"customer": "Padaria Central",
		"tipo":     "pedido",
		"items":    items,
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sales_order.Order](e.t, rec)
}

func TestOrderFlow(t *testing.T) {
	e := newAPI(t, nil)
	e.receiveKraft([2]string{"50", "4.00"}, [2]string{"30", "4.50"})
	order := e.createOrder("2000", "4")
	assert.Equal(t, sales_order.StatusPending, order.Status)

	rec := e.do(http.MethodGet, "/api/v1/orders/"+order.ID.String()+"/provision", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prov := decode[provisioning.Result](t, rec)
	assert.True(t, prov.FullySatisfiable)
	assert.Empty(t, prov.Shortages)

	rec = e.do(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[sales_order.ApprovalResult](t, rec)
	assert.False(t, approved.AlreadyApproved)
	assert.Equal(t, sales_order.StatusApproved, approved.Order.Status)
	require.Len(t, approved.ProductionOrders, 1)

	rec = e.do(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[sales_order.ApprovalResult](t, rec).AlreadyApproved)

	rec = e.do(http.MethodGet, "/api/v1/production-orders?orderId="+order.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pos := decode[dto.ItemsResponse[production_order.ProductionOrder]](t, rec)
	require.Len(t, pos.Items, 1)
	poID := pos.Items[0].ID.String()

	rec = e.do(http.MethodPost, "/api/v1/production-orders/"+poID+"/drawdown",
		map[string]any{"materialId": e.kraft.ID.String(), "quantity": "30"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	drawdown := decode[production_order.DrawdownResult](t, rec)
	assert.Equal(t, types.MustQuantity("20"), drawdown.Consumption.Requested-drawdown.Consumption.Shortfall)
	assert.NotEmpty(t, drawdown.Warning)

	rec = e.do(http.MethodPost, "/api/v1/production-orders/"+poID+"/status", map[string]any{"status": "concluida"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperror.CodeInvalidTransition, errorCode(t, rec))

	rec = e.do(http.MethodPost, "/api/v1/production-orders/"+poID+"/status", map[string]any{"status": "em_producao"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/transition",
		map[string]any{"status": "entregue"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/transition",
		map[string]any{"status": "producao"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, sales_order.StatusInProduction, decode[sales_order.Order](t, rec).Status)

	rec = e.do(http.MethodGet, "/api/v1/movements?itemId="+e.kraft.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"production"`)
	assert.NotContains(t, rec.Body.String(), `"type":"exit"`)

	rec = e.do(http.MethodGet, "/api/v1/movements?itemKind=product&itemId="+e.cups.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sales := decode[dto.ListResponse[entity.Movement]](t, rec)
	require.Len(t, sales.Items, 1)
	assert.Equal(t, entity.MovementExit, sales.Items[0].Type)
	assert.Equal(t, "venda", sales.Items[0].Reason)
	assert.Equal(t, order.Number, sales.Items[0].Reference)
	assert.Equal(t, types.MustQuantity("6"), sales.Items[0].QtyAfter)
}

func TestApprove_Shortage(t *testing.T) {
	e := newAPI(t, nil)
	e.receiveKraft([2]string{"10", "4.00"})
	order := e.createOrder("1000")

	rec := e.do(http.MethodGet, "/api/v1/orders/"+order.ID.String()+"/provision", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	prov := decode[provisioning.Result](t, rec)
	assert.False(t, prov.FullySatisfiable)
	require.Len(t, prov.Shortages, 1)
	assert.Equal(t, types.MustQuantity("20"), prov.Shortages[0].Missing)

	rec = e.do(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/approve", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, apperror.CodeInsufficientStock, errorCode(t, rec))
}

// fakeIdempotency keeps completed responses in memory.
type fakeIdempotency struct {
	mu       sync.Mutex
	acquired int
	stored   map[string]*postgres.IdempotencyReplay
}

func (f *fakeIdempotency) AcquireKey(_ context.Context, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired++
	return f.stored[key], nil
}

func (f *fakeIdempotency) CompleteKey(_ context.Context, key string, status int, contentType string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: contentType, Body: body}
	return nil
}

func (f *fakeIdempotency) FailKey(ctx context.Context, key string, status int, contentType string, body []byte) error {
	return f.CompleteKey(ctx, key, status, contentType, body)
}

func TestIdempotency_ReplaysReceipt(t *testing.T) {
	store := &fakeIdempotency{stored: make(map[string]*postgres.IdempotencyReplay)}
	e := newAPI(t, store)

	body := map[string]any{"lines": []map[string]any{{
		"materialId": e.kraft.ID.String(), "quantity": "10", "unitCost": "4.00",
	}}}

	first := e.do(http.MethodPost, "/api/v1/purchases/receipts", body, middleware.HeaderIdempotencyKey, "rcpt-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second := e.do(http.MethodPost, "/api/v1/purchases/receipts", body, middleware.HeaderIdempotencyKey, "rcpt-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	// only one lot was booked
	m, err := e.svc.Materials.GetByID(context.Background(), e.kraft.ID)
	require.NoError(t, err)
	assert.Equal(t, types.MustQuantity("10"), m.StockQty)
	assert.Equal(t, 2, store.acquired)
}

func TestIdempotency_ReplaysError(t *testing.T) {
	store := &fakeIdempotency{stored: make(map[string]*postgres.IdempotencyReplay)}
	e := newAPI(t, store)

	path := "/api/v1/orders/" + id.New().String() + "/approve"
	first := e.do(http.MethodPost, path, nil, middleware.HeaderIdempotencyKey, "approve-1")
	require.Equal(t, http.StatusNotFound, first.Code)

	second := e.do(http.MethodPost, path, nil, middleware.HeaderIdempotencyKey, "approve-1")
	assert.Equal(t, http.StatusNotFound, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}
