package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"content-market/internal/database"
	"content-market/internal/gateway"
	"content-market/internal/i18n"
	"content-market/internal/models"
	"content-market/internal/response"
	"content-market/internal/services"
	"content-market/internal/testutils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey         = "operator-key"
	testCallbackSecret = "callback-secret"
)

func TestMain(m *testing.M) {
	testutils.InitTestMain()
	os.Exit(m.Run())
}

type stubDeliveryGateway struct {
	mu        sync.Mutex
	isContact bool
	sends     int
}

func (g *stubDeliveryGateway) IsContact(ctx context.Context, recipient string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isContact, nil
}

func (g *stubDeliveryGateway) SendPhotoWithTimer(ctx context.Context, recipient string, media gateway.MediaRef, caption string, seconds int) (gateway.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sends++
	return gateway.SendResult{Success: true, CachedHandle: "handle-1"}, nil
}

func (g *stubDeliveryGateway) SendVideoWithTimer(ctx context.Context, recipient string, media gateway.MediaRef, caption string, seconds int) (gateway.SendResult, error) {
	return g.SendPhotoWithTimer(ctx, recipient, media, caption, seconds)
}

type stubMessenger struct{}

func (stubMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	return nil
}

type testAPI struct {
	router  *gin.Engine
	store   *database.Store
	gateway *stubDeliveryGateway
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := testutils.SetupTestStore(t)
	bundle, err := i18n.Load("", "en")
	require.NoError(t, err)

	gw := &stubDeliveryGateway{}
	entitlement := services.NewEntitlementResolver(store)
	coupons := services.NewCouponEngine(store, 5)
	replay := services.NewReplayProtection(time.Hour)
	t.Cleanup(replay.Stop)
	settlement := services.NewSettlementGateway(store, "XTR", replay)
	fanout := services.NewNotificationFanout(store, stubMessenger{}, bundle, 0)

	h := NewHandler(Services{
		Entitlement: entitlement,
		Coupons:     coupons,
		Checkout:    services.NewCheckoutService(store, coupons, settlement, entitlement, nil),
		Delivery:    services.NewDeliveryDispatcher(store, gw, nil),
		Content:     services.NewContentService(store, fanout, nil),
		Fanout:      fanout,
		Accounts:    services.NewAccountService(store),
		Localizer:   bundle,
	}, Options{
		OperatorAPIKey:             testAPIKey,
		CallbackSecret:             testCallbackSecret,
		DefaultSelfDestructSeconds: 30,
		MaxNotificationRetries:     3,
	})

	r := testutils.SetupTestRouter()
	SetupRoutes(r, h)
	return &testAPI{router: r, store: store, gateway: gw}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp response.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (a *testAPI) operator(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	return a.do(t, method, path, body, map[string]string{"X-API-Key": testAPIKey})
}

func (a *testAPI) callback(t *testing.T, event services.PaymentEvent) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return a.do(t, http.MethodPost, "/api/payments/callback", json.RawMessage(payload), map[string]string{
		gateway.SignatureHeader: gateway.Sign(payload, testCallbackSecret),
	})
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	w, _ := a.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOperatorRoutesRequireAPIKey(t *testing.T) {
	a := newTestAPI(t)

	w, _ := a.do(t, http.MethodGet, "/api/notifications/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, resp := a.operator(t, http.MethodGet, "/api/notifications/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestPaymentCallback(t *testing.T) {
	a := newTestAPI(t)
	creator := testutils.CreateApprovedCreator(t, a.store, 1, 0)
	item := testutils.CreateContent(t, a.store, creator, 50)
	buyer := testutils.CreateUser(t, a.store, 2)
	purchase := testutils.CreateContentPurchase(t, a.store, buyer, item)

	event := services.PaymentEvent{
		PaymentID:  "charge-1",
		PurchaseID: purchase.ID,
		PayerID:    buyer.ExternalID,
		Amount:     50,
		Currency:   "XTR",
	}

	t.Run("rejects bad signature", func(t *testing.T) {
		w, _ := a.do(t, http.MethodPost, "/api/payments/callback", event, map[string]string{
			gateway.SignatureHeader: "00",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("settles", func(t *testing.T) {
		w, resp := a.callback(t, event)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, resp.Success)

		w, resp = a.operator(t, http.MethodGet, fmt.Sprintf("/api/access?user_id=%d&content_id=%d", buyer.ID, item.ID), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, resp.Success)
	})

	t.Run("replay is rejected with a localized reason", func(t *testing.T) {
		w, resp := a.callback(t, event)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, services.ReasonPaymentAlreadyProcessed, resp.Reason)
		assert.Equal(t, "This payment was already processed.", resp.Message)
	})
}

func TestCheckAccessDenied(t *testing.T) {
	a := newTestAPI(t)
	creator := testutils.CreateApprovedCreator(t, a.store, 1, 0)
	item := testutils.CreateContent(t, a.store, creator, 50)
	viewer := testutils.CreateUser(t, a.store, 2)

	w, resp := a.operator(t, http.MethodGet, fmt.Sprintf("/api/access?user_id=%d&content_id=%d&lang=ru", viewer.ID, item.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, services.ReasonRequiresSubscription, resp.Reason)
	assert.NotEmpty(t, resp.Message)

	w, _ = a.operator(t, http.MethodGet, "/api/access?user_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCouponLifecycle(t *testing.T) {
	a := newTestAPI(t)
	creator := testutils.CreateApprovedCreator(t, a.store, 1, 0)
	buyer := testutils.CreateUser(t, a.store, 2)

	w, resp := a.operator(t, http.MethodPost, "/api/coupons", CreateCouponRequest{
		Code:            " spring ",
		DiscountPercent: 20,
		UsageType:       models.CouponForContent,
		CreatorID:       &creator.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, resp.Success)

	quote := QuoteCouponRequest{
		Code:           "SPRING",
		BuyerID:        buyer.ID,
		UsageType:      models.CouponForContent,
		CreatorID:      creator.ID,
		OriginalAmount: 100,
	}
	w, resp = a.operator(t, http.MethodPost, "/api/coupons/quote", quote)
	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	discount := data["discount"].(map[string]interface{})
	assert.EqualValues(t, 80, discount["final"])

	w, resp = a.operator(t, http.MethodPost, "/api/coupons", CreateCouponRequest{
		Code:            "spring",
		DiscountPercent: 10,
		UsageType:       models.CouponForContent,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ReasonCouponCodeTaken, resp.Reason)

	coupon, err := a.store.GetCouponByCode(context.Background(), "SPRING")
	require.NoError(t, err)
	w, _ = a.operator(t, http.MethodPost, fmt.Sprintf("/api/coupons/%d/deactivate", coupon.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = a.operator(t, http.MethodPost, "/api/coupons/quote", quote)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, services.ReasonCouponNotValid, resp.Reason)
}

func TestCreateCouponValidation(t *testing.T) {
	a := newTestAPI(t)

	w, _ := a.operator(t, http.MethodPost, "/api/coupons", map[string]interface{}{
		"code":             "X",
		"discount_percent": 10,
		"usage_type":       "gift",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := a.operator(t, http.MethodPost, "/api/coupons", CreateCouponRequest{
		Code:            "BIG",
		DiscountPercent: 150,
		UsageType:       models.CouponForSubscription,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ReasonCouponInvalidPercent, resp.Reason)
}

func TestDeliver(t *testing.T) {
	a := newTestAPI(t)
	creator := testutils.CreateApprovedCreator(t, a.store, 1, 0)
	item := testutils.CreateContent(t, a.store, creator, 50)
	viewer := testutils.CreateUser(t, a.store, 2)

	req := DeliverRequest{
		UserID:    viewer.ID,
		Recipient: "@viewer",
		ContentID: item.ID,
		MediaType: models.MediaPhoto,
	}

	w, resp := a.operator(t, http.MethodPost, "/api/deliveries", req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, services.ReasonRequiresSubscription, resp.Reason)

	testutils.CreateActiveSubscription(t, a.store, viewer, creator, time.Now().UTC())

	w, resp = a.operator(t, http.MethodPost, "/api/deliveries", req)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, services.ReasonDeliveryAddContact, resp.Reason)
	assert.Equal(t, 0, a.gateway.sends)

	a.gateway.isContact = true
	w, resp = a.operator(t, http.MethodPost, "/api/deliveries", req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, a.gateway.sends)

	req.MediaType = models.MediaVideo
	w, resp = a.operator(t, http.MethodPost, "/api/deliveries", req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, services.ReasonDeliveryMediaMismatch, resp.Reason)
}

func TestCreatorOnboardingAndPublishing(t *testing.T) {
	a := newTestAPI(t)

	w, resp := a.operator(t, http.MethodPost, "/api/users", EnsureUserRequest{ExternalID: 10, Username: "@maker"})
	require.Equal(t, http.StatusOK, w.Code)
	userID := uint(resp.Data.(map[string]interface{})["id"].(float64))

	price, days := int64(100), 30
	w, resp = a.operator(t, http.MethodPost, "/api/creators", RegisterCreatorRequest{
		UserID:            userID,
		DisplayName:       "Maker",
		SubscriptionPrice: &price,
		SubscriptionDays:  &days,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	creatorID := uint(resp.Data.(map[string]interface{})["id"].(float64))

	publish := PublishContentRequest{
		CreatorID:      creatorID,
		UploaderID:     userID,
		Price:          25,
		Classification: models.ContentPremium,
		MediaType:      models.MediaPhoto,
		MediaRef:       "media/1.jpg",
	}
	w, resp = a.operator(t, http.MethodPost, "/api/content", publish)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, services.ReasonCreatorNotApproved, resp.Reason)

	w, _ = a.operator(t, http.MethodPost, fmt.Sprintf("/api/creators/%d/status", creatorID), TransitionCreatorRequest{Status: models.CreatorApproved})
	require.Equal(t, http.StatusOK, w.Code)

	subscriber := testutils.CreateUser(t, a.store, 11)
	w, resp = a.operator(t, http.MethodPost, "/api/purchases", CreatePurchaseRequest{
		BuyerID:   subscriber.ID,
		Kind:      models.PurchaseSubscription,
		CreatorID: creatorID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	purchaseID := uint(resp.Data.(map[string]interface{})["id"].(float64))

	w, resp = a.callback(t, services.PaymentEvent{
		PaymentID:  "charge-sub",
		PurchaseID: purchaseID,
		PayerID:    subscriber.ExternalID,
		Amount:     price,
		Currency:   "xtr",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)

	w, resp = a.operator(t, http.MethodPost, "/api/content", publish)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]interface{})["notified"])

	w, resp = a.operator(t, http.MethodGet, "/api/notifications/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, resp.Data)
}
