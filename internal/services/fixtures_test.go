package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"dealdrop/internal/config"
	"dealdrop/internal/models"
	"dealdrop/pkg/logger"
	"dealdrop/pkg/payment"
	"dealdrop/pkg/sms"
	"dealdrop/pkg/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeCheckoutProvider records checkout requests. With block set it waits for
// the request context to end, standing in for a processor that never answers.
type fakeCheckoutProvider struct {
	mu       sync.Mutex
	name     string
	requests []*payment.CheckoutRequest
	err      error
	block    bool
	event    *payment.WebhookEvent
	parseErr error
}

func (p *fakeCheckoutProvider) Name() string { return p.name }

func (p *fakeCheckoutProvider) CreateCheckoutSession(ctx context.Context, req *payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return &payment.CheckoutSession{
		ID:        "cs_test_" + req.ClaimID,
		URL:       "https://checkout.example.com/pay/" + req.ClaimID,
		ExpiresAt: req.ExpiresAt,
	}, nil
}

func (p *fakeCheckoutProvider) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*payment.WebhookEvent, error) {
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return p.event, nil
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []*sms.SMSRequest
	err  error
}

func (f *fakeSMS) SendSMS(ctx context.Context, req *sms.SMSRequest) (*sms.SMSResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, req)
	return &sms.SMSResponse{MessageID: "SM1", Status: "queued"}, nil
}

func (f *fakeSMS) messages() []*sms.SMSRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*sms.SMSRequest(nil), f.sent...)
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeStorage) Put(ctx context.Context, obj *storage.Object) (*storage.StoredObject, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[obj.Key]; ok {
		return nil, storage.ErrObjectExists
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[obj.Key] = data
	return &storage.StoredObject{Key: obj.Key, URL: f.URL(obj.Key), Size: int64(len(data))}, nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) URL(key string) string {
	return "https://cdn.example.com/" + key
}

// fixture wires every service against one memStore.
type fixture struct {
	store    *memStore
	locker   *memLocker
	deduper  *memDeduper
	stripe   *fakeCheckoutProvider
	sms      *fakeSMS
	storage  *fakeStorage
	claimCfg *config.ClaimsConfig
	payCfg   *config.PaymentConfig

	issuer      *credentialIssuer
	claims      *claimService
	redemptions *redemptionService
	loyalty     *loyaltyService
	admin       *adminClaimService
	payments    *paymentConfirmationService
	sweeps      *sweepService
}

func testClaimsConfig() *config.ClaimsConfig {
	return &config.ClaimsConfig{
		CodeMaxAttempts:        5,
		PaymentReferencePrefix: "DD",
		LockTTL:                10 * time.Second,
		CheckoutSessionTTL:     30 * time.Minute,
		LinkCorrelationParam:   "client_reference_id",
		QRImageSize:            128,
		QRStoragePrefix:        "qr",
		SendCodeSMS:            true,
		LoyaltyAsync:           false,
		LoyaltyTimeout:         time.Second,
		ListLimit:              100,
		WebhookDedupeTTL:       time.Hour,
		DealExpirySweep:        time.Minute,
		CheckoutSweep:          time.Minute,
		CheckoutSweepBatch:     100,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newMemStore(),
		locker:   newMemLocker(),
		deduper:  newMemDeduper(),
		stripe:   &fakeCheckoutProvider{name: "stripe"},
		sms:      &fakeSMS{},
		storage:  &fakeStorage{},
		claimCfg: testClaimsConfig(),
		payCfg: &config.PaymentConfig{
			Currency:        "usd",
			CheckoutTimeout: 2 * time.Second,
			SuccessURL:      "https://dealdrop.example.com/claims/success",
			CancelURL:       "https://dealdrop.example.com/claims/cancel",
		},
	}
	log := logger.NewNop()
	clock := clockFunc(func() time.Time { return testNow })

	deals := memDealRepo{f.store}
	claims := memClaimRepo{f.store}
	redemptions := memRedemptionRepo{f.store}
	users := memUserRepo{f.store}
	vendors := memVendorRepo{f.store}
	providers := NewCheckoutProviders(f.stripe)

	f.issuer = NewCredentialIssuer(f.store, claims, deals, users, f.storage, f.sms, f.claimCfg, "DealDrop", log).(*credentialIssuer)
	f.issuer.clock = clock

	f.loyalty = NewLoyaltyService(f.store, memLoyaltyRepo{f.store}, log).(*loyaltyService)
	f.loyalty.clock = clock

	f.claims = NewClaimService(f.store, deals, claims, vendors, f.issuer, providers, f.locker, f.claimCfg, f.payCfg, log).(*claimService)
	f.claims.clock = clock

	f.redemptions = NewRedemptionService(f.store, claims, deals, redemptions, users, f.loyalty, f.claimCfg, log).(*redemptionService)
	f.redemptions.clock = clock

	f.admin = NewAdminClaimService(f.store, claims, deals, redemptions, memAuditRepo{f.store}, f.issuer, log).(*adminClaimService)
	f.admin.clock = clock

	f.payments = NewPaymentConfirmationService(claims, f.issuer, providers, f.deduper, f.claimCfg, log).(*paymentConfirmationService)

	f.sweeps = NewSweepService(deals, claims, f.claimCfg, log).(*sweepService)
	f.sweeps.clock = clock

	return f
}

func (f *fixture) addUser(t *testing.T, userType models.UserType) *models.User {
	t.Helper()
	u := &models.User{
		ID:        primitive.NewObjectID(),
		FirstName: "Jordan",
		LastName:  "Rivera",
		Email:     primitive.NewObjectID().Hex() + "@example.com",
		Phone:     "+14155550100",
		UserType:  userType,
		Status:    models.UserStatusActive,
	}
	if err := (memUserRepo{f.store}).Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) addVendor(t *testing.T, settings models.PaymentSettings) *models.Vendor {
	t.Helper()
	owner := f.addUser(t, models.UserTypeVendor)
	v := &models.Vendor{
		ID:              primitive.NewObjectID(),
		OwnerID:         owner.ID,
		BusinessName:    "Corner Bakery",
		PaymentSettings: settings,
		IsActive:        true,
	}
	if err := (memVendorRepo{f.store}).Create(context.Background(), v); err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	return v
}

func (f *fixture) addDeal(t *testing.T, vendor *models.Vendor, mutate func(d *models.Deal)) *models.Deal {
	t.Helper()
	d := &models.Deal{
		ID:            primitive.NewObjectID(),
		VendorID:      vendor.ID,
		Title:         "Two croissants",
		OriginalPrice: 12,
		DealPrice:     8,
		Status:        models.DealStatusActive,
		ExpiresAt:     testNow.Add(48 * time.Hour),
		CreatedAt:     testNow.Add(-time.Hour),
	}
	if mutate != nil {
		mutate(d)
	}
	if err := (memDealRepo{f.store}).Create(context.Background(), d); err != nil {
		t.Fatalf("create deal: %v", err)
	}
	return d
}

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

func integratedSettings() models.PaymentSettings {
	return integratedSettingsFor(models.PaymentMethodStripe)
}

func integratedSettingsFor(method models.PaymentMethodType) models.PaymentSettings {
	return models.PaymentSettings{
		PrimaryMethod:      method,
		Methods:            []models.VendorPaymentMethod{{Type: method, Integrated: true}},
		IntegratedProvider: string(method),
		ConnectedAccountID: "acct_123",
		ChargesEnabled:     true,
		DetailsSubmitted:   true,
	}
}

func venmoSettings() models.PaymentSettings {
	return models.PaymentSettings{
		PrimaryMethod: models.PaymentMethodVenmo,
		Methods: []models.VendorPaymentMethod{
			{Type: models.PaymentMethodVenmo, Handle: "@corner-bakery"},
		},
	}
}

// requireCode fails unless err is the service error want.
func requireCode(t *testing.T, err error, want *ServiceError) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want.Code)
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Code, err)
	}
}

// confirmedClaim creates a no-deposit claim for a fresh customer and returns it.
func (f *fixture) confirmedClaim(t *testing.T, deal *models.Deal) *models.Claim {
	t.Helper()
	customer := f.addUser(t, models.UserTypeCustomer)
	res, err := f.claims.CreateClaim(context.Background(), customer.ID, deal.ID)
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	return res.Claim
}
