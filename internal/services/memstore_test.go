package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dealdrop/internal/models"
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/pkg/cache"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory stand-in for the Mongo repositories. Transactions
// are serialised and roll back to a snapshot when fn fails, which is enough
// to exercise the all-or-nothing paths the services rely on.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	deals       map[primitive.ObjectID]models.Deal
	claims      map[primitive.ObjectID]models.Claim
	redemptions map[primitive.ObjectID]models.Redemption
	vendors     map[primitive.ObjectID]models.Vendor
	users       map[primitive.ObjectID]models.User
	programs    map[primitive.ObjectID]models.LoyaltyProgram
	cards       map[primitive.ObjectID]models.LoyaltyCard
	loyaltyTxs  map[primitive.ObjectID]models.LoyaltyTransaction
	audits      []models.AuditLog

	transactions int
}

func newMemStore() *memStore {
	return &memStore{
		deals:       make(map[primitive.ObjectID]models.Deal),
		claims:      make(map[primitive.ObjectID]models.Claim),
		redemptions: make(map[primitive.ObjectID]models.Redemption),
		vendors:     make(map[primitive.ObjectID]models.Vendor),
		users:       make(map[primitive.ObjectID]models.User),
		programs:    make(map[primitive.ObjectID]models.LoyaltyProgram),
		cards:       make(map[primitive.ObjectID]models.LoyaltyCard),
		loyaltyTxs:  make(map[primitive.ObjectID]models.LoyaltyTransaction),
	}
}

type memSnapshot struct {
	deals       map[primitive.ObjectID]models.Deal
	claims      map[primitive.ObjectID]models.Claim
	redemptions map[primitive.ObjectID]models.Redemption
	cards       map[primitive.ObjectID]models.LoyaltyCard
	loyaltyTxs  map[primitive.ObjectID]models.LoyaltyTransaction
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := memSnapshot{
		deals:       copyMap(m.deals),
		claims:      copyMap(m.claims),
		redemptions: copyMap(m.redemptions),
		cards:       copyMap(m.cards),
		loyaltyTxs:  copyMap(m.loyaltyTxs),
	}
	m.transactions++
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.deals = snap.deals
		m.claims = snap.claims
		m.redemptions = snap.redemptions
		m.cards = snap.cards
		m.loyaltyTxs = snap.loyaltyTxs
		m.mu.Unlock()
		return err
	}
	return nil
}

// Accessors used by assertions.

func (m *memStore) deal(id primitive.ObjectID) models.Deal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deals[id]
}

func (m *memStore) claim(id primitive.ObjectID) (models.Claim, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	return c, ok
}

func (m *memStore) claimCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.claims)
}

func (m *memStore) redemptionsFor(claimID primitive.ObjectID) []models.Redemption {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Redemption
	for _, r := range m.redemptions {
		if r.ClaimID == claimID {
			out = append(out, r)
		}
	}
	return out
}

func (m *memStore) auditLogs() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditLog(nil), m.audits...)
}

// Deals

type memDealRepo struct{ s *memStore }

func (r memDealRepo) Create(ctx context.Context, deal *models.Deal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if deal.ID.IsZero() {
		deal.ID = primitive.NewObjectID()
	}
	if _, ok := r.s.deals[deal.ID]; ok {
		return interfaces.ErrDuplicateKey
	}
	r.s.deals[deal.ID] = *deal
	return nil
}

func (r memDealRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Deal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deals[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &d, nil
}

func (r memDealRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deals[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "expires_at":
			d.ExpiresAt = v.(time.Time)
		case "status":
			d.Status = v.(models.DealStatus)
		case "claims_count":
			d.ClaimsCount = v.(int)
		default:
			return fmt.Errorf("memDealRepo: unsupported update field %q", k)
		}
	}
	r.s.deals[id] = d
	return nil
}

func (r memDealRepo) IncrementClaimsCount(ctx context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deals[id]
	if !ok || (d.MaxClaims != nil && d.ClaimsCount >= *d.MaxClaims) {
		return interfaces.ErrConflict
	}
	d.ClaimsCount++
	r.s.deals[id] = d
	return nil
}

func (r memDealRepo) DecrementClaimsCount(ctx context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deals[id]
	if !ok || d.ClaimsCount <= 0 {
		return interfaces.ErrConflict
	}
	d.ClaimsCount--
	r.s.deals[id] = d
	return nil
}

func (r memDealRepo) ExpirePastDeals(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, d := range r.s.deals {
		if (d.Status == models.DealStatusActive || d.Status == models.DealStatusPaused) && !d.ExpiresAt.After(now) {
			d.Status = models.DealStatusExpired
			r.s.deals[id] = d
			n++
		}
	}
	return n, nil
}

// Claims

type memClaimRepo struct{ s *memStore }

// uniqueViolation reports whether c's unique-when-set fields clash with any
// other stored claim. Caller holds the lock.
func (r memClaimRepo) uniqueViolation(c models.Claim) bool {
	for id, other := range r.s.claims {
		if id == c.ID {
			continue
		}
		if clash(c.RedemptionCode, other.RedemptionCode) || clash(c.QRCode, other.QRCode) ||
			clash(c.PaymentReference, other.PaymentReference) || clash(c.CheckoutSessionID, other.CheckoutSessionID) ||
			clash(c.SessionToken, other.SessionToken) {
			return true
		}
	}
	return false
}

func clash(a, b string) bool {
	return a != "" && a == b
}

func (r memClaimRepo) find(match func(c models.Claim) bool) (*models.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.claims {
		if match(c) {
			found := c
			return &found, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

// mutate applies fn to the stored claim when guard holds. A missing claim or
// failed guard is ErrConflict, as with a guarded Mongo update.
func (r memClaimRepo) mutate(id primitive.ObjectID, guard func(c models.Claim) bool, fn func(c *models.Claim)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.claims[id]
	if !ok || (guard != nil && !guard(c)) {
		return interfaces.ErrConflict
	}
	fn(&c)
	if r.uniqueViolation(c) {
		return interfaces.ErrDuplicateKey
	}
	r.s.claims[id] = c
	return nil
}

func (r memClaimRepo) Create(ctx context.Context, claim *models.Claim) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if claim.ID.IsZero() {
		claim.ID = primitive.NewObjectID()
	}
	if _, ok := r.s.claims[claim.ID]; ok {
		return interfaces.ErrDuplicateKey
	}
	if r.uniqueViolation(*claim) {
		return interfaces.ErrDuplicateKey
	}
	r.s.claims[claim.ID] = *claim
	return nil
}

func (r memClaimRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Claim, error) {
	return r.find(func(c models.Claim) bool { return c.ID == id })
}

func (r memClaimRepo) GetByRedemptionCode(ctx context.Context, code string) (*models.Claim, error) {
	return r.find(func(c models.Claim) bool { return c.RedemptionCode == code })
}

func (r memClaimRepo) GetByQRCode(ctx context.Context, qrCode string) (*models.Claim, error) {
	return r.find(func(c models.Claim) bool { return c.QRCode == qrCode })
}

func (r memClaimRepo) GetByCheckoutSessionID(ctx context.Context, sessionID string) (*models.Claim, error) {
	return r.find(func(c models.Claim) bool { return c.CheckoutSessionID == sessionID })
}

func (r memClaimRepo) GetByPaymentReference(ctx context.Context, vendorID primitive.ObjectID, reference string) (*models.Claim, error) {
	return r.find(func(c models.Claim) bool { return c.VendorID == vendorID && c.PaymentReference == reference })
}

func (r memClaimRepo) FindLiveClaim(ctx context.Context, dealID, customerID primitive.ObjectID, now time.Time) (*models.Claim, error) {
	return r.find(func(c models.Claim) bool {
		return c.DealID == dealID && c.CustomerID == customerID && c.IsLive(now)
	})
}

func (r memClaimRepo) ListByCustomer(ctx context.Context, customerID primitive.ObjectID, filter interfaces.ClaimStatusFilter, now time.Time, limit int) ([]*models.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Claim
	for _, c := range r.s.claims {
		if c.CustomerID != customerID {
			continue
		}
		switch filter {
		case interfaces.ClaimFilterActive:
			if c.Redeemed || c.IsCancelled() || c.IsExpiredAt(now) {
				continue
			}
		case interfaces.ClaimFilterExpired:
			if c.Redeemed || c.IsCancelled() || !c.IsExpiredAt(now) {
				continue
			}
		case interfaces.ClaimFilterRedeemed:
			if !c.Redeemed {
				continue
			}
		}
		found := c
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memClaimRepo) SetCheckoutSession(ctx context.Context, id primitive.ObjectID, sessionID string) error {
	return r.mutate(id, nil, func(c *models.Claim) { c.CheckoutSessionID = sessionID })
}

func (r memClaimRepo) ConfirmWithCredentials(ctx context.Context, id primitive.ObjectID, creds models.Credentials, now time.Time) error {
	return r.mutate(id,
		func(c models.Claim) bool { return !c.DepositConfirmed && c.CancelledAt == nil },
		func(c *models.Claim) {
			c.DepositConfirmed = true
			c.DepositConfirmedAt = &now
			c.QRCode = creds.QRCode
			c.RedemptionCode = creds.RedemptionCode
		})
}

func (r memClaimRepo) SetCredentials(ctx context.Context, id primitive.ObjectID, creds models.Credentials) error {
	return r.mutate(id,
		func(c models.Claim) bool { return c.DepositConfirmed && c.CancelledAt == nil && c.RedemptionCode == "" },
		func(c *models.Claim) {
			c.QRCode = creds.QRCode
			c.RedemptionCode = creds.RedemptionCode
		})
}

func (r memClaimRepo) SetQRCodeURL(ctx context.Context, id primitive.ObjectID, url string) error {
	return r.mutate(id,
		func(c models.Claim) bool { return c.QRCodeURL == "" },
		func(c *models.Claim) { c.QRCodeURL = url })
}

func (r memClaimRepo) MarkRedeemed(ctx context.Context, id primitive.ObjectID, now time.Time) error {
	return r.mutate(id,
		func(c models.Claim) bool { return !c.Redeemed && c.CancelledAt == nil },
		func(c *models.Claim) {
			c.Redeemed = true
			c.RedeemedAt = &now
		})
}

func (r memClaimRepo) MarkCancelled(ctx context.Context, id primitive.ObjectID, now time.Time, unredeemedOnly bool) (*models.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.claims[id]
	if !ok || c.CancelledAt != nil || (unredeemedOnly && c.Redeemed) {
		return nil, interfaces.ErrConflict
	}
	before := c
	c.CancelledAt = &now
	c.Redeemed = false
	c.RedeemedAt = nil
	r.s.claims[id] = c
	return &before, nil
}

func (r memClaimRepo) UpdateExpiry(ctx context.Context, id primitive.ObjectID, expiresAt time.Time) error {
	return r.mutate(id, nil, func(c *models.Claim) { c.ExpiresAt = expiresAt })
}

func (r memClaimRepo) Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	return r.mutate(id, nil, func(c *models.Claim) {
		for k, v := range updates {
			switch k {
			case "payment_method_type":
				c.PaymentMethodType = v.(string)
			case "payment_reference":
				c.PaymentReference = v.(string)
			case "admin_notes":
				c.AdminNotes = v.(string)
			}
		}
	})
}

func (r memClaimRepo) Delete(ctx context.Context, id primitive.ObjectID) (*models.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.claims[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	delete(r.s.claims, id)
	return &c, nil
}

func (r memClaimRepo) DeleteIfUnconfirmed(ctx context.Context, id primitive.ObjectID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.claims[id]
	if !ok || c.DepositConfirmed {
		return false, nil
	}
	delete(r.s.claims, id)
	return true, nil
}

func (r memClaimRepo) FindAbandonedCheckouts(ctx context.Context, before time.Time, limit int) ([]*models.Claim, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Claim
	for _, c := range r.s.claims {
		if c.PaymentTier == models.PaymentTierIntegrated && !c.DepositConfirmed &&
			c.CheckoutExpiresAt != nil && c.CheckoutExpiresAt.Before(before) {
			found := c
			out = append(out, &found)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Redemptions

type memRedemptionRepo struct{ s *memStore }

func (r memRedemptionRepo) Create(ctx context.Context, redemption *models.Redemption) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.redemptions {
		if existing.ClaimID == redemption.ClaimID {
			return interfaces.ErrDuplicateKey
		}
	}
	if redemption.ID.IsZero() {
		redemption.ID = primitive.NewObjectID()
	}
	r.s.redemptions[redemption.ID] = *redemption
	return nil
}

func (r memRedemptionRepo) GetByClaimID(ctx context.Context, claimID primitive.ObjectID) (*models.Redemption, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.redemptions {
		if existing.ClaimID == claimID {
			found := existing
			return &found, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r memRedemptionRepo) ListByVendor(ctx context.Context, vendorID primitive.ObjectID, limit int) ([]*models.Redemption, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Redemption
	for _, existing := range r.s.redemptions {
		if existing.VendorID == vendorID {
			found := existing
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RedeemedAt.After(out[j].RedeemedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Loyalty

type memLoyaltyRepo struct{ s *memStore }

func (r memLoyaltyRepo) GetActiveProgram(ctx context.Context, vendorID primitive.ObjectID) (*models.LoyaltyProgram, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.programs {
		if p.VendorID == vendorID && p.IsActive {
			found := p
			return &found, nil
		}
	}
	return nil, interfaces.ErrNotFound
}

func (r memLoyaltyRepo) FindOrCreateCard(ctx context.Context, program *models.LoyaltyProgram, customerID primitive.ObjectID) (*models.LoyaltyCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.cards {
		if c.ProgramID == program.ID && c.CustomerID == customerID {
			found := c
			return &found, nil
		}
	}
	card := models.LoyaltyCard{
		ID:         primitive.NewObjectID(),
		ProgramID:  program.ID,
		VendorID:   program.VendorID,
		CustomerID: customerID,
	}
	r.s.cards[card.ID] = card
	return &card, nil
}

func (r memLoyaltyRepo) IncrementCard(ctx context.Context, cardID primitive.ObjectID, punches, points int64, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[cardID]
	if !ok {
		return interfaces.ErrNotFound
	}
	c.CurrentPunches += punches
	c.TotalPunchesEarned += punches
	c.CurrentPoints += points
	c.TotalPointsEarned += points
	c.LastActivityAt = &now
	r.s.cards[cardID] = c
	return nil
}

func (r memLoyaltyRepo) CreateTransaction(ctx context.Context, tx *models.LoyaltyTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.loyaltyTxs {
		if existing.RedemptionID == tx.RedemptionID {
			return interfaces.ErrDuplicateKey
		}
	}
	r.s.loyaltyTxs[tx.ID] = *tx
	return nil
}

func (m *memStore) card(programID, customerID primitive.ObjectID) (models.LoyaltyCard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		if c.ProgramID == programID && c.CustomerID == customerID {
			return c, true
		}
	}
	return models.LoyaltyCard{}, false
}

// Vendors, users, audit

type memVendorRepo struct{ s *memStore }

func (r memVendorRepo) Create(ctx context.Context, vendor *models.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.vendors[vendor.ID] = *vendor
	return nil
}

func (r memVendorRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Vendor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vendors[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &v, nil
}

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.users[user.ID] = *user
	return nil
}

func (r memUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return &u, nil
}

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, *entry)
	return nil
}

func (r memAuditRepo) ListForResource(ctx context.Context, resource, resourceID string, limit int) ([]*models.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.AuditLog{}
	for i := len(r.s.audits) - 1; i >= 0 && len(out) < limit; i-- {
		a := r.s.audits[i]
		if a.Resource == resource && a.ResourceID == resourceID {
			out = append(out, &a)
		}
	}
	return out, nil
}

// Locks and webhook markers

type memLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]string)}
}

func (l *memLocker) Lock(ctx context.Context, key string, expiration time.Duration) (*cache.DistributedLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, cache.ErrLockNotAcquired
	}
	token := primitive.NewObjectID().Hex()
	l.held[key] = token
	return &cache.DistributedLock{Key: key, Token: token, Expiration: expiration, AcquiredAt: time.Now()}, nil
}

func (l *memLocker) Unlock(ctx context.Context, lock *cache.DistributedLock) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[lock.Key] == lock.Token {
		delete(l.held, lock.Key)
	}
	return nil
}

type memDeduper struct {
	mu   sync.Mutex
	keys map[string]time.Duration
}

func newMemDeduper() *memDeduper {
	return &memDeduper{keys: make(map[string]time.Duration)}
}

func (d *memDeduper) Seen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.keys[key]
	return ok, nil
}

func (d *memDeduper) Remember(ctx context.Context, key string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[key] = ttl
	return nil
}
