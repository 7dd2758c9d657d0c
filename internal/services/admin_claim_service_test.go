package services

import (
	"context"
	"testing"
	"time"

	"dealdrop/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testActor() AdminActor {
	return AdminActor{UserID: primitive.NewObjectID(), IPAddress: "203.0.113.9", UserAgent: "admin-console"}
}

func TestParseAdminAction(t *testing.T) {
	tests := []struct {
		name    string
		req     AdminActionRequest
		want    string
		wantErr *ServiceError
	}{
		{name: "cancel", req: AdminActionRequest{Action: "cancel"}, want: AdminActionCancel},
		{name: "case insensitive", req: AdminActionRequest{Action: " Redeem "}, want: AdminActionRedeem},
		{name: "confirm deposit", req: AdminActionRequest{Action: "confirm_deposit"}, want: AdminActionConfirmDeposit},
		{name: "generate codes", req: AdminActionRequest{Action: "generate_codes"}, want: AdminActionGenerateCodes},
		{name: "extend rfc3339", req: AdminActionRequest{Action: "extend", ExpiresAt: "2026-07-01T00:00:00Z"}, want: AdminActionExtend},
		{name: "extend date only", req: AdminActionRequest{Action: "extend", ExpiresAt: "2026-07-01"}, want: AdminActionExtend},
		{name: "extend missing date", req: AdminActionRequest{Action: "extend"}, wantErr: ErrInvalidExpiry},
		{name: "extend garbage", req: AdminActionRequest{Action: "extend", ExpiresAt: "next tuesday"}, wantErr: ErrInvalidExpiry},
		{name: "edit", req: AdminActionRequest{Action: "edit", Fields: map[string]interface{}{"admin_notes": "paid cash"}}, want: AdminActionEdit},
		{name: "edit no fields", req: AdminActionRequest{Action: "edit"}, wantErr: ErrInvalidInput},
		{name: "edit forbidden field", req: AdminActionRequest{Action: "edit", Fields: map[string]interface{}{"deposit_confirmed": true}}, wantErr: ErrFieldNotEditable},
		{name: "edit non-string", req: AdminActionRequest{Action: "edit", Fields: map[string]interface{}{"admin_notes": 42}}, wantErr: ErrInvalidInput},
		{name: "unknown", req: AdminActionRequest{Action: "refund"}, wantErr: ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := ParseAdminAction(&tt.req)
			if tt.wantErr != nil {
				requireCode(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("ParseAdminAction: %v", err)
			}
			if action.Name() != tt.want {
				t.Errorf("action = %s, want %s", action.Name(), tt.want)
			}
		})
	}

	action, _ := ParseAdminAction(&AdminActionRequest{Action: "extend", ExpiresAt: "2026-07-01"})
	if got := action.(ExtendExpiryAction).ExpiresAt; !got.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parsed expiry = %v", got)
	}
}

func TestAdminCancelReleasesCapacity(t *testing.T) {
	f := newFixture(t)
	vendor := f.addVendor(t, models.PaymentSettings{})
	deal := f.addDeal(t, vendor, func(d *models.Deal) { d.MaxClaims = ptrInt(3) })
	claim := f.confirmedClaim(t, deal)
	ctx := context.Background()
	actor := testActor()

	if got := f.store.deal(deal.ID).ClaimsCount; got != 1 {
		t.Fatalf("claims_count = %d, want 1", got)
	}

	cancelled, err := f.admin.Execute(ctx, actor, claim.ID, CancelAction{})
	if err != nil {
		t.Fatalf("Execute(cancel): %v", err)
	}
	if !cancelled.IsCancelled() {
		t.Error("claim not cancelled")
	}
	if got := f.store.deal(deal.ID).ClaimsCount; got != 0 {
		t.Errorf("claims_count = %d, want 0", got)
	}

	_, err = f.admin.Execute(ctx, actor, claim.ID, CancelAction{})
	requireCode(t, err, ErrAlreadyCancelled)
	if got := f.store.deal(deal.ID).ClaimsCount; got != 0 {
		t.Errorf("claims_count after repeat = %d, want 0", got)
	}

	logs := f.store.auditLogs()
	if len(logs) != 1 {
		t.Fatalf("audit logs = %d, want 1", len(logs))
	}
	entry := logs[0]
	if entry.UserID != actor.UserID || entry.ResourceID != claim.ID.Hex() || entry.Metadata["action"] != AdminActionCancel {
		t.Errorf("audit entry = %+v", entry)
	}
	if entry.OldValues["cancelled_at"] != (*time.Time)(nil) || entry.NewValues["cancelled_at"] == (*time.Time)(nil) {
		t.Errorf("audit snapshots = %v -> %v", entry.OldValues, entry.NewValues)
	}
}

func TestAdminCancelPendingClaimKeepsCounter(t *testing.T) {
	f := newFixture(t)
	vendor := f.addVendor(t, venmoSettings())
	deal := f.addDeal(t, vendor, func(d *models.Deal) {
		d.DepositAmount = ptrFloat(2)
		d.ClaimsCount = 4
	})
	customer := f.addUser(t, models.UserTypeCustomer)

	res, err := f.claims.CreateClaim(context.Background(), customer.ID, deal.ID)
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	if _, err := f.admin.Execute(context.Background(), testActor(), res.Claim.ID, CancelAction{}); err != nil {
		t.Fatalf("Execute(cancel): %v", err)
	}
	if got := f.store.deal(deal.ID).ClaimsCount; got != 4 {
		t.Errorf("claims_count = %d, want 4", got)
	}
}

func TestAdminForceRedeem(t *testing.T) {
	f := newFixture(t)
	vendor := f.addVendor(t, models.PaymentSettings{})
	deal := f.addDeal(t, vendor, nil)
	claim := f.confirmedClaim(t, deal)
	actor := testActor()
	ctx := context.Background()

	// Force redeem ignores expiry.
	f.admin.clock = func() time.Time { return claim.ExpiresAt.Add(time.Hour) }

	redeemed, err := f.admin.Execute(ctx, actor, claim.ID, ForceRedeemAction{})
	if err != nil {
		t.Fatalf("Execute(redeem): %v", err)
	}
	if !redeemed.Redeemed {
		t.Error("claim not redeemed")
	}
	rs := f.store.redemptionsFor(claim.ID)
	if len(rs) != 1 || rs[0].Method != models.RedemptionMethodAdmin || rs[0].RedeemedBy != actor.UserID {
		t.Errorf("redemptions = %+v", rs)
	}

	_, err = f.admin.Execute(ctx, actor, claim.ID, ForceRedeemAction{})
	requireCode(t, err, ErrAlreadyRedeemed)
	if n := len(f.store.redemptionsFor(claim.ID)); n != 1 {
		t.Errorf("redemptions = %d, want 1", n)
	}

	// A cancelled claim cannot be force redeemed.
	other := f.confirmedClaim(t, deal)
	if _, err := f.admin.Execute(ctx, actor, other.ID, CancelAction{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = f.admin.Execute(ctx, actor, other.ID, ForceRedeemAction{})
	requireCode(t, err, ErrClaimCancelled)
}

func TestAdminExtendExpiry(t *testing.T) {
	f := newFixture(t)
	vendor := f.addVendor(t, models.PaymentSettings{})
	deal := f.addDeal(t, vendor, nil)
	claim := f.confirmedClaim(t, deal)
	ctx := context.Background()

	target := testNow.Add(7 * 24 * time.Hour)
	extended, err := f.admin.Execute(ctx, testActor(), claim.ID, ExtendExpiryAction{ExpiresAt: target})
	if err != nil {
		t.Fatalf("Execute(extend): %v", err)
	}
	if !extended.ExpiresAt.Equal(target) {
		t.Errorf("expires_at = %v, want %v", extended.ExpiresAt, target)
	}
	if got := f.store.deal(deal.ID).ExpiresAt; !got.Equal(deal.ExpiresAt) {
		t.Errorf("deal expiry changed to %v", got)
	}

	_, err = f.admin.Execute(ctx, testActor(), claim.ID, ExtendExpiryAction{ExpiresAt: testNow})
	requireCode(t, err, ErrInvalidExpiry)
	_, err = f.admin.Execute(ctx, testActor(), claim.ID, ExtendExpiryAction{ExpiresAt: testNow.Add(-time.Hour)})
	requireCode(t, err, ErrInvalidExpiry)

	// An expired claim becomes redeemable again once extended.
	expired := f.confirmedClaim(t, deal)
	if err := (memClaimRepo{f.store}).UpdateExpiry(ctx, expired.ID, testNow.Add(-time.Minute)); err != nil {
		t.Fatalf("UpdateExpiry: %v", err)
	}
	_, err = f.redemptions.Redeem(ctx, vendor.ID, vendor.OwnerID, expired.RedemptionCode)
	requireCode(t, err, ErrCodeExpired)
	if _, err := f.admin.Execute(ctx, testActor(), expired.ID, ExtendExpiryAction{ExpiresAt: target}); err != nil {
		t.Fatalf("Execute(extend): %v", err)
	}
	if _, err := f.redemptions.Redeem(ctx, vendor.ID, vendor.OwnerID, expired.RedemptionCode); err != nil {
		t.Errorf("Redeem after extend: %v", err)
	}
}

func TestAdminConfirmDepositIsIdempotent(t *testing.T) {
	f := newFixture(t)
	vendor := f.addVendor(t, venmoSettings())
	deal := f.addDeal(t, vendor, func(d *models.Deal) { d.DepositAmount = ptrFloat(4) })
	customer := f.addUser(t, models.UserTypeCustomer)
	ctx := context.Background()

	res, err := f.claims.CreateClaim(ctx, customer.ID, deal.ID)
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	if res.Credentials != nil {
		t.Fatal("pending claim must not expose credentials")
	}

	confirmed, err := f.admin.Execute(ctx, testActor(), res.Claim.ID, ConfirmDepositAction{})
	if err != nil {
		t.Fatalf("Execute(confirm_deposit): %v", err)
	}
	if !confirmed.DepositConfirmed || !confirmed.HasCredentials() {
		t.Errorf("claim = %+v", confirmed)
	}

	_, err = f.admin.Execute(ctx, testActor(), res.Claim.ID, ConfirmDepositAction{})
	requireCode(t, err, ErrAlreadyConfirmed)

	if got := f.store.deal(deal.ID).ClaimsCount; got != 1 {
		t.Errorf("claims_count = %d, want 1", got)
	}
}

func TestAdminGenerateCodes(t *testing.T) {
	f := newFixture(t)
	vendor := f.addVendor(t, venmoSettings())
	deal := f.addDeal(t, vendor, func(d *models.Deal) { d.DepositAmount = ptrFloat(4) })
	ctx := context.Background()

	// Confirmed without credentials, as left behind by older data.
	legacy := &models.Claim{
		ID:               primitive.NewObjectID(),
		DealID:           deal.ID,
		VendorID:         vendor.ID,
		CustomerID:       primitive.NewObjectID(),
		SessionToken:     primitive.NewObjectID().Hex(),
		PaymentTier:      models.PaymentTierManual,
		DepositAmount:    4,
		DepositConfirmed: true,
		ExpiresAt:        deal.ExpiresAt,
		CreatedAt:        testNow,
	}
	if err := (memClaimRepo{f.store}).Create(ctx, legacy); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := f.store.deal(deal.ID).ClaimsCount

	issued, err := f.admin.Execute(ctx, testActor(), legacy.ID, GenerateCodesAction{})
	if err != nil {
		t.Fatalf("Execute(generate_codes): %v", err)
	}
	if !issued.HasCredentials() {
		t.Error("credentials not issued")
	}
	if got := f.store.deal(deal.ID).ClaimsCount; got != before {
		t.Errorf("claims_count = %d, want unchanged %d", got, before)
	}

	_, err = f.admin.Execute(ctx, testActor(), legacy.ID, GenerateCodesAction{})
	requireCode(t, err, ErrCredentialsExist)

	// An unconfirmed claim is confirmed and takes capacity.
	customer := f.addUser(t, models.UserTypeCustomer)
	res, err := f.claims.CreateClaim(ctx, customer.ID, deal.ID)
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	pending, err := f.admin.Execute(ctx, testActor(), res.Claim.ID, GenerateCodesAction{})
	if err != nil {
		t.Fatalf("Execute(generate_codes): %v", err)
	}
	if !pending.DepositConfirmed || !pending.HasCredentials() {
		t.Errorf("claim = %+v", pending)
	}
	if got := f.store.deal(deal.ID).ClaimsCount; got != before+1 {
		t.Errorf("claims_count = %d, want %d", got, before+1)
	}
}

func TestAdminEditClaim(t *testing.T) {
	f := newFixture(t)
	vendor := f.addVendor(t, venmoSettings())
	deal := f.addDeal(t, vendor, func(d *models.Deal) { d.DepositAmount = ptrFloat(4) })
	ctx := context.Background()

	first, err := f.claims.CreateClaim(ctx, f.addUser(t, models.UserTypeCustomer).ID, deal.ID)
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	second, err := f.claims.CreateClaim(ctx, f.addUser(t, models.UserTypeCustomer).ID, deal.ID)
	if err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}

	notes := "customer paid in cash"
	ref := " dd-manual1 "
	edited, err := f.admin.Execute(ctx, testActor(), first.Claim.ID, EditClaimAction{AdminNotes: &notes, PaymentReference: &ref})
	if err != nil {
		t.Fatalf("Execute(edit): %v", err)
	}
	if edited.AdminNotes != notes || edited.PaymentReference != "DD-MANUAL1" {
		t.Errorf("edited = notes %q ref %q", edited.AdminNotes, edited.PaymentReference)
	}

	taken := second.Claim.PaymentReference
	_, err = f.admin.Execute(ctx, testActor(), first.Claim.ID, EditClaimAction{PaymentReference: &taken})
	requireCode(t, err, ErrInvalidInput)

	_, err = f.admin.Execute(ctx, testActor(), first.Claim.ID, EditClaimAction{})
	requireCode(t, err, ErrInvalidInput)

	_, err = f.admin.Execute(ctx, testActor(), primitive.NewObjectID(), EditClaimAction{AdminNotes: &notes})
	requireCode(t, err, ErrClaimNotFound)
}

func TestAdminDeleteClaim(t *testing.T) {
	f := newFixture(t)
	vendor := f.addVendor(t, models.PaymentSettings{})
	deal := f.addDeal(t, vendor, nil)
	ctx := context.Background()

	live := f.confirmedClaim(t, deal)
	cancelled := f.confirmedClaim(t, deal)
	if _, err := f.admin.Execute(ctx, testActor(), cancelled.ID, CancelAction{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.store.deal(deal.ID).ClaimsCount; got != 1 {
		t.Fatalf("claims_count = %d, want 1", got)
	}

	if err := f.admin.DeleteClaim(ctx, testActor(), live.ID); err != nil {
		t.Fatalf("DeleteClaim(live): %v", err)
	}
	if got := f.store.deal(deal.ID).ClaimsCount; got != 0 {
		t.Errorf("claims_count = %d, want 0", got)
	}

	// Deleting an already cancelled claim must not release a second time.
	if err := f.admin.DeleteClaim(ctx, testActor(), cancelled.ID); err != nil {
		t.Fatalf("DeleteClaim(cancelled): %v", err)
	}
	if got := f.store.deal(deal.ID).ClaimsCount; got != 0 {
		t.Errorf("claims_count = %d, want 0", got)
	}
	if n := f.store.claimCount(); n != 0 {
		t.Errorf("claims left = %d, want 0", n)
	}

	err := f.admin.DeleteClaim(ctx, testActor(), live.ID)
	requireCode(t, err, ErrClaimNotFound)

	var deletes int
	for _, entry := range f.store.auditLogs() {
		if entry.Action == models.AuditActionDelete {
			deletes++
			if entry.NewValues != nil {
				t.Errorf("delete audit should have no new values: %v", entry.NewValues)
			}
		}
	}
	if deletes != 2 {
		t.Errorf("delete audit entries = %d, want 2", deletes)
	}
}

func TestAdminExecuteUnknownClaim(t *testing.T) {
	f := newFixture(t)
	_, err := f.admin.Execute(context.Background(), testActor(), primitive.NewObjectID(), CancelAction{})
	requireCode(t, err, ErrClaimNotFound)

	_, err = f.admin.Execute(context.Background(), testActor(), primitive.NewObjectID(), nil)
	requireCode(t, err, ErrInvalidAction)
}

func TestAdminClaimHistoryOutlivesDelete(t *testing.T) {
	f := newFixture(t)
	vendor := f.addVendor(t, models.PaymentSettings{})
	deal := f.addDeal(t, vendor, nil)
	ctx := context.Background()
	claim := f.confirmedClaim(t, deal)
	other := f.confirmedClaim(t, deal)

	if _, err := f.admin.Execute(ctx, testActor(), other.ID, CancelAction{}); err != nil {
		t.Fatalf("cancel other: %v", err)
	}
	if _, err := f.admin.Execute(ctx, testActor(), claim.ID, CancelAction{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.admin.DeleteClaim(ctx, testActor(), claim.ID); err != nil {
		t.Fatalf("DeleteClaim: %v", err)
	}

	history, err := f.admin.ClaimHistory(ctx, claim.ID)
	if err != nil {
		t.Fatalf("ClaimHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	if history[0].Action != models.AuditActionDelete || history[1].Metadata["action"] != AdminActionCancel {
		t.Errorf("history order = %s, %v", history[0].Action, history[1].Metadata["action"])
	}

	empty, err := f.admin.ClaimHistory(ctx, primitive.NewObjectID())
	if err != nil || len(empty) != 0 {
		t.Errorf("unknown claim history = %v, %v", empty, err)
	}
}
