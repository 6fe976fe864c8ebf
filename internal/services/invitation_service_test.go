package services

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/commshub/commshub/internal/db/models"
	"github.com/commshub/commshub/internal/identity"
)

const testCallbackURL = "https://app.commshub.test/invitations"

var invitationTestCols = []string{"id", "tenant_id", "email", "role", "token", "status", "invited_by", "expires_at", "accepted_at", "created_at", "updated_at"}

func pendingInvitationRow(expiresAt time.Time) *sqlmock.Rows {
	inviter := "profile-alice"
	return sqlmock.NewRows(invitationTestCols).
		AddRow("inv-1", "tenant-1", "bob@example.com", "member", "tok123",
			models.InvitationStatusPending, inviter, expiresAt, nil, time.Now(), time.Now())
}

func newInvitationService(h *harness, provider identity.Provider) *InvitationService {
	return NewInvitationService(h.invitations, h.memberships, h.profiles, provider, testCallbackURL)
}

func TestSend_Success(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{}
	svc := newInvitationService(h, provider)

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM member_profiles.*WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity_id", "email", "display_name", "created_at", "updated_at"}))
	h.mock.ExpectQuery("SELECT.*FROM invitations.*status").
		WillReturnRows(sqlmock.NewRows(invitationTestCols))
	h.mock.ExpectQuery("INSERT INTO invitations").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("inv-1", time.Now(), time.Now()))

	inv, err := svc.Send(context.Background(), "tenant-1", "profile-alice", "bob@example.com", models.RoleMember)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(inv.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(inv.Token))
	}
	if provider.inviteCalls != 1 {
		t.Errorf("invite calls = %d, want 1", provider.inviteCalls)
	}
}

func TestSend_DuplicatePendingInvitation(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM member_profiles.*WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity_id", "email", "display_name", "created_at", "updated_at"}))
	h.mock.ExpectQuery("SELECT.*FROM invitations.*status").
		WillReturnRows(pendingInvitationRow(time.Now().Add(time.Hour)))

	_, err := svc.Send(context.Background(), "tenant-1", "profile-alice", "bob@example.com", models.RoleMember)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestSend_ExistingMember(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM member_profiles.*WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity_id", "email", "display_name", "created_at", "updated_at"}).
			AddRow("profile-bob", "acct-bob", "bob@example.com", "Bob", time.Now(), time.Now()))
	h.expectMembershipLookup("tenant-1", "profile-bob", models.RoleMember, models.MembershipStatusActive)

	_, err := svc.Send(context.Background(), "tenant-1", "profile-alice", "bob@example.com", models.RoleMember)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestSend_CannotInviteAsOwner(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	_, err := svc.Send(context.Background(), "tenant-1", "profile-alice", "bob@example.com", models.RoleOwner)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestSend_UnconfirmedAccountReconciled(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{
		inviteErr:     identity.ErrEmailConflict,
		inviteErrOnce: true,
		account:       &identity.Account{ID: "acct-dangling", Email: "bob@example.com", EmailConfirmed: false},
	}
	svc := newInvitationService(h, provider)

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM member_profiles.*WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity_id", "email", "display_name", "created_at", "updated_at"}))
	h.mock.ExpectQuery("SELECT.*FROM invitations.*status").
		WillReturnRows(sqlmock.NewRows(invitationTestCols))
	h.mock.ExpectQuery("INSERT INTO invitations").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("inv-1", time.Now(), time.Now()))

	_, err := svc.Send(context.Background(), "tenant-1", "profile-alice", "bob@example.com", models.RoleMember)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if provider.deleteCalls != 1 || provider.deletedAccount != "acct-dangling" {
		t.Errorf("dangling account not deleted: calls=%d acct=%q", provider.deleteCalls, provider.deletedAccount)
	}
	if provider.inviteCalls != 2 {
		t.Errorf("invite calls = %d, want 2 (retry after reconciliation)", provider.inviteCalls)
	}
}

func TestSend_ProviderDownKeepsRow(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{inviteErr: errors.New("provider unreachable")}
	svc := newInvitationService(h, provider)

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM member_profiles.*WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity_id", "email", "display_name", "created_at", "updated_at"}))
	h.mock.ExpectQuery("SELECT.*FROM invitations.*status").
		WillReturnRows(sqlmock.NewRows(invitationTestCols))
	h.mock.ExpectQuery("INSERT INTO invitations").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("inv-1", time.Now(), time.Now()))

	inv, err := svc.Send(context.Background(), "tenant-1", "profile-alice", "bob@example.com", models.RoleMember)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
	if inv == nil || inv.ID != "inv-1" {
		t.Error("invitation row should be returned so it can be resent")
	}
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations (no DELETE should follow a delivery failure): %v", err)
	}
}

func TestGetByToken_LazyExpiryFlip(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE token").
		WithArgs("tok123").
		WillReturnRows(pendingInvitationRow(time.Now().Add(-time.Hour)))
	h.mock.ExpectExec("UPDATE invitations").
		WithArgs("inv-1", models.InvitationStatusExpired, models.InvitationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := svc.GetByToken(context.Background(), "tok123")
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("error = %v, want ErrExpiredToken", err)
	}
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expiry flip not written: %v", err)
	}
}

func TestGetByToken_Missing(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE token").
		WillReturnRows(sqlmock.NewRows(invitationTestCols))

	_, err := svc.GetByToken(context.Background(), "bogus")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestAccept_AlreadyMemberIsIdempotent(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE token").
		WillReturnRows(pendingInvitationRow(time.Now().Add(time.Hour)))
	h.mock.ExpectQuery("INSERT INTO member_profiles.*ON CONFLICT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("profile-bob", time.Now(), time.Now()))
	h.expectMembershipLookup("tenant-1", "profile-bob", models.RoleMember, models.MembershipStatusActive)

	inv, err := svc.Accept(context.Background(), "tok123", "acct-bob", "bob@example.com", "Bob")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if inv.ID != "inv-1" {
		t.Errorf("ID = %s", inv.ID)
	}
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no state should change for an existing member: %v", err)
	}
}

func TestAccept_WinsRaceAndJoins(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE token").
		WillReturnRows(pendingInvitationRow(time.Now().Add(time.Hour)))
	h.mock.ExpectQuery("INSERT INTO member_profiles.*ON CONFLICT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("profile-bob", time.Now(), time.Now()))
	h.expectNoMembership("tenant-1", "profile-bob")
	h.mock.ExpectBegin()
	h.mock.ExpectQuery("UPDATE invitations").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "role"}).AddRow("tenant-1", "member"))
	h.mock.ExpectExec("INSERT INTO memberships").
		WillReturnResult(sqlmock.NewResult(1, 1))
	h.mock.ExpectCommit()

	if _, err := svc.Accept(context.Background(), "tok123", "acct-bob", "bob@example.com", "Bob"); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAccept_ExpiredToken(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE token").
		WillReturnRows(pendingInvitationRow(time.Now().Add(-time.Minute)))
	h.mock.ExpectExec("UPDATE invitations").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := svc.Accept(context.Background(), "tok123", "acct-bob", "bob@example.com", "Bob")
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("error = %v, want ErrExpiredToken", err)
	}
}

func TestDecline_MissingIsNoOp(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE token").
		WillReturnRows(sqlmock.NewRows(invitationTestCols))

	if err := svc.Decline(context.Background(), "bogus"); err != nil {
		t.Fatalf("Decline() error = %v, want nil no-op", err)
	}
}

func TestResend_RotatesTokenAndExpiry(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{}
	svc := newInvitationService(h, provider)

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE id").
		WithArgs("inv-1").
		WillReturnRows(func() *sqlmock.Rows {
			inviter := "profile-alice"
			return sqlmock.NewRows(invitationTestCols).
				AddRow("inv-1", "tenant-1", "bob@example.com", "member", "tok123",
					models.InvitationStatusExpired, inviter, time.Now().Add(-time.Hour), nil, time.Now(), time.Now())
		}())
	h.mock.ExpectExec("UPDATE invitations").
		WillReturnResult(sqlmock.NewResult(0, 1))

	inv, err := svc.Resend(context.Background(), "tenant-1", "profile-alice", "inv-1")
	if err != nil {
		t.Fatalf("Resend() error = %v", err)
	}
	if inv.Token == "tok123" {
		t.Error("token was not rotated")
	}
	if inv.Status != models.InvitationStatusPending {
		t.Errorf("Status = %s, want pending", inv.Status)
	}
	if provider.inviteCalls != 1 {
		t.Errorf("invite calls = %d, want 1", provider.inviteCalls)
	}
}

func TestResend_AcceptedInvitationRefused(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE id").
		WillReturnRows(func() *sqlmock.Rows {
			inviter := "profile-alice"
			accepted := time.Now()
			return sqlmock.NewRows(invitationTestCols).
				AddRow("inv-1", "tenant-1", "bob@example.com", "member", "tok123",
					models.InvitationStatusAccepted, inviter, time.Now().Add(time.Hour), accepted, time.Now(), time.Now())
		}())

	_, err := svc.Resend(context.Background(), "tenant-1", "profile-alice", "inv-1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
}

func TestCancel_DeletesPendingRow(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE id").
		WillReturnRows(pendingInvitationRow(time.Now().Add(time.Hour)))
	h.mock.ExpectExec("DELETE FROM invitations").
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.Cancel(context.Background(), "tenant-1", "profile-alice", "inv-1"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
}

func TestCancel_OtherTenantInvitationHidden(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.expectMembershipLookup("tenant-2", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE id").
		WillReturnRows(pendingInvitationRow(time.Now().Add(time.Hour))) // belongs to tenant-1

	err := svc.Cancel(context.Background(), "tenant-2", "profile-alice", "inv-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSend_StaleExpiredInvitationReplaced(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{}
	svc := newInvitationService(h, provider)

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM member_profiles.*WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity_id", "email", "display_name", "created_at", "updated_at"}))
	h.mock.ExpectQuery("SELECT.*FROM invitations.*status").
		WillReturnRows(pendingInvitationRow(time.Now().Add(-48 * time.Hour)))
	h.mock.ExpectExec("UPDATE invitations").
		WithArgs("inv-1", models.InvitationStatusExpired, models.InvitationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectQuery("INSERT INTO invitations").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("inv-2", time.Now(), time.Now()))

	inv, err := svc.Send(context.Background(), "tenant-1", "profile-alice", "bob@example.com", models.RoleMember)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if inv.Status != models.InvitationStatusPending {
		t.Errorf("status = %s, want pending", inv.Status)
	}
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("stale row not flipped before insert: %v", err)
	}
}

func TestSend_InactiveMemberReinvited(t *testing.T) {
	h := newHarness(t)
	provider := &fakeProvider{}
	svc := newInvitationService(h, provider)

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM member_profiles.*WHERE email").
		WillReturnRows(sqlmock.NewRows([]string{"id", "identity_id", "email", "display_name", "created_at", "updated_at"}).
			AddRow("profile-bob", "acct-bob", "bob@example.com", "Bob", time.Now(), time.Now()))
	h.expectMembershipLookup("tenant-1", "profile-bob", models.RoleMember, models.MembershipStatusInactive)
	h.mock.ExpectQuery("SELECT.*FROM invitations.*status").
		WillReturnRows(sqlmock.NewRows(invitationTestCols))
	h.mock.ExpectQuery("INSERT INTO invitations").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("inv-1", time.Now(), time.Now()))

	_, err := svc.Send(context.Background(), "tenant-1", "profile-alice", "bob@example.com", models.RoleMember)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if provider.inviteCalls != 1 {
		t.Errorf("invite calls = %d, want 1", provider.inviteCalls)
	}
}

func TestCancel_AcceptedInvitationStillDeleted(t *testing.T) {
	h := newHarness(t)
	svc := newInvitationService(h, &fakeProvider{})

	h.expectMembershipLookup("tenant-1", "profile-alice", models.RoleOwner, models.MembershipStatusActive)
	h.mock.ExpectQuery("SELECT.*FROM invitations WHERE id").
		WillReturnRows(func() *sqlmock.Rows {
			inviter := "profile-alice"
			accepted := time.Now()
			return sqlmock.NewRows(invitationTestCols).
				AddRow("inv-1", "tenant-1", "bob@example.com", "member", "tok123",
					models.InvitationStatusAccepted, inviter, time.Now().Add(time.Hour), accepted, time.Now(), time.Now())
		}())
	h.mock.ExpectExec("DELETE FROM invitations").
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := svc.Cancel(context.Background(), "tenant-1", "profile-alice", "inv-1"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if err := h.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("accepted row not deleted: %v", err)
	}
}
