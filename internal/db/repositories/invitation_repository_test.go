package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/commshub/commshub/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var invitationCols = []string{"id", "tenant_id", "email", "role", "token", "status", "invited_by", "expires_at", "accepted_at", "created_at", "updated_at"}
var invitationCreateCols = []string{"id", "created_at", "updated_at"}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func sampleInvitationRow(status string) *sqlmock.Rows {
	inviter := "profile-1"
	return sqlmock.NewRows(invitationCols).
		AddRow("inv-1", "tenant-1", "new@example.com", "member", "tok123", status,
			inviter, time.Now().Add(72*time.Hour), nil, time.Now(), time.Now())
}

func newInvitationRepo(t *testing.T) (*InvitationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewInvitationRepository(db), mock
}

// ---------------------------------------------------------------------------
// Create / lookups
// ---------------------------------------------------------------------------

func TestInvitationCreate(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectQuery("INSERT INTO invitations").
		WillReturnRows(sqlmock.NewRows(invitationCreateCols).AddRow("inv-new", time.Now(), time.Now()))

	inviter := "profile-1"
	inv := &models.Invitation{
		TenantID:  "tenant-1",
		Email:     "new@example.com",
		Role:      models.RoleMember,
		Token:     "tok123",
		Status:    models.InvitationStatusPending,
		InvitedBy: &inviter,
		ExpiresAt: time.Now().Add(models.InvitationTTL),
	}
	if err := repo.Create(context.Background(), inv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.ID != "inv-new" {
		t.Errorf("ID = %s, want inv-new", inv.ID)
	}
}

func TestGetByToken_Found(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectQuery("SELECT.*FROM invitations WHERE token").
		WithArgs("tok123").
		WillReturnRows(sampleInvitationRow(models.InvitationStatusPending))

	inv, err := repo.GetByToken(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv == nil {
		t.Fatal("expected invitation, got nil")
	}
	if inv.Email != "new@example.com" {
		t.Errorf("Email = %s", inv.Email)
	}
}

func TestGetByToken_NotFound(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectQuery("SELECT.*FROM invitations WHERE token").
		WillReturnRows(sqlmock.NewRows(invitationCols))

	inv, err := repo.GetByToken(context.Background(), "bogus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestFindPendingByTenantAndEmail(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectQuery("SELECT.*FROM invitations.*WHERE tenant_id.*status").
		WithArgs("tenant-1", "new@example.com", models.InvitationStatusPending).
		WillReturnRows(sampleInvitationRow(models.InvitationStatusPending))

	inv, err := repo.FindPendingByTenantAndEmail(context.Background(), "tenant-1", "new@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv == nil {
		t.Fatal("expected invitation, got nil")
	}
}

// ---------------------------------------------------------------------------
// Accept (conditional update decides the winner)
// ---------------------------------------------------------------------------

func TestAccept_Winner(t *testing.T) {
	repo, mock := newInvitationRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE invitations").
		WithArgs("inv-1", models.InvitationStatusAccepted, models.InvitationStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "role"}).AddRow("tenant-1", "member"))
	mock.ExpectExec("INSERT INTO memberships").
		WithArgs("tenant-1", "profile-9", "member", models.MembershipStatusActive).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	won, err := repo.Accept(context.Background(), "inv-1", "profile-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !won {
		t.Error("expected to win the accept")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAccept_LostRace(t *testing.T) {
	repo, mock := newInvitationRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE invitations").
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "role"}))
	mock.ExpectRollback()

	won, err := repo.Accept(context.Background(), "inv-1", "profile-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if won {
		t.Error("expected to lose the accept")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Pending-only transitions
// ---------------------------------------------------------------------------

func TestMarkExpired_Flipped(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectExec("UPDATE invitations").
		WithArgs("inv-1", models.InvitationStatusExpired, models.InvitationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	flipped, err := repo.MarkExpired(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flipped {
		t.Error("expected flip")
	}
}

func TestMarkExpired_AlreadyTerminal(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectExec("UPDATE invitations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	flipped, err := repo.MarkExpired(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flipped {
		t.Error("expected no flip")
	}
}

func TestDecline(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectExec("UPDATE invitations").
		WithArgs("inv-1", models.InvitationStatusDeclined, models.InvitationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	flipped, err := repo.Decline(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flipped {
		t.Error("expected flip")
	}
}

func TestInvitationDelete(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectExec("DELETE FROM invitations").
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "inv-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// ResetForResend
// ---------------------------------------------------------------------------

func TestResetForResend(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	newExpiry := time.Now().Add(models.InvitationTTL)
	mock.ExpectExec("UPDATE invitations").
		WithArgs("inv-1", "newtok456", newExpiry, models.InvitationStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ResetForResend(context.Background(), "inv-1", "newtok456", newExpiry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetStats
// ---------------------------------------------------------------------------

func TestInvitationGetStats(t *testing.T) {
	repo, mock := newInvitationRepo(t)
	mock.ExpectQuery("SELECT.*COUNT.*FROM invitations").
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "pending", "accepted", "declined", "expired"}).
			AddRow(10, 4, 3, 2, 1))

	stats, err := repo.GetStats(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 10 || stats.Pending != 4 {
		t.Errorf("stats = %+v", stats)
	}
}
