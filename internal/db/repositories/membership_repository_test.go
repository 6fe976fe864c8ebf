package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/commshub/commshub/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var membershipCols = []string{"id", "tenant_id", "profile_id", "role", "status", "custom_permissions", "created_at", "updated_at"}
var lockedTenantCols = []string{"id"}
var roleCols = []string{"role"}
var ownerCountCols = []string{"count"}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func sampleMembershipRow(role string) *sqlmock.Rows {
	return sqlmock.NewRows(membershipCols).
		AddRow("member-1", "tenant-1", "profile-1", role, "active", nil, time.Now(), time.Now())
}

func newMembershipRepo(t *testing.T) (*MembershipRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMembershipRepository(db), mock
}

// expectOwnerGuard sets up the tenant lock and role lookup that every guarded
// write performs first.
func expectOwnerGuard(mock sqlmock.Sqlmock, role string) {
	mock.ExpectQuery("SELECT id FROM tenants WHERE id = .* FOR UPDATE").
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows(lockedTenantCols).AddRow("tenant-1"))
	mock.ExpectQuery("SELECT role FROM memberships").
		WithArgs("tenant-1", "profile-1").
		WillReturnRows(sqlmock.NewRows(roleCols).AddRow(role))
}

// ---------------------------------------------------------------------------
// GetByTenantAndProfile
// ---------------------------------------------------------------------------

func TestGetByTenantAndProfile_Found(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships WHERE tenant_id").
		WithArgs("tenant-1", "profile-1").
		WillReturnRows(sampleMembershipRow(models.RoleMember))

	m, err := repo.GetByTenantAndProfile(context.Background(), "tenant-1", "profile-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected membership, got nil")
	}
	if m.Role != models.RoleMember {
		t.Errorf("Role = %s, want member", m.Role)
	}
}

func TestGetByTenantAndProfile_NotFound(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships WHERE tenant_id").
		WillReturnRows(sqlmock.NewRows(membershipCols))

	m, err := repo.GetByTenantAndProfile(context.Background(), "tenant-1", "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestGetByTenantAndProfile_ParsesCustomPermissions(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	rows := sqlmock.NewRows(membershipCols).
		AddRow("member-1", "tenant-1", "profile-1", "member", "active",
			[]byte(`{"delete":true,"read":false}`), time.Now(), time.Now())
	mock.ExpectQuery("SELECT.*FROM memberships WHERE tenant_id").
		WillReturnRows(rows)

	m, err := repo.GetByTenantAndProfile(context.Background(), "tenant-1", "profile-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.CustomPermissions["delete"] {
		t.Error("expected delete override to be true")
	}
	if m.CustomPermissions["read"] {
		t.Error("expected read override to be false")
	}
}

// ---------------------------------------------------------------------------
// UpdateRole (owner guard)
// ---------------------------------------------------------------------------

func TestUpdateRole_DemoteLastOwnerRefused(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	expectOwnerGuard(mock, models.RoleOwner)
	mock.ExpectQuery("SELECT COUNT.*FROM memberships").
		WithArgs("tenant-1", models.RoleOwner, models.MembershipStatusActive).
		WillReturnRows(sqlmock.NewRows(ownerCountCols).AddRow(1))
	mock.ExpectRollback()

	err := repo.UpdateRole(context.Background(), "tenant-1", "profile-1", models.RoleAdmin)
	if !errors.Is(err, ErrLastOwner) {
		t.Fatalf("error = %v, want ErrLastOwner", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateRole_DemoteOwnerWithCoOwner(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	expectOwnerGuard(mock, models.RoleOwner)
	mock.ExpectQuery("SELECT COUNT.*FROM memberships").
		WillReturnRows(sqlmock.NewRows(ownerCountCols).AddRow(2))
	mock.ExpectExec("UPDATE memberships").
		WithArgs("tenant-1", "profile-1", models.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.UpdateRole(context.Background(), "tenant-1", "profile-1", models.RoleAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdateRole_NonOwnerSkipsCount(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	expectOwnerGuard(mock, models.RoleMember)
	mock.ExpectExec("UPDATE memberships").
		WithArgs("tenant-1", "profile-1", models.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.UpdateRole(context.Background(), "tenant-1", "profile-1", models.RoleAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Remove (owner guard)
// ---------------------------------------------------------------------------

func TestRemove_LastOwnerRefused(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	expectOwnerGuard(mock, models.RoleOwner)
	mock.ExpectQuery("SELECT COUNT.*FROM memberships").
		WillReturnRows(sqlmock.NewRows(ownerCountCols).AddRow(1))
	mock.ExpectRollback()

	err := repo.Remove(context.Background(), "tenant-1", "profile-1")
	if !errors.Is(err, ErrLastOwner) {
		t.Fatalf("error = %v, want ErrLastOwner", err)
	}
}

func TestRemove_Member(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	expectOwnerGuard(mock, models.RoleViewer)
	mock.ExpectExec("DELETE FROM memberships").
		WithArgs("tenant-1", "profile-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Remove(context.Background(), "tenant-1", "profile-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// TransferOwnership
// ---------------------------------------------------------------------------

func TestTransferOwnership_Success(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	expectOwnerGuard(mock, models.RoleOwner)
	mock.ExpectExec("UPDATE memberships").
		WithArgs("tenant-1", "profile-2", models.RoleOwner, models.MembershipStatusActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE memberships").
		WithArgs("tenant-1", "profile-1", models.RoleAdmin).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.TransferOwnership(context.Background(), "tenant-1", "profile-1", "profile-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTransferOwnership_TargetNotActive(t *testing.T) {
	repo, mock := newMembershipRepo(t)

	mock.ExpectBegin()
	expectOwnerGuard(mock, models.RoleOwner)
	mock.ExpectExec("UPDATE memberships").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.TransferOwnership(context.Background(), "tenant-1", "profile-1", "profile-ghost")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// UpdateCustomPermissions
// ---------------------------------------------------------------------------

func TestUpdateCustomPermissions_Clear(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectExec("UPDATE memberships").
		WithArgs("tenant-1", "profile-1", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateCustomPermissions(context.Background(), "tenant-1", "profile-1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetStats
// ---------------------------------------------------------------------------

func TestMembershipGetStats(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*COUNT.*FROM memberships").
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "pending", "inactive"}).AddRow(5, 3, 1, 1))
	mock.ExpectQuery("SELECT role, COUNT.*FROM memberships").
		WithArgs("tenant-1").
		WillReturnRows(sqlmock.NewRows([]string{"role", "count"}).
			AddRow("owner", 1).
			AddRow("member", 4))

	stats, err := repo.GetStats(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 5 || stats.Active != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByRole["owner"] != 1 {
		t.Errorf("ByRole[owner] = %d, want 1", stats.ByRole["owner"])
	}
}
