package services

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/commshub/commshub/internal/db/repositories"
	"github.com/commshub/commshub/internal/identity"
)

// harness wires every repository onto one mocked database so multi-service
// flows can be scripted end to end.
type harness struct {
	mock        sqlmock.Sqlmock
	tenants     *repositories.TenantRepository
	memberships *repositories.MembershipRepository
	invitations *repositories.InvitationRepository
	profiles    *repositories.ProfileRepository
	apiKeys     *repositories.APIKeyRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &harness{
		mock:        mock,
		tenants:     repositories.NewTenantRepository(db),
		memberships: repositories.NewMembershipRepository(db),
		invitations: repositories.NewInvitationRepository(db),
		profiles:    repositories.NewProfileRepository(db),
		apiKeys:     repositories.NewAPIKeyRepository(db),
	}
}

var membershipTestCols = []string{"id", "tenant_id", "profile_id", "role", "status", "custom_permissions", "created_at", "updated_at"}

// expectMembershipLookup scripts the fresh membership read behind a permission
// context resolution.
func (h *harness) expectMembershipLookup(tenantID, profileID, role, status string) {
	h.mock.ExpectQuery("SELECT.*FROM memberships WHERE tenant_id").
		WithArgs(tenantID, profileID).
		WillReturnRows(sqlmock.NewRows(membershipTestCols).
			AddRow("member-"+profileID, tenantID, profileID, role, status, nil, time.Now(), time.Now()))
}

func (h *harness) expectNoMembership(tenantID, profileID string) {
	h.mock.ExpectQuery("SELECT.*FROM memberships WHERE tenant_id").
		WithArgs(tenantID, profileID).
		WillReturnRows(sqlmock.NewRows(membershipTestCols))
}

// fakeProvider is a scriptable identity.Provider for invitation tests.
type fakeProvider struct {
	inviteErr      error
	inviteErrOnce  bool // return inviteErr only on the first call
	inviteCalls    int
	account        *identity.Account
	deleteCalls    int
	deletedAccount string
}

func (f *fakeProvider) InviteByEmail(_ context.Context, _, _ string, _ map[string]string) error {
	f.inviteCalls++
	if f.inviteErr != nil {
		if f.inviteErrOnce && f.inviteCalls > 1 {
			return nil
		}
		return f.inviteErr
	}
	return nil
}

func (f *fakeProvider) GenerateInviteLink(_ context.Context, _ string) (*identity.Account, error) {
	return f.account, nil
}

func (f *fakeProvider) DeleteAccount(_ context.Context, accountID string) error {
	f.deleteCalls++
	f.deletedAccount = accountID
	return nil
}

func (f *fakeProvider) ResolveCurrentIdentity(_ context.Context, _ string) (*identity.Account, error) {
	return nil, identity.ErrNoIdentity
}
