package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernit/be-reimbursements/internal/errors"
	"github.com/ernit/be-reimbursements/internal/flow"
	"github.com/ernit/be-reimbursements/internal/repository"
)

type fakeSapCodes struct {
	codes map[string]bool
	err   error
}

func (f *fakeSapCodes) Exists(_ context.Context, code string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.codes[code], nil
}

func (f *fakeSapCodes) ListActive(_ context.Context) ([]*repository.SapCode, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*repository.SapCode
	for code := range f.codes {
		out = append(out, &repository.SapCode{Code: code})
	}
	return out, nil
}

func newSubmissionHarness() (*ReimbursementService, *fakeStore, *fakeDirectory, *fakeSapCodes, *fakeNotifier) {
	store := newFakeStore()
	directory := &fakeDirectory{users: map[flow.Role][]*repository.User{}}
	sapCodes := &fakeSapCodes{codes: map[string]bool{"1000": true, "2000": true}}
	audit := &fakeAudit{}
	notifier := &fakeNotifier{}
	svc := NewReimbursementService(store, directory, sapCodes, audit, notifier, testLogger())
	return svc, store, directory, sapCodes, notifier
}

func validSubmit() *SubmitRequest {
	return &SubmitRequest{
		SapCode:     "1000",
		Category:    "Travel",
		Items:       "Taxi to client site",
		TotalAmount: 12550,
		ExpenseDate: "2026-08-01",
	}
}

func TestSubmitBuildsEmployeeChain(t *testing.T) {
	svc, store, directory, _, notifier := newSubmissionHarness()
	sul := userFixture("sul-1", flow.RoleSUL, "1000")
	directory.users[flow.RoleSUL] = []*repository.User{sul}

	employee := userFixture("emp-1", flow.RoleEmployee)
	rb, err := svc.Submit(context.Background(), employee, validSubmit())
	require.NoError(t, err)

	assert.Equal(t, repository.StatusPending, rb.Status)
	require.NotNil(t, rb.CurrentApprover)
	assert.Equal(t, flow.RoleSUL, *rb.CurrentApprover)

	require.Len(t, rb.Steps, 3)
	wantRoles := []flow.Role{flow.RoleSUL, flow.RoleInvoiceSpecialist, flow.RoleAccountManager}
	for i, step := range rb.Steps {
		assert.Equal(t, wantRoles[i], step.ApproverRole)
		assert.Equal(t, i+1, step.Level)
		assert.Equal(t, repository.StatusPending, step.Status)
	}

	// Level 1 was pre-assigned to the matching SUL.
	require.NotNil(t, rb.Steps[0].ApproverID)
	assert.Equal(t, "sul-1", *rb.Steps[0].ApproverID)

	assert.Contains(t, store.byID, rb.ID)
	require.Len(t, notifier.submissions, 1)
	require.NotNil(t, notifier.submissions[0])
	assert.Equal(t, "sul-1@example.com", notifier.submissions[0].Email)
}

func TestSubmitShorterChainsPerRole(t *testing.T) {
	cases := []struct {
		requester flow.Role
		want      []flow.Role
	}{
		{flow.RoleSUL, []flow.Role{flow.RoleInvoiceSpecialist, flow.RoleAccountManager}},
		{flow.RoleInvoiceSpecialist, []flow.Role{flow.RoleAccountManager}},
		{flow.RoleAccountManager, []flow.Role{flow.RoleInvoiceSpecialist}},
	}
	for _, tc := range cases {
		t.Run(tc.requester.String(), func(t *testing.T) {
			svc, _, _, _, _ := newSubmissionHarness()
			requester := userFixture("req-1", tc.requester, "1000")
			rb, err := svc.Submit(context.Background(), requester, validSubmit())
			require.NoError(t, err)

			require.Len(t, rb.Steps, len(tc.want))
			for i, step := range rb.Steps {
				assert.Equal(t, tc.want[i], step.ApproverRole)
			}
			require.NotNil(t, rb.CurrentApprover)
			assert.Equal(t, tc.want[0], *rb.CurrentApprover)
		})
	}
}

func TestSubmitUnassignedWhenNoApproverMatches(t *testing.T) {
	svc, _, directory, _, notifier := newSubmissionHarness()
	// The only SUL covers a different code.
	directory.users[flow.RoleSUL] = []*repository.User{userFixture("sul-2", flow.RoleSUL, "2000")}

	employee := userFixture("emp-1", flow.RoleEmployee)
	rb, err := svc.Submit(context.Background(), employee, validSubmit())
	require.NoError(t, err)

	assert.Nil(t, rb.Steps[0].ApproverID)
	require.Len(t, notifier.submissions, 1)
	assert.Nil(t, notifier.submissions[0])
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _, _, _ := newSubmissionHarness()
	employee := userFixture("emp-1", flow.RoleEmployee)

	cases := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"blank sap code", func(r *SubmitRequest) { r.SapCode = "  " }},
		{"blank category", func(r *SubmitRequest) { r.Category = "" }},
		{"blank items", func(r *SubmitRequest) { r.Items = "" }},
		{"zero amount", func(r *SubmitRequest) { r.TotalAmount = 0 }},
		{"negative amount", func(r *SubmitRequest) { r.TotalAmount = -500 }},
		{"bad date", func(r *SubmitRequest) { r.ExpenseDate = "01/08/2026" }},
		{"unknown sap code", func(r *SubmitRequest) { r.SapCode = "9999" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validSubmit()
			tc.mutate(req)
			_, err := svc.Submit(context.Background(), employee, req)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
		})
	}
}

func TestSubmitUnauthenticated(t *testing.T) {
	svc, _, _, _, _ := newSubmissionHarness()
	_, err := svc.Submit(context.Background(), nil, validSubmit())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))
}

func TestGetVisibility(t *testing.T) {
	rb := employeeRequest("rb-1", "1000")
	store := newFakeStore(rb)
	svc := NewReimbursementService(store, &fakeDirectory{}, &fakeSapCodes{}, &fakeAudit{}, &fakeNotifier{}, testLogger())

	// Requester always sees their own.
	got, err := svc.Get(context.Background(), rb.Requester, "rb-1")
	require.NoError(t, err)
	assert.Equal(t, "rb-1", got.ID)

	// Another employee gets a not-found, not a forbidden.
	_, err = svc.Get(context.Background(), userFixture("emp-2", flow.RoleEmployee), "rb-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	// SAP-scoped approver with a matching code sees it.
	_, err = svc.Get(context.Background(), userFixture("sul-1", flow.RoleSUL, "1000"), "rb-1")
	require.NoError(t, err)

	// SAP-scoped approver without the code does not.
	_, err = svc.Get(context.Background(), userFixture("sul-2", flow.RoleSUL, "2000"), "rb-1")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	// Global roles see everything.
	_, err = svc.Get(context.Background(), userFixture("spec-1", flow.RoleInvoiceSpecialist), "rb-1")
	require.NoError(t, err)
}

func TestListVisibility(t *testing.T) {
	a := employeeRequest("rb-1", "1000")
	b := employeeRequest("rb-2", "2000")
	b.RequesterID = "emp-2"
	store := newFakeStore(a, b)
	svc := NewReimbursementService(store, &fakeDirectory{}, &fakeSapCodes{}, &fakeAudit{}, &fakeNotifier{}, testLogger())

	// Employees only ever see their own.
	got, err := svc.List(context.Background(), a.Requester, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rb-1", got[0].ID)

	// SAP-scoped approvers see their codes.
	got, err = svc.List(context.Background(), userFixture("sul-1", flow.RoleSUL, "2000"), false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rb-2", got[0].ID)

	// Global roles see everything.
	got, err = svc.List(context.Background(), userFixture("am-1", flow.RoleAccountManager, "1000"), false)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// mine overrides role-wide visibility.
	manager := userFixture("am-1", flow.RoleAccountManager, "1000")
	got, err = svc.List(context.Background(), manager, true)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUsersListsDirectory(t *testing.T) {
	svc, _, directory, _, _ := newSubmissionHarness()
	directory.users[flow.RoleSUL] = []*repository.User{userFixture("sul-1", flow.RoleSUL, "1000")}
	directory.users[flow.RoleAccountManager] = []*repository.User{userFixture("am-1", flow.RoleAccountManager, "1000")}

	users, err := svc.Users(context.Background(), userFixture("emp-1", flow.RoleEmployee))
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = svc.Users(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))
}

func TestSapCodesListsRegistry(t *testing.T) {
	svc, _, _, sapCodes, _ := newSubmissionHarness()
	codes, err := svc.SapCodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, codes, len(sapCodes.codes))

	sapCodes.err = errors.New(errors.ErrCodeInternal, "registry down")
	_, err = svc.SapCodes(context.Background())
	require.Error(t, err)
}
