package flow

// User is the directory's view of a user record: just enough to decide
// whether they may act as an approver and to address a notification.
type User struct {
	ID       string
	Name     string
	Email    string
	Role     Role
	SapCodes []string
}

// FindApprover resolves which user acts as the given approver role for a
// reimbursement carrying sapCode.
//
// SAP-scoped roles (SUL, Account Manager) match only users whose code
// assignments contain sapCode. Global roles (Invoice Specialist) match any
// user holding the role, regardless of code. When several users qualify, the
// first match in the order of users wins. Callers pass lists ordered by
// (created_at, id), so the longest-tenured approver is selected.
//
// Returns nil when nobody matches; callers treat that as "notification
// skipped", never as a failure of the approval itself.
func FindApprover(role Role, sapCode string, users []User) *User {
	for i := range users {
		u := &users[i]
		if u.Role != role {
			continue
		}
		if !role.IsSapScoped() {
			return u
		}
		for _, code := range u.SapCodes {
			if code == sapCode {
				return u
			}
		}
	}
	return nil
}
