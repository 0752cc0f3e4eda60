// Package flow holds the approval routing table: which roles approve a
// reimbursement, in which order, depending on who submitted it.
//
// The table is immutable and constructed at compile time so every
// (requester, approver) transition is enumerable.
package flow

// Role is a fixed position in the organization's approval hierarchy.
type Role string

const (
	RoleEmployee          Role = "Employee"
	RoleSUL               Role = "SUL"
	RoleInvoiceSpecialist Role = "Invoice Specialist"
	RoleAccountManager    Role = "Account Manager"
)

var validRoles = map[Role]bool{
	RoleEmployee:          true,
	RoleSUL:               true,
	RoleInvoiceSpecialist: true,
	RoleAccountManager:    true,
}

// sapScopedRoles may only act on reimbursements whose SAP code matches one of
// their own code assignments.
var sapScopedRoles = map[Role]bool{
	RoleSUL:            true,
	RoleAccountManager: true,
}

// chains maps a requester's role to the ordered list of approver roles their
// submissions walk through. A requester never appears in their own chain.
var chains = map[Role][]Role{
	RoleEmployee:          {RoleSUL, RoleInvoiceSpecialist, RoleAccountManager},
	RoleSUL:               {RoleInvoiceSpecialist, RoleAccountManager},
	RoleInvoiceSpecialist: {RoleAccountManager},
	RoleAccountManager:    {RoleInvoiceSpecialist},
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is one of the known roles.
func (r Role) IsValid() bool {
	return validRoles[r]
}

// IsSapScoped returns true when the role may only act on reimbursements
// matching one of its SAP code assignments.
func (r Role) IsSapScoped() bool {
	return sapScopedRoles[r]
}

// ChainFor returns a copy of the approver chain for a requester's role.
// The returned slice is ordered by approval level (level 1 first).
func ChainFor(requester Role) []Role {
	chain, ok := chains[requester]
	if !ok {
		return nil
	}
	out := make([]Role, len(chain))
	copy(out, chain)
	return out
}

// FirstApprover returns the level-1 approver role for a requester, or false
// when the requester role has no chain.
func FirstApprover(requester Role) (Role, bool) {
	chain := chains[requester]
	if len(chain) == 0 {
		return "", false
	}
	return chain[0], true
}

// NextApprover returns the approver role that follows current in the
// requester's chain. The second return value is false when current is the
// last step (final approval) or does not appear in the chain at all.
func NextApprover(requester, current Role) (Role, bool) {
	chain := chains[requester]
	for i, role := range chain {
		if role == current && i+1 < len(chain) {
			return chain[i+1], true
		}
	}
	return "", false
}
