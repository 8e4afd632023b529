/**
 * @description
 * This file derives the composite account-access status that gates every
 * feature of the ledger-service. The resolver is a pure function over an
 * explicit identity snapshot: handlers fetch the caller's row, build the
 * snapshot, and branch on the result. There is no ambient session state.
 */

package domain

// AccountStatus is the single derived access state for a caller.
type AccountStatus string

const (
	StatusLoading         AccountStatus = "loading"
	StatusUnauthenticated AccountStatus = "unauthenticated"
	StatusUnverified      AccountStatus = "unverified"
	StatusBanned          AccountStatus = "banned"
	StatusIncomplete      AccountStatus = "incomplete"
	StatusAuthenticated   AccountStatus = "authenticated"
)

// IdentitySnapshot is the raw session-derived input to the status resolver.
// Resolved is false while the underlying identity data could not yet be
// fetched; the resolver then reports StatusLoading, never a silent
// StatusAuthenticated.
type IdentitySnapshot struct {
	Resolved      bool
	Present       bool
	IsVerified    bool
	IsBanned      bool
	DataSubmitted bool
}

// SnapshotFor builds the resolver input for a loaded user row.
func SnapshotFor(user *User) IdentitySnapshot {
	if user == nil {
		return IdentitySnapshot{Resolved: true}
	}
	return IdentitySnapshot{
		Resolved:      true,
		Present:       true,
		IsVerified:    user.IsVerified,
		IsBanned:      user.IsBanned,
		DataSubmitted: user.DataSubmitted,
	}
}

// ResolveAccountStatus maps a snapshot to exactly one status.
// The checks are ordered; the first match wins.
func ResolveAccountStatus(snap IdentitySnapshot) AccountStatus {
	if !snap.Resolved {
		return StatusLoading
	}
	if !snap.Present {
		return StatusUnauthenticated
	}
	if !snap.IsVerified {
		return StatusUnverified
	}
	if snap.IsBanned {
		return StatusBanned
	}
	if !snap.DataSubmitted {
		return StatusIncomplete
	}
	return StatusAuthenticated
}
