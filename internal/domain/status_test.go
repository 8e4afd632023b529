package domain

import "testing"

func TestResolveAccountStatus(t *testing.T) {
	tests := []struct {
		name string
		snap IdentitySnapshot
		want AccountStatus
	}{
		{
			name: "unresolved snapshot reports loading",
			snap: IdentitySnapshot{},
			want: StatusLoading,
		},
		{
			name: "unresolved snapshot never reports authenticated",
			snap: IdentitySnapshot{Present: true, IsVerified: true, DataSubmitted: true},
			want: StatusLoading,
		},
		{
			name: "no session",
			snap: IdentitySnapshot{Resolved: true},
			want: StatusUnauthenticated,
		},
		{
			name: "session present but unverified",
			snap: IdentitySnapshot{Resolved: true, Present: true},
			want: StatusUnverified,
		},
		{
			name: "verified but banned",
			snap: IdentitySnapshot{Resolved: true, Present: true, IsVerified: true, IsBanned: true},
			want: StatusBanned,
		},
		{
			name: "banned outranks incomplete",
			snap: IdentitySnapshot{Resolved: true, Present: true, IsVerified: true, IsBanned: true, DataSubmitted: false},
			want: StatusBanned,
		},
		{
			name: "verified, not banned, profile incomplete",
			snap: IdentitySnapshot{Resolved: true, Present: true, IsVerified: true},
			want: StatusIncomplete,
		},
		{
			name: "fully active",
			snap: IdentitySnapshot{Resolved: true, Present: true, IsVerified: true, DataSubmitted: true},
			want: StatusAuthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveAccountStatus(tt.snap); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// Every combination of the raw flags must map to exactly one documented
// state; verification flags are ignored while no session is present.
func TestResolveAccountStatusExhaustive(t *testing.T) {
	for _, present := range []bool{false, true} {
		for _, verified := range []bool{false, true} {
			for _, banned := range []bool{false, true} {
				for _, submitted := range []bool{false, true} {
					snap := IdentitySnapshot{
						Resolved:      true,
						Present:       present,
						IsVerified:    verified,
						IsBanned:      banned,
						DataSubmitted: submitted,
					}
					got := ResolveAccountStatus(snap)

					var want AccountStatus
					switch {
					case !present:
						want = StatusUnauthenticated
					case !verified:
						want = StatusUnverified
					case banned:
						want = StatusBanned
					case !submitted:
						want = StatusIncomplete
					default:
						want = StatusAuthenticated
					}
					if got != want {
						t.Fatalf("snapshot %+v: expected %q, got %q", snap, want, got)
					}
				}
			}
		}
	}
}

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleAdmin, true},
		{RoleTester, true},
		{RoleUser, false},
		{Role("ADMIN"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		if got := tt.role.Can(CapabilityAdminister); got != tt.want {
			t.Fatalf("role %q: expected Can(administer)=%v, got %v", tt.role, tt.want, got)
		}
	}
}
