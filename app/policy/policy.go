// Package policy holds the authorization predicates for account and profile
// operations. A nil actor is anonymous and is never authorized to mutate.
package policy

import "github.com/vibast-solutions/ms-go-accounts/app/entity"

func CanUpdateAccount(actor, target *entity.Account) bool {
	return isSelfOrAdmin(actor, target)
}

func CanDeleteAccount(actor, target *entity.Account) bool {
	return isSelfOrAdmin(actor, target)
}

// CanViewAccount allows anyone to see verified accounts; unverified ones are
// only visible to their owner and admins.
func CanViewAccount(actor, target *entity.Account) bool {
	if target == nil {
		return false
	}
	return target.IsVerified() || isSelfOrAdmin(actor, target)
}

func CanViewProfile(actor *entity.Account, profile *entity.Profile) bool {
	return ownsProfile(actor, profile)
}

func CanUpdateProfile(actor *entity.Account, profile *entity.Profile) bool {
	return ownsProfile(actor, profile)
}

func CanDeleteProfile(actor *entity.Account, profile *entity.Profile) bool {
	return ownsProfile(actor, profile)
}

func isSelfOrAdmin(actor, target *entity.Account) bool {
	if actor == nil || target == nil {
		return false
	}
	return actor.ID == target.ID || actor.IsAdmin
}

func ownsProfile(actor *entity.Account, profile *entity.Profile) bool {
	if actor == nil || profile == nil {
		return false
	}
	return actor.ID == profile.AccountID || actor.IsAdmin
}
