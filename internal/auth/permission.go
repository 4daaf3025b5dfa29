package auth

// Permission is a bitmask of capability bits. Composite roles are unions
// of base bits; a user holds a capability iff all of its bits are set.
type Permission uint8

const (
	// Visitor is the default bit every account starts with.
	Visitor Permission = 1 << iota
	// Commenter allows managing comments beyond one's own.
	Commenter
	// Poster allows managing articles beyond one's own.
	Poster
	// ManageUsers allows administering front users.
	ManageUsers
	// ManageBoards allows administering boards.
	ManageBoards
	// ManageStaff allows administering staff accounts.
	ManageStaff
	// Root is the superuser bit.
	Root
)

// Composite roles for the administrative panel.
const (
	Operator Permission = Visitor | Commenter | Poster | ManageUsers
	Admin    Permission = Operator | ManageBoards | ManageStaff
	All      Permission = 0xff
)

// Has reports whether p contains every bit of want.
func (p Permission) Has(want Permission) bool { return p&want == want }

// Ownable is implemented by entities whose ownership can stand in for a
// capability bit: a default-permission author may act on their own
// content. OwnedCapability names the single bit ownership substitutes
// for; OwnerCandidates lists every user id that counts as an owner.
type Ownable interface {
	OwnerCandidates() []string
	OwnedCapability() Permission
}

// Authorize decides whether a user may perform an operation requiring
// want. Without a target, or for any user holding elevated (non-default)
// permission, the bitmask alone decides. A default-permission user acting
// on a target is authorized solely by ownership: the wanted capability
// must be the one the target's ownership covers and the user must be an
// owner candidate. Pure and total, so it can be used directly as a guard.
func Authorize(userID string, held, want Permission, target Ownable) bool {
	if target == nil || held != Visitor {
		return held.Has(want)
	}
	if want != target.OwnedCapability() {
		return false
	}
	for _, id := range target.OwnerCandidates() {
		if id != "" && id == userID {
			return true
		}
	}
	return false
}
