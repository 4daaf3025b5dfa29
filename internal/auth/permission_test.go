package auth

import "testing"

type ownedThing struct {
	owners []string
	cap    Permission
}

func (o ownedThing) OwnerCandidates() []string { return o.owners }

func (o ownedThing) OwnedCapability() Permission { return o.cap }

func TestPermissionHas(t *testing.T) {
	tests := []struct {
		name string
		held Permission
		want Permission
		ok   bool
	}{
		{"visitor has visitor", Visitor, Visitor, true},
		{"visitor lacks poster", Visitor, Poster, false},
		{"operator has poster", Operator, Poster, true},
		{"operator has manage users", Operator, ManageUsers, true},
		{"operator lacks manage boards", Operator, ManageBoards, false},
		{"admin has manage staff", Admin, ManageStaff, true},
		{"admin lacks root", Admin, Root, false},
		{"all has everything", All, Root | ManageStaff | Poster, true},
		{"compound want needs every bit", Visitor | Poster, Poster | Commenter, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.held.Has(tt.want); got != tt.ok {
				t.Errorf("(%b).Has(%b) = %v, want %v", tt.held, tt.want, got, tt.ok)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	article := ownedThing{owners: []string{"author-1"}, cap: Poster}
	comment := ownedThing{owners: []string{"commenter-1", "author-1"}, cap: Commenter}

	tests := []struct {
		name   string
		userID string
		held   Permission
		want   Permission
		target Ownable
		ok     bool
	}{
		{"no target falls back to bitmask", "u", Operator, Poster, nil, true},
		{"no target bitmask denied", "u", Visitor, Poster, nil, false},

		{"owner may act on own article", "author-1", Visitor, Poster, article, true},
		{"non-owner denied", "someone-else", Visitor, Poster, article, false},
		{"ownership covers only the owned capability", "author-1", Visitor, Commenter, article, false},

		{"comment author may manage own comment", "commenter-1", Visitor, Commenter, comment, true},
		{"article author may manage comments under it", "author-1", Visitor, Commenter, comment, true},
		{"stranger denied on comment", "u", Visitor, Commenter, comment, false},

		{"elevated user bypasses ownership", "staff-9", Operator, Poster, article, true},
		{"elevated user without the bit is denied even as owner", "author-1", Visitor | Commenter, Poster, article, false},

		{"empty candidate never matches empty user", "", Visitor, Poster, ownedThing{owners: []string{""}, cap: Poster}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.userID, tt.held, tt.want, tt.target); got != tt.ok {
				t.Errorf("Authorize(%q, %b, %b) = %v, want %v", tt.userID, tt.held, tt.want, got, tt.ok)
			}
		})
	}
}
