package domain

// CommunityKind is the type of social tie a community represents.
type CommunityKind string

const (
	CommunityFamily CommunityKind = "family"
	CommunityWork   CommunityKind = "work"
	CommunityFriend CommunityKind = "friend"
)

// TableName returns the plural label used for the kind in exported tables.
func (k CommunityKind) TableName() string {
	switch k {
	case CommunityFamily:
		return "families"
	case CommunityWork:
		return "work_groups"
	case CommunityFriend:
		return "friend_circles"
	default:
		return string(k)
	}
}

// CommunityKindFromTable is the inverse of TableName.
func CommunityKindFromTable(name string) (CommunityKind, bool) {
	switch name {
	case "families":
		return CommunityFamily, true
	case "work_groups":
		return CommunityWork, true
	case "friend_circles":
		return CommunityFriend, true
	}
	return "", false
}

// Community is a named group of users sharing a social tie.
type Community struct {
	ID      string
	Kind    CommunityKind
	Members []string
}

// Size returns the number of members.
func (c Community) Size() int {
	return len(c.Members)
}
