package models

type AudienceMember struct {
	FirstJoin  int64 `json:"firstJoin"`  // epoch ms
	LastActive int64 `json:"lastActive"` // epoch ms
	IsActive   bool  `json:"isActive"`
}

// AudienceTracking feeds display statistics only. It never influences ranking or status.
type AudienceTracking struct {
	TotalJoins      int                       `json:"totalJoins"`
	CurrentlyActive int                       `json:"currentlyActive"`
	JoinedUsers     map[string]AudienceMember `json:"joinedUsers"`
}

func (a AudienceTracking) Clone() AudienceTracking {
	c := a
	if a.JoinedUsers != nil {
		c.JoinedUsers = make(map[string]AudienceMember, len(a.JoinedUsers))
		for k, v := range a.JoinedUsers {
			c.JoinedUsers[k] = v
		}
	}
	return c
}
