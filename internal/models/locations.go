package models

type LocationReference struct {
	LocationId string   `json:"location_id" validate:"required,max=36"`
	EvseUids   []string `json:"evse_uids,omitempty" validate:"omitempty,dive,required,max=36"`
}

func (r LocationReference) Clone() LocationReference {
	out := LocationReference{LocationId: r.LocationId}
	if r.EvseUids != nil {
		out.EvseUids = append([]string(nil), r.EvseUids...)
	}
	return out
}

// WithEvses returns a copy of r scoped to uids. r itself is left untouched.
func (r LocationReference) WithEvses(uids []string) LocationReference {
	return LocationReference{
		LocationId: r.LocationId,
		EvseUids:   append([]string{}, uids...),
	}
}

type Location struct {
	Id    string
	Scope PartyScope
	Name  string
	Evses []Evse
}

type Evse struct {
	Uid    string
	Status string
}

func (l Location) HasEvse(uid string) bool {
	for _, e := range l.Evses {
		if e.Uid == uid {
			return true
		}
	}
	return false
}
