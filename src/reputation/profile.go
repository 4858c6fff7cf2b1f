package reputation

// Profile is a long-lived learner identity. ReputationScore is mutated only
// by the Engine and clamped to [0, Params.MaxScore].
//
// PrivKeyHex is excluded from every encoding: exports and the HTTP service
// must never carry secrets.
type Profile struct {
	Username        string
	Archetype       Archetype
	PubKey          string
	PrivKeyHex      string `json:"-" codec:"-"`
	ReputationScore float64
	Streak          int   // consecutive fully matching blocks
	LastScoredAt    int64 // unix seconds of the last Update, drives lazy decay
}

// Public returns a copy of the profile with the private key blanked. Read
// projections hand this out.
func (p *Profile) Public() Profile {
	pub := *p
	pub.PrivKeyHex = ""
	return pub
}
