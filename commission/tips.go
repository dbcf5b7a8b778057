package commission

// TipSplit is the artist/studio division of a booking's tips.
type TipSplit struct {
	Artist Cents
	Studio Cents
}

// SplitTips divides tips by the artist's share, flooring the artist side.
// The studio receives the remainder, so Artist + Studio == tips always.
// Shares outside 0%..100% are clamped.
func SplitTips(tips Cents, artistShare BasisPoints) TipSplit {
	switch {
	case artistShare < 0:
		artistShare = 0
	case artistShare > FullShare:
		artistShare = FullShare
	}
	artist := artistShare.Of(tips)
	return TipSplit{Artist: artist, Studio: tips - artist}
}
