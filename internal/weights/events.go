package weights

// Event is one rating lifecycle change. Each variant knows the signed reward
// delta it contributes to the adapter, so callers never branch on shape.
type Event interface {
	Delta() float64
}

// Created is a new rating of Stars (1..5). Its delta, stars/5, is also the
// applied reward stored on the rating row for later edits and deletes.
type Created struct {
	Stars int
}

func (e Created) Delta() float64 { return float64(e.Stars) / 5 }

// Reward is the applied reward to persist alongside the rating.
func (e Created) Reward() float64 { return float64(e.Stars) / 5 }

// Edited changes an existing rating from its stored applied reward to Stars.
type Edited struct {
	OldReward float64
	Stars     int
}

func (e Edited) Delta() float64 { return float64(e.Stars)/5 - e.OldReward }

// Reward is the new applied reward to persist on the rating.
func (e Edited) Reward() float64 { return float64(e.Stars) / 5 }

// Deleted removes a rating whose stored applied reward was OldReward,
// reversing the nudge its creation applied.
type Deleted struct {
	OldReward float64
}

func (e Deleted) Delta() float64 { return -e.OldReward }
