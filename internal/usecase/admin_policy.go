package usecase

// Decision is an explicit allow/deny answer from a capability check.
type Decision struct {
	Allowed bool
	Reason  string
}

// AdminPolicy decides whether an actor may run operator commands.
type AdminPolicy interface {
	Authorize(actorID int64) Decision
}

type staticAdminPolicy struct {
	ids map[int64]struct{}
}

// NewStaticAdminPolicy allows exactly the given Telegram ids.
func NewStaticAdminPolicy(ids []int64) *staticAdminPolicy {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &staticAdminPolicy{ids: m}
}

func (p *staticAdminPolicy) Authorize(actorID int64) Decision {
	if _, ok := p.ids[actorID]; ok {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, Reason: "not an admin"}
}
