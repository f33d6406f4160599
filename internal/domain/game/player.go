package game

// Player is one seat at the table. Created on join (lobby only), mutated
// by the resolution engine and by reset-to-lobby, deleted only with the
// session itself.
type Player struct {
	ID          int64   `json:"userId"`
	Name        string  `json:"name"`
	Role        RoleKey `json:"roleKey,omitempty"` // empty until assignment
	Alive       bool    `json:"alive"`
	Blocked     bool    `json:"blocked"`  // cleared every night
	Silenced    bool    `json:"silenced"` // cleared every day
	DMReachable bool    `json:"dmReachable"`
}

// NewPlayer creates a living, unassigned player.
func NewPlayer(id int64, name string) *Player {
	return &Player{ID: id, Name: name, Alive: true}
}

func (p *Player) clone() *Player {
	cp := *p
	return &cp
}
