package game

// Faction determines win-condition membership.
type Faction string

const (
	FactionTown    Faction = "TOWN"
	FactionMafia   Faction = "MAFIA"
	FactionNeutral Faction = "NEUTRAL"
)

// RoleKey identifies a role in the static registry.
type RoleKey string

const (
	RoleCiudadano      RoleKey = "ciudadano"
	RoleMafia          RoleKey = "mafia"
	RolePadrino        RoleKey = "padrino"
	RoleConsorte       RoleKey = "consorte"
	RoleDoctor         RoleKey = "doctor"
	RoleEscort         RoleKey = "escort"
	RoleGuardaespaldas RoleKey = "guardaespaldas"
	RoleVigilante      RoleKey = "vigilante"
	RoleAsesino        RoleKey = "asesino"
	RoleDetective      RoleKey = "detective"
	RoleSheriff        RoleKey = "sheriff"
	RoleChantajeador   RoleKey = "chantajeador"
)

// FillerRole pads the assignment pool when the configured role counts
// fall short of the player count.
const FillerRole = RoleCiudadano

// Role is a static registry entry. The registry is immutable after
// process start.
type Role struct {
	Key                   RoleKey `json:"key"`
	Name                  string  `json:"name"`
	Description           string  `json:"description"`
	Faction               Faction `json:"faction"`
	HasNightAction        bool    `json:"hasNightAction"`
	NightAction           ActionKind
	SheriffGuilty         bool
	UndetectableByDetect  bool
	DetectiveSignature    string
}

// Roles is the static role registry.
var Roles = map[RoleKey]*Role{
	RoleCiudadano: {
		Key: RoleCiudadano, Name: "Ciudadano", Faction: FactionTown,
		Description: "Sin habilidades. Vota durante el día.",
	},
	RoleMafia: {
		Key: RoleMafia, Name: "Mafioso", Faction: FactionMafia,
		Description:        "Vota cada noche junto a la mafia para eliminar a un jugador.",
		HasNightAction:     true,
		NightAction:        KindMafiaPick,
		SheriffGuilty:      true,
		DetectiveSignature: "mafia",
	},
	RolePadrino: {
		Key: RolePadrino, Name: "Padrino", Faction: FactionMafia,
		Description:          "Lidera la mafia. El detective no encuentra su firma.",
		HasNightAction:       true,
		NightAction:          KindMafiaPick,
		SheriffGuilty:        true,
		UndetectableByDetect: true,
	},
	RoleConsorte: {
		Key: RoleConsorte, Name: "Consorte", Faction: FactionMafia,
		Description:        "Bloquea la habilidad nocturna de un jugador.",
		HasNightAction:     true,
		NightAction:        KindBlock,
		SheriffGuilty:      true,
		DetectiveSignature: "escort",
	},
	RoleDoctor: {
		Key: RoleDoctor, Name: "Doctor", Faction: FactionTown,
		Description:        "Cura a un jugador cada noche.",
		HasNightAction:     true,
		NightAction:        KindHeal,
		DetectiveSignature: "doctor",
	},
	RoleEscort: {
		Key: RoleEscort, Name: "Escort", Faction: FactionTown,
		Description:        "Bloquea la habilidad nocturna de un jugador.",
		HasNightAction:     true,
		NightAction:        KindBlock,
		DetectiveSignature: "escort",
	},
	RoleGuardaespaldas: {
		Key: RoleGuardaespaldas, Name: "Guardaespaldas", Faction: FactionTown,
		Description:        "Protege a un jugador; muere en su lugar si lo atacan.",
		HasNightAction:     true,
		NightAction:        KindGuard,
		DetectiveSignature: "guardaespaldas",
	},
	RoleVigilante: {
		Key: RoleVigilante, Name: "Vigilante", Faction: FactionTown,
		Description:        "Puede disparar a un jugador por la noche.",
		HasNightAction:     true,
		NightAction:        KindVigilanteShot,
		DetectiveSignature: "vigilante",
	},
	RoleAsesino: {
		Key: RoleAsesino, Name: "Asesino en Serie", Faction: FactionNeutral,
		Description:        "Mata a un jugador cada noche. Gana si queda solo.",
		HasNightAction:     true,
		NightAction:        KindSerialKill,
		SheriffGuilty:      true,
		DetectiveSignature: "asesino",
	},
	RoleDetective: {
		Key: RoleDetective, Name: "Detective", Faction: FactionTown,
		Description:        "Investiga la firma de un jugador cada noche.",
		HasNightAction:     true,
		NightAction:        KindInvestigate,
		DetectiveSignature: "detective",
	},
	RoleSheriff: {
		Key: RoleSheriff, Name: "Sheriff", Faction: FactionTown,
		Description:        "Interroga a un jugador: culpable o inocente.",
		HasNightAction:     true,
		NightAction:        KindInvestigate,
		DetectiveSignature: "sheriff",
	},
	RoleChantajeador: {
		Key: RoleChantajeador, Name: "Chantajeador", Faction: FactionMafia,
		Description:        "Silencia a un jugador durante el día siguiente.",
		HasNightAction:     true,
		NightAction:        KindBlackmail,
		SheriffGuilty:      true,
		DetectiveSignature: "chantajeador",
	},
}

// RoleName resolves a display name, tolerating unknown keys.
func RoleName(key RoleKey) string {
	if r, ok := Roles[key]; ok {
		return r.Name
	}
	return "?"
}

// IsMafiaAligned reports whether the role belongs to the mafia faction.
func IsMafiaAligned(key RoleKey) bool {
	r, ok := Roles[key]
	return ok && r.Faction == FactionMafia
}
