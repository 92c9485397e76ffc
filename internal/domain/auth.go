package domain

// TeamMembership es un hecho de autorización provisto externamente:
// pertenencia de un usuario a un equipo con un rol.
type TeamMembership struct {
	TeamID string `json:"team_id"`
	Role   string `json:"role"`
}

// UserContext es la identidad resuelta para un request. La capa de
// gobernanza la consume de solo lectura; nunca la produce ni la persiste.
type UserContext struct {
	UserID        string
	Email         string
	TeamID        string
	Teams         []TeamMembership
	APIKeyID      string
	Authenticated bool
}

// MemberOf indica si el contexto incluye pertenencia al equipo dado.
func (u UserContext) MemberOf(teamID string) bool {
	if u.APIKeyID != "" && u.TeamID == teamID {
		return true
	}
	for _, m := range u.Teams {
		if m.TeamID == teamID {
			return true
		}
	}
	return false
}
