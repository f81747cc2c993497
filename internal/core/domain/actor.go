package domain

import "time"

type Role string

const (
	RoleNutritionist Role = "NUT"
	RoleKitchen      Role = "KIT"
	RoleQuality      Role = "QLT"
	RolePurchasing   Role = "PUR"
	RoleOperations   Role = "OPS"
	RoleAdmin        Role = "ADM"
)

// User is the already-authenticated caller of an agent run. Authentication
// itself happens upstream; this type only carries what authorization and
// auditing need.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	SiteIDs []string `json:"site_ids,omitempty"`
}

// CanAccessSite applies site-scoped access control: administrative roles see
// every site, everyone else needs the site in their allow-list.
func (u User) CanAccessSite(siteID string) bool {
	if u.Role == RoleAdmin || u.Role == RoleOperations {
		return true
	}
	for _, id := range u.SiteIDs {
		if id == siteID {
			return true
		}
	}
	return false
}

type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Capacity  int       `json:"capacity"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
