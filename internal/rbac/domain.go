package rbac

import "time"

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Permission names checked by the HTTP layer.
const (
	PermMasterdataView = "masterdata.view"
	PermMasterdataEdit = "masterdata.edit"
	PermPayablesView   = "payables.view"
	PermPayablesEdit   = "payables.edit"
	PermOrdersSign     = "payables.orders.sign"
	PermOrdersBank     = "payables.orders.bank"
	PermDashboardView  = "dashboard.view"
	PermTendersEdit    = "tenders.edit"
	PermOmraEdit       = "omra.edit"
	PermInternsView    = "internships.view"
	PermInternsEdit    = "internships.edit"
	PermEntriesView    = "entries.view"
	PermEntriesEdit    = "entries.edit"
	PermRBACAdmin      = "rbac.admin"
)

// DefaultPermissions lists every permission seeded by EnsureDefaults.
var DefaultPermissions = map[string]string{
	PermMasterdataView: "Consulter bénéficiaires, comptes et contrats",
	PermMasterdataEdit: "Modifier bénéficiaires, comptes et contrats",
	PermPayablesView:   "Consulter factures et ordres de virement",
	PermPayablesEdit:   "Saisir factures et ordres de virement",
	PermOrdersSign:     "Valider un ordre de virement pour signature",
	PermOrdersBank:     "Remise à la banque et débit des ordres de virement",
	PermDashboardView:  "Consulter le tableau de bord",
	PermTendersEdit:    "Gérer les appels d'offres",
	PermOmraEdit:       "Gérer les évènements Omra",
	PermInternsView:    "Consulter les candidatures de stage",
	PermInternsEdit:    "Traiter les candidatures de stage",
	PermEntriesView:    "Consulter les opérations diverses",
	PermEntriesEdit:    "Saisir les opérations diverses",
	PermRBACAdmin:      "Administrer rôles et permissions",
}
