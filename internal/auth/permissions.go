package auth

import "strings"

type Permission string

const (
	PermSales        Permission = "analytics_sales"
	PermCustomers    Permission = "analytics_customers"
	PermItems        Permission = "analytics_items"
	PermChat         Permission = "analytics_chat"
	PermReservations Permission = "analytics_reservations"
	PermDashboard    Permission = "analytics_dashboard"
	PermReports      Permission = "reports"
)

var apiPermissionMap = map[string]Permission{
	"/api/analytics/sales":        PermSales,
	"/api/analytics/customers":    PermCustomers,
	"/api/analytics/items":        PermItems,
	"/api/analytics/chat":         PermChat,
	"/api/analytics/reservations": PermReservations,
	"/api/analytics/dashboard":    PermDashboard,
	"/api/analytics/status":       PermDashboard,
	"/ws/analytics/dashboard":     PermDashboard,
	"/api/analytics/reports":      PermDashboard,
	"POST /api/analytics/reports": PermReports,
}

// GetPermissionForAPI returns the permission guarding path, preferring the
// longest prefix and then method-specific entries.
func GetPermissionForAPI(path string, method string) *Permission {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestPerm *Permission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyPath := key
		methodSpecific := false
		if keyMethod, rest, ok := strings.Cut(key, " "); ok {
			if method == "" || method != keyMethod {
				continue
			}
			keyPath = rest
			methodSpecific = true
		}

		if !strings.HasPrefix(path, keyPath) {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}

// HasPermission reports whether the role may use perm given its granted list.
// Owners, admins and service tokens are unrestricted.
func HasPermission(role UserRole, granted []string, perm Permission) bool {
	if role != RoleBusinessStaff {
		return true
	}
	for _, p := range granted {
		if p == string(perm) {
			return true
		}
	}
	return false
}
