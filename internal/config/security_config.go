// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
	SecurityAdmin                       // Access token with admin role required
)

// Route names registered on the HTTP router.
const (
	RouteRegister           = "Register"
	RouteLogin              = "Login"
	RouteRefresh            = "Refresh"
	RouteLogout             = "Logout"
	RouteMe                 = "Me"
	RouteUpdateProfile      = "UpdateProfile"
	RouteListProperties     = "ListProperties"
	RouteGetProperty        = "GetProperty"
	RouteCreateProperty     = "CreateProperty"
	RouteUpdateProperty     = "UpdateProperty"
	RouteDeleteProperty     = "DeleteProperty"
	RouteToggleLike         = "ToggleLike"
	RouteUploadImages       = "UploadImages"
	RouteDownloadImage      = "DownloadImage"
	RouteOpenTransaction    = "OpenTransaction"
	RouteCompleteTx         = "CompleteTransaction"
	RouteCancelTx           = "CancelTransaction"
	RouteListTransactions   = "ListTransactions"
	RouteGetTransaction     = "GetTransaction"
	RouteTransactionHistory = "TransactionHistory"
	RouteAdminTransactions  = "AdminListTransactions"
	RouteHealth             = "Health"
)

// EndpointSecurityConfig maps route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Auth - Public
	RouteRegister: SecurityPublic,
	RouteLogin:    SecurityPublic,
	RouteRefresh:  SecurityPublic,

	// Auth - Access Protected
	RouteLogout:        SecurityAccess,
	RouteMe:            SecurityAccess,
	RouteUpdateProfile: SecurityAccess,

	// Properties - browsing is public
	RouteListProperties: SecurityPublic,
	RouteGetProperty:    SecurityPublic,
	RouteDownloadImage:  SecurityPublic,

	RouteCreateProperty: SecurityAccess,
	RouteUpdateProperty: SecurityAccess,
	RouteDeleteProperty: SecurityAccess,
	RouteToggleLike:     SecurityAccess,
	RouteUploadImages:   SecurityAccess,

	// Transactions - Access Protected
	RouteOpenTransaction:    SecurityAccess,
	RouteCompleteTx:         SecurityAccess,
	RouteCancelTx:           SecurityAccess,
	RouteListTransactions:   SecurityAccess,
	RouteGetTransaction:     SecurityAccess,
	RouteTransactionHistory: SecurityAccess,

	// Admin
	RouteAdminTransactions: SecurityAdmin,

	RouteHealth: SecurityPublic,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
