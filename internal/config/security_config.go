package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
)

// EndpointSecurityConfig maps HTTP route names and gRPC full method names
// to their required security level.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// HTTP - Public
	"healthz": SecurityPublic,

	// HTTP - Access Protected. The joiner must be signed in so the gate
	// knows which user the membership belongs to.
	"join":               SecurityAccess,
	"createBusiness":     SecurityAccess,
	"rotateCodes":        SecurityAccess,
	"listPendingMembers": SecurityAccess,
	"approveMember":      SecurityAccess,
	"rejectMember":       SecurityAccess,
	"listMembers":        SecurityAccess,

	"createCustomer":    SecurityAccess,
	"listCustomers":     SecurityAccess,
	"getCustomer":       SecurityAccess,
	"deleteCustomer":    SecurityAccess,
	"setCustomerActive": SecurityAccess,
	"setCreditLimit":    SecurityAccess,
	"creditStatus":      SecurityAccess,
	"recordTransaction": SecurityAccess,
	"listTransactions":  SecurityAccess,

	"createRole":    SecurityAccess,
	"listRoles":     SecurityAccess,
	"getRole":       SecurityAccess,
	"updateRole":    SecurityAccess,
	"deleteRole":    SecurityAccess,
	"toggleRole":    SecurityAccess,
	"assignUser":    SecurityAccess,
	"listRoleUsers": SecurityAccess,
	"unassignUser":  SecurityAccess,
	"checkApproval": SecurityAccess,

	// gRPC - Public
	"/grpc.health.v1.Health/Check": SecurityPublic,
	"/grpc.health.v1.Health/Watch": SecurityPublic,
	"/grpc.health.v1.Health/List":  SecurityPublic,
}

// GetSecurityLevel returns the security level for a given route or method
func GetSecurityLevel(method string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAccess
}
