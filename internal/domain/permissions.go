package domain

// Role is the position a user holds inside its tenant.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAgent:
		return true
	}
	return false
}

// Operation names a privileged action checked by the role gate.
type Operation string

const (
	OpChannelWrite          Operation = "channel:write"
	OpChannelDelete         Operation = "channel:delete"
	OpWebhookWrite          Operation = "webhook:write"
	OpWebhookDelete         Operation = "webhook:delete"
	OpUserCreate            Operation = "user:create"
	OpUserUpdate            Operation = "user:update"
	OpUserList              Operation = "user:list"
	OpCustomerProfileUpdate Operation = "customer:profile:update"
	OpCustomerSettingsWrite Operation = "customer:settings:update"
	OpActivityLogView       Operation = "activity_log:view"
)

// rolePolicy is the single permission table. Operations missing from the
// table are denied for every role.
var rolePolicy = map[Operation]map[Role]bool{
	OpChannelWrite:          {RoleAdmin: true, RoleManager: true},
	OpChannelDelete:         {RoleAdmin: true},
	OpWebhookWrite:          {RoleAdmin: true, RoleManager: true},
	OpWebhookDelete:         {RoleAdmin: true},
	OpUserCreate:            {RoleAdmin: true},
	OpUserUpdate:            {RoleAdmin: true},
	OpUserList:              {RoleAdmin: true, RoleManager: true},
	OpCustomerProfileUpdate: {RoleAdmin: true},
	OpCustomerSettingsWrite: {RoleAdmin: true},
	OpActivityLogView:       {RoleAdmin: true, RoleManager: true},
}

// Allowed is the role gate: it reports whether role may perform op.
func Allowed(role Role, op Operation) bool {
	return rolePolicy[op][role]
}

// Authorize returns a Forbidden error when role may not perform op.
func Authorize(role Role, op Operation) error {
	if Allowed(role, op) {
		return nil
	}
	return Forbidden("insufficient permissions")
}
