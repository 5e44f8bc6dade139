package contest

import (
	"strings"

	"stakecurate/native/common"
)

// Role is a class of caller accepted by an operation.
type Role string

const (
	RoleAny     Role = "any"
	RoleOwner   Role = "owner"
	RoleCreator Role = "creator"
	RoleAgent   Role = "agent"
)

// Operation names a mutating entry point.
type Operation string

const (
	OpCreate             Operation = "create"
	OpStake              Operation = "stake"
	OpWhitelistAdd       Operation = "whitelist_add"
	OpWhitelistRemove    Operation = "whitelist_remove"
	OpClose              Operation = "close"
	OpSetFeeRate         Operation = "set_fee_rate"
	OpPause              Operation = "pause"
	OpResume             Operation = "resume"
	OpSetAgents          Operation = "set_agents"
	OpSetPlatformAccount Operation = "set_platform_account"
	OpAuditAppend        Operation = "audit_append"
	OpAuditProfile       Operation = "audit_profile"
	OpAuditReview        Operation = "audit_review"
	OpSetTokenPrice      Operation = "set_token_price"
)

// permissions maps every mutating operation to the roles allowed to call it.
var permissions = map[Operation][]Role{
	OpCreate:             {RoleAny},
	OpStake:              {RoleAny},
	OpWhitelistAdd:       {RoleCreator},
	OpWhitelistRemove:    {RoleCreator},
	OpClose:              {RoleCreator, RoleOwner},
	OpSetFeeRate:         {RoleOwner},
	OpPause:              {RoleOwner},
	OpResume:             {RoleOwner},
	OpSetAgents:          {RoleOwner},
	OpSetPlatformAccount: {RoleOwner},
	OpAuditAppend:        {RoleAgent},
	OpAuditProfile:       {RoleOwner},
	OpAuditReview:        {RoleOwner},
	OpSetTokenPrice:      {RoleOwner},
}

// RolesFor returns the roles accepted by op.
func RolesFor(op Operation) []Role {
	return append([]Role(nil), permissions[op]...)
}

// IsOwner reports whether caller owns the ledger.
func IsOwner(settings *Settings, caller string) bool {
	return settings != nil && settings.Owner != "" && settings.Owner == caller
}

// IsContestCreator reports whether caller created the contest.
func IsContestCreator(c *Contest, caller string) bool {
	return c != nil && c.Creator == caller
}

// IsAuthorizedAgent reports whether caller is in the agent set.
func IsAuthorizedAgent(settings *Settings, caller string) bool {
	if settings == nil {
		return false
	}
	for _, agent := range settings.Agents {
		if agent == caller {
			return true
		}
	}
	return false
}

// Authorize checks caller against the permission table. The contest is only
// consulted for the creator role and may be nil otherwise.
func Authorize(op Operation, settings *Settings, c *Contest, caller string) error {
	if strings.TrimSpace(caller) == "" {
		return common.Unauthorized(string(op), "caller identity required")
	}
	roles, ok := permissions[op]
	if !ok {
		return common.Unauthorized(string(op), "operation not permitted")
	}
	for _, role := range roles {
		switch role {
		case RoleAny:
			return nil
		case RoleOwner:
			if IsOwner(settings, caller) {
				return nil
			}
		case RoleCreator:
			if IsContestCreator(c, caller) {
				return nil
			}
		case RoleAgent:
			if IsAuthorizedAgent(settings, caller) {
				return nil
			}
		}
	}
	return common.Unauthorized(string(op), "caller %s lacks role %s", caller, joinRoles(roles))
}

func joinRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, "|")
}
