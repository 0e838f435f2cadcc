package impl

import (
	"strings"

	"linkauth/internal/domain"
	"linkauth/internal/netutil"
	"linkauth/internal/service"
)

var _ service.RoleResolver = (*RoleResolverImpl)(nil)

// RoleResolverImpl decides role flags from an admin allow-list and the
// community's network ranges. Both are injected; nothing is hard-coded.
type RoleResolverImpl struct {
	admins    map[string]struct{}
	community netutil.Networks
}

func NewRoleResolverImpl(adminEmails []string, community netutil.Networks) *RoleResolverImpl {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &RoleResolverImpl{admins: admins, community: community}
}

func (r *RoleResolverImpl) ResolveOnCreate(email string, origin domain.Origin) domain.RoleFlags {
	_, admin := r.admins[normalizeEmail(email)]
	return domain.RoleFlags{
		IsAdmin:           admin,
		CommunityVerified: r.fromCommunity(origin),
	}
}

// ResolveOnLogin re-evaluates an existing user. The network geofence applied
// only at creation; afterwards the business-advertising intent is the sole way
// to gain CommunityVerified. The result never drops a flag the user holds.
func (r *RoleResolverImpl) ResolveOnLogin(user *domain.User, origin domain.Origin) domain.RoleFlags {
	_, admin := r.admins[normalizeEmail(user.Email)]
	return user.Flags().Merge(domain.RoleFlags{
		IsAdmin:           admin,
		CommunityVerified: origin.Intent == domain.IntentBusinessAdvertising,
	})
}

func (r *RoleResolverImpl) fromCommunity(origin domain.Origin) bool {
	if origin.Intent == domain.IntentBusinessAdvertising {
		return true
	}
	return r.community.Contains(origin.IP)
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }
