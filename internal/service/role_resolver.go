package service

import "linkauth/internal/domain"

type RoleResolver interface {
	ResolveOnCreate(email string, origin domain.Origin) domain.RoleFlags
	ResolveOnLogin(user *domain.User, origin domain.Origin) domain.RoleFlags
}
