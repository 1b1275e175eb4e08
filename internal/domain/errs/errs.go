// Пакет errs — каталог стабильных кодов ошибок брокера.
// Коды — часть внешнего контракта: клиенты ветвятся по ним,
// описания предназначены только для диагностики.
package errs

import "github.com/bigkaa/authbroker/internal/result"

// Ошибки пользователей и токенов.
var (
	TokenGeneration = result.NewError(
		"User.TokenGeneration",
		"An error occurred while trying to receive information about realm.",
		result.KindUnreachable,
	)
	InvalidUserNameOrPassword = result.NewError(
		"User.InvalidUserNameOrPassword",
		"An error occurred while trying to get JWT token. Please check username and password.",
		result.KindRejected,
	)
	InvalidRefreshToken = result.NewError(
		"User.InvalidRefreshTokenProvided",
		"An error occurred while trying to refresh token.",
		result.KindTokenInvalid,
	)
	UserCreation = result.NewError(
		"User.UserCreationError",
		"An error occurred while trying create a user.",
		result.KindRejected,
	)
	WrongPasswordDefinition = result.NewError(
		"User.WrongPasswordDefinition",
		"An error occurred while trying to add a new password to the user.",
		result.KindRejected,
	)
	GetAllUsers = result.NewError(
		"User.GetAllUsersError",
		"An error occurred while trying get all users.",
		result.KindRejected,
	)
	DeletionUser = result.NewError(
		"User.DeletionUserError",
		"An error occurred while trying delete the user.",
		result.KindRejected,
	)
	UserNotFound = result.NewError(
		"User.UserNotFound",
		"The requested user was not found.",
		result.KindNotFound,
	)
	EmailVerification = result.NewError(
		"User.EmailVerificationError",
		"An error occurred while trying to send the verification email.",
		result.KindRejected,
	)
)

// Ошибки групп.
var (
	GetAllGroups = result.NewError(
		"Group.GetAllGroupsError",
		"An error occurred while trying get all groups.",
		result.KindRejected,
	)
	GroupAlreadyExists = result.NewError(
		"Group.GroupAlreadyExists",
		"A group with the same name already exists.",
		result.KindRejected,
	)
	GroupNotFound = result.NewError(
		"Group.GroupNotFound",
		"The requested group was not found.",
		result.KindNotFound,
	)
	CreationGroup = result.NewError(
		"Group.CreationGroupError",
		"An error occurred while trying to create the group.",
		result.KindRejected,
	)
	DeletionGroup = result.NewError(
		"Group.DeletionGroupError",
		"An error occurred while trying to delete the group.",
		result.KindRejected,
	)
	GroupUsers = result.NewError(
		"Group.GroupUsersError",
		"An error occurred while trying to manage users of the group.",
		result.KindRejected,
	)
)

// Ошибки ролей и клиентов.
var (
	GetRoles = result.NewError(
		"Role.GetRolesError",
		"An error occurred while trying to get the roles of the client.",
		result.KindRejected,
	)
	RoleCreation = result.NewError(
		"Role.RoleCreationError",
		"An error occurred while trying to create the role.",
		result.KindRejected,
	)
	GetClients = result.NewError(
		"Client.GetClientsError",
		"An error occurred while trying to get the clients of the realm.",
		result.KindRejected,
	)
)

// Ошибки привязок ролей к группам.
var (
	RemovingRoleFromGroup = result.NewError(
		"GroupRoles.RemovingRoleFromGroupError",
		"An error occurred while trying to remove the role from the group.",
		result.KindNotFound,
	)
	AddingRoleToGroup = result.NewError(
		"GroupRoles.AddingRoleToGroupError",
		"An error occurred while trying to add the role to the group.",
		result.KindNotFound,
	)
	GetGroupRoles = result.NewError(
		"GroupRoles.GetGroupRolesError",
		"An error occurred while trying to get the roles of the group.",
		result.KindRejected,
	)
)

// Общие ошибки.
var (
	UnknownTenant = result.NewError(
		"Tenant.UnknownTenant",
		"The tenant is not registered.",
		result.KindNotFound,
	)
	Validation = result.NewError(
		"Request.ValidationError",
		"The request is invalid.",
		result.KindValidation,
	)
)

// Invalid возвращает ошибку валидации с пояснением.
func Invalid(reason string) result.Error {
	return Validation.WithTechnical(reason)
}
