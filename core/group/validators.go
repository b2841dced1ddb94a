package group

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tasksphere/core"
	"github.com/trezcool/tasksphere/core/access"
)

var (
	groupRoleTag  = "group_role"
	groupRoleText = "role must be one of student, admin or top_admin"
)

// RegisterValidators registers the group validators and their translations.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(groupRoleTag, groupRoleValidation)
	core.RegisterCustomTranslation(validate, translator, groupRoleTag, groupRoleText)
}

// Custom Validators

// groupRoleValidation checks that the role can be held on a membership
func groupRoleValidation(fl validator.FieldLevel) bool {
	switch role := fl.Field().Interface().(type) {
	case access.Role:
		return access.IsGroupRole(role)
	case string:
		return access.IsGroupRole(access.Role(role))
	}
	return false
}
