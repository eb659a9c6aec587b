package repository

import (
	"fmt"

	"github.com/vertragio/clm-api/internal/models"
)

// scopeCondition renders a tenant scope as a SQL predicate on col,
// appending bind arguments as needed. Global scope matches rows with a
// NULL tenant column.
func scopeCondition(scope models.Scope, col string, args *[]interface{}) string {
	if id, ok := scope.TenantID(); ok {
		*args = append(*args, id)
		return fmt.Sprintf("%s = $%d", col, len(*args))
	}
	return fmt.Sprintf("%s IS NULL", col)
}

// scopeOrGlobalCondition matches rows in the given tenant scope plus
// unscoped (global) rows. Used where global entries apply everywhere,
// e.g. validation rules.
func scopeOrGlobalCondition(scope models.Scope, col string, args *[]interface{}) string {
	if id, ok := scope.TenantID(); ok {
		*args = append(*args, id)
		return fmt.Sprintf("(%s IS NULL OR %s = $%d)", col, col, len(*args))
	}
	return fmt.Sprintf("%s IS NULL", col)
}
