package schema

import (
	"strings"

	apperrors "github.com/stwalsh4118/dealdesk/internal/errors"
)

// The resolvers below are a narrow named-convention lookup for tables whose
// key column drifted between releases (property_key vs id vs property_id).
// They look at column names only and never infer anything from types.

// ResolveIDColumn picks the identifier column of a table:
// the first canonical name present, else the first column with an "id" or
// "key" name token. It fails with a SchemaResolutionError rather than guess further.
func ResolveIDColumn(desc TableDescriptor, canonical ...string) (string, error) {
	if !desc.Exists {
		return "", &apperrors.SchemaResolutionError{Table: desc.Name, Reason: "table does not exist"}
	}
	if col, ok := desc.FirstOf(canonical...); ok {
		return col, nil
	}
	for _, c := range desc.Columns {
		if isIdentifierName(c.Name) {
			return c.Name, nil
		}
	}
	return "", &apperrors.SchemaResolutionError{
		Table:  desc.Name,
		Column: strings.Join(canonical, "|"),
		Reason: "no identifier column",
	}
}

// ResolveNameColumn picks the display-name column of a table:
// the first canonical name present, else the first column with a "name" token,
// else the first non-identifier column.
func ResolveNameColumn(desc TableDescriptor, canonical ...string) (string, error) {
	if !desc.Exists {
		return "", &apperrors.SchemaResolutionError{Table: desc.Name, Reason: "table does not exist"}
	}
	if col, ok := desc.FirstOf(canonical...); ok {
		return col, nil
	}
	for _, c := range desc.Columns {
		if hasToken(c.Name, "name") {
			return c.Name, nil
		}
	}
	for _, c := range desc.Columns {
		if !isIdentifierName(c.Name) {
			return c.Name, nil
		}
	}
	return "", &apperrors.SchemaResolutionError{
		Table:  desc.Name,
		Column: strings.Join(canonical, "|"),
		Reason: "no display name column",
	}
}

func isIdentifierName(name string) bool {
	return hasToken(name, "id") || hasToken(name, "key")
}

// hasToken reports whether an underscore-separated name contains token,
// so "deal_id" has "id" but "paid_amount" does not.
func hasToken(name, token string) bool {
	for _, part := range strings.Split(strings.ToLower(name), "_") {
		if part == token {
			return true
		}
	}
	return false
}
