package model

import (
	"fmt"
	"strings"
)

// EditScope selects which occurrences of a series an edit applies to.
type EditScope string

const (
	EditThisOnly  EditScope = "THIS_ONLY"
	EditAfterThis EditScope = "AFTER_THIS"
	EditAll       EditScope = "ALL"
)

// DeleteScope selects which occurrences of a series a delete removes.
type DeleteScope string

const (
	DeleteThisOnly      DeleteScope = "THIS_ONLY"
	DeleteThisAndFuture DeleteScope = "THIS_AND_FUTURE"
)

func ParseEditScope(raw string) (EditScope, error) {
	switch s := EditScope(strings.ToUpper(strings.TrimSpace(raw))); s {
	case EditThisOnly, EditAfterThis, EditAll:
		return s, nil
	case "":
		return EditThisOnly, nil
	default:
		return "", fmt.Errorf("unknown edit scope %q", raw)
	}
}

func ParseDeleteScope(raw string) (DeleteScope, error) {
	switch s := DeleteScope(strings.ToUpper(strings.TrimSpace(raw))); s {
	case DeleteThisOnly, DeleteThisAndFuture:
		return s, nil
	case "", "THIS":
		return DeleteThisOnly, nil
	case "FUTURE":
		return DeleteThisAndFuture, nil
	default:
		return "", fmt.Errorf("unknown delete scope %q", raw)
	}
}
