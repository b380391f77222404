package app

import (
	"fmt"
	"net/http"

	"justicebid/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errOCGNotFound(ocgID string) *DomainError {
	return domainError(http.StatusNotFound, "OCG_NOT_FOUND",
		fmt.Sprintf("OCG %s not found", ocgID), nil)
}

func errSectionNotFound(sectionID string) *DomainError {
	return domainError(http.StatusNotFound, "SECTION_NOT_FOUND",
		fmt.Sprintf("section %s not found", sectionID), nil)
}

func errAlternativeNotFound(alternativeID string) *DomainError {
	return domainError(http.StatusNotFound, "ALTERNATIVE_NOT_FOUND",
		fmt.Sprintf("alternative %s not found", alternativeID), nil)
}

func errFirmNotFound(firmID string) *DomainError {
	return domainError(http.StatusNotFound, "FIRM_NOT_FOUND",
		fmt.Sprintf("firm %s not found", firmID), nil)
}

func errInvalidTransition(operation string, current, required store.Status) *DomainError {
	return domainError(http.StatusConflict, "INVALID_STATUS_TRANSITION",
		fmt.Sprintf("%s requires status %s", operation, required), map[string]any{
			"operation": operation,
			"current":   string(current),
			"required":  string(required),
		})
}

func errPointBudgetExceeded(budget, required int) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "POINT_BUDGET_EXCEEDED",
		fmt.Sprintf("selection requires %d points but the budget is %d", required, budget), map[string]any{
			"budget":   budget,
			"required": required,
		})
}

func errMissingRequiredSelections(missing []string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "MISSING_REQUIRED_SELECTIONS",
		"every negotiable section needs a selection before signing", map[string]any{
			"missingSections": missing,
		})
}

func errValidation(message string, details any) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, details)
}
