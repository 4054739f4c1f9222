package services

import (
	"errors"
	"fmt"

	"campus-locator/internal/models"
)

// UserMessage turns any error from the services into the text shown to the person.
// Credential failures stay generic so the message does not reveal which emails exist.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var cooldown *models.CooldownError
	var access *models.AccessError
	var write *models.WriteError

	switch {
	case errors.As(err, &cooldown):
		return fmt.Sprintf("Please wait %d seconds before scanning again.", cooldown.Remaining)
	case errors.As(err, &access):
		return accessMessage(access)
	case errors.As(err, &write):
		return "Failed to save room check-in. Please try again."
	case errors.Is(err, models.ErrPermissionDenied):
		return "Camera permission is required to scan room codes."
	case errors.Is(err, models.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, models.ErrAccountExists):
		return "An account with this email already exists."
	case errors.Is(err, models.ErrInvalidTransition):
		return "That action is not available right now."
	case errors.Is(err, models.ErrInvalidRole):
		return "Invalid role."
	case errors.Is(err, models.ErrNoSession):
		return "No authenticated user found."
	case errors.Is(err, models.ErrNotFound):
		return "Not found."
	default:
		return "Something went wrong. Please try again."
	}
}

func accessMessage(err *models.AccessError) string {
	if err.Reason == models.ReasonNotAuthenticated {
		return "Account not found. Please sign up first."
	}
	switch err.Status {
	case models.StatusDeclined:
		return fmt.Sprintf("Your %s account has been declined.", err.Role)
	default:
		return fmt.Sprintf("Your %s account is still pending approval.", err.Role)
	}
}

// ConfirmPrompt asks the teacher to confirm the resolved room
func ConfirmPrompt(room string) string {
	return fmt.Sprintf("Are you entering %s?", room)
}

// CheckInMessage confirms a successful check-in
func CheckInMessage(room string) string {
	return fmt.Sprintf("You have entered %s.", room)
}
