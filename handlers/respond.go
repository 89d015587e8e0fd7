package handlers

import (
	"errors"
	"log"
	"net/http"

	"college-voting-backend/service"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// hashPassword wraps bcrypt with the default cost
func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// respondServiceError maps the service error taxonomy onto HTTP codes.
// Unknown errors are logged and returned as a generic 500 so internals
// never leak to the client.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrElectionNotFound),
		errors.Is(err, service.ErrCandidateNotFound),
		errors.Is(err, service.ErrFaceNotRegistered):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrAlreadyVoted),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrRollNumberTaken),
		errors.Is(err, service.ErrSymbolNumberTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrElectionInactive),
		errors.Is(err, service.ErrAccountInactive),
		errors.Is(err, service.ErrFaceNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidOTP),
		errors.Is(err, service.ErrInvalidLoginToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	default:
		log.Printf("未映射的服务错误: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
