package service

import "errors"

// 业务错误定义。handlers层把它们映射为HTTP状态码。
var (
	// NotFound
	ErrUserNotFound      = errors.New("user not found")
	ErrElectionNotFound  = errors.New("election not found")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrFaceNotRegistered = errors.New("no face registered for user")

	// Conflict
	ErrAlreadyVoted      = errors.New("user already voted in this election")
	ErrEmailTaken        = errors.New("email already registered")
	ErrRollNumberTaken   = errors.New("roll number already registered")
	ErrSymbolNumberTaken = errors.New("symbol number already used in this election")

	// Forbidden
	ErrElectionInactive = errors.New("election is not active")
	ErrAccountInactive  = errors.New("user account is inactive")
	ErrFaceNotVerified  = errors.New("face verification required before voting")

	// Invalid
	ErrInvalidOTP         = errors.New("invalid or expired OTP")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidLoginToken  = errors.New("invalid or expired login link")
)
