package domain

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailTaken           = errors.New("email already registered")
	ErrUserNotFound         = errors.New("user not found")
	ErrAdNotFound           = errors.New("ad not found")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignNotPayable   = errors.New("campaign is not awaiting payment")
	ErrCampaignLocked       = errors.New("campaign can no longer be changed")
	ErrAdInUse              = errors.New("ad is used by a running campaign")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentNotRefundable = errors.New("payment cannot be refunded")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrReferralNotFound     = errors.New("referral code not found")
	ErrReferralInactive     = errors.New("referral code is no longer valid")
	ErrReferralSelf         = errors.New("cannot apply your own referral code")
	ErrAlreadyReferred      = errors.New("user already used a referral code")
	ErrRewardNotFound       = errors.New("reward not found")
	ErrRewardRedeemed       = errors.New("reward already redeemed")
	ErrGenerationFailed     = errors.New("content generation failed")
	ErrImageUnsupported     = errors.New("image generation not supported")
)
