package extractor

const (
	UserID        = "x-user-id"
	UserEmail     = "x-user-email"
	UserName      = "x-user-name"
	UserAvatar    = "x-user-avatar"
	UserPlan      = "x-user-plan"
	RequestID     = "x-request-id"
	XForwardedFor = "x-forwarded-for"
	BearerToken   = "x-bearer-token"
)
