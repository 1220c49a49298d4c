package constants

const (
	// DiiaProviderType selects the Diia provider in a request payload
	DiiaProviderType = "Dia"

	// GrantTypeAuthorizationCode is the only grant used against Diia
	GrantTypeAuthorizationCode = "authorization_code"

	// FormContentType is the content type of the token request body
	FormContentType = "application/x-www-form-urlencoded"

	// RequestIDHeader carries the request correlation id
	RequestIDHeader = "X-Request-ID"
)

// Token request form fields
const (
	FieldGrantType    = "grant_type"
	FieldCode         = "code"
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
	FieldRedirectURI  = "redirect_uri"
)

// Token response fields
const (
	FieldAccessToken  = "access_token"
	FieldTokenType    = "token_type"
	FieldRefreshToken = "refresh_token"
	FieldUserID       = "user_id"
	FieldExpiresIn    = "expires_in"
)

// Record keys
const (
	RecordID = "id"
)
