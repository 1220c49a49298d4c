package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/brizzai/idverify/internal/auth/constants"
	"github.com/brizzai/idverify/internal/auth/models"
	"github.com/brizzai/idverify/internal/config"
	"github.com/brizzai/idverify/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const defaultDiiaTimeout = 10 * time.Second

var (
	// ErrInvalidUserID is returned when the token response carries a user_id that is not an integer
	ErrInvalidUserID = errors.New("invalid user_id in token response")

	// ErrMissingCode is reported when a payload carries no authorization code
	ErrMissingCode = errors.New("missing authorization code")
)

// DiiaTokenResponse is the token endpoint response body
type DiiaTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    string `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// AccessTokenResult is the token response together with the user id Diia embeds in it
type AccessTokenResult struct {
	DiiaTokenResponse
	UserID *int64 `json:"user_id,omitempty"`
}

// DiiaProvider verifies a Diia account by trading the consent code for an access token.
// Holding a token that names a user_id is treated as proof of identity.
type DiiaProvider struct {
	oauth2Config *oauth2.Config
	httpClient   *http.Client
	options      map[string]interface{}
}

// Option configures a DiiaProvider
type Option func(*DiiaProvider)

// WithHTTPClient sets the client used for the token exchange
func WithHTTPClient(client *http.Client) Option {
	return func(p *DiiaProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithOptions merges opaque provider options into the provider state
func WithOptions(options map[string]interface{}) Option {
	return func(p *DiiaProvider) {
		for k, v := range options {
			p.options[k] = v
		}
	}
}

// NewDiiaProvider creates a Diia provider. Client id, secret and redirect URI are required.
func NewDiiaProvider(cfg *config.DiiaConfig, opts ...Option) (*DiiaProvider, error) {
	if cfg == nil {
		return nil, config.ErrMissingCredentials
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = config.DefaultDiiaTokenURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDiiaTimeout
	}

	p := &DiiaProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: timeout},
		options:    map[string]interface{}{},
	}

	for _, opt := range opts {
		opt(p)
	}
	p.httpClient = withStatusCheck(p.httpClient)

	return p, nil
}

// Type returns the payload type handled by this provider
func (p *DiiaProvider) Type() string {
	return constants.DiiaProviderType
}

// Options returns a copy of the opaque provider options
func (p *DiiaProvider) Options() map[string]interface{} {
	out := make(map[string]interface{}, len(p.options))
	for k, v := range p.options {
		out[k] = v
	}
	return out
}

// Verify exchanges payload.proofs.code for a token. The result is valid only when
// the exchange succeeds and the token response names a user.
func (p *DiiaProvider) Verify(ctx context.Context, payload *models.RequestPayload) *models.VerifiedPayload {
	code := payload.Code()
	if code == "" {
		logger.Warn("Diia verification requested without an authorization code", zap.Error(ErrMissingCode))
		return models.Invalid()
	}

	result, err := p.getAccessToken(ctx, code)
	if err != nil {
		return models.Invalid()
	}

	// a zero user_id is not an identity
	if result.UserID == nil || *result.UserID == 0 {
		logger.Info("Diia token response did not name a user")
		return models.Invalid()
	}

	return &models.VerifiedPayload{
		Valid: true,
		Record: models.Record{
			constants.RecordID: strconv.FormatInt(*result.UserID, 10),
		},
	}
}

// getAccessToken retrieves the user's token. Diia embeds user_id in the token
// response itself, so no profile request follows.
func (p *DiiaProvider) getAccessToken(ctx context.Context, code string) (*AccessTokenResult, error) {
	return p.requestAccessToken(ctx, code)
}

// requestAccessToken performs the authorization_code grant against the token endpoint
func (p *DiiaProvider) requestAccessToken(ctx context.Context, code string) (*AccessTokenResult, error) {
	logger.Debug("Exchanging Diia authorization code",
		zap.String("token_url", p.oauth2Config.Endpoint.TokenURL),
		zap.Int("code_length", len(code)),
	)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	ctx, retained := withTokenBody(ctx)
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		// Diia may answer 200 with a user_id and no access_token
		if result, ok := retained.accessTokenResult(); ok {
			logger.Warn("Diia token response carried no access token", zap.Error(err))
			return result, nil
		}
		logger.Error("Error when verifying diia account for user", exchangeErrorFields(err)...)
		return nil, fmt.Errorf("diia token exchange failed: %w", err)
	}

	result, err := newAccessTokenResult(token)
	if err != nil {
		logger.Error("Error when verifying diia account for user", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// exchangeErrorFields collects the upstream error details worth logging
func exchangeErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}

	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		return fields
	}
	if rErr.Response != nil {
		fields = append(fields, zap.Int("status", rErr.Response.StatusCode))
	}
	if rErr.ErrorCode != "" {
		fields = append(fields, zap.String("error_code", rErr.ErrorCode))
	}
	if rErr.ErrorDescription != "" {
		fields = append(fields, zap.String("error_description", rErr.ErrorDescription))
	}
	if len(rErr.Body) > 0 {
		fields = append(fields, zap.ByteString("upstream_body", rErr.Body))
	}
	return fields
}

func newAccessTokenResult(token *oauth2.Token) (*AccessTokenResult, error) {
	userID, err := parseUserID(token.Extra(constants.FieldUserID))
	if err != nil {
		return nil, err
	}

	return &AccessTokenResult{
		DiiaTokenResponse: DiiaTokenResponse{
			AccessToken:  token.AccessToken,
			TokenType:    token.TokenType,
			ExpiresIn:    extraString(token.Extra(constants.FieldExpiresIn)),
			RefreshToken: token.RefreshToken,
		},
		UserID: userID,
	}, nil
}

// parseUserID accepts the shapes a decoded token body can hold: JSON numbers,
// form-encoded integers and decimal strings.
func parseUserID(v interface{}) (*int64, error) {
	var id int64
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if val != math.Trunc(val) || val >= math.MaxInt64 || val < math.MinInt64 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidUserID, val)
		}
		id = int64(val)
	case int64:
		id = val
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
		}
		id = n
	case string:
		if val == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidUserID, val)
		}
		id = n
	default:
		return nil, fmt.Errorf("%w: unexpected type %T", ErrInvalidUserID, v)
	}
	return &id, nil
}

func extraString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprintf("%v", val)
	}
}
