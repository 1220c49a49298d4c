package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/brizzai/idverify/internal/auth/constants"
)

// ErrUnexpectedStatus is returned when the token endpoint answers with a 2xx other than 200
var ErrUnexpectedStatus = errors.New("unexpected token endpoint status")

// maxTokenBody matches the read limit oauth2 applies to token responses
const maxTokenBody = 1 << 20

// statusCheckTransport rejects successful responses that are not exactly 200.
// Non-2xx responses pass through so oauth2 can decode the upstream error body.
type statusCheckTransport struct {
	base http.RoundTripper
}

func (t *statusCheckTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: post for request returned status code %d instead of the expected 200",
			ErrUnexpectedStatus, resp.StatusCode)
	}

	if capture, ok := req.Context().Value(tokenBodyKey{}).(*tokenBody); ok && resp.StatusCode == http.StatusOK {
		if err := capture.retain(resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// withStatusCheck returns a copy of client whose transport enforces the 200 rule
func withStatusCheck(client *http.Client) *http.Client {
	c := *client
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if _, ok := base.(*statusCheckTransport); !ok {
		c.Transport = &statusCheckTransport{base: base}
	}
	return &c
}

type tokenBodyKey struct{}

// tokenBody keeps a copy of a 200 token response for the request that asked for it
type tokenBody struct {
	contentType string
	body        []byte
}

// withTokenBody returns a context under which the 200 response body of the
// token request is retained in the returned tokenBody
func withTokenBody(ctx context.Context) (context.Context, *tokenBody) {
	capture := &tokenBody{}
	return context.WithValue(ctx, tokenBodyKey{}, capture), capture
}

func (b *tokenBody) retain(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}
	b.contentType = resp.Header.Get("Content-Type")
	b.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return nil
}

// values decodes the retained body the way oauth2 does: form-encoded for
// form and text/plain content types, JSON otherwise
func (b *tokenBody) values() (map[string]interface{}, error) {
	if len(b.body) == 0 {
		return nil, errors.New("empty token response")
	}

	content, _, _ := mime.ParseMediaType(b.contentType)
	switch content {
	case constants.FormContentType, "text/plain":
		q, err := url.ParseQuery(string(b.body))
		if err != nil {
			return nil, err
		}
		out := make(map[string]interface{}, len(q))
		for k := range q {
			out[k] = q.Get(k)
		}
		return out, nil
	default:
		var out map[string]interface{}
		dec := json.NewDecoder(bytes.NewReader(b.body))
		dec.UseNumber()
		if err := dec.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// accessTokenResult rebuilds the token result from a retained 200 body that
// oauth2 refused. It only succeeds when the body names a user.
func (b *tokenBody) accessTokenResult() (*AccessTokenResult, bool) {
	vals, err := b.values()
	if err != nil {
		return nil, false
	}
	userID, err := parseUserID(vals[constants.FieldUserID])
	if err != nil || userID == nil {
		return nil, false
	}
	return &AccessTokenResult{
		DiiaTokenResponse: DiiaTokenResponse{
			AccessToken:  extraString(vals[constants.FieldAccessToken]),
			TokenType:    extraString(vals[constants.FieldTokenType]),
			ExpiresIn:    extraString(vals[constants.FieldExpiresIn]),
			RefreshToken: extraString(vals[constants.FieldRefreshToken]),
		},
		UserID: userID,
	}, true
}
