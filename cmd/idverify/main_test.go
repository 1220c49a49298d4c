package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brizzai/idverify/internal/auth/models"
	"github.com/brizzai/idverify/internal/config"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	valid := &models.VerifiedPayload{Valid: true, Record: models.Record{"id": "42"}}

	out, err := render(valid, "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":true,"record":{"id":"42"}}`, out)

	out, err = render(models.Invalid(), "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":false}`, out)

	out, err = render(valid, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "valid: true\nrecord:\n    id: \"42\"\n", out)

	_, err = render(valid, "xml")
	assert.Error(t, err)
}

func TestRunVerify(t *testing.T) {
	pterm.DisableOutput()
	t.Cleanup(pterm.EnableOutput)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		body := map[string]interface{}{"access_token": "at"}
		if r.PostForm.Get("code") == "good-code" {
			body["user_id"] = 42
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(body))
	}))
	defer server.Close()

	prevCfg, prevCode, prevOutput := cfg, verifyCode, verifyOutput
	t.Cleanup(func() { cfg, verifyCode, verifyOutput = prevCfg, prevCode, prevOutput })

	cfg = &config.Config{Diia: config.DiiaConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		RedirectURI:  "https://passport.example/diia/callback",
		TokenURL:     server.URL,
		Timeout:      2 * time.Second,
	}}
	verifyOutput = "json"

	tests := []struct {
		name    string
		code    string
		want    string
		wantErr string
	}{
		{name: "valid", code: "good-code", want: `{"valid":true,"record":{"id":"42"}}`},
		{name: "invalid", code: "other-code", want: `{"valid":false}`, wantErr: "verification failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifyCode = tt.code

			var out bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetContext(context.Background())
			cmd.SetOut(&out)

			err := runVerify(cmd, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
			} else {
				require.NoError(t, err)
			}
			assert.JSONEq(t, tt.want, out.String())
		})
	}
}

func TestRunVerifyMissingCredentials(t *testing.T) {
	prevCfg := cfg
	t.Cleanup(func() { cfg = prevCfg })

	cfg = &config.Config{}
	err := runVerify(&cobra.Command{}, nil)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}
