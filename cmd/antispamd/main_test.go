package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumasweb/antispam/internal/config"
)

func TestVersionCmd_PrintsVersionInfo(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "antispamd")
}

func TestHelpFlag_PrintsUsage(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Usage")
}

func TestCheckCmd_Verdicts(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "german text passes",
			args: []string{"check", "Das ist eine ganz normale Anfrage und kein Werbetext."},
			want: "PASS",
		},
		{
			name: "short content",
			args: []string{"check", "hi"},
			want: "SPAM TOO_SHORT",
		},
		{
			name: "honeypot filled",
			args: []string{"check", "Das ist eine ganz normale Anfrage.", "--honeypot", "bot"},
			want: "SPAM HONEYPOT",
		},
		{
			name: "wrong language",
			args: []string{"check", "zzzz yyyy xxxx wwww vvvv qqqq", "--lang", "de"},
			want: "SPAM LANGUAGE_MISMATCH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.want, strings.TrimSpace(out.String()))
		})
	}
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		DataDir:          t.TempDir(),
		ListenAddr:       "127.0.0.1:0",
		StatusCacheTTL:   300 * time.Second,
		SessionAllowance: 2,
		SessionTTL:       time.Hour,
		HoneypotField:    "hp_field",
		RejectMessage:    "rejected",
		Forms: map[string]map[string]string{
			"contact": {config.SettingEnable: "1"},
		},
	}
	s, err := newServer(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleCompile_RequiresForm(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s.handleCompile, "/v1/compile", checkRequest{SessionID: "s1", Address: "203.0.113.9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompile_CleanSessionNotSuppressed(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s.handleCompile, "/v1/compile", checkRequest{
		Form:      "contact",
		SessionID: "s1",
		Address:   "203.0.113.9",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Suppress bool `json:"suppress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Suppress)
}

func TestHandleValidate_CleanSubmissionPasses(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s.handleValidate, "/v1/validate", checkRequest{
		Form:      "contact",
		SessionID: "s1",
		Address:   "203.0.113.9",
		Fields: map[string]string{
			"name":    "Jo",
			"email":   "jo@example.org",
			"message": "Das ist eine ganz normale Anfrage und kein Werbetext.",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Spam   bool              `json:"spam"`
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Spam)
	assert.Empty(t, resp.Errors)
}

func TestHandleValidate_SpamRejectsEveryField(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s.handleValidate, "/v1/validate", checkRequest{
		Form:      "contact",
		SessionID: "s1",
		Address:   "203.0.113.9",
		Fields: map[string]string{
			"name":    "Jo",
			"email":   "jo@example.org",
			"message": "x",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Spam   bool              `json:"spam"`
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Spam)
	require.Len(t, resp.Errors, 3)
	for field, msg := range resp.Errors {
		assert.Equal(t, "rejected", msg, "field %s", field)
	}
}

func TestHandleValidate_HoneypotTriggersOnContentField(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s.handleValidate, "/v1/validate", checkRequest{
		Form:      "contact",
		SessionID: "s1",
		Address:   "203.0.113.9",
		Fields: map[string]string{
			"hp_field": "gotcha",
			"message":  "Das ist eine ganz normale Anfrage und kein Werbetext.",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Spam bool `json:"spam"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Spam)
}
