package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/kaizen-client/mockidentity"
	"github.com/stretchr/testify/require"
)

func setupTestFixture(t *testing.T) *mockidentity.Server {
	t.Helper()
	mock, err := mockidentity.New()
	require.NoError(t, err)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	t.Setenv("KAIZEN_API_BASE_URL", srv.URL)
	t.Setenv("KAIZEN_STORAGE_DRIVER", "bolt")
	t.Setenv("KAIZEN_STORAGE_PATH", filepath.Join(t.TempDir(), "kaizen.db"))
	t.Setenv("LOG_LEVEL", "error")
	return mock
}

func execute(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()
	loginUsername, loginPassword, logoutRemote = "", "", false
	requestData, requestParams = "", nil

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.Execute()

	result := map[string]any{}
	if out.Len() > 0 {
		_ = json.Unmarshal(out.Bytes(), &result)
	}
	return result, err
}

func TestSessionCommands(t *testing.T) {
	mock := setupTestFixture(t)

	out, err := execute(t, "status")
	require.NoError(t, err)
	require.Equal(t, false, out["authenticated"])

	_, err = execute(t, "login", "-u", mockidentity.DefaultUsername, "-p", "wrong")
	require.Error(t, err)

	out, err = execute(t, "login", "-u", mockidentity.DefaultUsername, "-p", mockidentity.DefaultPassword)
	require.NoError(t, err)
	require.Equal(t, true, out["success"])

	out, err = execute(t, "status")
	require.NoError(t, err)
	require.Equal(t, true, out["authenticated"])
	require.NotNil(t, out["expiresAt"])

	mock.RevokeAccessTokens()
	out, err = execute(t, "notifications")
	require.NoError(t, err, "refreshed from the persisted cookie")
	require.EqualValues(t, 0, out["unread_count"])
	require.EqualValues(t, 1, mock.RefreshCalls())

	_, err = execute(t, "logout", "--remote")
	require.NoError(t, err)

	out, err = execute(t, "status")
	require.NoError(t, err)
	require.Equal(t, false, out["authenticated"])

	_, err = execute(t, "refresh")
	require.Error(t, err)
}

func TestRequestCommand(t *testing.T) {
	setupTestFixture(t)

	_, err := execute(t, "login", "-u", mockidentity.DefaultUsername, "-p", mockidentity.DefaultPassword)
	require.NoError(t, err)

	out, err := execute(t, "request", "post", "/api/posts/", "-d", `{"title":"t","content":"c","category":1}`)
	require.NoError(t, err)
	require.Equal(t, "c", out["content"])

	_, err = execute(t, "request", "GET", "/api/posts/", "-q", "broken")
	require.Error(t, err)

	_, err = execute(t, "request", "POST", "/api/posts/", "-d", "{")
	require.Error(t, err)
}
