package mockidentity

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	previous, level := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = previous
		zerolog.SetGlobalLevel(level)
	})

	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"unencodable": make(chan int)})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, buf.String(), "failed to encode response")
	require.Contains(t, buf.String(), "unsupported type")
}
