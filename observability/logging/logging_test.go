package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithOptionsWritesJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "contestd.log")
	logger := SetupWithOptions("contestd", "test", Options{Level: "debug", File: file, Output: &buf})
	logger.Debug("contest created", MaskField("caller", "alice.near"), slog.String("reason", "ok"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "contest created", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "contestd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["caller"])
	require.Equal(t, "ok", line["reason"])

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), "contest created")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestMaskFieldAllowlist(t *testing.T) {
	require.Equal(t, "boom", MaskField("error", "boom").Value.String())
	require.Equal(t, RedactedValue, MaskField("token", "secret").Value.String())
	require.Equal(t, " ", MaskField("token", " ").Value.String())
}

func TestFingerprint(t *testing.T) {
	require.Empty(t, Fingerprint(""))
	fp := Fingerprint("eyJhbGciOi.secret")
	require.Len(t, fp, 12)
	require.Equal(t, fp, Fingerprint("eyJhbGciOi.secret"))
	require.NotEqual(t, fp, Fingerprint("eyJhbGciOi.other"))
	require.NotContains(t, fp, "secret")

	attrs := TokenAttrs("eyJhbGciOi.secret")
	require.Len(t, attrs, 2)
	require.Equal(t, RedactedValue, attrs[0].(slog.Attr).Value.String())
	require.Equal(t, fp, attrs[1].(slog.Attr).Value.String())
}
