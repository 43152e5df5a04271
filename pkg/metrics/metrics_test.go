package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustsec-audit-action/pkg/advisory"
)

func TestObserveFindings(t *testing.T) {
	m := New()
	m.ObserveFindings([]advisory.Finding{
		{ID: "RUSTSEC-2020-0001", Kind: advisory.KindVulnerability},
		{ID: "RUSTSEC-2020-0002", Kind: advisory.KindVulnerability},
		{Kind: advisory.KindYanked},
	}, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Findings.WithLabelValues("vulnerability")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Findings.WithLabelValues("yanked")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Findings.WithLabelValues("unsound")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Ignored))
}

func TestObserveRetryAndRun(t *testing.T) {
	m := New()
	m.ObserveRetry("create issue", 1, nil)
	m.ObserveRetry("create issue", 2, nil)
	m.Actions.WithLabelValues("create").Add(3)
	m.ObserveRun(time.Now().Add(-time.Second), 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TrackerRetries.WithLabelValues("create issue")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Actions.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExitCode))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.Duration), 1.0)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveFindings([]advisory.Finding{{Kind: advisory.KindNotice}}, 0)

	path := filepath.Join(t.TempDir(), "rustsec.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `rustsec_audit_findings{kind="notice"} 1`)
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := New()
	m.ObserveRun(time.Now(), 0)
	require.NoError(t, m.Push(context.Background(), server.URL, "rustsec_audit"))
	assert.Equal(t, "/metrics/job/rustsec_audit", gotPath)
	assert.NotEmpty(t, gotBody)

	assert.Error(t, m.Push(context.Background(), "http://127.0.0.1:1", "rustsec_audit"))
}
