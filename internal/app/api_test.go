//go:build testutil
// +build testutil

package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/Spok95/drillcert/internal/app"
	"github.com/Spok95/drillcert/internal/engine"
	"github.com/Spok95/drillcert/internal/testutil/testdb"
)

type client struct {
	t        *testing.T
	base     string
	operator int64
}

type envelope struct {
	Code    any             `json:"code"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func (c *client) do(method, path string, body any) (*http.Response, envelope) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		c.t.Fatal(err)
	}
	if c.operator != 0 {
		req.Header.Set("X-Operator-ID", strconv.FormatInt(c.operator, 10))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			c.t.Fatalf("%s %s: %v (%s)", method, path, err, raw)
		}
	} else {
		env.Data = raw
	}
	return resp, env
}

func (c *client) must(method, path string, body any, status int, out any) {
	c.t.Helper()
	resp, env := c.do(method, path, body)
	if resp.StatusCode != status {
		c.t.Fatalf("%s %s: status %d, want %d: %s %s", method, path, resp.StatusCode, status, env.Message, env.Details)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			c.t.Fatalf("%s %s: decode data: %v", method, path, err)
		}
	}
}

func TestAPI_ScoreSubmitIssueVerify(t *testing.T) {
	h, err := testdb.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	f := testdb.MustSeed(t, h.DB, 2)

	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	svc := engine.New(h.DB, zaptest.NewLogger(t), engine.Config{Now: func() time.Time { return now }})
	srv := httptest.NewServer(app.NewHandler(app.Deps{DB: h.DB, Engine: svc, Log: zaptest.NewLogger(t)}))
	defer srv.Close()
	c := &client{t: t, base: srv.URL, operator: f.OperatorID}

	resp, _ := c.do(http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}

	var tpl struct{ ID int64 }
	c.must(http.MethodPost, "/api/templates", map[string]any{"name": "Default", "content": "<h1>{name}</h1>{certificate_number}"}, http.StatusCreated, &tpl)
	c.must(http.MethodPut, "/api/settings/automation", map[string]any{"auto_issue_when_passed": true}, http.StatusOK, nil)

	var sess struct {
		ID     int64
		Status string
	}
	c.must(http.MethodPost, fmt.Sprintf("/api/events/%d/session", f.EventID), nil, http.StatusOK, &sess)

	sheet := fmt.Sprintf("/api/sessions/%d/participants/%d", sess.ID, f.Users[0])
	for _, crit := range f.Criteria {
		c.must(http.MethodPut, sheet+"/scores/"+crit, map[string]any{"score": 8}, http.StatusOK, nil)
	}

	_, env := c.do(http.MethodPut, sheet+"/scores/triage", map[string]any{"score": 11})
	if env.Code != "SCORE_INVALID" {
		t.Fatalf("score 11: %+v", env)
	}

	var res struct {
		Reason      string
		Certificate *struct {
			ID                int64  `json:"id"`
			CertificateNumber string `json:"certificate_number"`
			VerificationCode  string `json:"verification_code"`
		}
	}
	c.must(http.MethodPost, sheet+"/submit", nil, http.StatusOK, &res)
	if res.Certificate == nil || res.Certificate.CertificateNumber != "CERT-2025-0001" {
		t.Fatalf("submit: %+v", res)
	}

	// второй участник без оценок
	other := fmt.Sprintf("/api/sessions/%d/participants/%d", sess.ID, f.Users[1])
	resp, env = c.do(http.MethodPost, other+"/submit", nil)
	if resp.StatusCode != http.StatusBadRequest || env.Code != "SCORES_INCOMPLETE" || !strings.Contains(string(env.Details), "safety") {
		t.Fatalf("incomplete submit: %d %+v", resp.StatusCode, env)
	}

	resp, env = c.do(http.MethodPost, "/api/certificates", map[string]any{
		"user_id": f.Users[0], "event_id": f.EventID, "type": "completion",
	})
	if resp.StatusCode != http.StatusConflict || env.Code != "CERTIFICATE_DUPLICATE" || !strings.Contains(string(env.Details), "CERT-2025-0001") {
		t.Fatalf("duplicate issue: %d %+v", resp.StatusCode, env)
	}

	resp, env = c.do(http.MethodGet, fmt.Sprintf("/api/certificates/%d/document", res.Certificate.ID), nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), "<h1>Participant 01</h1>") {
		t.Fatalf("document: %d %s", resp.StatusCode, env.Data)
	}

	public := &client{t: t, base: srv.URL}
	var v struct {
		Valid       bool `json:"valid"`
		HashMatches bool `json:"hash_matches"`
	}
	public.must(http.MethodGet, "/api/verify/"+res.Certificate.VerificationCode, nil, http.StatusOK, &v)
	if !v.Valid || !v.HashMatches {
		t.Fatalf("verify: %+v", v)
	}
	if resp, _ := public.do(http.MethodGet, "/api/certificates", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("history without operator: %d", resp.StatusCode)
	}

	c.must(http.MethodPost, fmt.Sprintf("/api/sessions/%d/lock", sess.ID), nil, http.StatusOK, nil)
	_, env = c.do(http.MethodPut, other+"/scores/triage", map[string]any{"score": 5})
	if env.Code != "SESSION_LOCKED" {
		t.Fatalf("score after lock: %+v", env)
	}
	_, env = c.do(http.MethodPost, fmt.Sprintf("/api/sessions/%d/lock", sess.ID), nil)
	if env.Code != "SESSION_ALREADY_LOCKED" {
		t.Fatalf("second lock: %+v", env)
	}

	var revoked struct{ Status string }
	c.must(http.MethodPost, fmt.Sprintf("/api/certificates/%d/revoke", res.Certificate.ID), map[string]any{"reason": "test"}, http.StatusOK, &revoked)
	if revoked.Status != "revoked" {
		t.Fatalf("revoke: %+v", revoked)
	}
	public.must(http.MethodGet, "/api/verify/CERT-2025-0001", nil, http.StatusOK, &v)
	if v.Valid {
		t.Fatal("revoked certificate must not verify as valid")
	}

	resp, env = c.do(http.MethodGet, "/api/certificates?format=xlsx&from=2025-03-01&to=2025-03-31", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Disposition"), "attachment") {
		t.Fatalf("xlsx export: %d %v", resp.StatusCode, resp.Header)
	}
	book, err := excelize.OpenReader(bytes.NewReader(env.Data))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = book.Close() }()
	rows, _ := book.GetRows("Certificates")
	if len(rows) != 2 || rows[1][0] != "CERT-2025-0001" {
		t.Fatalf("xlsx rows = %v", rows)
	}

	var stats struct {
		TotalCertified int `json:"total_certified"`
	}
	c.must(http.MethodGet, "/api/stats/certificates", nil, http.StatusOK, &stats)
	if stats.TotalCertified != 0 {
		t.Fatalf("revoked certificates must not count: %+v", stats)
	}
}
