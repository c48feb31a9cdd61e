package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIChatClient_Chat(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClient(srv.URL+"/v1/", "test-model", "secret", time.Second)
	resp, err := c.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "test-model", got.Model)
}

func TestOpenAIChatClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "empty") {
			_, _ = w.Write([]byte(`{"choices":[]}`))
			return
		}
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	msgs := []Message{{Role: "user", Content: "hi"}}

	_, err := NewOpenAIChatClient(srv.URL, "m", "", time.Second).Chat(context.Background(), ChatRequest{Messages: msgs})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = NewOpenAIChatClient(srv.URL+"/empty", "m", "", time.Second).Chat(context.Background(), ChatRequest{Messages: msgs})
	assert.ErrorContains(t, err, "no choices")

	_, err = NewOpenAIChatClient("", "m", "", time.Second).Chat(context.Background(), ChatRequest{Messages: msgs})
	assert.ErrorContains(t, err, "not configured")

	_, err = NewOpenAIChatClient(srv.URL, "m", "", time.Second).Chat(context.Background(), ChatRequest{})
	assert.Error(t, err)
}

func TestCalculateRatios(t *testing.T) {
	tests := []struct {
		name      string
		in        RiskInput
		wantScore int
		wantPM    float64
		wantDA    float64
	}{
		{"strong", RiskInput{Revenue: 1000000, NetIncome: 200000, TotalDebt: 100000, TotalAssets: 500000}, 90, 20, 20},
		{"gray zone", RiskInput{Revenue: 1000000, NetIncome: 100000, TotalDebt: 250000, TotalAssets: 500000}, 70, 10, 50},
		{"weak", RiskInput{Revenue: 1000000, NetIncome: 10000, TotalDebt: 400000, TotalAssets: 500000}, 50, 1, 80},
		{"zero revenue", RiskInput{TotalDebt: 100, TotalAssets: 1000}, 70, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CalculateRatios(tt.in)
			assert.Equal(t, tt.wantScore, r.PreliminaryCreditScore)
			assert.Equal(t, tt.wantPM, r.CalculatedRatios.ProfitMarginPercent)
			assert.Equal(t, tt.wantDA, r.CalculatedRatios.DebtToAssetRatioPercent)
		})
	}
}

func TestDocumentTool(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "app.txt")
	require.NoError(t, os.WriteFile(good, []byte("  Legal Business Name: Acme LLC  "), 0o600))
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("%PDF"), 0o600))
	image := filepath.Join(dir, "scan.png")
	require.NoError(t, os.WriteFile(image, []byte{0x89, 'P', 'N', 'G'}, 0o600))

	tests := []struct {
		ref     string
		wantKey string
	}{
		{good, "extracted_text"},
		{empty, "error"},
		{broken, "error"},
		{image, "error"},
		{filepath.Join(dir, "missing.txt"), "error"},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.ref), func(t *testing.T) {
			out, err := documentTool(context.Background(), ExtractionInput{DocumentRef: tt.ref})
			require.NoError(t, err)
			var m map[string]string
			require.NoError(t, json.Unmarshal([]byte(out), &m))
			assert.Contains(t, m, tt.wantKey)
		})
	}

	_, err := documentTool(context.Background(), RiskInput{})
	assert.Error(t, err)
}

// writeTextPDF writes a one-page PDF whose text layer is line.
func writeTextPDF(t *testing.T, path, line string) {
	t.Helper()
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", line)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestDocumentTool_ReadsPDFText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.pdf")
	writeTextPDF(t, path, "Legal Business Name: Acme Widgets LLC")

	out, err := documentTool(context.Background(), ExtractionInput{DocumentRef: path})
	require.NoError(t, err)
	var m map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	require.Contains(t, m, "extracted_text", "tool answered %s", out)
	assert.Contains(t, m["extracted_text"], "Acme Widgets LLC")
}

type fakeChat struct {
	reqs []ChatRequest
	resp string
	err  error
}

func (f *fakeChat) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	f.reqs = append(f.reqs, req)
	return ChatResponse{Content: f.resp}, f.err
}

func TestLLMWorker_AttachesToolOutput(t *testing.T) {
	chat := &fakeChat{resp: "  {\"credit_score\":90}  "}
	reg := NewDefaultRegistry(chat, RegistryOptions{Model: "m1"})
	assert.Empty(t, reg.Missing())

	w, err := reg.Get(KindRisk)
	require.NoError(t, err)
	out, err := w.Invoke(context.Background(), Query{Kind: KindRisk, Input: RiskInput{Revenue: 100, NetIncome: 20, TotalDebt: 10, TotalAssets: 100}})
	require.NoError(t, err)
	assert.Equal(t, `{"credit_score":90}`, out)

	require.Len(t, chat.reqs, 1)
	req := chat.reqs[0]
	assert.Equal(t, "m1", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "Senior Credit Analyst")
	assert.Contains(t, req.Messages[1].Content, `"preliminary_credit_score":90`)
}

func TestLLMWorker_ChatError(t *testing.T) {
	chat := &fakeChat{err: errors.New("timeout")}
	w := &LLMWorker{Kind: KindScreening, Persona: PersonaFor(KindScreening), Client: chat}
	_, err := w.Invoke(context.Background(), Query{Kind: KindScreening, Input: ScreeningInput{BusinessName: "Acme", OwnerName: "Jo"}})
	assert.ErrorContains(t, err, "timeout")
	assert.Contains(t, chat.reqs[0].Messages[1].Content, "'Acme'")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry().Register(KindRisk, Static("{}"))
	_, err := reg.Get(KindMatching)
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Len(t, reg.Missing(), len(AllKinds)-1)

	var nilReg *Registry
	_, err = nilReg.Get(KindRisk)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestLogSender(t *testing.T) {
	r, err := LogSender{}.Send(context.Background(), Email{To: "a@b.c", Subject: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, r.MessageID)

	_, err = LogSender{}.Send(context.Background(), Email{To: "  "})
	assert.ErrorIs(t, err, ErrNoRecipient)
}
