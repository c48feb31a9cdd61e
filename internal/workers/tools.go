package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Tool computes extra context that is attached to a worker prompt.
type Tool func(ctx context.Context, in Input) (string, error)

type FinancialRatios struct {
	ProfitMarginPercent     float64 `json:"profit_margin_percent"`
	DebtToAssetRatioPercent float64 `json:"debt_to_asset_ratio_percent"`
}

type RatioReport struct {
	CalculatedRatios       FinancialRatios `json:"calculated_ratios"`
	PreliminaryCreditScore int             `json:"preliminary_credit_score"`
	Notes                  string          `json:"notes"`
}

// CalculateRatios scores the financials: base 70, +10 for a margin above 15%,
// -10 below 5%, +10 for debt-to-asset under 40%, -10 above 70%.
func CalculateRatios(in RiskInput) RatioReport {
	var margin, debtToAsset float64
	if in.Revenue > 0 {
		margin = in.NetIncome / in.Revenue * 100
	}
	if in.TotalAssets > 0 {
		debtToAsset = in.TotalDebt / in.TotalAssets * 100
	}

	score := 70
	switch {
	case margin > 15:
		score += 10
	case margin < 5:
		score -= 10
	}
	switch {
	case debtToAsset < 40:
		score += 10
	case debtToAsset > 70:
		score -= 10
	}

	return RatioReport{
		CalculatedRatios: FinancialRatios{
			ProfitMarginPercent:     round2(margin),
			DebtToAssetRatioPercent: round2(debtToAsset),
		},
		PreliminaryCreditScore: score,
		Notes:                  "Calculations complete. Ready for agent analysis.",
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ratioTool(_ context.Context, in Input) (string, error) {
	ri, ok := in.(RiskInput)
	if !ok {
		return "", fmt.Errorf("ratio tool: unexpected input %T", in)
	}
	b, err := json.Marshal(CalculateRatios(ri))
	return string(b), err
}

// CatalogProduct is an entry of the bank's product catalog.
type CatalogProduct struct {
	ProductID         string   `json:"product_id"`
	Name              string   `json:"name"`
	Type              string   `json:"type"`
	MonthlyFee        float64  `json:"monthly_fee"`
	MinCreditScore    float64  `json:"min_credit_score"`
	GoodForIndustries []string `json:"good_for_industry"`
	Features          []string `json:"features"`
}

// DefaultCatalog is the built-in product list.
var DefaultCatalog = []CatalogProduct{
	{ProductID: "B-CHK-001", Name: "Basic Business Checking", Type: "Checking Account", MonthlyFee: 10, MinCreditScore: 0,
		GoodForIndustries: []string{"all"}, Features: []string{"100 free transactions", "Online banking"}},
	{ProductID: "B-CHK-002", Name: "Business Growth Checking", Type: "Checking Account", MonthlyFee: 25, MinCreditScore: 680,
		GoodForIndustries: []string{"retail", "services", "tech"}, Features: []string{"500 free transactions", "Interest bearing", "Free wire transfers"}},
	{ProductID: "B-CARD-001", Name: "Business Rewards Visa", Type: "Credit Card", MonthlyFee: 0, MinCreditScore: 720,
		GoodForIndustries: []string{"all"}, Features: []string{"2% cashback on all purchases", "$10,000 limit"}},
	{ProductID: "B-LOAN-001", Name: "Small Business Term Loan", Type: "Loan", MonthlyFee: 0, MinCreditScore: 700,
		GoodForIndustries: []string{"services", "retail", "manufacturing"}, Features: []string{"Fixed rates", "Up to $100,000"}},
}

func catalogTool(catalog []CatalogProduct) Tool {
	return func(context.Context, Input) (string, error) {
		b, err := json.Marshal(catalog)
		return string(b), err
	}
}

var textDocumentExt = map[string]bool{".txt": true, ".md": true, ".json": true, ".csv": true}

const (
	maxDocumentBytes = 256 << 10
	maxPDFBytes      = 20 << 20
)

// documentTool reads the text of an application document: PDFs through their
// text layer, plain text formats as is. It always answers with a JSON object,
// reporting problems as {"error": ...} so the extraction worker can recommend
// a review instead of failing the step.
func documentTool(_ context.Context, in Input) (string, error) {
	ei, ok := in.(ExtractionInput)
	if !ok {
		return "", fmt.Errorf("document tool: unexpected input %T", in)
	}
	report := func(key, val string) (string, error) {
		b, err := json.Marshal(map[string]string{key: val})
		return string(b), err
	}

	info, err := os.Stat(ei.DocumentRef)
	if err != nil {
		return report("error", "File not found at path: "+ei.DocumentRef)
	}

	var text string
	switch ext := strings.ToLower(filepath.Ext(ei.DocumentRef)); {
	case ext == ".pdf":
		if info.Size() > maxPDFBytes {
			return report("error", "Document is too large to analyze automatically.")
		}
		text, err = readPDFText(ei.DocumentRef)
		if err != nil {
			return report("error", "Error reading PDF: "+err.Error())
		}
	case textDocumentExt[ext]:
		if info.Size() > maxDocumentBytes {
			return report("error", "Document is too large to analyze automatically.")
		}
		data, err := os.ReadFile(ei.DocumentRef)
		if err != nil {
			return report("error", "Error reading document: "+err.Error())
		}
		text = string(data)
	default:
		return report("error", "Could not extract text from "+filepath.Base(ei.DocumentRef)+"; the format is not machine readable here.")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return report("error", "Could not extract any text from the document. The file might be empty or a scanned image.")
	}
	if len(text) > maxDocumentBytes {
		text = text[:maxDocumentBytes]
	}
	return report("extracted_text", text)
}

// readPDFText concatenates the text layer of every page. The parser panics on
// some malformed files, which is reported as an error.
func readPDFText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
