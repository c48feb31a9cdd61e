package workers

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

// Input is the structured request for one worker kind.
type Input interface {
	Prompt() string
}

type ExtractionInput struct {
	DocumentRef string `json:"document_ref"`
}

func (in ExtractionInput) Prompt() string {
	return fmt.Sprintf("Please analyze the application document at '%s'.", in.DocumentRef)
}

type ScreeningInput struct {
	BusinessName string `json:"business_name"`
	OwnerName    string `json:"owner_name"`
}

func (in ScreeningInput) Prompt() string {
	return fmt.Sprintf("Perform KYC/AML checks on business: '%s' and owner: '%s'", in.BusinessName, in.OwnerName)
}

type RiskInput struct {
	Revenue     float64 `json:"revenue"`
	NetIncome   float64 `json:"net_income"`
	TotalDebt   float64 `json:"total_debt"`
	TotalAssets float64 `json:"total_assets"`
}

func (in RiskInput) Prompt() string {
	b, _ := json.Marshal(in)
	return "Please analyze the financial data: " + string(b)
}

type MatchingInput struct {
	BusinessName string  `json:"business_name"`
	CreditScore  float64 `json:"credit_score"`
}

func (in MatchingInput) Prompt() string {
	return fmt.Sprintf("Please recommend products for: '%s' with credit score %s",
		in.BusinessName, strconv.FormatFloat(in.CreditScore, 'f', -1, 64))
}

// Notification tasks.
const (
	TaskSendApproval  = "send_approval"
	TaskSendRejection = "send_rejection"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type NotificationInput struct {
	Task     string           `json:"task"`
	Customer Customer         `json:"customer"`
	Products []models.Product `json:"products"`
	Reason   string           `json:"reason"`
}

func (in NotificationInput) Prompt() string {
	customer, _ := json.Marshal(in.Customer)
	products := in.Products
	if products == nil {
		products = []models.Product{}
	}
	list, _ := json.Marshal(products)
	return fmt.Sprintf("Task: '%s'\nCustomer: %s\nProducts: %s\nReason: %s", in.Task, customer, list, in.Reason)
}

// SummarizationInput carries the full case snapshot, already serialized.
type SummarizationInput struct {
	Case json.RawMessage `json:"case"`
}

func (in SummarizationInput) Prompt() string {
	return "Please summarize this case data: " + string(in.Case)
}
