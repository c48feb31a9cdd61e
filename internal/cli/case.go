package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/core"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

func newCaseCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Create, advance and review onboarding cases",
	}
	cmd.AddCommand(
		newCaseIntakeCommand(app),
		newCaseListCommand(app),
		newCaseShowCommand(app),
		newCaseStepCommand(app),
		newCaseLogCommand(app),
		newCaseDigestCommand(app),
		newCaseReviewCommand(app),
		newCaseResubmitCommand(app),
	)
	return cmd
}

func newCaseIntakeCommand(app *App) *cobra.Command {
	var form models.ManualIntakeRequest
	var document string
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Open a case from the application form or a document",
		Long: `Open a new case.

With --document the case starts in PENDING and the extraction worker reads
the document on the first step. Without it the flags are the manual
application form: the case goes straight to KYC checks when the signature
matches the business name, and to analyst review otherwise.`,
		Example: `  onboardflow case intake --business-name "Acme Ltd" --document ./acme.pdf
  onboardflow case intake --business-name "Acme Ltd" --industry Retail \
    --owner "Jane Doe" --email jane@acme.test --signed-for "Acme Ltd" --attest`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if document != "" {
				created, err := app.Manager.CreateFromDocument(ctx, models.DocumentIntakeRequest{
					BusinessName: form.BusinessName,
					DocumentRef:  document,
				})
				if err != nil {
					return err
				}
				printerFor(cmd).Case(created)
				return nil
			}
			created, err := app.Manager.CreateManual(ctx, form)
			if err != nil {
				return err
			}
			printerFor(cmd).Case(created)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&form.BusinessName, "business-name", "", "legal business name")
	f.StringVar(&document, "document", "", "path of the application document")
	f.StringVar(&form.DBA, "dba", "", "trading name")
	f.StringVar(&form.Industry, "industry", "", "industry")
	f.StringVar(&form.BusinessAddress, "address", "", "business address")
	f.StringVar(&form.OwnerName, "owner", "", "owner name")
	f.StringVar(&form.OwnerTitle, "owner-title", "", "owner title")
	f.StringVar(&form.OwnerEmail, "email", "", "owner email")
	f.Float64Var(&form.AnnualRevenue, "revenue", 0, "annual revenue")
	f.Float64Var(&form.NetIncome, "net-income", 0, "net income")
	f.Float64Var(&form.TotalDebt, "debt", 0, "total debt")
	f.Float64Var(&form.TotalAssets, "assets", 0, "total assets")
	f.StringVar(&form.SignedFor, "signed-for", "", "name the application was signed for")
	f.BoolVar(&form.Attested, "attest", false, "the signer attests the information is correct")
	_ = cmd.MarkFlagRequired("business-name")
	return cmd
}

func newCaseListCommand(app *App) *cobra.Command {
	var req models.SearchCasesRequest
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Status != "" {
				status, ok := models.ParseCaseStatus(req.Status)
				if !ok {
					return fmt.Errorf("unknown status %q", req.Status)
				}
				req.Status = string(status)
			}
			cases, err := app.Manager.Search(req)
			if err != nil {
				return err
			}
			if cases != nil {
				printerFor(cmd).Cases(*cases)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Status, "status", "", "only cases in this status")
	cmd.Flags().StringVar(&req.BusinessName, "business-name", "", "business name contains")
	cmd.Flags().Int64Var(&req.Limit, "limit", 50, "maximum number of cases")
	return cmd
}

func newCaseShowCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show a case and its audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			c, err := app.Manager.Get(id)
			if err != nil {
				return err
			}
			printerFor(cmd).Case(c)
			return nil
		},
	}
}

func newCaseStepCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "step <case-id>",
		Short: "Run the next step of a case",
		Long: `Run exactly one step: the worker bound to the case's current status is
invoked, its output is checked and the case moves to the state it recommends.
A failed step leaves the case where it was and exits with status 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			before, err := app.Manager.Get(id)
			if err != nil {
				return err
			}
			after, stepErr := app.Manager.Step(cmd.Context(), id)
			if after != nil {
				printerFor(cmd).Step(before, after)
			}
			if stepErr != nil {
				errPrinterFor(cmd).Error(stepErr)
				return NewExitError(1)
			}
			return nil
		},
	}
}

func newCaseLogCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "log <case-id>",
		Short: "List the recorded actions of a case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			if _, err := app.Manager.Get(id); err != nil {
				return err
			}
			actions, err := app.Manager.Actions(id)
			if err != nil {
				return err
			}
			if actions != nil {
				printerFor(cmd).Actions(*actions)
			}
			return nil
		},
	}
}

func newCaseDigestCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "digest <case-id>",
		Short: "Show the review screen of a case awaiting review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			view, err := app.Manager.ReviewView(cmd.Context(), id)
			if err != nil {
				return err
			}
			printerFor(cmd).Review(view)
			return nil
		},
	}
}

func newCaseReviewCommand(app *App) *cobra.Command {
	var req models.ReviewDecisionRequest
	var analyst string
	cmd := &cobra.Command{
		Use:   "review <case-id>",
		Short: "Record an analyst decision",
		Long: `Record an analyst decision on a case awaiting review.

Decisions are CONTINUE (proceed to the step after the one that raised the
review), FINAL_APPROVE (go to product recommendation) and REJECT. Which of
them are offered depends on where the review was raised; see "case digest".`,
		Example: `  onboardflow case review 12 --decision CONTINUE --justification "Registry confirms the name"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			if analyst == "" {
				return errors.New("--analyst is required when $USER is not set")
			}
			ctx := core.WithUsername(cmd.Context(), analyst)
			updated, err := app.Manager.Review(ctx, id, req)
			if err != nil {
				return err
			}
			printerFor(cmd).Case(updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Decision, "decision", "", "CONTINUE, FINAL_APPROVE or REJECT")
	cmd.Flags().StringVar(&req.Justification, "justification", "", "why the decision was taken")
	cmd.Flags().StringVar(&analyst, "analyst", os.Getenv("USER"), "analyst recorded on the decision")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func newCaseResubmitCommand(app *App) *cobra.Command {
	var document string
	cmd := &cobra.Command{
		Use:   "resubmit <case-id>",
		Short: "Attach a new document to a case waiting on the customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCaseID(args[0])
			if err != nil {
				return err
			}
			updated, err := app.Manager.ResubmitDocument(cmd.Context(), id, document)
			if err != nil {
				return err
			}
			printerFor(cmd).Case(updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&document, "document", "", "path of the new document")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}
