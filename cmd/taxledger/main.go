/*
main.go - Application entry point

PURPOSE:
  Command-line interface for the municipal tax collection ledger.
  All mutations happen here; the HTTP server (serve command) is
  read-only.

COMMANDS:
  init-db            Create or migrate the database
  import-duplicate   Bulk-load the annual roll from CSV
  pay                Validate and record a payment
  nsf                Reverse a bounced check
  close-month        Lock a calendar month's transactions
  exonerate          Write off a parcel by authority decision
  return             Mark a parcel returned to the county
  update-parcel      Correct owner name or mailing address
  add-interim        Add a mid-cycle parcel
  settlement         Print the settlement sheet
  lookup             Find a parcel by id or owner name
  audit              Show recent audit log entries
  serve              Start the read-only dashboard API

EXIT CODES:
  0  Success
  1  Validation rejection (recorded), locked month, bad input, or
     any other failure

STARTUP SEQUENCE:
  1. Load configuration from environment (viper)
  2. Build the structured logger
  3. Open SQLite store (auto-migrates)
  4. Back up the database before any mutating command
  5. Dispatch the subcommand

EXAMPLES:
  taxledger import-duplicate -file roll_2025.csv
  taxledger pay -parcel P-001 -amount 441.00 -date 2025-04-20 -check 1001
  taxledger close-month -month 4 -year 2025
  taxledger settlement

SEE ALSO:
  - config/config.go: Environment variables and defaults
  - api/server.go: Router for the serve command
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tioga/tax-ledger/api"
	"github.com/tioga/tax-ledger/config"
	"github.com/tioga/tax-ledger/ingest"
	"github.com/tioga/tax-ledger/logger"
	"github.com/tioga/tax-ledger/store/sqlite"
	"github.com/tioga/tax-ledger/tax"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	app, err := newApp(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.store.Close()

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	if err := app.run(ctx, cmd, args); err != nil {
		// Operator mistakes go to stderr only; anything else is also
		// logged as a system failure.
		if !tax.IsClientError(err) {
			log.Error().Err(err).Str("command", cmd).Msg("command failed")
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: taxledger <command> [flags]

Commands:
  init-db            Create or migrate the database
  import-duplicate   Bulk-load the annual roll from CSV
  pay                Validate and record a payment
  nsf                Reverse a bounced check
  close-month        Lock a calendar month's transactions
  exonerate          Write off a parcel by authority decision
  return             Mark a parcel returned to the county
  update-parcel      Correct owner name or mailing address
  add-interim        Add a mid-cycle parcel
  settlement         Print the settlement sheet
  lookup             Find a parcel by id or owner name
  audit              Show recent audit log entries
  serve              Start the read-only dashboard API`)
}

type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  *sqlite.Store
	calc   tax.Calculator
	ledger *tax.Ledger
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	store, err := sqlite.New(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}

	calc := tax.NewCalculator(cfg.IssueDate())
	ledger := tax.NewLedger(store, tax.NewValidator(calc))

	return &app{cfg: cfg, log: log, store: store, calc: calc, ledger: ledger}, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "init-db":
		// Store creation already migrated the schema.
		fmt.Println("Database initialized successfully.")
		return nil
	case "import-duplicate":
		return a.importDuplicate(ctx, args)
	case "pay":
		return a.pay(ctx, args)
	case "nsf":
		return a.nsf(ctx, args)
	case "close-month":
		return a.closeMonth(ctx, args)
	case "exonerate":
		return a.exonerate(ctx, args)
	case "return":
		return a.returnParcel(ctx, args)
	case "update-parcel":
		return a.updateParcel(ctx, args)
	case "add-interim":
		return a.addInterim(ctx, args)
	case "settlement":
		return a.settlement(ctx)
	case "lookup":
		return a.lookup(ctx, args)
	case "audit":
		return a.audit(ctx, args)
	case "serve":
		return a.serve(args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// backup snapshots the database before a mutating command.
func (a *app) backup() error {
	_, err := a.store.Backup(a.cfg.Database.BackupDir)
	return err
}

// =============================================================================
// ROLL COMMANDS
// =============================================================================

func (a *app) importDuplicate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import-duplicate", flag.ExitOnError)
	file := fs.String("file", "", "Path to the roll CSV")
	fs.Parse(args)

	if *file == "" {
		return errors.New("-file is required")
	}
	if err := a.backup(); err != nil {
		return err
	}

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	parcels, err := ingest.ReadRoll(f, a.cfg.IssueDate())
	if err != nil {
		return err
	}

	count, err := a.store.ImportParcels(ctx, parcels)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d records.\n", count)
	return nil
}

func (a *app) addInterim(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-interim", flag.ExitOnError)
	parcelID := fs.String("parcel", "", "New parcel id")
	owner := fs.String("owner", "", "Owner name")
	address := fs.String("address", "", "Property address")
	mailing := fs.String("mailing", "", "Mailing address (defaults to property address)")
	bill := fs.String("bill", "", "Bill number")
	assessed := fs.String("assessed", "0", "Assessed value")
	face := fs.String("face", "", "Face amount")
	discount := fs.String("discount", "", "Discount amount")
	penalty := fs.String("penalty", "", "Penalty amount")
	taxType := fs.String("type", string(tax.TaxRealEstate), "Tax type: 'Real Estate' or 'Per Capita'")
	issueDate := fs.String("issue-date", "", "Bill issue date YYYY-MM-DD (defaults to configured)")
	fs.Parse(args)

	if *parcelID == "" || *owner == "" || *address == "" || *face == "" || *discount == "" || *penalty == "" {
		return errors.New("-parcel, -owner, -address, -face, -discount, and -penalty are required")
	}
	if err := a.backup(); err != nil {
		return err
	}

	faceD, err := decimal.NewFromString(*face)
	if err != nil {
		return fmt.Errorf("bad face amount %q", *face)
	}
	discountD, err := decimal.NewFromString(*discount)
	if err != nil {
		return fmt.Errorf("bad discount amount %q", *discount)
	}
	penaltyD, err := decimal.NewFromString(*penalty)
	if err != nil {
		return fmt.Errorf("bad penalty amount %q", *penalty)
	}
	assessedD, err := decimal.NewFromString(*assessed)
	if err != nil {
		return fmt.Errorf("bad assessed value %q", *assessed)
	}

	issued := a.cfg.IssueDate()
	if *issueDate != "" {
		issued, err = tax.ParseDate(*issueDate)
		if err != nil {
			return err
		}
	}

	p := tax.Parcel{
		ID:              tax.ParcelID(*parcelID),
		OwnerName:       *owner,
		PropertyAddress: *address,
		MailingAddress:  *mailing,
		BillNumber:      *bill,
		AssessedValue:   assessedD,
		FaceAmount:      faceD,
		DiscountAmount:  discountD,
		PenaltyAmount:   penaltyD,
		TaxType:         tax.TaxType(*taxType),
		BillIssueDate:   issued,
	}

	if err := a.store.AddInterim(ctx, p); err != nil {
		return err
	}
	fmt.Printf("Added interim parcel %s.\n", *parcelID)
	return nil
}

func (a *app) updateParcel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update-parcel", flag.ExitOnError)
	parcelID := fs.String("parcel", "", "Parcel id")
	name := fs.String("name", "", "New owner name")
	address := fs.String("address", "", "New mailing address")
	fs.Parse(args)

	if *parcelID == "" {
		return errors.New("-parcel is required")
	}
	if *name == "" && *address == "" {
		return errors.New("nothing to update; pass -name and/or -address")
	}
	if err := a.backup(); err != nil {
		return err
	}

	if err := a.store.UpdateParcelInfo(ctx, tax.ParcelID(*parcelID), *name, *address); err != nil {
		return err
	}
	fmt.Printf("Updated parcel %s.\n", *parcelID)
	return nil
}

// =============================================================================
// PAYMENT COMMANDS
// =============================================================================

func (a *app) pay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	parcelID := fs.String("parcel", "", "Parcel id")
	amount := fs.String("amount", "", "Tendered amount")
	date := fs.String("date", "", "Postmark date YYYY-MM-DD")
	received := fs.String("received", "", "Date received YYYY-MM-DD (defaults to postmark)")
	check := fs.String("check", "", "Check number (omit for cash)")
	installmentNum := fs.Int("installment-num", 0, "Installment number (1-3)")
	batch := fs.String("batch", "", "Deposit batch id")
	force := fs.Bool("force", false, "Record even if flagged as a potential duplicate")
	fs.Parse(args)

	if *parcelID == "" || *amount == "" || *date == "" {
		return errors.New("-parcel, -amount, and -date are required")
	}
	if err := a.backup(); err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(a.store, a.ledger, a.log)
	out, err := pipeline.Process(ctx, ingest.Candidate{
		ParcelID:       *parcelID,
		Amount:         *amount,
		PostmarkDate:   *date,
		DateReceived:   *received,
		CheckNumber:    *check,
		InstallmentNum: *installmentNum,
		DepositBatchID: *batch,
	}, *force)
	if err != nil {
		return err
	}

	if out.DuplicateSuspected && out.TransactionID == 0 {
		return errors.New("potential duplicate payment detected; review manually or re-run with -force")
	}

	if !out.Validation.Accepted {
		// The rejection is already on the ledger as evidence.
		return fmt.Errorf("VALIDATION FAILED: %s (%s)", out.Validation.Message, out.Validation.Code)
	}

	fmt.Printf("Payment recorded: transaction %d, %s period. %s\n",
		out.TransactionID, out.Validation.Period, out.Validation.Message)
	return nil
}

func (a *app) nsf(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("nsf", flag.ExitOnError)
	txID := fs.Int64("transaction", 0, "Original transaction id")
	date := fs.String("date", "", "Reversal date YYYY-MM-DD (defaults to today)")
	fs.Parse(args)

	if *txID == 0 {
		return errors.New("-transaction is required")
	}
	if err := a.backup(); err != nil {
		return err
	}

	on := time.Now()
	if *date != "" {
		var err error
		on, err = tax.ParseDate(*date)
		if err != nil {
			return err
		}
	}

	id, err := a.store.ReverseNSF(ctx, tax.TransactionID(*txID), on)
	if err != nil {
		return err
	}
	fmt.Printf("NSF reversal recorded: transaction %d reverses %d. Parcel reset to UNPAID.\n", id, *txID)
	return nil
}

func (a *app) exonerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("exonerate", flag.ExitOnError)
	parcelID := fs.String("parcel", "", "Parcel id")
	amount := fs.String("amount", "", "Exonerated amount (normally the face amount)")
	date := fs.String("date", "", "Effective date YYYY-MM-DD")
	reason := fs.String("reason", "", "Authority and reason")
	fs.Parse(args)

	if *parcelID == "" || *amount == "" || *date == "" {
		return errors.New("-parcel, -amount, and -date are required")
	}
	if err := a.backup(); err != nil {
		return err
	}

	amountD, err := decimal.NewFromString(*amount)
	if err != nil {
		return fmt.Errorf("bad amount %q", *amount)
	}
	on, err := tax.ParseDate(*date)
	if err != nil {
		return err
	}

	id, err := a.ledger.Exonerate(ctx, tax.ParcelID(*parcelID), amountD, on, *reason)
	if err != nil {
		return err
	}
	fmt.Printf("Exoneration recorded: transaction %d.\n", id)
	return nil
}

func (a *app) returnParcel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("return", flag.ExitOnError)
	parcelID := fs.String("parcel", "", "Parcel id")
	date := fs.String("date", "", "Effective date YYYY-MM-DD")
	notes := fs.String("notes", "", "Notes")
	fs.Parse(args)

	if *parcelID == "" || *date == "" {
		return errors.New("-parcel and -date are required")
	}
	if err := a.backup(); err != nil {
		return err
	}

	on, err := tax.ParseDate(*date)
	if err != nil {
		return err
	}

	id, err := a.ledger.RecordReturn(ctx, tax.ParcelID(*parcelID), on, *notes)
	if err != nil {
		return err
	}
	fmt.Printf("Return recorded: transaction %d. Parcel marked RETURNED.\n", id)
	return nil
}

func (a *app) closeMonth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("close-month", flag.ExitOnError)
	month := fs.Int("month", 0, "Month (1-12)")
	year := fs.Int("year", 0, "Year")
	fs.Parse(args)

	if *month < 1 || *month > 12 || *year == 0 {
		return errors.New("-month (1-12) and -year are required")
	}
	if err := a.backup(); err != nil {
		return err
	}

	count, err := a.store.CloseMonth(ctx, time.Month(*month), *year)
	if err != nil {
		return err
	}
	fmt.Printf("Closed %d transactions for %d/%d. Closure is permanent.\n", count, *month, *year)
	return nil
}

// =============================================================================
// READ COMMANDS
// =============================================================================

func (a *app) settlement(ctx context.Context) error {
	rec := tax.NewReconciler(a.store)
	s, err := rec.Settle(ctx)
	if err != nil {
		return err
	}

	fmt.Println("SETTLEMENT SHEET")
	fmt.Println("Charges:")
	fmt.Printf("  Original duplicate (face)   %12s\n", s.OriginalFace.StringFixed(2))
	fmt.Printf("  Interim additions (face)    %12s\n", s.InterimFace.StringFixed(2))
	fmt.Printf("  Penalties collected         %12s\n", s.PenaltiesCollected.StringFixed(2))
	fmt.Printf("  Penalties on returns        %12s\n", s.PenaltiesOnReturns.StringFixed(2))
	fmt.Printf("  TOTAL CHARGES               %12s\n", s.Charges().StringFixed(2))
	fmt.Println("Credits:")
	fmt.Printf("  Cash collected              %12s\n", s.CashCollected.StringFixed(2))
	fmt.Printf("  Discounts allowed           %12s\n", s.DiscountsAllowed.StringFixed(2))
	fmt.Printf("  Exonerations                %12s\n", s.Exonerations.StringFixed(2))
	fmt.Printf("  Returns (face)              %12s\n", s.ReturnsFace.StringFixed(2))
	fmt.Printf("  Penalties on returns        %12s\n", s.PenaltiesOnReturns.StringFixed(2))
	fmt.Printf("  TOTAL CREDITS               %12s\n", s.Credits().StringFixed(2))
	fmt.Printf("Balance:                      %12s\n", s.Balance().StringFixed(2))
	if s.Balanced() {
		fmt.Println("STATUS: BALANCED")
	} else {
		fmt.Println("STATUS: OUT OF BALANCE - investigate before filing")
	}
	return nil
}

func (a *app) lookup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	term := fs.String("q", "", "Parcel id or owner name")
	fs.Parse(args)

	query := *term
	if query == "" && fs.NArg() > 0 {
		query = fs.Arg(0)
	}
	if query == "" {
		return errors.New("-q or a search term is required")
	}

	p, txs, err := a.store.Lookup(ctx, query)
	if err != nil {
		return err
	}

	fmt.Printf("Parcel %s  %s\n", p.ID, p.OwnerName)
	fmt.Printf("  %s (%s)\n", p.PropertyAddress, p.TaxType)
	fmt.Printf("  Bill %s issued %s  Face %s  Discount %s  Penalty %s\n",
		p.BillNumber, tax.FormatDate(p.BillIssueDate),
		p.FaceAmount.StringFixed(2), p.DiscountAmount.StringFixed(2), p.PenaltyAmount.StringFixed(2))
	fmt.Printf("  Discount through %s, face through %s\n",
		tax.FormatDate(a.calc.DiscountEnd(p.BillIssueDate)),
		tax.FormatDate(a.calc.FaceEnd(p.BillIssueDate)))
	fmt.Printf("  Status: %s\n", p.Status)

	if len(txs) == 0 {
		fmt.Println("  No transactions.")
		return nil
	}
	fmt.Println("  Transactions:")
	for _, t := range txs {
		closed := ""
		if t.Closed {
			closed = " [closed]"
		}
		fmt.Printf("    #%d %s %s %s balance %s%s\n",
			t.ID, tax.FormatDate(t.DateReceived), t.Type,
			t.Amount.StringFixed(2), t.BalanceRemaining.StringFixed(2), closed)
	}
	return nil
}

func (a *app) audit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	limit := fs.Int("limit", 25, "Number of entries to show")
	fs.Parse(args)

	entries, err := a.store.AuditTail(ctx, *limit)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("#%d %s %s %s/%s %s: %q -> %q\n",
			e.LogID, e.Timestamp.Format(time.RFC3339), e.Action,
			e.Table, e.RecordID, e.Field, e.OldValue, e.NewValue)
	}
	return nil
}

// =============================================================================
// SERVE
// =============================================================================

func (a *app) serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.String("port", a.cfg.Server.Port, "HTTP server port")
	fs.Parse(args)

	handler := api.NewHandler(a.store)
	router := api.NewRouter(handler, a.log, a.cfg.CORS.Origins)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("port", *port).Msg("dashboard API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
