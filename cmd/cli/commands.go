package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/chatledger/internal/adapter/http/dto"
	"github.com/iho/chatledger/internal/adapter/http/handler"
	"github.com/iho/chatledger/internal/domain"
)

// newIdempotencyKey is replaced in tests.
var newIdempotencyKey = func() string { return ulid.Make().String() }

func clientCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Client operations",
	}

	var (
		chatRef int64
		name    string
		city    string
	)
	ensure := &cobra.Command{
		Use:   "ensure",
		Short: "Create a client or refresh its name and city",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.EnsureClientRequest{ChatRef: chatRef, Name: name}
			if cmd.Flags().Changed("city") {
				req.City = &city
			}

			var resp dto.ClientResponse
			raw, err := opts.client().do(cmd.Context(), http.MethodPost, "/clients", req, nil, &resp)
			if err != nil {
				return err
			}
			if opts.raw {
				return printRaw(cmd.OutOrStdout(), raw)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "client #%d chat=%d name=%q", resp.ID, resp.ChatRef, resp.Name)
			if resp.City != nil {
				fmt.Fprintf(cmd.OutOrStdout(), " city=%q", *resp.City)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	ensure.Flags().Int64Var(&chatRef, "chat-ref", 0, "Chat reference")
	ensure.Flags().StringVar(&name, "name", "", "Client name")
	ensure.Flags().StringVar(&city, "city", "", "Client city")
	_ = ensure.MarkFlagRequired("chat-ref")
	_ = ensure.MarkFlagRequired("name")

	cmd.AddCommand(ensure)
	return cmd
}

func accountCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	var (
		clientID      int64
		currency      string
		precision     int32
		allowNegative bool
	)
	open := &cobra.Command{
		Use:   "open",
		Short: "Open a currency account for a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.OpenAccountRequest{Currency: currency}
			if cmd.Flags().Changed("precision") {
				req.Precision = &precision
			}
			if cmd.Flags().Changed("allow-negative") {
				req.AllowNegativeBalance = &allowNegative
			}

			var resp dto.AccountResponse
			raw, err := opts.client().do(cmd.Context(), http.MethodPost, clientPath(clientID)+"/accounts", req, nil, &resp)
			if err != nil {
				return err
			}
			return printAccount(cmd.OutOrStdout(), opts, raw, &resp)
		},
	}
	open.Flags().Int64Var(&clientID, "client", 0, "Client ID")
	open.Flags().StringVar(&currency, "currency", "", "Currency code or alias")
	open.Flags().Int32Var(&precision, "precision", dto.DefaultPrecision, "Decimal places")
	open.Flags().BoolVar(&allowNegative, "allow-negative", false, "Allow a negative balance")
	_ = open.MarkFlagRequired("client")
	_ = open.MarkFlagRequired("currency")

	var showClientID int64
	var showCurrency string
	show := &cobra.Command{
		Use:   "show [account-id]",
		Short: "Show an account by ID, or by --client and --currency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			switch {
			case len(args) == 1:
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				path = accountPath(id)
			case showClientID > 0 && showCurrency != "":
				path = clientPath(showClientID) + "/accounts/" + url.PathEscape(showCurrency)
			default:
				return fmt.Errorf("pass an account ID or both --client and --currency")
			}

			var resp dto.AccountResponse
			raw, err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, nil, &resp)
			if err != nil {
				return err
			}
			return printAccount(cmd.OutOrStdout(), opts, raw, &resp)
		},
	}
	show.Flags().Int64Var(&showClientID, "client", 0, "Client ID")
	show.Flags().StringVar(&showCurrency, "currency", "", "Currency code or alias")

	cmd.AddCommand(open, show, accountStatusCmd(opts, "deactivate"), accountStatusCmd(opts, "reactivate"))
	return cmd
}

func accountStatusCmd(opts *cliOptions, action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <account-id>",
		Short: "Mark an account " + action + "d",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var resp dto.AccountResponse
			raw, err := opts.client().do(cmd.Context(), http.MethodPost, accountPath(id)+"/"+action, nil, nil, &resp)
			if err != nil {
				return err
			}
			return printAccount(cmd.OutOrStdout(), opts, raw, &resp)
		},
	}
}

func postCmd(opts *cliOptions) *cobra.Command {
	var (
		clientID   int64
		currency   string
		amount     string
		key        string
		comment    string
		source     string
		categoryID int64
		actorID    int64
	)

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a signed amount to a client's currency account",
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}

			req := dto.PostingRequest{Currency: currency, Amount: value}
			if comment != "" {
				req.Comment = &comment
			}
			if source != "" {
				req.Source = &source
			}
			if categoryID > 0 {
				req.CategoryID = &categoryID
			}
			if actorID > 0 {
				req.ActorID = &actorID
			}
			if key == "" {
				key = newIdempotencyKey()
			}

			var resp dto.PostingResponse
			raw, err := opts.client().do(cmd.Context(), http.MethodPost, clientPath(clientID)+"/postings", req,
				map[string]string{handler.IdempotencyKeyHeader: key}, &resp)
			if err != nil {
				return err
			}
			if opts.raw {
				return printRaw(cmd.OutOrStdout(), raw)
			}

			tx := resp.Transaction
			status := "posted"
			if resp.Replayed {
				status = "replayed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d on account %d: %s, balance %s (key %s)\n",
				status, tx.ID, tx.AccountID, tx.Amount.String(), tx.BalanceAfter.String(), key)
			return nil
		},
	}

	cmd.Flags().Int64Var(&clientID, "client", 0, "Client ID")
	cmd.Flags().StringVar(&currency, "currency", "", "Currency code or alias")
	cmd.Flags().StringVar(&amount, "amount", "", "Signed amount, negative for spending")
	cmd.Flags().StringVar(&key, "key", "", "Idempotency key (a new ULID when empty)")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment")
	cmd.Flags().StringVar(&source, "source", "cli", "Posting source")
	cmd.Flags().Int64Var(&categoryID, "category", 0, "Category ID")
	cmd.Flags().Int64Var(&actorID, "actor", 0, "Actor ID")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("currency")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func statementCmd(opts *cliOptions) *cobra.Command {
	var (
		limit  int
		cursor string
		from   string
		to     string
	)

	cmd := &cobra.Command{
		Use:   "statement <account-id>",
		Short: "List an account's transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			if from != "" {
				q.Set("from", from)
			}
			if to != "" {
				q.Set("to", to)
			}

			client := opts.client()
			var page dto.StatementResponse
			raw, err := client.do(cmd.Context(), http.MethodGet, accountPath(id)+"/transactions?"+q.Encode(), nil, nil, &page)
			if err != nil {
				return err
			}
			if opts.raw {
				return printRaw(cmd.OutOrStdout(), raw)
			}

			var acc dto.AccountResponse
			if _, err := client.do(cmd.Context(), http.MethodGet, accountPath(id), nil, nil, &acc); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "ID\tOCCURRED AT\tAMOUNT\tBALANCE\tCOMMENT\t")
			for _, tx := range page.Transactions {
				comment := ""
				if tx.Comment != nil {
					comment = truncate(*tx.Comment, 40)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n",
					tx.ID,
					tx.OccurredAt.Format(time.DateTime),
					domain.FormatAmount(tx.Amount, acc.Precision),
					domain.FormatAmount(tx.BalanceAfter, acc.Precision),
					comment,
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if page.NextCursor != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "next cursor: %s\n", page.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor from a previous page")
	cmd.Flags().StringVar(&from, "from", "", "Earliest occurred_at (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Latest occurred_at (RFC 3339)")

	return cmd
}

func balanceCmd(opts *cliOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Show an account's balance, optionally at a past instant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			path := accountPath(id) + "/balance"
			if at != "" {
				path += "?at=" + url.QueryEscape(at)
			}

			client := opts.client()
			var resp dto.BalanceResponse
			raw, err := client.do(cmd.Context(), http.MethodGet, path, nil, nil, &resp)
			if err != nil {
				return err
			}
			if opts.raw {
				return printRaw(cmd.OutOrStdout(), raw)
			}

			var acc dto.AccountResponse
			if _, err := client.do(cmd.Context(), http.MethodGet, accountPath(id), nil, nil, &acc); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s\n",
				domain.FormatAmount(resp.Balance, acc.Precision), acc.Currency, resp.At.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Instant (RFC 3339), defaults to now")
	return cmd
}

func balancesCmd(opts *cliOptions) *cobra.Command {
	var (
		currency   string
		activeOnly bool
		nonZero    bool
		sign       string
		minAbs     string
	)

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "List balances of every client, grouped by client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if currency != "" {
				q.Set("currency", currency)
			}
			if activeOnly {
				q.Set("active_only", "true")
			}
			if nonZero {
				q.Set("non_zero", "true")
			}
			if sign != "" {
				q.Set("sign", sign)
			}
			if minAbs != "" {
				q.Set("min_abs", minAbs)
			}

			path := "/balances"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var balances []dto.ClientBalanceResponse
			raw, err := opts.client().do(cmd.Context(), http.MethodGet, path, nil, nil, &balances)
			if err != nil {
				return err
			}
			if opts.raw {
				return printRaw(cmd.OutOrStdout(), raw)
			}
			return printBalances(cmd.OutOrStdout(), balances)
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", "Only this currency")
	cmd.Flags().BoolVar(&activeOnly, "active-only", false, "Skip deactivated accounts")
	cmd.Flags().BoolVar(&nonZero, "non-zero", false, "Skip zero balances")
	cmd.Flags().StringVar(&sign, "sign", "", "Only positive (+) or negative (-) balances")
	cmd.Flags().StringVar(&minAbs, "min-abs", "", "Skip balances whose absolute value is below this")

	return cmd
}

// printBalances prints rows already ordered by client, one block per client.
func printBalances(w io.Writer, balances []dto.ClientBalanceResponse) error {
	if len(balances) == 0 {
		_, err := fmt.Fprintln(w, "no balances")
		return err
	}

	for i, b := range balances {
		if i == 0 || balances[i-1].ClientID != b.ClientID {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s (client #%d, chat %d)\n", b.ClientName, b.ClientID, b.ChatRef)
		}

		amount, err := decimal.NewFromString(b.Balance)
		if err != nil {
			return fmt.Errorf("account #%d: invalid balance %q: %w", b.AccountID, b.Balance, err)
		}
		line := fmt.Sprintf("  %s %s", domain.FormatAmount(amount, b.Precision), b.Currency)
		if !b.IsActive {
			line += " (inactive)"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func reconcileCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [account-id]",
		Short: "Check recorded balances against transaction history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				var resp dto.ReconciliationResponse
				raw, err := opts.client().do(cmd.Context(), http.MethodGet, accountPath(id)+"/reconciliation", nil, nil, &resp)
				if err != nil {
					return err
				}
				if opts.raw {
					return printRaw(out, raw)
				}
				printReconciliation(out, &resp)
				if !resp.IsReconciled {
					return fmt.Errorf("account %d is not reconciled", id)
				}
				return nil
			}

			var report dto.ReconciliationReportResponse
			raw, err := opts.client().do(cmd.Context(), http.MethodGet, "/ledger/reconciliation", nil, nil, &report)
			if err != nil {
				return err
			}
			if opts.raw {
				return printRaw(out, raw)
			}

			fmt.Fprintf(out, "%d of %d accounts reconciled\n", report.ReconciledAccounts, report.TotalAccounts)
			for _, d := range report.Discrepancies {
				printReconciliation(out, d)
			}
			if len(report.Discrepancies) > 0 {
				return fmt.Errorf("%d accounts have discrepancies", len(report.Discrepancies))
			}
			return nil
		},
	}
}

func printAccount(w io.Writer, opts *cliOptions, raw []byte, acc *dto.AccountResponse) error {
	if opts.raw {
		return printRaw(w, raw)
	}

	balance, err := decimal.NewFromString(acc.Balance)
	if err != nil {
		return fmt.Errorf("invalid balance %q: %w", acc.Balance, err)
	}

	state := "active"
	if !acc.IsActive {
		state = "inactive"
	}
	fmt.Fprintf(w, "account #%d client=%d %s %s (%s", acc.ID, acc.ClientID,
		domain.FormatAmount(balance, acc.Precision), acc.Currency, state)
	if acc.AllowNegativeBalance {
		fmt.Fprint(w, ", overdraft allowed")
	}
	fmt.Fprintln(w, ")")
	return nil
}

func printReconciliation(w io.Writer, r *dto.ReconciliationResponse) {
	state := "OK"
	if !r.IsReconciled {
		state = "MISMATCH"
	}
	fmt.Fprintf(w, "account #%d %s: %s recorded=%s calculated=%s difference=%s transactions=%d broken_links=%d\n",
		r.AccountID, r.Currency, state,
		r.RecordedBalance.String(), r.CalculatedBalance.String(), r.Difference.String(),
		r.TransactionCount, r.BrokenLinks)
}

func printRaw(w io.Writer, raw []byte) error {
	_, err := fmt.Fprintln(w, string(raw))
	return err
}

func clientPath(id int64) string  { return "/clients/" + strconv.FormatInt(id, 10) }
func accountPath(id int64) string { return "/accounts/" + strconv.FormatInt(id, 10) }

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
