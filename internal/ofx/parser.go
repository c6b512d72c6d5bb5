// Package ofx parses OFX/QFX bank exports into ledger transactions.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/reconcile/internal/model"
)

// Parser implements OFX/QFX file parsing.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file into transactions owned by the given
// team. Amounts are stored as positive magnitudes; the sign convention of
// the source file carries no meaning for matching.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader, teamID string) ([]model.Transaction, error) {
	if teamID == "" {
		return nil, fmt.Errorf("team ID is required for import")
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			transactions = append(transactions,
				p.convertStatement(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID), stmt.CurDef.String(), teamID)...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			transactions = append(transactions,
				p.convertStatement(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID), stmt.CurDef.String(), teamID)...)
		}
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

func (p *Parser) convertStatement(list *ofxgo.TransactionList, accountID, currency, teamID string) []model.Transaction {
	if list == nil {
		return nil
	}

	transactions := make([]model.Transaction, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		transactions = append(transactions, p.convertTransaction(ofxTx, accountID, currency, teamID))
	}
	return transactions
}

func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID, currency, teamID string) model.Transaction {
	amount := decimal.NewFromBigRat(&ofxTx.TrnAmt.Rat, 2).Abs()

	// Per-transaction currency overrides the statement default.
	if ofxTx.Currency != nil && ofxTx.Currency.CurSym.String() != "" {
		currency = ofxTx.Currency.CurSym.String()
	}

	id := string(ofxTx.FiTID)
	if id == "" {
		id = uuid.NewString()
	}

	tx := model.Transaction{
		ID:        id,
		TeamID:    teamID,
		Date:      ofxTx.DtPosted.Time,
		Name:      cleanDescription(ofxTx),
		Amount:    amount,
		Currency:  currency,
		AccountID: accountID,
	}
	tx.Hash = tx.GenerateHash()
	return tx
}

// cleanDescription extracts the most descriptive name the OFX record
// offers and strips processor boilerplate.
func cleanDescription(tx ofxgo.Transaction) string {
	// PAYEE is the cleanest source when present.
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip leading "MM/DD " date fragments some processors prepend.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
