package normalize

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/statement-flow/internal/model"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// OFXParser implements OFX/QFX file parsing.
type OFXParser struct{}

// NewOFXParser creates a new OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// Format returns the source format this parser produces.
func (p *OFXParser) Format() model.SourceFormat { return model.FormatOFX }

// Detect matches .ofx/.qfx files and anything carrying an OFX header.
func (p *OFXParser) Detect(filename string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ofx", ".qfx":
		return true
	}
	head := bytes.TrimLeft(data[:min(len(data), 1024)], " \t\r\n")
	return bytes.HasPrefix(head, []byte("OFXHEADER")) ||
		bytes.Contains(bytes.ToUpper(head), []byte("<OFX>"))
}

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be upper case.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML exports sometimes drop the closing bracket of an opening tag.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in the file.
func (p *OFXParser) Parse(data []byte) ([]model.NormalizedRow, model.Diagnostics, error) {
	text, encoding := decodeText(data)
	diag := model.Diagnostics{Encoding: encoding}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(text)))
	if err != nil {
		return nil, diag, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var rows []model.NormalizedRow
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		account := string(stmt.BankAcctFrom.AcctID)
		for _, tx := range stmt.BankTranList.Transactions {
			rows = append(rows, convertOFX(tx, account, stmt.CurDef.String(), len(rows)))
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		account := string(stmt.CCAcctFrom.AcctID)
		for _, tx := range stmt.BankTranList.Transactions {
			rows = append(rows, convertOFX(tx, account, stmt.CurDef.String(), len(rows)))
		}
	}

	diag.Extra = map[string]any{"bank_statements": bankStmts, "cc_statements": ccStmts}
	slog.Debug("Parsed OFX file",
		"total_transactions", len(rows),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return rows, diag, nil
}

// convertOFX maps one OFX transaction. OFX amounts are already signed.
func convertOFX(tx ofxgo.Transaction, account, currency string, index int) model.NormalizedRow {
	amount := decimal.NullDecimal{}
	if d, err := decimal.NewFromString(tx.TrnAmt.FloatString(2)); err == nil {
		amount = decimal.NewNullDecimal(d)
	}
	if tx.Currency != nil {
		if sym := tx.Currency.CurSym.String(); sym != "" && sym != "XXX" {
			currency = sym
		}
	}

	rawDescription := strings.TrimSpace(strings.Join([]string{string(tx.Name), string(tx.Memo)}, " "))
	posted := tx.DtPosted.Time

	row := model.NormalizedRow{
		Date:           posted.UTC(),
		Amount:         amount,
		Currency:       currency,
		Description:    collapseSpaces(merchantName(tx)),
		RawDescription: rawDescription,
		Key:            string(tx.FiTID),
		Source:         model.FormatOFX,
		Index:          index,
		Raw: map[string]any{
			"account":  account,
			"fitid":    string(tx.FiTID),
			"trntype":  tx.TrnType.String(),
			"dtposted": posted.Format("2006-01-02T15:04:05Z07:00"),
			"trnamt":   tx.TrnAmt.FloatString(2),
			"name":     string(tx.Name),
			"memo":     string(tx.Memo),
			"checknum": string(tx.CheckNum),
		},
	}
	if tx.DtUser != nil {
		user := tx.DtUser.Time.UTC()
		row.BookingDate = &user
	}
	return row
}

var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// merchantName tries to get a clean merchant name from OFX data.
func merchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Drop a leading "MM/DD " date.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}
	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	}
	return false
}
