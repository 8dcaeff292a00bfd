// Package ledger defines the contract between the certificate registry and the
// distributed ledger that anchors proofs of issuance.
package ledger

import (
	"context"
	"log/slog"
)

// Authority identifies the account a write is performed for. PrivateKey is a
// capability passed through to the ledger and never persisted or logged.
type Authority struct {
	PrivateKey string
	Address    string
}

// LogValue keeps the credential out of structured logs.
func (a Authority) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("address", a.Address),
		slog.Bool("has_credential", a.PrivateKey != ""),
	)
}

// CertificateSubmission is the certificate registration operation.
type CertificateSubmission struct {
	Key         string
	StudentName string
	IssueDate   int64
	Authority   Authority
}

// Institution is the institution registration operation.
type Institution struct {
	Name        string
	TaxID       string
	Responsible string
	Address     string
}

// Receipt confirms a write. AuthorityAddress is the effective account the
// ledger attributed the write to.
type Receipt struct {
	TxHash           string
	AuthorityAddress string
}

// View is the ledger's record of a certificate.
type View struct {
	StudentName      string
	IssueDate        int64
	AuthorityAddress string
}

// Lookup is the result of a certificate query. Found is false when the
// ledger has no record for the key.
type Lookup struct {
	Found bool
	View  View
}

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks Ledger

// Ledger is implemented by every ledger backend. Failures are returned as *Error.
type Ledger interface {
	RegisterCertificate(ctx context.Context, sub CertificateSubmission) (Receipt, error)
	GetCertificate(ctx context.Context, key string) (Lookup, error)
	RegisterInstitution(ctx context.Context, admin Authority, inst Institution) (Receipt, error)
	VerifyInstitution(ctx context.Context, admin Authority, institutionAddress string) (Receipt, error)
	TransferAdmin(ctx context.Context, admin Authority, newAdminAddress string) (Receipt, error)
	Health(ctx context.Context) error
}

// Operation names used in errors, metrics and spans.
const (
	OpRegisterCertificate = "register_certificate"
	OpGetCertificate      = "get_certificate"
	OpRegisterInstitution = "register_institution"
	OpVerifyInstitution   = "verify_institution"
	OpTransferAdmin       = "transfer_admin"
	OpHealth              = "health"
)
