// Package simulated is an in-process ledger that enforces the certificate
// registry contract rules. It backs local development and tests.
package simulated

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"sync"

	"certledger/internal/ledger"
	"certledger/internal/ledger/ethkey"
)

// Rejection reasons returned by the simulated contract.
const (
	ReasonInvalidHash          = "invalid certificate hash"
	ReasonNameRequired         = "student name is required"
	ReasonInvalidIssueDate     = "invalid issue date"
	ReasonAlreadyRegistered    = "certificate already registered"
	ReasonMissingAuthority     = "missing authority"
	ReasonInvalidCredential    = "invalid authority credential"
	ReasonNotAdmin             = "only the administrator can perform this operation"
	ReasonInvalidNewAdmin      = "invalid address for new admin"
	ReasonInstitutionFields    = "institution name, tax id and responsible are required"
	ReasonInstitutionExists    = "institution already registered"
	ReasonInstitutionUnknown   = "institution not registered"
	ReasonInstitutionVerified  = "institution already verified"
	ReasonInstitutionNotActive = "institution is not verified"
	ReasonInvalidAddress       = "invalid institution address"
)

type certificate struct {
	studentName string
	issueDate   int64
	authority   string
}

type institution struct {
	name        string
	taxID       string
	responsible string
	verified    bool
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu                 sync.Mutex
	admin              string
	requireInstitution bool
	certificates       map[string]certificate
	institutions       map[string]*institution
	nonce              uint64
}

type Option func(*Ledger)

// WithInstitutionAuthority requires certificates to be registered by a
// verified institution.
func WithInstitutionAuthority() Option {
	return func(l *Ledger) {
		l.requireInstitution = true
	}
}

// New deploys a ledger whose administrator is adminAddress.
func New(adminAddress string, opts ...Option) *Ledger {
	l := &Ledger{
		admin:        ethkey.ChecksumAddress(adminAddress),
		certificates: make(map[string]certificate),
		institutions: make(map[string]*institution),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admin returns the current administrator address.
func (l *Ledger) Admin() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.admin
}

func (l *Ledger) RegisterCertificate(ctx context.Context, sub ledger.CertificateSubmission) (ledger.Receipt, error) {
	const op = ledger.OpRegisterCertificate
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, ledger.FromContext(op, err)
	}
	signer, rejection := resolveSigner(sub.Authority)
	if rejection != "" {
		return ledger.Receipt{}, ledger.Rejected(op, rejection)
	}
	if !ethkey.IsHash(sub.Key) {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonInvalidHash)
	}
	if strings.TrimSpace(sub.StudentName) == "" {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonNameRequired)
	}
	if sub.IssueDate <= 0 {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonInvalidIssueDate)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.requireInstitution {
		inst, ok := l.institutions[normalize(signer)]
		if !ok || !inst.verified {
			return ledger.Receipt{}, ledger.Rejected(op, ReasonInstitutionNotActive)
		}
	}
	key := normalize(sub.Key)
	if _, exists := l.certificates[key]; exists {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonAlreadyRegistered)
	}
	l.certificates[key] = certificate{
		studentName: sub.StudentName,
		issueDate:   sub.IssueDate,
		authority:   signer,
	}
	return ledger.Receipt{TxHash: l.nextTxHash(op, key), AuthorityAddress: signer}, nil
}

func (l *Ledger) GetCertificate(ctx context.Context, key string) (ledger.Lookup, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Lookup{}, ledger.FromContext(ledger.OpGetCertificate, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cert, ok := l.certificates[normalize(key)]
	if !ok {
		return ledger.Lookup{Found: false}, nil
	}
	return ledger.Lookup{
		Found: true,
		View: ledger.View{
			StudentName:      cert.studentName,
			IssueDate:        cert.issueDate,
			AuthorityAddress: cert.authority,
		},
	}, nil
}

func (l *Ledger) RegisterInstitution(ctx context.Context, admin ledger.Authority, inst ledger.Institution) (ledger.Receipt, error) {
	const op = ledger.OpRegisterInstitution
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, ledger.FromContext(op, err)
	}
	if strings.TrimSpace(inst.Name) == "" || strings.TrimSpace(inst.TaxID) == "" || strings.TrimSpace(inst.Responsible) == "" {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonInstitutionFields)
	}

	address := inst.Address
	if address == "" {
		address = institutionAddress(inst.TaxID)
	}
	if !ethkey.IsAddress(address) || ethkey.IsZeroAddress(address) {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonInvalidAddress)
	}
	address = ethkey.ChecksumAddress(address)

	l.mu.Lock()
	defer l.mu.Unlock()

	if rejection := l.requireAdmin(admin); rejection != "" {
		return ledger.Receipt{}, ledger.Rejected(op, rejection)
	}
	if _, exists := l.institutions[normalize(address)]; exists {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonInstitutionExists)
	}
	l.institutions[normalize(address)] = &institution{
		name:        inst.Name,
		taxID:       inst.TaxID,
		responsible: inst.Responsible,
	}
	return ledger.Receipt{TxHash: l.nextTxHash(op, address), AuthorityAddress: address}, nil
}

func (l *Ledger) VerifyInstitution(ctx context.Context, admin ledger.Authority, institutionAddress string) (ledger.Receipt, error) {
	const op = ledger.OpVerifyInstitution
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, ledger.FromContext(op, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rejection := l.requireAdmin(admin); rejection != "" {
		return ledger.Receipt{}, ledger.Rejected(op, rejection)
	}
	inst, ok := l.institutions[normalize(institutionAddress)]
	if !ok {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonInstitutionUnknown)
	}
	if inst.verified {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonInstitutionVerified)
	}
	inst.verified = true
	address := ethkey.ChecksumAddress(institutionAddress)
	return ledger.Receipt{TxHash: l.nextTxHash(op, address), AuthorityAddress: address}, nil
}

func (l *Ledger) TransferAdmin(ctx context.Context, admin ledger.Authority, newAdminAddress string) (ledger.Receipt, error) {
	const op = ledger.OpTransferAdmin
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, ledger.FromContext(op, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rejection := l.requireAdmin(admin); rejection != "" {
		return ledger.Receipt{}, ledger.Rejected(op, rejection)
	}
	if !ethkey.IsAddress(newAdminAddress) || ethkey.IsZeroAddress(newAdminAddress) {
		return ledger.Receipt{}, ledger.Rejected(op, ReasonInvalidNewAdmin)
	}
	l.admin = ethkey.ChecksumAddress(newAdminAddress)
	return ledger.Receipt{TxHash: l.nextTxHash(op, l.admin), AuthorityAddress: l.admin}, nil
}

func (l *Ledger) Health(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return ledger.FromContext(ledger.OpHealth, err)
	}
	return nil
}

// requireAdmin must be called with l.mu held. Administrative writes always
// need the credential itself.
func (l *Ledger) requireAdmin(admin ledger.Authority) string {
	if admin.PrivateKey == "" {
		return ReasonMissingAuthority
	}
	signer, rejection := resolveSigner(admin)
	if rejection != "" {
		return rejection
	}
	if !ethkey.SameAddress(signer, l.admin) {
		return ReasonNotAdmin
	}
	return ""
}

// nextTxHash must be called with l.mu held.
func (l *Ledger) nextTxHash(op string, subject string) string {
	l.nonce++
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], l.nonce)
	return "0x" + hex.EncodeToString(ethkey.Keccak256(n[:], []byte(op), []byte(normalize(subject))))
}

// resolveSigner prefers the credential; an address alone is accepted when the
// caller has already proven control of it.
func resolveSigner(a ledger.Authority) (string, string) {
	switch {
	case a.PrivateKey != "":
		addr, err := ethkey.AddressFromPrivateKey(a.PrivateKey)
		if err != nil {
			return "", ReasonInvalidCredential
		}
		return addr, ""
	case a.Address != "":
		if !ethkey.IsAddress(a.Address) || ethkey.IsZeroAddress(a.Address) {
			return "", ReasonInvalidCredential
		}
		return ethkey.ChecksumAddress(a.Address), ""
	default:
		return "", ReasonMissingAuthority
	}
}

func institutionAddress(taxID string) string {
	digest := ethkey.Keccak256([]byte(strings.TrimSpace(taxID)))
	return ethkey.ChecksumAddress("0x" + hex.EncodeToString(digest[12:]))
}

func normalize(s string) string {
	return strings.ToLower(s)
}

var _ ledger.Ledger = (*Ledger)(nil)
