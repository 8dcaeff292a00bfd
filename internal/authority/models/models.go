package models

import (
	"strings"

	"certledger/internal/ledger/ethkey"
	dErrors "certledger/pkg/domain-errors"
)

// RegisterInstitutionRequest registers an institution allowed to issue
// certificates. Address is optional; the ledger derives one from the tax ID
// when it is absent.
type RegisterInstitutionRequest struct {
	Name        string `json:"name"`
	CNPJ        string `json:"cnpj"`
	TaxID       string `json:"tax_id"`
	Responsible string `json:"responsible"`
	Address     string `json:"institution_address"`
}

func (r *RegisterInstitutionRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Responsible = strings.TrimSpace(r.Responsible)
	r.Address = strings.TrimSpace(r.Address)
	r.TaxID = strings.TrimSpace(r.TaxID)
	if cnpj := strings.TrimSpace(r.CNPJ); cnpj != "" {
		r.TaxID = cnpj
	}
}

func (r *RegisterInstitutionRequest) Validate() error {
	r.Normalize()
	if r.Name == "" || r.TaxID == "" || r.Responsible == "" {
		return dErrors.New(dErrors.CodeIncompleteInput, "name, cnpj and responsible are required")
	}
	if r.Address != "" {
		return validateAddress(r.Address, "institution_address")
	}
	return nil
}

type VerifyInstitutionRequest struct {
	InstitutionAddress string `json:"institution_address"`
}

func (r *VerifyInstitutionRequest) Validate() error {
	r.InstitutionAddress = strings.TrimSpace(r.InstitutionAddress)
	if r.InstitutionAddress == "" {
		return dErrors.New(dErrors.CodeIncompleteInput, "institution_address is required")
	}
	return validateAddress(r.InstitutionAddress, "institution_address")
}

type TransferAdminRequest struct {
	NewAdminAddress string `json:"new_admin_address"`
}

func (r *TransferAdminRequest) Validate() error {
	r.NewAdminAddress = strings.TrimSpace(r.NewAdminAddress)
	if r.NewAdminAddress == "" {
		return dErrors.New(dErrors.CodeIncompleteInput, "new_admin_address is required")
	}
	return validateAddress(r.NewAdminAddress, "new_admin_address")
}

// Result is the outcome of an administrative ledger write.
type Result struct {
	TransactionHash string
	Address         string
}

// OperationResponse is the success envelope of every authority endpoint.
type OperationResponse struct {
	Status          string `json:"status"`
	TransactionHash string `json:"transaction_hash"`
	Address         string `json:"address,omitempty"`
}

func validateAddress(addr, field string) error {
	if !ethkey.IsAddress(addr) || ethkey.IsZeroAddress(addr) {
		return dErrors.New(dErrors.CodeInvalidInput, field+" must be 0x followed by 40 hex characters")
	}
	return nil
}
