package handler

import (
	"certledger/internal/certificate/models"
	"certledger/internal/platform/config"
)

const statusSuccess = "success"

type registerResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	CertificateHash string `json:"certificate_hash"`
	FilePath        string `json:"file_path"`
	TransactionHash string `json:"transaction_hash,omitempty"`
}

// certificateResponse names the authority after the deployment's authority
// model: issuer_address or institution_address.
type certificateResponse struct {
	CertificateHash    string `json:"certificate_hash"`
	StudentName        string `json:"student_name"`
	IssueDate          int64  `json:"issue_date"`
	IssuerAddress      string `json:"issuer_address,omitempty"`
	InstitutionAddress string `json:"institution_address,omitempty"`
	TransactionHash    string `json:"transaction_hash,omitempty"`
	FilePath           string `json:"file_path"`
}

type getResponse struct {
	Status      string              `json:"status"`
	Certificate certificateResponse `json:"certificate"`
}

type listResponse struct {
	Status       string                `json:"status"`
	Certificates []certificateResponse `json:"certificates"`
}

func (h *Handler) toResponse(v *models.View) certificateResponse {
	out := certificateResponse{
		CertificateHash: v.Key,
		StudentName:     v.StudentName,
		IssueDate:       v.IssueDate,
		TransactionHash: v.TransactionHash,
		FilePath:        v.FilePath,
	}
	if h.cfg.AuthorityModel == config.AuthorityInstitution {
		out.InstitutionAddress = v.AuthorityAddress
	} else {
		out.IssuerAddress = v.AuthorityAddress
	}
	return out
}
