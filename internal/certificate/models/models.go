// Package models holds the certificate aggregate and the inputs and views the
// registration and lookup workflows exchange.
package models

import "time"

// Record is the persisted certificate row. It is created once and never mutated.
type Record struct {
	Key              string
	StudentName      string
	IssueDate        int64
	AuthorityAddress string
	TransactionHash  string
	FilePath         string
	CreatedAt        time.Time
}

// View is what lookups return: ledger fields when the ledger is enabled,
// local fields otherwise, and the local file path in both cases.
type View struct {
	Key              string
	StudentName      string
	IssueDate        int64
	AuthorityAddress string
	TransactionHash  string
	FilePath         string
}

// ViewFromRecord builds a purely-local view.
func ViewFromRecord(r *Record) *View {
	return &View{
		Key:              r.Key,
		StudentName:      r.StudentName,
		IssueDate:        r.IssueDate,
		AuthorityAddress: r.AuthorityAddress,
		TransactionHash:  r.TransactionHash,
		FilePath:         r.FilePath,
	}
}

// RegistrationInput is a registration request as received from the transport.
// IssueDate is the raw epoch string so the coordinator owns its validation.
// IssuerPrivateKey and Signature are credentials: they are handed to the
// ledger or the verifier and never stored.
type RegistrationInput struct {
	Key                string
	StudentName        string
	IssueDate          string
	IssuerPrivateKey   string
	InstitutionAddress string
	Signature          string
	FileName           string
	File               []byte
}

// RegistrationResult is returned on successful registration.
type RegistrationResult struct {
	Key             string
	FilePath        string
	TransactionHash string
}

// StagedFile is a file written under a temporary name and waiting to be
// promoted to its final, key-derived name.
type StagedFile struct {
	TempPath  string
	FinalPath string
}
