// Package rpc talks to a ledger gateway over JSON-RPC 2.0 on HTTP.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"certledger/internal/ledger"
)

// Gateway method names.
const (
	MethodRegisterCertificate = "certificate_register"
	MethodGetCertificate      = "certificate_get"
	MethodRegisterInstitution = "institution_register"
	MethodVerifyInstitution   = "institution_verify"
	MethodTransferAdmin       = "admin_transfer"
	MethodHealth              = "health"
)

// CodeNotFound is the application error code the gateway uses for unknown
// certificates.
const CodeNotFound = -32004

const maxResponseBytes = 1 << 20

// Client is a ledger.Ledger backed by a remote gateway.
type Client struct {
	endpoint string
	http     *http.Client
	ids      atomic.Uint64
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.http = c
	}
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthorityParams is the wire form of ledger.Authority.
type AuthorityParams struct {
	PrivateKey string `json:"private_key,omitempty"`
	Address    string `json:"address,omitempty"`
}

type RegisterCertificateParams struct {
	CertificateHash string          `json:"certificate_hash"`
	StudentName     string          `json:"student_name"`
	IssueDate       int64           `json:"issue_date"`
	Authority       AuthorityParams `json:"authority"`
}

type GetCertificateParams struct {
	CertificateHash string `json:"certificate_hash"`
}

type RegisterInstitutionParams struct {
	Admin       AuthorityParams `json:"admin"`
	Name        string          `json:"name"`
	TaxID       string          `json:"cnpj"`
	Responsible string          `json:"responsible"`
	Address     string          `json:"institution_address,omitempty"`
}

type VerifyInstitutionParams struct {
	Admin   AuthorityParams `json:"admin"`
	Address string          `json:"institution_address"`
}

type TransferAdminParams struct {
	Admin           AuthorityParams `json:"admin"`
	NewAdminAddress string          `json:"new_admin_address"`
}

type ReceiptResult struct {
	TransactionHash  string `json:"transaction_hash"`
	AuthorityAddress string `json:"authority_address"`
}

type CertificateResult struct {
	StudentName      string `json:"student_name"`
	IssueDate        int64  `json:"issue_date"`
	AuthorityAddress string `json:"authority_address"`
}

// Request and Response are the JSON-RPC 2.0 envelopes.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) RegisterCertificate(ctx context.Context, sub ledger.CertificateSubmission) (ledger.Receipt, error) {
	return c.write(ctx, ledger.OpRegisterCertificate, MethodRegisterCertificate, RegisterCertificateParams{
		CertificateHash: sub.Key,
		StudentName:     sub.StudentName,
		IssueDate:       sub.IssueDate,
		Authority:       authorityParams(sub.Authority),
	})
}

func (c *Client) GetCertificate(ctx context.Context, key string) (ledger.Lookup, error) {
	var out CertificateResult
	err := c.call(ctx, ledger.OpGetCertificate, MethodGetCertificate, GetCertificateParams{CertificateHash: key}, &out)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == CodeNotFound {
			return ledger.Lookup{Found: false}, nil
		}
		return ledger.Lookup{}, err
	}
	return ledger.Lookup{
		Found: true,
		View: ledger.View{
			StudentName:      out.StudentName,
			IssueDate:        out.IssueDate,
			AuthorityAddress: out.AuthorityAddress,
		},
	}, nil
}

func (c *Client) RegisterInstitution(ctx context.Context, admin ledger.Authority, inst ledger.Institution) (ledger.Receipt, error) {
	return c.write(ctx, ledger.OpRegisterInstitution, MethodRegisterInstitution, RegisterInstitutionParams{
		Admin:       authorityParams(admin),
		Name:        inst.Name,
		TaxID:       inst.TaxID,
		Responsible: inst.Responsible,
		Address:     inst.Address,
	})
}

func (c *Client) VerifyInstitution(ctx context.Context, admin ledger.Authority, institutionAddress string) (ledger.Receipt, error) {
	return c.write(ctx, ledger.OpVerifyInstitution, MethodVerifyInstitution, VerifyInstitutionParams{
		Admin:   authorityParams(admin),
		Address: institutionAddress,
	})
}

func (c *Client) TransferAdmin(ctx context.Context, admin ledger.Authority, newAdminAddress string) (ledger.Receipt, error) {
	return c.write(ctx, ledger.OpTransferAdmin, MethodTransferAdmin, TransferAdminParams{
		Admin:           authorityParams(admin),
		NewAdminAddress: newAdminAddress,
	})
}

func (c *Client) Health(ctx context.Context) error {
	var ok bool
	if err := c.call(ctx, ledger.OpHealth, MethodHealth, nil, &ok); err != nil {
		return err
	}
	if !ok {
		return ledger.Unavailable(ledger.OpHealth, errors.New("gateway reported unhealthy"))
	}
	return nil
}

func (c *Client) write(ctx context.Context, op, method string, params any) (ledger.Receipt, error) {
	var out ReceiptResult
	if err := c.call(ctx, op, method, params, &out); err != nil {
		return ledger.Receipt{}, err
	}
	if out.TransactionHash == "" {
		return ledger.Receipt{}, ledger.Unavailable(op, errors.New("gateway returned no transaction hash"))
	}
	return ledger.Receipt{TxHash: out.TransactionHash, AuthorityAddress: out.AuthorityAddress}, nil
}

// call performs one round trip. RPC error objects come back as a
// *ledger.Error of category rejected that wraps the *RPCError.
func (c *Client) call(ctx context.Context, op, method string, params any, out any) error {
	req := Request{JSONRPC: "2.0", ID: c.ids.Add(1), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return ledger.Unavailable(op, fmt.Errorf("encode params: %w", err))
		}
		req.Params = raw
	}
	body, err := json.Marshal(req)
	if err != nil {
		return ledger.Unavailable(op, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ledger.Unavailable(op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ledger.FromContext(op, ctxErr)
		}
		return ledger.Unavailable(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return ledger.Unavailable(op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var rpcResp Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&rpcResp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ledger.FromContext(op, ctxErr)
		}
		return ledger.Unavailable(op, fmt.Errorf("decode response: %w", err))
	}
	if rpcResp.Error != nil {
		return &ledger.Error{
			Category:   ledger.CategoryRejected,
			Op:         op,
			Reason:     rpcResp.Error.Message,
			Underlying: rpcResp.Error,
		}
	}
	if rpcResp.ID != req.ID {
		return ledger.Unavailable(op, fmt.Errorf("response id %d does not match request id %d", rpcResp.ID, req.ID))
	}
	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return ledger.Unavailable(op, fmt.Errorf("decode result: %w", err))
		}
	}
	return nil
}

func authorityParams(a ledger.Authority) AuthorityParams {
	return AuthorityParams{PrivateKey: a.PrivateKey, Address: a.Address}
}

var _ ledger.Ledger = (*Client)(nil)
